package models

import "time"

// ZoneSummary is the per-zone rollup recomputed after each successful ingest,
// keyed by (zone, summary date). Last write wins for a given day.
type ZoneSummary struct {
	Zone             string         `json:"zone"`
	SummaryDate      time.Time      `json:"summaryDate"`
	TotalParcels     int            `json:"totalParcels"`
	TotalAreaSqm     float64        `json:"totalAreaSqm"`
	TotalAreaRai     float64        `json:"totalAreaRai"`
	CropDistribution map[string]int `json:"cropDistribution"`
}
