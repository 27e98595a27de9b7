package models

import "time"

// Parcel is one geometric land unit for one validity interval.
// Rows are append-only: a re-ingest of a zone closes the current generation
// (valid_to set) and inserts a fresh one; geometry and area never mutate.
type Parcel struct {
	ID                int64                  `json:"id"`
	ParcelID          string                 `json:"parcelId"`
	UploadID          string                 `json:"uploadId"`
	Geometry          Geometry               `json:"geometry"`
	Centroid          Geometry               `json:"centroid"`
	AreaSqm           float64                `json:"areaSqm"`
	AreaRai           float64                `json:"areaRai"`
	Zone              string                 `json:"zone"`
	SubZone           string                 `json:"subZone"`
	OwnerName         string                 `json:"ownerName"`
	OwnerID           string                 `json:"ownerId"`
	CropType          string                 `json:"cropType"`
	LandUseType       string                 `json:"landUseType"`
	WaterDemandMethod string                 `json:"waterDemandMethod"`
	Attributes        map[string]interface{} `json:"attributes"`
	ValidFrom         time.Time              `json:"validFrom"`
	ValidTo           *time.Time             `json:"validTo,omitempty"`
}
