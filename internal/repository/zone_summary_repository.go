package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/waterplan/cadastre-ingest/internal/database"
	"github.com/waterplan/cadastre-ingest/internal/models"
)

// ZoneSummaryRepository persists per-zone rollups keyed by (zone, date).
// Summaries are superseded in place, not versioned: last write wins for a day.
type ZoneSummaryRepository interface {
	// Upsert inserts or overwrites the summary row for (zone, summary date).
	Upsert(ctx context.Context, summary models.ZoneSummary) error

	// GetByZoneAndDate returns a summary row, or nil when none exists.
	GetByZoneAndDate(ctx context.Context, zone string, date string) (*models.ZoneSummary, error)
}

// zoneSummaryRepository is the concrete implementation of ZoneSummaryRepository.
type zoneSummaryRepository struct {
	db *database.Database
}

// NewZoneSummaryRepository creates a new instance of ZoneSummaryRepository.
func NewZoneSummaryRepository(db *database.Database) ZoneSummaryRepository {
	return &zoneSummaryRepository{
		db: db,
	}
}

// Upsert writes the summary row, overwriting the numeric fields on conflict.
func (r *zoneSummaryRepository) Upsert(ctx context.Context, summary models.ZoneSummary) error {
	distribution := summary.CropDistribution
	if distribution == nil {
		distribution = map[string]int{}
	}

	_, err := r.db.Pool.Exec(ctx, `
		INSERT INTO zone_summaries (
			zone, summary_date, total_parcels,
			total_area_sqm, total_area_rai, crop_distribution
		) VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (zone, summary_date) DO UPDATE SET
			total_parcels = EXCLUDED.total_parcels,
			total_area_sqm = EXCLUDED.total_area_sqm,
			total_area_rai = EXCLUDED.total_area_rai,
			crop_distribution = EXCLUDED.crop_distribution`,
		summary.Zone, summary.SummaryDate, summary.TotalParcels,
		summary.TotalAreaSqm, summary.TotalAreaRai, distribution,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert summary for zone %s: %w", summary.Zone, err)
	}

	return nil
}

// GetByZoneAndDate returns the summary for (zone, date in YYYY-MM-DD form).
// Returns nil, nil when no summary exists (not an error).
func (r *zoneSummaryRepository) GetByZoneAndDate(ctx context.Context, zone string, date string) (*models.ZoneSummary, error) {
	var summary models.ZoneSummary
	err := r.db.Pool.QueryRow(ctx, `
		SELECT zone, summary_date, total_parcels,
			total_area_sqm, total_area_rai, crop_distribution
		FROM zone_summaries
		WHERE zone = $1 AND summary_date = $2`,
		zone, date,
	).Scan(
		&summary.Zone, &summary.SummaryDate, &summary.TotalParcels,
		&summary.TotalAreaSqm, &summary.TotalAreaRai, &summary.CropDistribution,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query summary for zone %s: %w", zone, err)
	}

	return &summary, nil
}
