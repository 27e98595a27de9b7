package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/waterplan/cadastre-ingest/internal/database"
	"github.com/waterplan/cadastre-ingest/internal/faults"
	"github.com/waterplan/cadastre-ingest/internal/models"
)

// ParcelRepository defines the interface for versioned parcel persistence.
type ParcelRepository interface {
	// ReplaceZoneParcels supersedes the current generation of every zone
	// touched by the batch and inserts the new generation, all inside one
	// transaction. Callers submit complete zone snapshots: prior current
	// rows in a touched zone are always closed, never merged.
	// Returns a fatal error if the owning upload row does not exist.
	ReplaceZoneParcels(ctx context.Context, uploadID string, parcels []models.Parcel) error

	// CurrentByZone returns the current generation (valid_to IS NULL) for a
	// zone. Returns an empty slice when the zone has no current parcels.
	CurrentByZone(ctx context.Context, zone string) ([]models.Parcel, error)
}

// parcelRepository is the concrete implementation of ParcelRepository.
type parcelRepository struct {
	db *database.Database
}

// NewParcelRepository creates a new instance of ParcelRepository.
func NewParcelRepository(db *database.Database) ParcelRepository {
	return &parcelRepository{
		db: db,
	}
}

// ReplaceZoneParcels performs the close-then-insert supersession.
//
// Concurrency: each touched zone is locked with a transaction-scoped advisory
// lock before its current rows are closed, so two ingests into the same zone
// serialize at the database instead of interleaving. Zones are locked in
// sorted order to avoid lock-order deadlocks between overlapping batches.
//
// Idempotency: closing rows that are already closed matches nothing, and the
// new generation replaces whatever the redelivered job wrote before, so
// re-running the same job converges instead of accumulating.
func (r *parcelRepository) ReplaceZoneParcels(ctx context.Context, uploadID string, parcels []models.Parcel) error {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	// The upload row must pre-exist: parcels reference it and the status
	// tracker owns its lifecycle. Absence means the job is unprocessable.
	var exists bool
	err = tx.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM shape_file_uploads WHERE upload_id = $1)`,
		uploadID,
	).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to resolve upload %s: %w", uploadID, err)
	}
	if !exists {
		return faults.Fatalf("upload %s has no shape_file_uploads row", uploadID)
	}

	now := time.Now().UTC()

	// Close the current generation of every zone in the batch.
	for _, zone := range distinctZones(parcels) {
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, zone); err != nil {
			return fmt.Errorf("failed to lock zone %s: %w", zone, err)
		}
		if _, err := tx.Exec(ctx,
			`UPDATE parcels SET valid_to = $2 WHERE zone = $1 AND valid_to IS NULL`,
			zone, now,
		); err != nil {
			return fmt.Errorf("failed to supersede zone %s: %w", zone, err)
		}
	}

	// Insert the new generation in one batch round trip.
	batch := &pgx.Batch{}
	for _, p := range parcels {
		batch.Queue(`
			INSERT INTO parcels (
				parcel_id, upload_id, geometry, centroid,
				area_sqm, area_rai, zone, sub_zone,
				owner_name, owner_id, crop_type, land_use_type,
				water_demand_method, attributes, valid_from, valid_to
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, NULL)`,
			p.ParcelID, uploadID, p.Geometry, p.Centroid,
			p.AreaSqm, p.AreaRai, p.Zone, p.SubZone,
			p.OwnerName, p.OwnerID, p.CropType, p.LandUseType,
			p.WaterDemandMethod, p.Attributes, now,
		)
	}

	results := tx.SendBatch(ctx, batch)
	for range parcels {
		if _, err := results.Exec(); err != nil {
			results.Close()
			return fmt.Errorf("failed to insert parcel batch for upload %s: %w", uploadID, err)
		}
	}
	if err := results.Close(); err != nil {
		return fmt.Errorf("failed to close parcel batch for upload %s: %w", uploadID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit parcel batch for upload %s: %w", uploadID, err)
	}

	return nil
}

// CurrentByZone returns the current parcel generation for a zone.
func (r *parcelRepository) CurrentByZone(ctx context.Context, zone string) ([]models.Parcel, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT
			id, parcel_id, upload_id, geometry, centroid,
			area_sqm, area_rai, zone, sub_zone,
			owner_name, owner_id, crop_type, land_use_type,
			water_demand_method, attributes, valid_from, valid_to
		FROM parcels
		WHERE zone = $1 AND valid_to IS NULL
		ORDER BY id`,
		zone,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query current parcels for zone %s: %w", zone, err)
	}
	defer rows.Close()

	parcels := []models.Parcel{}
	for rows.Next() {
		var p models.Parcel
		err := rows.Scan(
			&p.ID, &p.ParcelID, &p.UploadID, &p.Geometry, &p.Centroid,
			&p.AreaSqm, &p.AreaRai, &p.Zone, &p.SubZone,
			&p.OwnerName, &p.OwnerID, &p.CropType, &p.LandUseType,
			&p.WaterDemandMethod, &p.Attributes, &p.ValidFrom, &p.ValidTo,
		)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				break
			}
			return nil, fmt.Errorf("failed to scan parcel row: %w", err)
		}
		parcels = append(parcels, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating parcel rows: %w", err)
	}

	return parcels, nil
}

// distinctZones returns the sorted set of zones present in the batch.
func distinctZones(parcels []models.Parcel) []string {
	seen := make(map[string]struct{}, len(parcels))
	for _, p := range parcels {
		seen[p.Zone] = struct{}{}
	}

	zones := make([]string, 0, len(seen))
	for zone := range seen {
		zones = append(zones, zone)
	}
	sort.Strings(zones)
	return zones
}
