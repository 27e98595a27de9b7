// Package services contains the ingestion pipeline orchestration: one job
// message in, one transactional parcel generation out, with the upload row
// tracking the outcome either way.
package services

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/waterplan/cadastre-ingest/internal/archive"
	"github.com/waterplan/cadastre-ingest/internal/faults"
	"github.com/waterplan/cadastre-ingest/internal/logger"
	"github.com/waterplan/cadastre-ingest/internal/models"
	"github.com/waterplan/cadastre-ingest/internal/normalize"
	"github.com/waterplan/cadastre-ingest/internal/projection"
	"github.com/waterplan/cadastre-ingest/internal/queue"
	"github.com/waterplan/cadastre-ingest/internal/repository"
	"github.com/waterplan/cadastre-ingest/internal/shapefile"
)

// BlobFetcher downloads one archive blob into a local file.
type BlobFetcher interface {
	Fetch(ctx context.Context, bucket, key, destPath string) (int64, error)
}

// IngestService runs one ingestion job end-to-end: fetch, extract, parse,
// normalize, reproject, persist, summarize. It satisfies queue.Processor.
type IngestService interface {
	Process(ctx context.Context, msg *queue.JobMessage) error
}

// ingestService is the concrete implementation of IngestService.
type ingestService struct {
	blobs       BlobFetcher
	parcels     repository.ParcelRepository
	uploads     repository.UploadRepository
	summaries   repository.ZoneSummaryRepository
	reprojector *projection.Reprojector
	normalizer  *normalize.Normalizer
	workDir     string
	log         *logger.Logger
}

// NewIngestService creates a new instance of IngestService.
// workDir is the parent directory for per-job scratch space; when empty the
// system temp directory is used.
func NewIngestService(
	blobs BlobFetcher,
	parcels repository.ParcelRepository,
	uploads repository.UploadRepository,
	summaries repository.ZoneSummaryRepository,
	reprojector *projection.Reprojector,
	normalizer *normalize.Normalizer,
	workDir string,
	log *logger.Logger,
) IngestService {
	return &ingestService{
		blobs:       blobs,
		parcels:     parcels,
		uploads:     uploads,
		summaries:   summaries,
		reprojector: reprojector,
		normalizer:  normalizer,
		workDir:     workDir,
		log:         log,
	}
}

// ingestResult carries the outputs of a successful pipeline run.
type ingestResult struct {
	parcels       []models.Parcel
	fileSizeBytes int64
	skipped       int
}

// Process runs one job. Every terminal outcome is recorded on the upload row
// before returning: the returned error only steers queue acknowledgement.
func (s *ingestService) Process(ctx context.Context, msg *queue.JobMessage) error {
	start := time.Now()
	log := s.log.WithUploadID(msg.UploadID)

	if err := msg.Validate(); err != nil {
		// Record the rejection when the message carries enough identity to
		// track; a message without an upload id has nowhere to record it.
		// MarkProcessing first so the row exists even when the submitting
		// API never pre-registered it.
		if msg.UploadID != "" {
			if markErr := s.uploads.MarkProcessing(ctx, msg.UploadJob()); markErr != nil {
				log.Error("Failed to register rejected upload", markErr, nil)
			}
			s.recordFailure(ctx, log, msg, err, time.Since(start))
		}
		return err
	}

	if err := s.uploads.MarkProcessing(ctx, msg.UploadJob()); err != nil {
		// Status write failed before any work happened; let the lease expire
		// and the job restart cleanly.
		return err
	}

	result, err := s.ingest(ctx, log, msg)
	if err != nil {
		s.recordFailure(ctx, log, msg, err, time.Since(start))
		return err
	}

	duration := time.Since(start)
	if err := s.uploads.MarkCompleted(ctx, msg.UploadID, len(result.parcels), result.fileSizeBytes, duration); err != nil {
		return err
	}

	log.Info("Ingestion completed", map[string]interface{}{
		"parcel_count":       len(result.parcels),
		"skipped_features":   result.skipped,
		"file_size_bytes":    result.fileSizeBytes,
		"processing_time_ms": duration.Milliseconds(),
	})

	// Zone rollups are derived data: a failure here must not fail the job or
	// trigger redelivery. The next ingest into the zone recomputes them.
	s.refreshSummaries(ctx, log, result.parcels)

	return nil
}

// ingest runs the data path: fetch, extract, parse, transform, persist.
func (s *ingestService) ingest(ctx context.Context, log *logger.Logger, msg *queue.JobMessage) (*ingestResult, error) {
	dir, err := s.makeWorkDir(msg.UploadID)
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(dir)

	archivePath := filepath.Join(dir, "archive.zip")
	size, err := s.blobs.Fetch(ctx, msg.S3Bucket, msg.S3Key, archivePath)
	if err != nil {
		return nil, err
	}

	extractDir := filepath.Join(dir, "extracted")
	if err := os.MkdirAll(extractDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create extraction directory: %w", err)
	}
	if err := archive.Extract(archivePath, extractDir); err != nil {
		// A corrupt or empty archive will be corrupt on every redelivery.
		return nil, faults.Fatal(err)
	}

	shpPath, err := archive.FindByExtension(extractDir, ".shp")
	if err != nil {
		return nil, err
	}
	if shpPath == "" {
		return nil, faults.Fatalf("archive %s contains no .shp file", msg.FileName)
	}

	parcels, skipped, err := s.readParcels(shpPath, msg)
	if err != nil {
		return nil, err
	}
	if len(parcels) == 0 {
		return nil, faults.Fatalf("shapefile in %s contains no polygon features", msg.FileName)
	}
	if skipped > 0 {
		log.Warn("Skipped non-polygon features", map[string]interface{}{
			"skipped_features": skipped,
		})
	}

	if err := s.parcels.ReplaceZoneParcels(ctx, msg.UploadID, parcels); err != nil {
		return nil, err
	}

	return &ingestResult{parcels: parcels, fileSizeBytes: size, skipped: skipped}, nil
}

// readParcels parses the shapefile into persistence-ready parcel records.
func (s *ingestService) readParcels(shpPath string, msg *queue.JobMessage) ([]models.Parcel, int, error) {
	reader, err := shapefile.Open(shpPath)
	if err != nil {
		return nil, 0, faults.Fatal(err)
	}
	defer reader.Close()

	var parcels []models.Parcel
	seen := make(map[string]int)
	for reader.Next() {
		feature := reader.Feature()
		fields := s.normalizer.Normalize(feature.Attributes)

		// Registries export split parcels as separate features under one
		// identifier. The current generation allows one row per (zone, id),
		// so repeats get a deterministic suffix and a data-quality flag.
		key := fields.Zone + "\x00" + fields.ParcelID
		seen[key]++
		if n := seen[key]; n > 1 {
			fields.Attributes[normalize.DuplicateIDKey] = fields.ParcelID
			fields.ParcelID = fmt.Sprintf("%s-%d", fields.ParcelID, n)
		}

		geom, err := s.reprojector.Reproject(feature.Geometry)
		if err != nil {
			return nil, 0, faults.Fatal(fmt.Errorf("failed to reproject parcel %s: %w", fields.ParcelID, err))
		}
		metrics := s.reprojector.Measure(geom)

		parcels = append(parcels, models.Parcel{
			ParcelID:          fields.ParcelID,
			UploadID:          msg.UploadID,
			Geometry:          models.NewGeometry(geom),
			Centroid:          models.NewGeometry(metrics.Centroid),
			AreaSqm:           metrics.AreaSqm,
			AreaRai:           metrics.AreaRai,
			Zone:              fields.Zone,
			SubZone:           fields.SubZone,
			OwnerName:         fields.OwnerName,
			OwnerID:           fields.OwnerID,
			CropType:          fields.CropType,
			LandUseType:       fields.LandUseType,
			WaterDemandMethod: msg.WaterDemandMethod,
			Attributes:        fields.Attributes,
		})
	}
	if err := reader.Err(); err != nil {
		// A truncated or corrupt .shp reads the same on every redelivery.
		return nil, 0, faults.Fatal(fmt.Errorf("failed to read shapefile: %w", err))
	}

	return parcels, reader.Skipped(), nil
}

// refreshSummaries recomputes and stores the rollup for every zone in the
// batch. Failures are logged, never propagated.
func (s *ingestService) refreshSummaries(ctx context.Context, log *logger.Logger, parcels []models.Parcel) {
	for _, summary := range BuildZoneSummaries(parcels, time.Now().UTC()) {
		if err := s.summaries.Upsert(ctx, summary); err != nil {
			log.Error("Failed to upsert zone summary", err, map[string]interface{}{
				"zone": summary.Zone,
			})
		}
	}
}

// recordFailure marks the upload failed. A failure to record is logged only:
// the job error itself decides acknowledgement.
func (s *ingestService) recordFailure(ctx context.Context, log *logger.Logger, msg *queue.JobMessage, cause error, duration time.Duration) {
	if err := s.uploads.MarkFailed(ctx, msg.UploadID, cause, duration); err != nil {
		log.Error("Failed to record failed status", err, nil)
	}
}

// makeWorkDir creates the per-job scratch directory.
func (s *ingestService) makeWorkDir(uploadID string) (string, error) {
	parent := s.workDir
	if parent == "" {
		parent = os.TempDir()
	}

	dir := filepath.Join(parent, "ingest-"+uploadID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create working directory %s: %w", dir, err)
	}
	return dir, nil
}

// BuildZoneSummaries rolls a parcel batch up into one summary per zone for
// the given date. Crop distribution counts parcels per non-empty crop type.
func BuildZoneSummaries(parcels []models.Parcel, date time.Time) []models.ZoneSummary {
	byZone := make(map[string]*models.ZoneSummary)
	for _, p := range parcels {
		summary, ok := byZone[p.Zone]
		if !ok {
			summary = &models.ZoneSummary{
				Zone:             p.Zone,
				SummaryDate:      date,
				CropDistribution: map[string]int{},
			}
			byZone[p.Zone] = summary
		}

		summary.TotalParcels++
		summary.TotalAreaSqm += p.AreaSqm
		summary.TotalAreaRai += p.AreaRai
		if p.CropType != "" {
			summary.CropDistribution[p.CropType]++
		}
	}

	zones := make([]string, 0, len(byZone))
	for zone := range byZone {
		zones = append(zones, zone)
	}
	sort.Strings(zones)

	summaries := make([]models.ZoneSummary, 0, len(zones))
	for _, zone := range zones {
		summaries = append(summaries, *byZone[zone])
	}
	return summaries
}
