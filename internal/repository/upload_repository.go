package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/waterplan/cadastre-ingest/internal/database"
	"github.com/waterplan/cadastre-ingest/internal/models"
)

// UploadRepository tracks the lifecycle of submitted archives. It is the
// single source of truth for whether an archive finished and how. All
// transitions are idempotent upserts keyed by upload id so at-least-once
// queue delivery converges to one row per submission.
type UploadRepository interface {
	// MarkProcessing records that a job has started. It creates the upload
	// row when the submitting API did not pre-register it.
	MarkProcessing(ctx context.Context, job *models.UploadJob) error

	// MarkCompleted records a successful ingest with its result metrics.
	MarkCompleted(ctx context.Context, uploadID string, parcelCount int, fileSizeBytes int64, duration time.Duration) error

	// MarkFailed records a failed ingest with its error message.
	MarkFailed(ctx context.Context, uploadID string, cause error, duration time.Duration) error

	// GetByID returns the upload row, or nil when no such upload exists.
	GetByID(ctx context.Context, uploadID string) (*models.UploadJob, error)
}

// uploadRepository is the concrete implementation of UploadRepository.
type uploadRepository struct {
	db *database.Database
}

// NewUploadRepository creates a new instance of UploadRepository.
func NewUploadRepository(db *database.Database) UploadRepository {
	return &uploadRepository{
		db: db,
	}
}

// MarkProcessing upserts the upload row into the processing state.
// On conflict the descriptive fields are refreshed from the message and any
// stale error from a prior delivery is cleared.
func (r *uploadRepository) MarkProcessing(ctx context.Context, job *models.UploadJob) error {
	metadata := job.Metadata
	if metadata == nil {
		metadata = map[string]interface{}{}
	}

	_, err := r.db.Pool.Exec(ctx, `
		INSERT INTO shape_file_uploads (
			upload_id, file_name, s3_bucket, s3_key, status,
			water_demand_method, processing_interval, metadata,
			processing_started_at, error_message
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now(), NULL)
		ON CONFLICT (upload_id) DO UPDATE SET
			file_name = EXCLUDED.file_name,
			s3_bucket = EXCLUDED.s3_bucket,
			s3_key = EXCLUDED.s3_key,
			status = EXCLUDED.status,
			water_demand_method = EXCLUDED.water_demand_method,
			processing_interval = EXCLUDED.processing_interval,
			metadata = EXCLUDED.metadata,
			processing_started_at = now(),
			error_message = NULL`,
		job.UploadID, job.FileName, job.S3Bucket, job.S3Key, models.UploadStatusProcessing,
		job.WaterDemandMethod, job.ProcessingInterval, metadata,
	)
	if err != nil {
		return fmt.Errorf("failed to mark upload %s processing: %w", job.UploadID, err)
	}

	return nil
}

// MarkCompleted transitions the upload to completed with its result metrics.
func (r *uploadRepository) MarkCompleted(ctx context.Context, uploadID string, parcelCount int, fileSizeBytes int64, duration time.Duration) error {
	_, err := r.db.Pool.Exec(ctx, `
		UPDATE shape_file_uploads SET
			status = $2,
			parcel_count = $3,
			file_size_bytes = $4,
			processing_time_ms = $5,
			processing_completed_at = now(),
			error_message = NULL
		WHERE upload_id = $1`,
		uploadID, models.UploadStatusCompleted, parcelCount, fileSizeBytes, duration.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("failed to mark upload %s completed: %w", uploadID, err)
	}

	return nil
}

// MarkFailed transitions the upload to failed with the causing error.
func (r *uploadRepository) MarkFailed(ctx context.Context, uploadID string, cause error, duration time.Duration) error {
	message := ""
	if cause != nil {
		message = cause.Error()
	}

	_, err := r.db.Pool.Exec(ctx, `
		UPDATE shape_file_uploads SET
			status = $2,
			error_message = $3,
			processing_time_ms = $4,
			processing_completed_at = now()
		WHERE upload_id = $1`,
		uploadID, models.UploadStatusFailed, message, duration.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("failed to mark upload %s failed: %w", uploadID, err)
	}

	return nil
}

// GetByID returns the upload row for an upload id.
// Returns nil, nil when the upload does not exist (not an error).
func (r *uploadRepository) GetByID(ctx context.Context, uploadID string) (*models.UploadJob, error) {
	var job models.UploadJob
	err := r.db.Pool.QueryRow(ctx, `
		SELECT
			upload_id, file_name, s3_bucket, s3_key, status,
			water_demand_method, processing_interval, metadata,
			parcel_count, file_size_bytes, processing_time_ms, error_message,
			processing_started_at, processing_completed_at
		FROM shape_file_uploads
		WHERE upload_id = $1`,
		uploadID,
	).Scan(
		&job.UploadID, &job.FileName, &job.S3Bucket, &job.S3Key, &job.Status,
		&job.WaterDemandMethod, &job.ProcessingInterval, &job.Metadata,
		&job.ParcelCount, &job.FileSizeBytes, &job.ProcessingTimeMs, &job.ErrorMessage,
		&job.ProcessingStartedAt, &job.ProcessingCompletedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query upload %s: %w", uploadID, err)
	}

	return &job, nil
}
