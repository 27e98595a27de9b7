package models

import "time"

// Upload lifecycle statuses. A job moves queued → processing → completed or
// failed; rows are never deleted so the table doubles as the audit trail.
const (
	UploadStatusQueued     = "queued"
	UploadStatusProcessing = "processing"
	UploadStatusCompleted  = "completed"
	UploadStatusFailed     = "failed"
)

// UploadJob represents one submitted shapefile archive and its processing
// outcome. Exactly one row exists per upload id; status transitions are
// idempotent upserts so queue redelivery converges instead of duplicating.
type UploadJob struct {
	UploadID              string                 `json:"uploadId"`
	FileName              string                 `json:"fileName"`
	S3Bucket              string                 `json:"s3Bucket"`
	S3Key                 string                 `json:"s3Key"`
	Status                string                 `json:"status"`
	WaterDemandMethod     string                 `json:"waterDemandMethod"`
	ProcessingInterval    string                 `json:"processingInterval"`
	Metadata              map[string]interface{} `json:"metadata"`
	ParcelCount           *int                   `json:"parcelCount,omitempty"`
	FileSizeBytes         *int64                 `json:"fileSizeBytes,omitempty"`
	ProcessingTimeMs      *int64                 `json:"processingTimeMs,omitempty"`
	ErrorMessage          *string                `json:"errorMessage,omitempty"`
	ProcessingStartedAt   *time.Time             `json:"processingStartedAt,omitempty"`
	ProcessingCompletedAt *time.Time             `json:"processingCompletedAt,omitempty"`
}
