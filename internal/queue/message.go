package queue

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/waterplan/cadastre-ingest/internal/faults"
	"github.com/waterplan/cadastre-ingest/internal/models"
)

// JobMessage is the inbound queue payload describing one archive to ingest.
type JobMessage struct {
	UploadID           string                 `json:"uploadId" validate:"required"`
	S3Bucket           string                 `json:"s3Bucket" validate:"required"`
	S3Key              string                 `json:"s3Key" validate:"required"`
	FileName           string                 `json:"fileName" validate:"required"`
	WaterDemandMethod  string                 `json:"waterDemandMethod" validate:"required,oneof=method-A method-B method-C"`
	ProcessingInterval string                 `json:"processingInterval" validate:"required,oneof=daily weekly bi-weekly"`
	Metadata           map[string]interface{} `json:"metadata"`
}

var validate = validator.New()

// DecodeJobMessage parses a raw queue message body. A body that is not JSON
// is fatal: redelivering it can never succeed.
func DecodeJobMessage(body string) (*JobMessage, error) {
	var msg JobMessage
	if err := json.Unmarshal([]byte(body), &msg); err != nil {
		return nil, faults.Fatal(fmt.Errorf("failed to decode job message: %w", err))
	}
	return &msg, nil
}

// Validate checks required fields and enum values. Validation failures are
// fatal for the job; the formatted message is suitable for the upload row's
// error column.
func (m *JobMessage) Validate() error {
	err := validate.Struct(m)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		return faults.Fatalf("invalid job message: %s", faults.FormatValidationErrors(verrs))
	}
	return faults.Fatal(fmt.Errorf("invalid job message: %w", err))
}

// UploadJob converts the message into the upload row recorded by the status
// tracker when processing begins.
func (m *JobMessage) UploadJob() *models.UploadJob {
	return &models.UploadJob{
		UploadID:           m.UploadID,
		FileName:           m.FileName,
		S3Bucket:           m.S3Bucket,
		S3Key:              m.S3Key,
		Status:             models.UploadStatusProcessing,
		WaterDemandMethod:  m.WaterDemandMethod,
		ProcessingInterval: m.ProcessingInterval,
		Metadata:           m.Metadata,
	}
}
