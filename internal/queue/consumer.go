// Package queue drives the ingestion worker: a single long-lived poll loop
// that receives one job at a time from SQS, hands it to the processor, and
// acknowledges (deletes) it only when redelivery has no value. Delivery is
// at-least-once; every downstream step is safe to repeat.
package queue

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/waterplan/cadastre-ingest/internal/config"
	"github.com/waterplan/cadastre-ingest/internal/faults"
	"github.com/waterplan/cadastre-ingest/internal/logger"
)

// SQSAPI is the subset of the SQS client used by the consumer.
type SQSAPI interface {
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

// Processor runs one ingestion job end-to-end. A fatal error (faults.IsFatal)
// means the job can never succeed and the message should be acknowledged;
// any other error leaves the message to reappear when its lease expires.
type Processor interface {
	Process(ctx context.Context, msg *JobMessage) error
}

// Consumer is the long-running poll loop. One consumer runs per process;
// horizontal scale-out is additional processes competing on the same queue,
// coordinated only by the queue's visibility lease.
type Consumer struct {
	client    SQSAPI
	cfg       config.QueueConfig
	processor Processor
	log       *logger.Logger
}

// NewConsumer creates a Consumer. All dependencies are injected; the consumer
// owns no connection state of its own.
func NewConsumer(client SQSAPI, cfg config.QueueConfig, processor Processor, log *logger.Logger) *Consumer {
	return &Consumer{
		client:    client,
		cfg:       cfg,
		processor: processor,
		log:       log,
	}
}

// Run polls until ctx is cancelled. Cancellation is cooperative and takes
// effect between iterations: an in-flight job either finishes or times out
// via lease expiry and is redelivered to another worker.
func (c *Consumer) Run(ctx context.Context) error {
	c.log.Info("Queue consumer started", map[string]interface{}{
		"queue_url":          c.cfg.URL,
		"wait_time":          c.cfg.WaitTime.String(),
		"visibility_timeout": c.cfg.VisibilityTimeout.String(),
	})

	for {
		select {
		case <-ctx.Done():
			c.log.Info("Queue consumer stopping", nil)
			return ctx.Err()
		default:
		}

		received, err := c.pollOnce(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.log.Info("Queue consumer stopping", nil)
				return ctx.Err()
			}
			c.log.Error("Failed to receive from queue", err, nil)
			c.idle(ctx)
			continue
		}

		if !received {
			c.idle(ctx)
		}
	}
}

// pollOnce receives at most one message and processes it.
// Returns false when the queue had nothing to deliver.
func (c *Consumer) pollOnce(ctx context.Context) (bool, error) {
	out, err := c.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:            aws.String(c.cfg.URL),
		MaxNumberOfMessages: 1,
		WaitTimeSeconds:     int32(c.cfg.WaitTime / time.Second),
		VisibilityTimeout:   int32(c.cfg.VisibilityTimeout / time.Second),
		MessageAttributeNames: []string{
			"All",
		},
	})
	if err != nil {
		return false, err
	}
	if len(out.Messages) == 0 {
		return false, nil
	}

	c.handle(ctx, out.Messages[0])
	return true, nil
}

// handle runs one delivered message through decode and processing, then
// decides acknowledgement per the error taxonomy. The job runs on a context
// detached from the loop's: cancellation stops polling between iterations,
// it never aborts an in-flight job mid-transaction.
func (c *Consumer) handle(ctx context.Context, raw sqstypes.Message) {
	ctx = context.WithoutCancel(ctx)
	body := aws.ToString(raw.Body)

	msg, err := DecodeJobMessage(body)
	if err != nil {
		// Undecodable payload: nothing to track, no retry value.
		c.log.Error("Discarding undecodable job message", err, map[string]interface{}{
			"message_id": aws.ToString(raw.MessageId),
		})
		c.ack(ctx, raw)
		return
	}

	log := c.log.WithUploadID(msg.UploadID)
	log.Info("Processing ingestion job", map[string]interface{}{
		"file_name": msg.FileName,
		"s3_bucket": msg.S3Bucket,
		"s3_key":    msg.S3Key,
	})

	if err := c.processor.Process(ctx, msg); err != nil {
		if faults.IsFatal(err) {
			// Failed status is already recorded; redelivery cannot succeed.
			log.Error("Job failed permanently, acknowledging", err, nil)
			c.ack(ctx, raw)
			return
		}
		// Transient: leave the message for lease expiry and redelivery.
		log.Error("Job failed, leaving message for redelivery", err, nil)
		return
	}

	log.Info("Job completed, acknowledging", nil)
	c.ack(ctx, raw)
}

// ack deletes the message from the queue.
func (c *Consumer) ack(ctx context.Context, raw sqstypes.Message) {
	_, err := c.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(c.cfg.URL),
		ReceiptHandle: raw.ReceiptHandle,
	})
	if err != nil {
		// The lease will expire and the job will be reprocessed; the
		// idempotent pipeline converges on the same state.
		c.log.Error("Failed to delete message", err, map[string]interface{}{
			"message_id": aws.ToString(raw.MessageId),
		})
	}
}

// idle sleeps the configured interval between empty polls, or returns early
// on cancellation.
func (c *Consumer) idle(ctx context.Context) {
	timer := time.NewTimer(c.cfg.IdleSleep)
	defer timer.Stop()

	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
