// Package storage fetches submitted archive blobs from object storage.
package storage

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/waterplan/cadastre-ingest/internal/faults"
)

// S3API is the subset of the S3 client used by the blob store.
// Narrowing the dependency to one method keeps tests free of real clients.
type S3API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// BlobStore downloads archive blobs by bucket/key.
type BlobStore struct {
	client S3API
}

// NewBlobStore creates a BlobStore backed by the given S3 client.
func NewBlobStore(client S3API) *BlobStore {
	return &BlobStore{client: client}
}

// Fetch downloads the object at bucket/key into destPath and returns the
// number of bytes written. An empty body is an error: a zero-byte archive can
// never parse and should fail the job immediately.
func (b *BlobStore) Fetch(ctx context.Context, bucket, key, destPath string) (int64, error) {
	out, err := b.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return 0, fmt.Errorf("failed to fetch s3://%s/%s: %w", bucket, key, err)
	}
	defer out.Body.Close()

	dst, err := os.Create(destPath)
	if err != nil {
		return 0, fmt.Errorf("failed to create %s: %w", destPath, err)
	}
	defer dst.Close()

	written, err := io.Copy(dst, out.Body)
	if err != nil {
		return 0, fmt.Errorf("failed to write blob to %s: %w", destPath, err)
	}

	if written == 0 {
		// A zero-byte archive can never parse; no retry value.
		return 0, faults.Fatalf("blob s3://%s/%s has an empty body", bucket, key)
	}

	return written, nil
}
