// Package storage removes product images from Google Cloud Storage.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	gcs "cloud.google.com/go/storage"

	"github.com/noah-isme/sales-api/internal/catalog"
)

// DeleteObjectFunc deletes one object from a bucket.
type DeleteObjectFunc func(ctx context.Context, bucket, object string) error

// GCSRemover deletes images whose storage id is the object name inside Bucket.
type GCSRemover struct {
	Bucket string
	Delete DeleteObjectFunc
}

var _ catalog.ImageRemover = GCSRemover{}

// NewGCSRemover binds a remover to an authenticated storage client.
func NewGCSRemover(client *gcs.Client, bucket string) GCSRemover {
	return GCSRemover{
		Bucket: bucket,
		Delete: func(ctx context.Context, bucket, object string) error {
			return client.Bucket(bucket).Object(object).Delete(ctx)
		},
	}
}

// RemoveImage deletes the object. A missing object counts as removed.
func (r GCSRemover) RemoveImage(ctx context.Context, storageID string) error {
	object := strings.TrimPrefix(strings.TrimSpace(storageID), "/")
	if object == "" {
		return errors.New("storage: empty storage id")
	}
	if r.Bucket == "" || r.Delete == nil {
		return errors.New("storage: bucket not configured")
	}
	err := r.Delete(ctx, r.Bucket, object)
	if err == nil || errors.Is(err, gcs.ErrObjectNotExist) {
		return nil
	}
	return fmt.Errorf("storage: delete gs://%s/%s: %w", r.Bucket, object, err)
}
