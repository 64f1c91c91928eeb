package storage

import (
	"context"
	"errors"
	"testing"

	gcs "cloud.google.com/go/storage"
	"github.com/stretchr/testify/require"
)

func TestGCSRemoverDeletesObject(t *testing.T) {
	var gotBucket, gotObject string
	r := GCSRemover{Bucket: "images", Delete: func(_ context.Context, bucket, object string) error {
		gotBucket, gotObject = bucket, object
		return nil
	}}

	require.NoError(t, r.RemoveImage(context.Background(), "/products/lamp.png"))
	require.Equal(t, "images", gotBucket)
	require.Equal(t, "products/lamp.png", gotObject)
}

func TestGCSRemoverIgnoresMissingObject(t *testing.T) {
	r := GCSRemover{Bucket: "images", Delete: func(context.Context, string, string) error {
		return gcs.ErrObjectNotExist
	}}
	require.NoError(t, r.RemoveImage(context.Background(), "gone.png"))
}

func TestGCSRemoverErrors(t *testing.T) {
	r := GCSRemover{Bucket: "images", Delete: func(context.Context, string, string) error {
		return errors.New("permission denied")
	}}
	require.ErrorContains(t, r.RemoveImage(context.Background(), "a.png"), "permission denied")
	require.Error(t, r.RemoveImage(context.Background(), " "))
	require.Error(t, GCSRemover{}.RemoveImage(context.Background(), "a.png"))
}
