package catalog

import "context"

// ImageRemover deletes a previously stored image by its storage id.
// Callers treat failures as non-critical.
type ImageRemover interface {
	RemoveImage(ctx context.Context, storageID string) error
}

// ImageRemoverFunc adapts a function to ImageRemover.
type ImageRemoverFunc func(ctx context.Context, storageID string) error

func (f ImageRemoverFunc) RemoveImage(ctx context.Context, storageID string) error {
	return f(ctx, storageID)
}

// NopImageRemover discards removal requests.
type NopImageRemover struct{}

func (NopImageRemover) RemoveImage(context.Context, string) error { return nil }
