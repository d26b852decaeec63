package openshelf

import (
	"context"
	"log/slog"
)

// Relocator moves blobs between zones as copy-then-delete, written so a retry
// after any partial failure converges on the blob living in exactly one place.
type Relocator struct {
	store  BlobStore
	logger *slog.Logger
}

// NewRelocator wraps a blob store.
func NewRelocator(store BlobStore, logger *slog.Logger) *Relocator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Relocator{store: store, logger: logger}
}

// Move relocates srcKey to dstKey. If the destination already exists the copy
// is skipped and only the source delete runs, which makes Move safe to retry
// after a partial failure. A delete failure after a successful copy is
// reported as success: the duplicate in the source zone is acceptable garbage,
// but it is logged so it can be swept later.
func (r *Relocator) Move(ctx context.Context, srcKey, dstKey string) error {
	exists, err := r.store.Exists(ctx, dstKey)
	if err != nil {
		return &StorageError{Key: dstKey, Op: "head", Err: err}
	}

	if !exists {
		if err := r.store.Copy(ctx, srcKey, dstKey); err != nil {
			return &StorageError{Key: srcKey, Op: "copy", Err: err}
		}
	} else {
		r.logger.Info("destination already exists, skipping copy",
			"src", srcKey, "dst", dstKey)
	}

	if err := r.store.Delete(ctx, srcKey); err != nil {
		r.logger.Warn("source delete failed after copy, leaving duplicate",
			"src", srcKey, "dst", dstKey, "error", err)
	}
	return nil
}

// Delete removes a single object.
func (r *Relocator) Delete(ctx context.Context, key string) error {
	if err := r.store.Delete(ctx, key); err != nil {
		return &StorageError{Key: key, Op: "delete", Err: err}
	}
	return nil
}

// DeleteAllZones removes the object at every zone variant of key. Used by the
// explicit delete operation as defensive cleanup: if a prior partial failure
// left the blob in an unexpected zone, it is still removed. Errors are logged
// and swallowed; record deletion proceeds regardless.
func (r *Relocator) DeleteAllZones(ctx context.Context, key string) {
	for _, variant := range ZoneVariants(key) {
		if err := r.store.Delete(ctx, variant); err != nil {
			r.logger.Warn("zone cleanup delete failed", "key", variant, "error", err)
		}
	}
}
