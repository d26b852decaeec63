package openshelf

import (
	"context"
	"io"
	"time"

	"github.com/google/uuid"
)

// BlobStore is the capability boundary to the object store. Keys are always
// zone-prefixed (see zones.go).
type BlobStore interface {
	// PresignPut returns a write-only URL scoped to exactly one key, valid
	// for ttl.
	PresignPut(ctx context.Context, key string, ttl time.Duration) (string, error)

	// ReadPrefix returns up to n leading bytes of the object. Classification
	// needs only a prefix, never the whole blob.
	ReadPrefix(ctx context.Context, key string, n int64) ([]byte, error)

	// Upload writes an object directly. Used by tooling and tests; clients
	// normally write through presigned URLs.
	Upload(ctx context.Context, key string, reader io.Reader) error

	// Exists reports whether an object is present at key.
	Exists(ctx context.Context, key string) (bool, error)

	// Copy duplicates an object within the bucket.
	Copy(ctx context.Context, srcKey, dstKey string) error

	// Delete removes an object. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}

// Repository is the metadata-store access layer. One record per book.
//
// ApplyStatusChange is the only mutation path for status and its dependent
// fields, and implementations must execute it as a single conditional update:
// the "current status must equal expect" check belongs to the same store call
// as the field changes, so concurrent moderator actions race on the store's
// own precondition and exactly one wins.
type Repository interface {
	CreateBook(ctx context.Context, book *Book) error
	GetBook(ctx context.Context, id uuid.UUID) (*Book, error)

	// ApplyStatusChange atomically transitions the book from expect to
	// change.To, applying every dependent field in the same call. Returns
	// ErrBookNotFound for an unknown id and ErrStatusConflict when the
	// precondition fails; on conflict the record is untouched.
	ApplyStatusChange(ctx context.Context, id uuid.UUID, expect BookStatus, change StatusChange) (*Book, error)

	// DeleteBook removes the record unconditionally.
	DeleteBook(ctx context.Context, id uuid.UUID) error

	// ListPending returns books in PENDING status via the by-status index,
	// oldest first.
	ListPending(ctx context.Context, limit, offset int) ([]*Book, error)

	// ListByOwner returns the owner's books via the by-owner index, newest
	// first. Entries exist for the item's entire lifetime.
	ListByOwner(ctx context.Context, ownerID string, limit, offset int) ([]*Book, error)
}

// Classification is the sniffer verdict for one byte prefix.
type Classification struct {
	MediaType string
	Allowed   bool
}

// Sniffer classifies content from its leading bytes. Implementations must be
// pure: identical input bytes yield identical results, with no storage or
// network calls.
type Sniffer interface {
	Detect(prefix []byte, fileName string) Classification
}

// AccessSigner mints signed, time-boxed read URLs bound to one object path.
// The signature is computed with a private key held by the issuing service;
// the edge layer validates it against the published key id.
type AccessSigner interface {
	SignRead(key, fileName string, ttl time.Duration) (*ReadAccess, error)
}
