package openshelf

import (
	"context"

	"github.com/google/uuid"
)

// Service is the lifecycle engine: it owns every valid transition and the
// side effects that must accompany it. For any transition touching both the
// metadata store and the blob store, the blob relocation happens first and the
// metadata commit second; a failed relocation leaves the record in its prior
// state, and a failed commit after a successful relocation is closed by
// retrying the same transition (relocation is idempotent).
type Service interface {
	// CreateUploadSlot validates the declared upload, creates an UPLOADING
	// draft with a bounded expiry, and returns a presigned write target.
	CreateUploadSlot(ctx context.Context, req CreateUploadSlotRequest) (*UploadSlot, error)

	// OnContentUploaded is the classification trigger fired after the client
	// finishes writing the blob. Allowed content moves the book to PENDING
	// (blob intake -> review); disallowed content rejects it and deletes the
	// blob. Safe to retry.
	OnContentUploaded(ctx context.Context, bookID uuid.UUID) (*Book, error)

	// GetBook returns one record.
	GetBook(ctx context.Context, id uuid.UUID) (*Book, error)

	// ListPending returns the moderation queue.
	ListPending(ctx context.Context, req ListRequest) ([]*Book, error)

	// Approve moves a PENDING book to APPROVED (blob review -> public).
	Approve(ctx context.Context, req ModerationRequest) (*Book, error)

	// Reject moves a PENDING book to REJECTED (blob review -> quarantine).
	Reject(ctx context.Context, req ModerationRequest) (*Book, error)

	// GetReadAccess mints a signed, time-boxed read URL for an APPROVED book.
	GetReadAccess(ctx context.Context, bookID uuid.UUID) (*ReadAccess, error)

	// ListMine returns the caller's own submissions, any status.
	ListMine(ctx context.Context, ownerID string, req ListRequest) ([]*Book, error)

	// Delete removes the record and best-effort deletes the blob from every
	// zone variant of its key. Owner or moderator only.
	Delete(ctx context.Context, bookID uuid.UUID, actor Actor) error
}
