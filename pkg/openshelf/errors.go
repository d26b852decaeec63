package openshelf

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Error types
var (
	// ErrBookNotFound indicates an unknown book id.
	ErrBookNotFound = errors.New("book not found")

	// ErrStatusConflict indicates a state precondition failed, e.g. moderating
	// a book that is no longer PENDING. The losing caller must not have
	// committed any metadata change.
	ErrStatusConflict = errors.New("book status conflict")

	// ErrNotApproved indicates a read-access request for a book that is not
	// APPROVED.
	ErrNotApproved = errors.New("book is not approved for reading")

	// ErrNotEntitled indicates an authenticated caller acting on a book they
	// neither own nor moderate.
	ErrNotEntitled = errors.New("caller is not entitled to this book")

	// ErrInvalidRequest indicates malformed or missing request fields.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrFileTooLarge indicates the declared size exceeds the configured limit.
	ErrFileTooLarge = errors.New("file size exceeds maximum allowed limit")

	// ErrExtensionNotAllowed indicates the declared file extension is outside
	// the allow-list.
	ErrExtensionNotAllowed = errors.New("file extension not allowed")

	// ErrSignerNotConfigured indicates read access was requested but no access
	// signer was wired into the service.
	ErrSignerNotConfigured = errors.New("access signer not configured")
)

// BookError wraps a failure of a lifecycle operation on one book.
type BookError struct {
	BookID uuid.UUID
	Op     string
	Err    error
}

func (e *BookError) Error() string {
	return fmt.Sprintf("book operation %s failed for book %s: %v", e.Op, e.BookID, e.Err)
}

func (e *BookError) Unwrap() error {
	return e.Err
}

// StorageError wraps a failure of a blob-store call. A StorageError during a
// transition means the metadata was left untouched and the whole transition is
// safe to retry.
type StorageError struct {
	Key string
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage operation %s failed for key %s: %v", e.Op, e.Key, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}
