package openshelf

import (
	"time"

	"github.com/google/uuid"
)

// BookStatus is the domain type for the submission lifecycle.
type BookStatus string

// Lifecycle states. A book moves UPLOADING -> PENDING -> {APPROVED, REJECTED}.
// There is no transition out of APPROVED or REJECTED; drafts that never finish
// uploading expire via the store's TTL sweep.
const (
	StatusUploading BookStatus = "UPLOADING"
	StatusPending   BookStatus = "PENDING"
	StatusApproved  BookStatus = "APPROVED"
	StatusRejected  BookStatus = "REJECTED"
)

// IsValid reports whether s is a known lifecycle state.
func (s BookStatus) IsValid() bool {
	switch s {
	case StatusUploading, StatusPending, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// Terminal reports whether s admits no further moderation transitions.
func (s BookStatus) Terminal() bool {
	return s == StatusApproved || s == StatusRejected
}

// Book is one submitted item. Title, author, description and owner identity
// are immutable after creation; Status and StorageKey always move together
// (the key's zone prefix mirrors the status).
type Book struct {
	ID          uuid.UUID `json:"id"`
	Title       string    `json:"title"`
	Author      string    `json:"author"`
	Description string    `json:"description,omitempty"`

	OwnerID    string `json:"owner_id"`
	OwnerEmail string `json:"owner_email,omitempty"`

	Status     BookStatus `json:"status"`
	StorageKey string     `json:"storage_key"`

	FileName     string `json:"file_name"`
	DeclaredSize int64  `json:"declared_size"`

	// DetectedContentType is set by classification; empty while UPLOADING.
	DetectedContentType string `json:"detected_content_type,omitempty"`

	// ExpiresAt is the draft auto-cleanup deadline. Present only while
	// UPLOADING; cleared the moment the record leaves that state.
	ExpiresAt *time.Time `json:"expires_at,omitempty"`

	Review *ReviewOutcome `json:"review,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ReviewOutcome records a moderator decision. Reason is set on rejection only.
type ReviewOutcome struct {
	ReviewerID string    `json:"reviewer_id"`
	Reason     string    `json:"reason,omitempty"`
	ReviewedAt time.Time `json:"reviewed_at"`
}

// Actor is the verified caller identity attached to each request by the
// identity provider. The service trusts it verbatim.
type Actor struct {
	ID        string
	Email     string
	Moderator bool
}

// UploadSlot is the result of draft creation: where to PUT the bytes and for
// how long the write credential is valid.
type UploadSlot struct {
	BookID    uuid.UUID     `json:"book_id"`
	UploadURL string        `json:"upload_url"`
	ExpiresIn time.Duration `json:"expires_in"`
}

// ReadAccess is a time-boxed signed URL for reading an approved book.
type ReadAccess struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}
