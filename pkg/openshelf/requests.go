package openshelf

import "github.com/google/uuid"

// CreateUploadSlotRequest opens a draft and requests a write target.
type CreateUploadSlotRequest struct {
	Owner       Actor
	FileName    string
	FileSize    int64
	Title       string
	Author      string
	Description string
}

// ModerationRequest is a moderator decision on one pending book. Reason is
// required for rejection.
type ModerationRequest struct {
	BookID   uuid.UUID
	Reviewer Actor
	Reason   string
}

// ListRequest carries pagination for the listing operations.
type ListRequest struct {
	Limit  int
	Offset int
}

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

// normalize clamps pagination to sane bounds and rejects negatives.
func (r ListRequest) normalize() (ListRequest, error) {
	if r.Limit < 0 || r.Offset < 0 {
		return r, ErrInvalidRequest
	}
	if r.Limit == 0 {
		r.Limit = defaultListLimit
	}
	if r.Limit > maxListLimit {
		r.Limit = maxListLimit
	}
	return r, nil
}
