// Package memory provides an in-memory repository with the same conditional
// update semantics as the durable backends. Used by tests and local runs.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/openshelf/openshelf/pkg/openshelf"
)

// Repository implements openshelf.Repository using in-memory storage.
type Repository struct {
	mu      sync.RWMutex
	books   map[uuid.UUID]*openshelf.Book
	pending map[uuid.UUID]time.Time // by-status index: present iff status == PENDING
	byOwner map[string][]uuid.UUID  // by-owner index: present for the record's lifetime
}

// New creates a new in-memory repository.
func New() *Repository {
	return &Repository{
		books:   make(map[uuid.UUID]*openshelf.Book),
		pending: make(map[uuid.UUID]time.Time),
		byOwner: make(map[string][]uuid.UUID),
	}
}

func (r *Repository) CreateBook(ctx context.Context, book *openshelf.Book) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	bookCopy := cloneBook(book)
	r.books[book.ID] = bookCopy
	r.byOwner[book.OwnerID] = append(r.byOwner[book.OwnerID], book.ID)
	if book.Status == openshelf.StatusPending {
		r.pending[book.ID] = book.UpdatedAt
	}
	return nil
}

func (r *Repository) GetBook(ctx context.Context, id uuid.UUID) (*openshelf.Book, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	book, exists := r.books[id]
	if !exists {
		return nil, openshelf.ErrBookNotFound
	}
	return cloneBook(book), nil
}

func (r *Repository) ApplyStatusChange(ctx context.Context, id uuid.UUID, expect openshelf.BookStatus, change openshelf.StatusChange) (*openshelf.Book, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	book, exists := r.books[id]
	if !exists {
		return nil, openshelf.ErrBookNotFound
	}
	if book.Status != expect {
		return nil, openshelf.ErrStatusConflict
	}

	now := time.Now().UTC()
	change.Apply(book, now)

	if change.EnterPendingIndex {
		r.pending[id] = now
	}
	if change.LeavePendingIndex {
		delete(r.pending, id)
	}
	return cloneBook(book), nil
}

func (r *Repository) DeleteBook(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	book, exists := r.books[id]
	if !exists {
		return openshelf.ErrBookNotFound
	}

	delete(r.books, id)
	delete(r.pending, id)

	ids := r.byOwner[book.OwnerID]
	for i, ownedID := range ids {
		if ownedID == id {
			r.byOwner[book.OwnerID] = append(ids[:i], ids[i+1:]...)
			break
		}
	}
	return nil
}

func (r *Repository) ListPending(ctx context.Context, limit, offset int) ([]*openshelf.Book, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]uuid.UUID, 0, len(r.pending))
	for id := range r.pending {
		ids = append(ids, id)
	}
	// Oldest first, so the moderation queue is fair.
	sort.Slice(ids, func(i, j int) bool {
		return r.pending[ids[i]].Before(r.pending[ids[j]])
	})

	return r.page(ids, limit, offset), nil
}

func (r *Repository) ListByOwner(ctx context.Context, ownerID string, limit, offset int) ([]*openshelf.Book, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := append([]uuid.UUID(nil), r.byOwner[ownerID]...)
	sort.Slice(ids, func(i, j int) bool {
		return r.books[ids[i]].CreatedAt.After(r.books[ids[j]].CreatedAt)
	})

	return r.page(ids, limit, offset), nil
}

func (r *Repository) page(ids []uuid.UUID, limit, offset int) []*openshelf.Book {
	if offset >= len(ids) {
		return []*openshelf.Book{}
	}
	ids = ids[offset:]
	if limit > 0 && limit < len(ids) {
		ids = ids[:limit]
	}

	result := make([]*openshelf.Book, 0, len(ids))
	for _, id := range ids {
		if book, exists := r.books[id]; exists {
			result = append(result, cloneBook(book))
		}
	}
	return result
}

// cloneBook copies a record, including pointer fields, so callers can never
// mutate stored state.
func cloneBook(book *openshelf.Book) *openshelf.Book {
	bookCopy := *book
	if book.ExpiresAt != nil {
		expiry := *book.ExpiresAt
		bookCopy.ExpiresAt = &expiry
	}
	if book.Review != nil {
		review := *book.Review
		bookCopy.Review = &review
	}
	return &bookCopy
}

var _ openshelf.Repository = (*Repository)(nil)
