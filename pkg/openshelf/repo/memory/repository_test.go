package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/openshelf/openshelf/pkg/openshelf"
	memoryrepo "github.com/openshelf/openshelf/pkg/openshelf/repo/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBook(owner string, status openshelf.BookStatus) *openshelf.Book {
	now := time.Now().UTC()
	id := uuid.New()
	return &openshelf.Book{
		ID:           id,
		Title:        "T",
		Author:       "A",
		OwnerID:      owner,
		Status:       status,
		StorageKey:   openshelf.BuildKey(openshelf.ZoneForStatus(status), id, "book.pdf"),
		FileName:     "book.pdf",
		DeclaredSize: 1024,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func TestCreateAndGet(t *testing.T) {
	ctx := context.Background()
	repo := memoryrepo.New()

	book := newBook("owner-1", openshelf.StatusUploading)
	require.NoError(t, repo.CreateBook(ctx, book))

	got, err := repo.GetBook(ctx, book.ID)
	require.NoError(t, err)
	assert.Equal(t, book.ID, got.ID)
	assert.Equal(t, openshelf.StatusUploading, got.Status)

	_, err = repo.GetBook(ctx, uuid.New())
	assert.ErrorIs(t, err, openshelf.ErrBookNotFound)
}

func TestGetReturnsACopy(t *testing.T) {
	ctx := context.Background()
	repo := memoryrepo.New()

	book := newBook("owner-1", openshelf.StatusUploading)
	require.NoError(t, repo.CreateBook(ctx, book))

	got, err := repo.GetBook(ctx, book.ID)
	require.NoError(t, err)
	got.Title = "mutated"

	again, err := repo.GetBook(ctx, book.ID)
	require.NoError(t, err)
	assert.Equal(t, "T", again.Title)
}

func TestApplyStatusChange(t *testing.T) {
	ctx := context.Background()

	t.Run("status precondition", func(t *testing.T) {
		repo := memoryrepo.New()
		book := newBook("owner-1", openshelf.StatusUploading)
		require.NoError(t, repo.CreateBook(ctx, book))

		reviewKey, err := openshelf.RezoneKey(book.StorageKey, openshelf.ZoneReview)
		require.NoError(t, err)

		_, err = repo.ApplyStatusChange(ctx, book.ID, openshelf.StatusPending,
			openshelf.ChangeToPending(reviewKey, "application/pdf"))
		assert.ErrorIs(t, err, openshelf.ErrStatusConflict)

		updated, err := repo.ApplyStatusChange(ctx, book.ID, openshelf.StatusUploading,
			openshelf.ChangeToPending(reviewKey, "application/pdf"))
		require.NoError(t, err)
		assert.Equal(t, openshelf.StatusPending, updated.Status)
		assert.Equal(t, reviewKey, updated.StorageKey)
		assert.Nil(t, updated.ExpiresAt)
	})

	t.Run("unknown book", func(t *testing.T) {
		repo := memoryrepo.New()
		_, err := repo.ApplyStatusChange(ctx, uuid.New(), openshelf.StatusUploading,
			openshelf.ChangeToPending("review/x/book.pdf", "application/pdf"))
		assert.ErrorIs(t, err, openshelf.ErrBookNotFound)
	})
}

// The by-status index must hold a book iff its status is PENDING.
func TestPendingIndexMembership(t *testing.T) {
	ctx := context.Background()
	repo := memoryrepo.New()

	book := newBook("owner-1", openshelf.StatusUploading)
	expiry := time.Now().Add(72 * time.Hour)
	book.ExpiresAt = &expiry
	require.NoError(t, repo.CreateBook(ctx, book))

	pending, err := repo.ListPending(ctx, 10, 0)
	require.NoError(t, err)
	assert.Empty(t, pending)

	reviewKey, err := openshelf.RezoneKey(book.StorageKey, openshelf.ZoneReview)
	require.NoError(t, err)
	_, err = repo.ApplyStatusChange(ctx, book.ID, openshelf.StatusUploading,
		openshelf.ChangeToPending(reviewKey, "application/pdf"))
	require.NoError(t, err)

	pending, err = repo.ListPending(ctx, 10, 0)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, book.ID, pending[0].ID)

	publicKey, err := openshelf.RezoneKey(reviewKey, openshelf.ZonePublic)
	require.NoError(t, err)
	_, err = repo.ApplyStatusChange(ctx, book.ID, openshelf.StatusPending,
		openshelf.ChangeToApproved(publicKey, "mod-1", time.Now()))
	require.NoError(t, err)

	pending, err = repo.ListPending(ctx, 10, 0)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestListPendingOrderAndPaging(t *testing.T) {
	ctx := context.Background()
	repo := memoryrepo.New()

	var ids []uuid.UUID
	for i := 0; i < 3; i++ {
		book := newBook("owner-1", openshelf.StatusUploading)
		require.NoError(t, repo.CreateBook(ctx, book))
		reviewKey, err := openshelf.RezoneKey(book.StorageKey, openshelf.ZoneReview)
		require.NoError(t, err)
		_, err = repo.ApplyStatusChange(ctx, book.ID, openshelf.StatusUploading,
			openshelf.ChangeToPending(reviewKey, "application/pdf"))
		require.NoError(t, err)
		ids = append(ids, book.ID)
		time.Sleep(time.Millisecond)
	}

	pending, err := repo.ListPending(ctx, 10, 0)
	require.NoError(t, err)
	require.Len(t, pending, 3)
	// Oldest first.
	assert.Equal(t, ids[0], pending[0].ID)
	assert.Equal(t, ids[2], pending[2].ID)

	page, err := repo.ListPending(ctx, 1, 1)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, ids[1], page[0].ID)

	empty, err := repo.ListPending(ctx, 10, 5)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestListByOwner(t *testing.T) {
	ctx := context.Background()
	repo := memoryrepo.New()

	first := newBook("owner-1", openshelf.StatusUploading)
	require.NoError(t, repo.CreateBook(ctx, first))

	second := newBook("owner-1", openshelf.StatusUploading)
	second.CreatedAt = first.CreatedAt.Add(time.Second)
	require.NoError(t, repo.CreateBook(ctx, second))

	other := newBook("owner-2", openshelf.StatusUploading)
	require.NoError(t, repo.CreateBook(ctx, other))

	mine, err := repo.ListByOwner(ctx, "owner-1", 10, 0)
	require.NoError(t, err)
	require.Len(t, mine, 2)
	// Newest first.
	assert.Equal(t, second.ID, mine[0].ID)
	assert.Equal(t, first.ID, mine[1].ID)

	none, err := repo.ListByOwner(ctx, "owner-3", 10, 0)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestDeleteBook(t *testing.T) {
	ctx := context.Background()
	repo := memoryrepo.New()

	book := newBook("owner-1", openshelf.StatusPending)
	require.NoError(t, repo.CreateBook(ctx, book))

	require.NoError(t, repo.DeleteBook(ctx, book.ID))

	_, err := repo.GetBook(ctx, book.ID)
	assert.ErrorIs(t, err, openshelf.ErrBookNotFound)

	pending, err := repo.ListPending(ctx, 10, 0)
	require.NoError(t, err)
	assert.Empty(t, pending)

	mine, err := repo.ListByOwner(ctx, "owner-1", 10, 0)
	require.NoError(t, err)
	assert.Empty(t, mine)

	assert.ErrorIs(t, repo.DeleteBook(ctx, book.ID), openshelf.ErrBookNotFound)
}
