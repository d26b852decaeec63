package openshelf_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/openshelf/openshelf/pkg/openshelf"
	memorystorage "github.com/openshelf/openshelf/pkg/openshelf/storage/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// faultyStore wraps the memory store and fails selected operations.
type faultyStore struct {
	*memorystorage.Store
	failDelete bool
	failCopy   bool
}

var errInjected = errors.New("injected failure")

func (f *faultyStore) Delete(ctx context.Context, key string) error {
	if f.failDelete {
		return errInjected
	}
	return f.Store.Delete(ctx, key)
}

func (f *faultyStore) Copy(ctx context.Context, srcKey, dstKey string) error {
	if f.failCopy {
		return errInjected
	}
	return f.Store.Copy(ctx, srcKey, dstKey)
}

func put(t *testing.T, store openshelf.BlobStore, key, content string) {
	t.Helper()
	require.NoError(t, store.Upload(context.Background(), key, bytes.NewReader([]byte(content))))
}

func TestMove(t *testing.T) {
	ctx := context.Background()
	src := "intake/abc/book.pdf"
	dst := "review/abc/book.pdf"

	t.Run("copies then deletes source", func(t *testing.T) {
		store := memorystorage.New()
		put(t, store, src, "content")

		r := openshelf.NewRelocator(store, nil)
		require.NoError(t, r.Move(ctx, src, dst))

		assert.Equal(t, []string{dst}, store.Keys())
	})

	t.Run("retry converges on a single copy", func(t *testing.T) {
		store := memorystorage.New()
		put(t, store, src, "content")

		r := openshelf.NewRelocator(store, nil)
		require.NoError(t, r.Move(ctx, src, dst))
		require.NoError(t, r.Move(ctx, src, dst))

		assert.Equal(t, []string{dst}, store.Keys())
		reader, ok := store.Get(dst)
		require.True(t, ok)
		data, err := io.ReadAll(reader)
		require.NoError(t, err)
		assert.Equal(t, "content", string(data))
	})

	t.Run("existing destination skips the copy", func(t *testing.T) {
		store := memorystorage.New()
		put(t, store, src, "stale")
		put(t, store, dst, "already moved")

		r := openshelf.NewRelocator(store, nil)
		require.NoError(t, r.Move(ctx, src, dst))

		reader, ok := store.Get(dst)
		require.True(t, ok)
		data, err := io.ReadAll(reader)
		require.NoError(t, err)
		assert.Equal(t, "already moved", string(data))
	})

	t.Run("copy failure aborts", func(t *testing.T) {
		store := &faultyStore{Store: memorystorage.New(), failCopy: true}
		put(t, store.Store, src, "content")

		r := openshelf.NewRelocator(store, nil)
		err := r.Move(ctx, src, dst)
		require.Error(t, err)
		assert.ErrorIs(t, err, errInjected)

		// Source untouched, destination absent.
		assert.Equal(t, []string{src}, store.Store.Keys())
	})

	t.Run("delete failure after copy is tolerated", func(t *testing.T) {
		store := &faultyStore{Store: memorystorage.New(), failDelete: true}
		put(t, store.Store, src, "content")

		r := openshelf.NewRelocator(store, nil)
		require.NoError(t, r.Move(ctx, src, dst))

		// Duplicate left behind; the destination is authoritative.
		assert.Equal(t, []string{src, dst}, store.Store.Keys())
	})
}

func TestDeleteAllZones(t *testing.T) {
	ctx := context.Background()
	store := memorystorage.New()
	put(t, store, "intake/abc/book.pdf", "a")
	put(t, store, "review/abc/book.pdf", "b")
	put(t, store, "public/other/file.pdf", "keep")

	r := openshelf.NewRelocator(store, nil)
	r.DeleteAllZones(ctx, "review/abc/book.pdf")

	assert.Equal(t, []string{"public/other/file.pdf"}, store.Keys())
}
