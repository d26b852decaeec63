package memory_test

import (
	"bytes"
	"context"
	"io"
	"testing"

	memorystorage "github.com/openshelf/openshelf/pkg/openshelf/storage/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUploadAndReadPrefix(t *testing.T) {
	ctx := context.Background()
	store := memorystorage.New()

	content := []byte("%PDF-1.7\nlots of pdf content follows")
	require.NoError(t, store.Upload(ctx, "intake/abc/book.pdf", bytes.NewReader(content)))

	prefix, err := store.ReadPrefix(ctx, "intake/abc/book.pdf", 8)
	require.NoError(t, err)
	assert.Equal(t, []byte("%PDF-1.7"), prefix)

	// Asking for more than the object holds returns the whole object.
	all, err := store.ReadPrefix(ctx, "intake/abc/book.pdf", 4096)
	require.NoError(t, err)
	assert.Equal(t, content, all)

	_, err = store.ReadPrefix(ctx, "intake/missing/book.pdf", 8)
	assert.Error(t, err)
}

func TestExistsCopyDelete(t *testing.T) {
	ctx := context.Background()
	store := memorystorage.New()

	require.NoError(t, store.Upload(ctx, "intake/abc/book.pdf", bytes.NewReader([]byte("data"))))

	exists, err := store.Exists(ctx, "intake/abc/book.pdf")
	require.NoError(t, err)
	assert.True(t, exists)

	require.NoError(t, store.Copy(ctx, "intake/abc/book.pdf", "review/abc/book.pdf"))
	reader, ok := store.Get("review/abc/book.pdf")
	require.True(t, ok)
	data, err := io.ReadAll(reader)
	require.NoError(t, err)
	assert.Equal(t, "data", string(data))

	assert.Error(t, store.Copy(ctx, "intake/missing/book.pdf", "review/x/book.pdf"))

	require.NoError(t, store.Delete(ctx, "intake/abc/book.pdf"))
	exists, err = store.Exists(ctx, "intake/abc/book.pdf")
	require.NoError(t, err)
	assert.False(t, exists)

	// Deleting a missing key is not an error.
	assert.NoError(t, store.Delete(ctx, "intake/abc/book.pdf"))
}

func TestPresignPut(t *testing.T) {
	store := memorystorage.New()

	url, err := store.PresignPut(context.Background(), "intake/abc/book.pdf", 0)
	require.NoError(t, err)
	assert.Contains(t, url, "intake/abc/book.pdf")
}
