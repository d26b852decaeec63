package s3

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfiguration(t *testing.T) {
	t.Run("empty bucket", func(t *testing.T) {
		_, err := New(Config{Region: "us-east-1"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "bucket name is required")
	})

	t.Run("static credentials", func(t *testing.T) {
		store, err := New(Config{
			Bucket:          "test-bucket",
			AccessKeyID:     "test-key",
			SecretAccessKey: "test-secret",
		})
		require.NoError(t, err)
		assert.NotNil(t, store)
	})

	t.Run("custom endpoint with path style", func(t *testing.T) {
		store, err := New(Config{
			Bucket:          "test-bucket",
			AccessKeyID:     "minioadmin",
			SecretAccessKey: "minioadmin",
			Endpoint:        "http://localhost:9000",
			UsePathStyle:    true,
		})
		require.NoError(t, err)
		assert.NotNil(t, store)
	})
}

func TestPresignPutURL(t *testing.T) {
	store, err := New(Config{
		Bucket:          "test-bucket",
		Region:          "us-east-1",
		AccessKeyID:     "test-key",
		SecretAccessKey: "test-secret",
	})
	require.NoError(t, err)

	// Presigning is purely local: it signs the request without calling S3.
	url, err := store.PresignPut(context.Background(), "intake/abc/book.pdf", 15*time.Minute)
	require.NoError(t, err)
	assert.Contains(t, url, "intake/abc/book.pdf")
	assert.Contains(t, url, "X-Amz-Signature")
	assert.Contains(t, url, "X-Amz-Expires=900")
}

// TestIntegration runs the full round trip against a real S3-compatible
// endpoint (MinIO in CI). Skipped unless TEST_S3_ENDPOINT is set.
func TestIntegration(t *testing.T) {
	endpoint := os.Getenv("TEST_S3_ENDPOINT")
	if endpoint == "" {
		t.Skip("TEST_S3_ENDPOINT not set; skipping S3 integration test")
	}

	store, err := New(Config{
		Bucket:          envOr("TEST_S3_BUCKET", "openshelf-test"),
		Region:          envOr("TEST_S3_REGION", "us-east-1"),
		AccessKeyID:     envOr("TEST_S3_ACCESS_KEY", "minioadmin"),
		SecretAccessKey: envOr("TEST_S3_SECRET_KEY", "minioadmin"),
		Endpoint:        endpoint,
		UsePathStyle:    true,
	})
	require.NoError(t, err)

	ctx := context.Background()
	key := fmt.Sprintf("intake/%d/book.pdf", time.Now().UnixNano())
	content := "%PDF-1.7\n" + strings.Repeat("x", 8192)

	require.NoError(t, store.Upload(ctx, key, bytes.NewReader([]byte(content))))

	exists, err := store.Exists(ctx, key)
	require.NoError(t, err)
	assert.True(t, exists)

	prefix, err := store.ReadPrefix(ctx, key, 8)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.7", string(prefix))

	dstKey := strings.Replace(key, "intake/", "review/", 1)
	require.NoError(t, store.Copy(ctx, key, dstKey))

	require.NoError(t, store.Delete(ctx, key))
	exists, err = store.Exists(ctx, key)
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, store.Delete(ctx, dstKey))
}

func envOr(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}
