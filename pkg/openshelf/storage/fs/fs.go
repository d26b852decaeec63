// Package fs provides a filesystem blob store for local runs. Zone prefixes
// map to directories under the base dir, so the intake/review/public split is
// directly inspectable on disk.
package fs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/openshelf/openshelf/pkg/openshelf"
)

// Store is a filesystem implementation of the openshelf.BlobStore interface.
type Store struct {
	baseDir   string
	urlPrefix string
}

// Config options for the filesystem store.
type Config struct {
	BaseDir   string // base directory for stored objects
	URLPrefix string // URL prefix for presigned-style upload URLs
}

// New creates a filesystem store, creating the base directory if needed.
func New(cfg Config) (*Store, error) {
	if cfg.BaseDir == "" {
		return nil, errors.New("base directory is required")
	}
	if err := os.MkdirAll(cfg.BaseDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}
	return &Store{baseDir: cfg.BaseDir, urlPrefix: cfg.URLPrefix}, nil
}

// PresignPut returns an upload URL under the configured prefix. There is no
// real signature; a local run fronts the base dir with a dev upload handler.
func (s *Store) PresignPut(ctx context.Context, key string, ttl time.Duration) (string, error) {
	if s.urlPrefix == "" {
		return "", errors.New("upload URL prefix is not configured")
	}
	return fmt.Sprintf("%s/%s", s.urlPrefix, key), nil
}

func (s *Store) ReadPrefix(ctx context.Context, key string, n int64) ([]byte, error) {
	file, err := os.Open(s.path(key))
	if err != nil {
		return nil, fmt.Errorf("failed to open object %s: %w", key, err)
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, n))
	if err != nil {
		return nil, fmt.Errorf("failed to read object %s: %w", key, err)
	}
	return data, nil
}

func (s *Store) Upload(ctx context.Context, key string, reader io.Reader) error {
	path := s.path(key)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create object directory: %w", err)
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create object %s: %w", key, err)
	}
	defer file.Close()

	if _, err := io.Copy(file, reader); err != nil {
		return fmt.Errorf("failed to write object %s: %w", key, err)
	}
	return nil
}

func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	_, err := os.Stat(s.path(key))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, fmt.Errorf("failed to stat object %s: %w", key, err)
}

func (s *Store) Copy(ctx context.Context, srcKey, dstKey string) error {
	src, err := os.Open(s.path(srcKey))
	if err != nil {
		return fmt.Errorf("failed to open source object %s: %w", srcKey, err)
	}
	defer src.Close()

	return s.Upload(ctx, dstKey, src)
}

// Delete removes an object. Deleting a missing key is not an error.
func (s *Store) Delete(ctx context.Context, key string) error {
	err := os.Remove(s.path(key))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete object %s: %w", key, err)
	}
	return nil
}

func (s *Store) path(key string) string {
	return filepath.Join(s.baseDir, filepath.FromSlash(key))
}

var _ openshelf.BlobStore = (*Store)(nil)
