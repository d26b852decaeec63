// Package memory provides an in-memory blob store for tests and local runs.
package memory

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/openshelf/openshelf/pkg/openshelf"
)

// Store is an in-memory implementation of the openshelf.BlobStore interface.
type Store struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

// New creates a new in-memory blob store.
func New() *Store {
	return &Store{objects: make(map[string][]byte)}
}

// PresignPut returns a synthetic memory:// URL. There is no real credential
// to mint; tests write through Upload instead.
func (s *Store) PresignPut(ctx context.Context, key string, ttl time.Duration) (string, error) {
	expires := time.Now().Add(ttl).Unix()
	return fmt.Sprintf("memory://%s?expires=%d", key, expires), nil
}

// ReadPrefix returns up to n leading bytes of an object.
func (s *Store) ReadPrefix(ctx context.Context, key string, n int64) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, exists := s.objects[key]
	if !exists {
		return nil, errors.New("object not found")
	}
	if int64(len(data)) > n {
		data = data[:n]
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

// Upload writes an object.
func (s *Store) Upload(ctx context.Context, key string, reader io.Reader) error {
	data, err := io.ReadAll(reader)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = data
	return nil
}

// Exists reports whether an object is present at key.
func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, exists := s.objects[key]
	return exists, nil
}

// Copy duplicates an object.
func (s *Store) Copy(ctx context.Context, srcKey, dstKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, exists := s.objects[srcKey]
	if !exists {
		return errors.New("object not found")
	}
	dup := make([]byte, len(data))
	copy(dup, data)
	s.objects[dstKey] = dup
	return nil
}

// Delete removes an object. Deleting a missing key is a no-op, matching the
// BlobStore contract.
func (s *Store) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
	return nil
}

// Get returns a reader over the stored object. Test helper.
func (s *Store) Get(key string) (io.Reader, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, exists := s.objects[key]
	if !exists {
		return nil, false
	}
	return bytes.NewReader(data), true
}

// Keys returns every stored key, sorted. Test helper.
func (s *Store) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.objects))
	for k := range s.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

var _ openshelf.BlobStore = (*Store)(nil)
