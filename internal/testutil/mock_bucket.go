// Package testutil provides shared test utilities for decommigrate.
package testutil

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/dwsmith1983/decommigrate/internal/bucket"
)

// Compile-time interface satisfaction check.
var _ bucket.Client = (*MockBucket)(nil)

// MockBucket is an in-memory object store for testing. Listing mirrors the
// S3 delimiter semantics the catalog walker depends on: one level at a time,
// immediate subdirectories as prefixes.
type MockBucket struct {
	mu      sync.Mutex
	objects map[string][]byte

	// Optional fault injection, keyed by object key or list prefix.
	ListErr     map[string]error
	DownloadErr map[string]error
	CopyErr     map[string]error
	DeleteErr   map[string]error
}

// NewMockBucket creates an empty MockBucket.
func NewMockBucket() *MockBucket {
	return &MockBucket{
		objects:     make(map[string][]byte),
		ListErr:     make(map[string]error),
		DownloadErr: make(map[string]error),
		CopyErr:     make(map[string]error),
		DeleteErr:   make(map[string]error),
	}
}

// Put stores an object.
func (m *MockBucket) Put(key string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = data
}

// Keys returns all stored object keys, sorted.
func (m *MockBucket) Keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]string, 0, len(m.objects))
	for k := range m.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Has reports whether a key exists.
func (m *MockBucket) Has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.objects[key]
	return ok
}

// List returns the immediate subdirectory prefixes and object keys under
// prefix.
func (m *MockBucket) List(ctx context.Context, prefix string) ([]string, []string, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.ListErr[prefix]; err != nil {
		return nil, nil, err
	}

	dirSet := make(map[string]struct{})
	var files []string
	for key := range m.objects {
		if !strings.HasPrefix(key, prefix) || key == prefix {
			continue
		}
		rest := key[len(prefix):]
		if i := strings.Index(rest, "/"); i >= 0 {
			dirSet[prefix+rest[:i+1]] = struct{}{}
		} else {
			files = append(files, key)
		}
	}

	dirs := make([]string, 0, len(dirSet))
	for d := range dirSet {
		dirs = append(dirs, d)
	}
	sort.Strings(dirs)
	sort.Strings(files)
	return dirs, files, nil
}

// Download returns an object's bytes.
func (m *MockBucket) Download(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.DownloadErr[key]; err != nil {
		return nil, err
	}
	data, ok := m.objects[key]
	if !ok {
		return nil, fmt.Errorf("no such key: %s", key)
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

// Copy duplicates an object under a new key.
func (m *MockBucket) Copy(ctx context.Context, srcKey, dstKey string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.CopyErr[srcKey]; err != nil {
		return err
	}
	data, ok := m.objects[srcKey]
	if !ok {
		return fmt.Errorf("no such key: %s", srcKey)
	}
	m.objects[dstKey] = data
	return nil
}

// Delete removes an object. Deleting a missing key is not an error.
func (m *MockBucket) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.DeleteErr[key]; err != nil {
		return err
	}
	delete(m.objects, key)
	return nil
}
