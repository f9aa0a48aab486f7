// Package storagetest provides an in-memory BlobStore for tests.
package storagetest

import (
	"context"
	"sync"
	"time"

	"roomcheck-backend/internal/storage"
)

// Blobs is an in-memory storage.BlobStore. Objects exist once Put is called
// for their key.
type Blobs struct {
	mu      sync.Mutex
	objects map[string]bool
	ttl     time.Duration
}

var _ storage.BlobStore = (*Blobs)(nil)

// New creates an empty store whose URLs expire after ttl.
func New(ttl time.Duration) *Blobs {
	return &Blobs{objects: map[string]bool{}, ttl: ttl}
}

func (b *Blobs) PresignUpload(_ context.Context, key, _ string) (storage.PresignedURL, error) {
	return storage.PresignedURL{Key: key, URL: "https://blobs.test/put/" + key, ExpiresAt: time.Now().Add(b.ttl)}, nil
}

func (b *Blobs) PresignDownload(_ context.Context, key string) (storage.PresignedURL, error) {
	return storage.PresignedURL{Key: key, URL: "https://blobs.test/get/" + key, ExpiresAt: time.Now().Add(b.ttl)}, nil
}

func (b *Blobs) Exists(_ context.Context, key string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.objects[key], nil
}

func (b *Blobs) Expiration() time.Duration {
	return b.ttl
}

// Put marks keys as uploaded.
func (b *Blobs) Put(keys ...string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, k := range keys {
		b.objects[k] = true
	}
}
