package media

import (
	"context"
	"io"
	"time"
)

// UploadHandle grants a client one PUT of raw bytes under a fresh storage key.
type UploadHandle struct {
	ID         string    `json:"id"`
	StorageKey string    `json:"storage_key"`
	UploadURL  string    `json:"upload_url"`
	Used       bool      `json:"-"`
	CreatedAt  time.Time `json:"created_at"`
}

// StorageProvider abstracts object storage operations.
type StorageProvider interface {
	// Put writes data to storage under the given key.
	Put(ctx context.Context, key string, reader io.Reader) error
	// Open returns a reader for the given storage key.
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	// Delete removes the object at key.
	Delete(ctx context.Context, key string) error
}

// HandleStore persists upload handles.
type HandleStore interface {
	Create(ctx context.Context, handle UploadHandle) (UploadHandle, error)
	Get(ctx context.Context, id string) (UploadHandle, error)
	MarkUsed(ctx context.Context, id string) error
	// DeleteExpired removes unused handles created before the cutoff and
	// returns the storage keys of the dropped handles.
	DeleteExpired(ctx context.Context, before time.Time) ([]string, error)
}
