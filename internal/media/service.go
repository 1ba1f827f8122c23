package media

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Service is the media relay: it issues upload handles, stores uploaded
// blobs, and resolves storage references to retrievable URLs.
type Service struct {
	provider  StorageProvider
	handles   HandleStore
	baseURL   string
	handleTTL time.Duration
	logger    *slog.Logger
}

// NewService creates a media service. baseURL is the public base under which
// /media routes are reachable.
func NewService(log *slog.Logger, provider StorageProvider, handles HandleStore, baseURL string, handleTTL time.Duration) *Service {
	if log == nil {
		log = slog.Default()
	}
	if handleTTL <= 0 {
		handleTTL = time.Hour
	}
	return &Service{
		provider:  provider,
		handles:   handles,
		baseURL:   strings.TrimRight(baseURL, "/"),
		handleTTL: handleTTL,
		logger:    log.With(slog.String("service", "media")),
	}
}

// GenerateUploadHandle issues a one-shot upload slot and the URL to PUT it to.
func (s *Service) GenerateUploadHandle(ctx context.Context) (UploadHandle, error) {
	handle, err := s.handles.Create(ctx, UploadHandle{StorageKey: uuid.NewString()})
	if err != nil {
		return UploadHandle{}, fmt.Errorf("create upload handle: %w", err)
	}
	handle.UploadURL = s.baseURL + "/media/upload/" + handle.ID
	return handle, nil
}

// StoreUpload consumes an upload handle, persisting the blob under the
// handle's storage key. Returns the storage key to reference in messages.
func (s *Service) StoreUpload(ctx context.Context, handleID string, reader io.Reader) (string, error) {
	handle, err := s.handles.Get(ctx, handleID)
	if err != nil {
		return "", err
	}
	if handle.Used {
		return "", ErrHandleUsed
	}
	if time.Since(handle.CreatedAt) > s.handleTTL {
		return "", ErrHandleNotFound
	}
	if err := s.provider.Put(ctx, handle.StorageKey, reader); err != nil {
		return "", fmt.Errorf("store blob: %w", err)
	}
	if err := s.handles.MarkUsed(ctx, handle.ID); err != nil {
		return "", fmt.Errorf("mark handle used: %w", err)
	}
	return handle.StorageKey, nil
}

// Resolve turns a storage reference into the public URL serving the blob.
// Already-absolute references pass through untouched.
func (s *Service) Resolve(storageRef string) string {
	if storageRef == "" {
		return ""
	}
	if strings.HasPrefix(storageRef, "http://") || strings.HasPrefix(storageRef, "https://") {
		return storageRef
	}
	return s.baseURL + "/media/" + storageRef
}

// Open returns a reader for a stored blob.
func (s *Service) Open(ctx context.Context, storageKey string) (io.ReadCloser, error) {
	return s.provider.Open(ctx, storageKey)
}

// PurgeExpiredHandles drops unused handles past their TTL along with any
// blobs stored under their keys. Run periodically.
func (s *Service) PurgeExpiredHandles(ctx context.Context) error {
	keys, err := s.handles.DeleteExpired(ctx, time.Now().Add(-s.handleTTL))
	if err != nil {
		return fmt.Errorf("purge upload handles: %w", err)
	}
	for _, key := range keys {
		if err := s.provider.Delete(ctx, key); err != nil {
			// Handle row is already gone; an orphaned blob is logged only.
			s.logger.Warn("delete orphaned blob failed",
				slog.String("storage_key", key), slog.Any("error", err))
		}
	}
	if len(keys) > 0 {
		s.logger.Info("purged expired upload handles", slog.Int("count", len(keys)))
	}
	return nil
}
