package storage

import (
	"context"
	"errors"
	"fmt"
	"io"

	"dispatch-service/internal/config"
)

var ErrNotFound = errors.New("file not found")

// FileStore keeps uploaded assignment documents. Save returns the path that
// is recorded on the assignment; Open takes that same path.
type FileStore interface {
	Save(ctx context.Context, name string, r io.Reader) (string, error)
	Open(ctx context.Context, path string) (io.ReadCloser, error)
}

// NewFromConfig builds the backend selected by FILES_BACKEND.
func NewFromConfig(ctx context.Context, cfg config.FilesConfig) (FileStore, error) {
	switch cfg.Backend {
	case config.FilesBackendLocal, "":
		return NewLocalStore(cfg.UploadDir)
	case config.FilesBackendGCS:
		return NewGCSStore(ctx, cfg.GCSBucket)
	default:
		return nil, fmt.Errorf("unsupported files backend %q", cfg.Backend)
	}
}
