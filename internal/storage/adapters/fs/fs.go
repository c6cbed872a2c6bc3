// Package fs implements the archive on the local filesystem.
package fs

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"usage-harvester/internal/observability"
	"usage-harvester/internal/storage"
)

// Storage implements ObjectStorage using a directory tree rooted at a
// base path. Buckets map to first-level directories.
type Storage struct {
	basePath string
	logger   observability.Logger
	metrics  observability.Metrics
}

// NewStorage creates a filesystem-backed archive, creating the base
// directory if needed.
func NewStorage(basePath string, logger observability.Logger, metrics observability.Metrics) (*Storage, error) {
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create base path: %w", err)
	}
	return &Storage{
		basePath: basePath,
		logger:   logger.WithFields(observability.Fields{"archive": "filesystem"}),
		metrics:  metrics,
	}, nil
}

// Put stores an object, creating intermediate directories for keys that
// contain path separators.
func (s *Storage) Put(ctx context.Context, bucket, key string, reader io.Reader, _ storage.ObjectMetadata) error {
	start := time.Now()
	objectPath := s.objectPath(bucket, key)

	if err := os.MkdirAll(filepath.Dir(objectPath), 0o755); err != nil {
		s.metrics.RecordError("archive_put", "mkdir")
		return fmt.Errorf("failed to create object directory: %w", err)
	}

	file, err := os.Create(objectPath)
	if err != nil {
		s.metrics.RecordError("archive_put", "create")
		return fmt.Errorf("failed to create object file: %w", err)
	}
	defer file.Close()

	written, err := io.Copy(file, reader)
	if err != nil {
		s.metrics.RecordError("archive_put", "write")
		return fmt.Errorf("failed to write object data: %w", err)
	}

	s.metrics.RecordSuccess("archive_put")
	s.metrics.RecordDuration("archive_put", time.Since(start).Seconds())
	s.logger.Debug(ctx, "Archived object", observability.Fields{
		"bucket": bucket,
		"key":    key,
		"bytes":  written,
	})
	return nil
}

// Get retrieves a stored object.
func (s *Storage) Get(_ context.Context, bucket, key string) (io.ReadCloser, error) {
	file, err := os.Open(s.objectPath(bucket, key))
	if err != nil {
		s.metrics.RecordError("archive_get", "open")
		return nil, fmt.Errorf("failed to open object: %w", err)
	}
	s.metrics.RecordSuccess("archive_get")
	return file, nil
}

func (s *Storage) objectPath(bucket, key string) string {
	return filepath.Join(s.basePath, bucket, filepath.FromSlash(key))
}
