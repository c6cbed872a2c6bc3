// Package adapters selects and constructs the configured archive
// adapter.
package adapters

import (
	"fmt"

	"usage-harvester/internal/config"
	"usage-harvester/internal/observability"
	"usage-harvester/internal/storage"
	"usage-harvester/internal/storage/adapters/fs"
	"usage-harvester/internal/storage/adapters/s3"
)

// New creates the archive selected by the configuration. An empty
// adapter name disables archiving; callers get nil storage and must
// treat it as "do not archive".
func New(cfg config.Config, logger observability.Logger, metrics observability.Metrics) (storage.ObjectStorage, error) {
	switch cfg.ArchiveAdapter {
	case "":
		return nil, nil
	case "filesystem":
		return fs.NewStorage(cfg.ArchiveBucket, logger, metrics)
	case "s3":
		return s3.New(cfg, logger, metrics)
	default:
		return nil, fmt.Errorf("unsupported archive adapter: %s", cfg.ArchiveAdapter)
	}
}
