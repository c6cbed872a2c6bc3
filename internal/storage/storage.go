// Package storage provides the optional raw-payload archive: successful
// report payloads can be copied to an object store next to the gateway
// upsert, keeping the original vendor response available for audits.
package storage

import (
	"context"
	"io"
)

// ObjectMetadata describes an archived object.
type ObjectMetadata struct {
	ContentType string
}

// ObjectStorage stores and retrieves archived payloads. An empty bucket
// selects the adapter's configured default.
type ObjectStorage interface {
	Put(ctx context.Context, bucket, key string, reader io.Reader, metadata ObjectMetadata) error
	Get(ctx context.Context, bucket, key string) (io.ReadCloser, error)
}
