// Package storage archives original uploads for audit and replay. Archived
// sources are durable and are never touched by task cleanup.
package storage

import (
	"context"
	"fmt"
	"time"
)

// Archive stores original upload sources. Implementations can be local
// filesystem or S3-compatible object storage.
type Archive interface {
	// Put stores content under the given key.
	Put(ctx context.Context, key string, content []byte, contentType string) error

	// Get retrieves content for the given key.
	Get(ctx context.Context, key string) ([]byte, error)

	// Exists checks whether a key is present.
	Exists(ctx context.Context, key string) (bool, error)

	// List returns all keys under the given prefix.
	List(ctx context.Context, prefix string) ([]string, error)
}

// Type selects the archive backend.
type Type string

const (
	TypeLocal Type = "local"
	TypeS3    Type = "s3"
)

// UploadKey builds the archive key for a task's original upload. The task id
// is part of the key, matching the scratch layout, so sources stay
// attributable after cleanup.
func UploadKey(taskID string, receivedAt time.Time, filename string) string {
	return fmt.Sprintf("uploads/%s/%s/%s", receivedAt.Format("2006-01-02"), taskID, filename)
}
