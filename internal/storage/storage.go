package storage

import (
	"context"
	"time"
)

// Default expiry duration for presigned download URLs
const DefaultPresignedURLExpiry = 15 * time.Minute

// ReportArchiver defines the interface for archiving generated monthly
// reports to object storage.
type ReportArchiver interface {
	// Put stores a rendered report under objectKey.
	Put(ctx context.Context, objectKey, contentType string, body []byte) error

	// GeneratePresignedDownloadURL creates a temporary URL that allows GET
	// requests for an archived report directly from the storage provider.
	GeneratePresignedDownloadURL(ctx context.Context, objectKey string, expires time.Duration) (string, error)

	// DeleteObject removes an archived report.
	DeleteObject(ctx context.Context, objectKey string) error
}
