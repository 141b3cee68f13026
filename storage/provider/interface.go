package provider

import (
	"context"
	"time"
)

// BlobProvider defines the interface for object-storage providers.
// It is provider-agnostic so deployments can use AWS S3, Cloudflare R2
// or any other S3-compatible service.
type BlobProvider interface {
	// Fetch downloads the raw bytes of an object. The CSV importer uses
	// this to read uploaded import files.
	Fetch(ctx context.Context, key string) ([]byte, error)

	// ResolveKey maps a public or bucket URL onto the object key, or
	// returns an error when the URL does not belong to this provider.
	ResolveKey(url string) (string, error)

	// GeneratePresignedDownloadURL generates a URL for downloading the file (GET).
	// For public files this may just be the CDN URL.
	GeneratePresignedDownloadURL(ctx context.Context, key string, expiresIn time.Duration) (string, error)

	// Delete physically deletes the file from the storage provider
	Delete(ctx context.Context, key string) error

	// GetMetadata checks if the file exists and returns its size
	GetMetadata(ctx context.Context, key string) (size int64, err error)
}
