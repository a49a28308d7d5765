package storage

import (
	"context"
	"fmt"
)

// BlobStore is the opaque file-storage collaborator. Documents are referenced
// by object key; nothing outside this package knows the backing store.
type BlobStore interface {
	// Put stores data under a freshly generated key inside folder and
	// returns the key.
	Put(ctx context.Context, folder, filename, contentType string, data []byte) (string, error)
	// Delete removes a stored object. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	// URLFor returns the stable public URL for a key.
	URLFor(key string) string
	// PresignGet returns a short-lived download URL for staff document review.
	PresignGet(ctx context.Context, key string) (string, error)
}

// ValidateFileSize rejects payloads over the configured limit.
func ValidateFileSize(size, maxSize int64) error {
	if size > maxSize {
		return fmt.Errorf("file size exceeds maximum allowed size of %d bytes", maxSize)
	}
	return nil
}

// ValidateContentType rejects content types outside the allowed set.
func ValidateContentType(contentType string, allowedTypes []string) error {
	for _, allowed := range allowedTypes {
		if contentType == allowed {
			return nil
		}
	}
	return fmt.Errorf("content type %s is not allowed", contentType)
}
