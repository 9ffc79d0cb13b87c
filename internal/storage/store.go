// Package storage uploads and deletes media blobs in S3-compatible object storage.
package storage

import (
	"context"
	"errors"
	"io"
)

// BlobStore is the blob store collaborator used by the media pipeline.
// Upload and UploadVideo return the public URL of the stored object.
type BlobStore interface {
	Upload(ctx context.Context, data []byte, contentType string) (string, error)
	UploadVideo(ctx context.Context, r io.Reader, size int64, contentType string) (string, error)
	Delete(ctx context.Context, url string) error
}

// ErrForeignURL is returned by Delete for URLs this store did not produce.
var ErrForeignURL = errors.New("url does not belong to this store")

var extensions = map[string]string{
	"image/webp":      ".webp",
	"image/jpeg":      ".jpg",
	"image/png":       ".png",
	"image/gif":       ".gif",
	"video/mp4":       ".mp4",
	"video/quicktime": ".mov",
	"video/webm":      ".webm",
}

func extensionFor(contentType string) string {
	return extensions[contentType]
}
