package domain

import "context"

// BlobStore is content-addressable storage for chunk texts and uploaded
// files. Paths use forward slashes regardless of the backing store.
type BlobStore interface {
	// Download returns the full text stored at path.
	Download(ctx context.Context, path string) (string, error)

	// List returns the paths of all objects under prefix.
	List(ctx context.Context, prefix string) ([]string, error)

	// Upload writes data to path, overwriting any existing object.
	Upload(ctx context.Context, path string, data []byte, contentType string) error
}
