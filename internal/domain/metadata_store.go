package domain

import "context"

// MetadataStore is a schemaless document store holding chunk-to-file
// associations. The three lookup forms mirror the historical schema
// generations of the store; each returns nil, nil when nothing matches.
type MetadataStore interface {
	// GetByID fetches the record whose primary key equals id.
	GetByID(ctx context.Context, id string) (*MetadataRecord, error)

	// FindByFileID fetches a record whose file_id field equals fileID.
	FindByFileID(ctx context.Context, fileID string) (*MetadataRecord, error)

	// FindByChunkID fetches a record whose chunk-list field contains chunkID.
	FindByChunkID(ctx context.Context, chunkID string) (*MetadataRecord, error)
}
