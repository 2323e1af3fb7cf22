package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"campus-rag/internal/domain"
)

type metadataRepository struct {
	pool *pgxpool.Pool
}

// NewMetadataRepository creates a MetadataStore backed by postgres.
//
// Expected schema:
//
//	CREATE TABLE group_files (
//	    doc_id    TEXT PRIMARY KEY,
//	    group_id  TEXT NOT NULL DEFAULT '',
//	    file_id   TEXT NOT NULL DEFAULT '',
//	    chunk_ids TEXT[] NOT NULL DEFAULT '{}'
//	);
//
// Columns mirror the historical metadata shapes: newer rows key by chunk
// id directly, older ones key by file with chunk ids in the array.
func NewMetadataRepository(pool *pgxpool.Pool) domain.MetadataStore {
	return &metadataRepository{pool: pool}
}

const metadataColumns = "doc_id, group_id, file_id, chunk_ids"

func (r *metadataRepository) GetByID(ctx context.Context, id string) (*domain.MetadataRecord, error) {
	query := fmt.Sprintf("SELECT %s FROM group_files WHERE doc_id = $1", metadataColumns)
	return r.queryOne(ctx, query, id)
}

func (r *metadataRepository) FindByFileID(ctx context.Context, fileID string) (*domain.MetadataRecord, error) {
	query := fmt.Sprintf("SELECT %s FROM group_files WHERE file_id = $1 LIMIT 1", metadataColumns)
	return r.queryOne(ctx, query, fileID)
}

func (r *metadataRepository) FindByChunkID(ctx context.Context, chunkID string) (*domain.MetadataRecord, error) {
	query := fmt.Sprintf("SELECT %s FROM group_files WHERE $1 = ANY(chunk_ids) LIMIT 1", metadataColumns)
	return r.queryOne(ctx, query, chunkID)
}

func (r *metadataRepository) queryOne(ctx context.Context, query string, arg string) (*domain.MetadataRecord, error) {
	var record domain.MetadataRecord
	err := r.pool.QueryRow(ctx, query, arg).Scan(
		&record.DocID,
		&record.GroupID,
		&record.FileID,
		&record.ChunkIDs,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query metadata: %w", err)
	}
	return &record, nil
}
