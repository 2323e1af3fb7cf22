package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"campus-rag/internal/domain"
)

type pgVectorIndex struct {
	pool *pgxpool.Pool
}

// NewPgVectorIndex creates a VectorIndex backed by a pgvector table.
//
// Expected schema:
//
//	CREATE TABLE chunk_vectors (
//	    chunk_id  TEXT PRIMARY KEY,
//	    group_id  TEXT NOT NULL,
//	    embedding VECTOR NOT NULL
//	);
func NewPgVectorIndex(pool *pgxpool.Pool) domain.VectorIndex {
	return &pgVectorIndex{pool: pool}
}

func (r *pgVectorIndex) Search(ctx context.Context, groupID string, embedding []float32, topK int) ([]domain.VectorHit, error) {
	// Cosine distance, ascending: lower is better, matching the hit
	// ordering contract.
	query := `
		SELECT chunk_id, embedding <=> $1 AS distance
		FROM chunk_vectors
		WHERE group_id = $2
		ORDER BY embedding <=> $1
		LIMIT $3
	`
	rows, err := r.pool.Query(ctx, query, pgvector.NewVector(embedding), groupID, topK)
	if err != nil {
		return nil, fmt.Errorf("%w: query chunk vectors: %v", domain.ErrSearchFailed, err)
	}
	defer rows.Close()

	var hits []domain.VectorHit
	for rows.Next() {
		var hit domain.VectorHit
		var distance float64
		if err := rows.Scan(&hit.ID, &distance); err != nil {
			return nil, fmt.Errorf("%w: scan hit: %v", domain.ErrSearchFailed, err)
		}
		hit.Score = float32(distance)
		hits = append(hits, hit)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: rows error: %v", domain.ErrSearchFailed, err)
	}
	return hits, nil
}
