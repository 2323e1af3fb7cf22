package domain

import "context"

// VectorIndex performs nearest-neighbor search over a tenant-partitioned
// index. Implementations must restrict results to the given group so that
// no cross-tenant hit can ever surface, and must return hits ordered by
// ascending distance.
type VectorIndex interface {
	Search(ctx context.Context, groupID string, embedding []float32, topK int) ([]VectorHit, error)
}
