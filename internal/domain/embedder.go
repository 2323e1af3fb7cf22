package domain

import "context"

// Embedder converts text into a fixed-dimension embedding via a remote
// embedding service. Implementations must not retry internally; a failed
// call is final for the current request.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Version() string
}
