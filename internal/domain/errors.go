package domain

import "errors"

// Failure taxonomy of the answering pipeline. Only ErrEmbeddingFailed is
// pipeline-fatal; the orchestrator degrades on everything else.
var (
	ErrEmbeddingFailed  = errors.New("embedding failed")
	ErrSearchFailed     = errors.New("vector search failed")
	ErrChunkNotResolved = errors.New("chunk could not be resolved")
	ErrGenerationFailed = errors.New("answer generation failed")
)
