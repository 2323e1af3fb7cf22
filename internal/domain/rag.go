package domain

import "fmt"

// Question is a single natural-language query scoped to one group.
type Question struct {
	GroupID string
	Text    string
}

// VectorHit is one candidate returned by the vector index.
// Score is a distance: lower is better. Adapters backed by
// similarity-scored engines must convert before returning hits.
type VectorHit struct {
	ID    string
	Score float32
}

// Chunk is the unit of retrieval: a bounded span of one uploaded file,
// written once at ingest time and immutable afterwards.
type Chunk struct {
	ID      string
	GroupID string
	FileID  string
	Text    string
}

// MetadataRecord links a chunk id to the group and file it belongs to.
// The backing store has gone through several schema generations, so any
// of DocID, FileID, or ChunkIDs may carry the association.
type MetadataRecord struct {
	DocID    string
	GroupID  string
	FileID   string
	ChunkIDs []string
}

// ContextItem is one resolved chunk as surfaced to API clients.
type ContextItem struct {
	ChunkID string
	Score   float32
	Text    string
}

// Answer is the uniform result shape of the answering pipeline. Every
// path through the pipeline, including every failure path, produces one.
type Answer struct {
	Text     string
	Contexts []ContextItem
}

// ChunkBlobPath returns the canonical blob path for a chunk's text.
func ChunkBlobPath(groupID, fileID, chunkID string) string {
	return fmt.Sprintf("chunks/%s/%s/%s.txt", groupID, fileID, chunkID)
}

// GroupBlobPrefix returns the blob prefix holding all chunks of a group.
func GroupBlobPrefix(groupID string) string {
	return fmt.Sprintf("chunks/%s/", groupID)
}
