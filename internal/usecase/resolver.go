package usecase

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"campus-rag/internal/domain"
)

// ChunkResolver maps a vector hit back to the chunk text it points at.
// Resolve returns false when no strategy could produce the text.
type ChunkResolver interface {
	Resolve(ctx context.Context, hit domain.VectorHit, groupID string) (string, bool)
}

// resolveStrategy is one independent lookup attempt. Returning ("", nil)
// means the strategy ran cleanly but found nothing; an error means the
// strategy itself failed. Both fall through to the next strategy.
type resolveStrategy struct {
	name string
	fn   func(ctx context.Context, hit domain.VectorHit, groupID string) (string, error)
}

type chunkResolver struct {
	metadata   domain.MetadataStore
	blobs      domain.BlobStore
	logger     *slog.Logger
	strategies []resolveStrategy
}

// NewChunkResolver builds the resolver cascade. The metadata store has
// gone through several schema generations (chunk id as document key, a
// file_id foreign key, chunk ids nested in a parent document), so the
// cascade tries each historical shape before falling back to scanning
// the blob store directly.
func NewChunkResolver(metadata domain.MetadataStore, blobs domain.BlobStore, logger *slog.Logger) ChunkResolver {
	r := &chunkResolver{
		metadata: metadata,
		blobs:    blobs,
		logger:   logger,
	}
	r.strategies = []resolveStrategy{
		{name: "direct_id", fn: r.resolveByDirectID},
		{name: "file_id_query", fn: r.resolveByFileIDField},
		{name: "chunk_list_query", fn: r.resolveByChunkMembership},
		{name: "blob_scan", fn: r.resolveByBlobScan},
	}
	return r
}

func (r *chunkResolver) Resolve(ctx context.Context, hit domain.VectorHit, groupID string) (string, bool) {
	for _, strategy := range r.strategies {
		start := time.Now()
		text, err := strategy.fn(ctx, hit, groupID)
		if err != nil {
			r.logger.Warn("resolve_strategy_failed",
				slog.String("strategy", strategy.name),
				slog.String("chunk_id", hit.ID),
				slog.String("group_id", groupID),
				slog.String("error", err.Error()),
				slog.Duration("elapsed", time.Since(start)),
			)
			continue
		}
		if text == "" {
			continue
		}
		r.logger.Info("chunk_resolved",
			slog.String("strategy", strategy.name),
			slog.String("chunk_id", hit.ID),
			slog.Int("chars", len(text)),
			slog.Duration("elapsed", time.Since(start)),
		)
		return text, true
	}

	r.logger.Warn("chunk_unresolved",
		slog.String("chunk_id", hit.ID),
		slog.String("group_id", groupID),
	)
	return "", false
}

// resolveByDirectID treats the hit id as the primary key of a metadata
// record.
func (r *chunkResolver) resolveByDirectID(ctx context.Context, hit domain.VectorHit, groupID string) (string, error) {
	record, err := r.metadata.GetByID(ctx, hit.ID)
	if err != nil {
		return "", err
	}
	if record == nil {
		return "", nil
	}
	return r.downloadFromRecord(ctx, record, hit.ID, groupID)
}

// resolveByFileIDField finds a metadata record whose file_id field equals
// the hit id.
func (r *chunkResolver) resolveByFileIDField(ctx context.Context, hit domain.VectorHit, groupID string) (string, error) {
	record, err := r.metadata.FindByFileID(ctx, hit.ID)
	if err != nil {
		return "", err
	}
	if record == nil {
		return "", nil
	}
	return r.downloadFromRecord(ctx, record, hit.ID, groupID)
}

// resolveByChunkMembership finds a metadata record whose chunk-list field
// contains the hit id. Supports legacy schemas where chunk ids are nested
// in a parent document.
func (r *chunkResolver) resolveByChunkMembership(ctx context.Context, hit domain.VectorHit, groupID string) (string, error) {
	record, err := r.metadata.FindByChunkID(ctx, hit.ID)
	if err != nil {
		return "", err
	}
	if record == nil {
		return "", nil
	}
	return r.downloadFromRecord(ctx, record, hit.ID, groupID)
}

// resolveByBlobScan lists every blob under the group's prefix and matches
// by filename suffix. Last resort: it bypasses metadata entirely.
func (r *chunkResolver) resolveByBlobScan(ctx context.Context, hit domain.VectorHit, groupID string) (string, error) {
	names, err := r.blobs.List(ctx, domain.GroupBlobPrefix(groupID))
	if err != nil {
		return "", err
	}

	suffix := "/" + hit.ID + ".txt"
	for _, name := range names {
		if !strings.HasSuffix(name, suffix) {
			continue
		}
		text, err := r.blobs.Download(ctx, name)
		if err != nil {
			r.logger.Warn("blob_scan_download_failed",
				slog.String("path", name),
				slog.String("error", err.Error()),
			)
			continue
		}
		return text, nil
	}
	return "", nil
}

func (r *chunkResolver) downloadFromRecord(ctx context.Context, record *domain.MetadataRecord, chunkID, groupID string) (string, error) {
	if record.FileID == "" {
		return "", nil
	}
	group := record.GroupID
	if group == "" {
		group = groupID
	}
	return r.blobs.Download(ctx, domain.ChunkBlobPath(group, record.FileID, chunkID))
}
