package di

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"campus-rag/internal/adapter/docstore"
	"campus-rag/internal/adapter/fsblob"
	"campus-rag/internal/adapter/matching"
	"campus-rag/internal/adapter/objstore"
	"campus-rag/internal/adapter/ollama"
	"campus-rag/internal/adapter/repository"
	"campus-rag/internal/adapter/vertex"
	"campus-rag/internal/domain"
	"campus-rag/internal/infra"
	"campus-rag/internal/infra/auth"
	"campus-rag/internal/infra/config"
	"campus-rag/internal/infra/httpclient"
	"campus-rag/internal/usecase"
)

const (
	vertexAPIHost  = "aiplatform.googleapis.com"
	docstoreAPIURL = "https://firestore.googleapis.com"
	objstoreAPIURL = "https://storage.googleapis.com"
)

// ApplicationComponents holds the wired dependencies of the application.
// One backend profile is selected at startup; the pipeline above the
// port interfaces is identical for every profile.
type ApplicationComponents struct {
	AnswerUsecase usecase.AnswerQuestionUsecase
	UploadStore   domain.BlobStore
}

// NewApplicationComponents wires all dependencies from config. The
// returned cleanup function releases any held resources.
func NewApplicationComponents(ctx context.Context, cfg *config.Config, log *slog.Logger) (*ApplicationComponents, func(), error) {
	switch cfg.Backend {
	case config.BackendGCP:
		return newGCPComponents(ctx, cfg, log)
	case config.BackendLocal:
		return newLocalComponents(ctx, cfg, log)
	default:
		return nil, nil, fmt.Errorf("unknown backend %q", cfg.Backend)
	}
}

func newGCPComponents(ctx context.Context, cfg *config.Config, log *slog.Logger) (*ApplicationComponents, func(), error) {
	tokens, err := auth.NewGoogleTokenSource(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build token source: %w", err)
	}

	// Shared HTTP clients with connection pooling, one per deadline class.
	embedHTTP := httpclient.NewPooledClient(time.Duration(cfg.Vertex.EmbedTimeout) * time.Second)
	generateHTTP := httpclient.NewPooledClient(time.Duration(cfg.Vertex.GenerateTimeout) * time.Second)
	searchHTTP := httpclient.NewPooledClient(time.Duration(cfg.VectorSearch.Timeout) * time.Second)
	docHTTP := httpclient.NewPooledClient(time.Duration(cfg.Docstore.Timeout) * time.Second)
	blobHTTP := httpclient.NewPooledClient(time.Duration(cfg.Blob.Timeout) * time.Second)

	vertexBase := fmt.Sprintf("https://%s-%s/v1/projects/%s/locations/%s",
		cfg.Vertex.Region, vertexAPIHost, cfg.Vertex.ProjectID, cfg.Vertex.Region)

	embedder := vertex.NewEmbedder(vertexBase, cfg.Vertex.EmbeddingModel, tokens, embedHTTP, log)
	generator := vertex.NewGenerator(vertexBase, cfg.Vertex.GenerationModel, tokens, generateHTTP, cfg.Vertex.GenerateQPS, log)
	index := matching.NewIndex(cfg.VectorSearch.EndpointURL, cfg.VectorSearch.DeployedIndexID, tokens, searchHTTP, log)
	metadata := docstore.NewClient(docstoreAPIURL, cfg.Docstore.ProjectID, cfg.Docstore.Database, cfg.Docstore.Collection, tokens, docHTTP, log)
	chunks := objstore.NewClient(objstoreAPIURL, cfg.Blob.ChunksBucket, tokens, blobHTTP, log)
	uploads := objstore.NewClient(objstoreAPIURL, cfg.Blob.UploadsBucket, tokens, blobHTTP, log)

	components := assemble(cfg, log, embedder, index, metadata, chunks, generator, uploads)
	return components, func() {}, nil
}

func newLocalComponents(ctx context.Context, cfg *config.Config, log *slog.Logger) (*ApplicationComponents, func(), error) {
	dsn := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		cfg.DB.User, cfg.DB.Password, cfg.DB.Host, cfg.DB.Port, cfg.DB.Name)
	pool, err := infra.NewPostgresDB(ctx, dsn, infra.PoolConfig{
		MaxConns: cfg.DB.MaxConns,
		MinConns: cfg.DB.MinConns,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to db: %w", err)
	}

	ollamaHTTP := httpclient.NewPooledClient(time.Duration(cfg.Ollama.Timeout) * time.Second)

	embedder := ollama.NewEmbedder(cfg.Ollama.URL, cfg.Ollama.EmbeddingModel, ollamaHTTP, log)
	generator := ollama.NewGenerator(cfg.Ollama.URL, cfg.Ollama.GenerationModel, ollamaHTTP, log)
	index := repository.NewPgVectorIndex(pool)
	metadata := repository.NewMetadataRepository(pool)
	blobs := fsblob.NewStore(cfg.Blob.LocalRoot)

	components := assemble(cfg, log, embedder, index, metadata, blobs, generator, blobs)
	return components, pool.Close, nil
}

func assemble(
	cfg *config.Config,
	log *slog.Logger,
	embedder domain.Embedder,
	index domain.VectorIndex,
	metadata domain.MetadataStore,
	chunks domain.BlobStore,
	generator domain.LLMClient,
	uploads domain.BlobStore,
) *ApplicationComponents {
	resolver := usecase.NewChunkResolver(metadata, chunks, log)
	promptBuilder := usecase.NewGroundedPromptBuilder()
	answerUsecase := usecase.NewAnswerQuestionUsecase(
		embedder, index, resolver, promptBuilder, generator,
		cfg.RAG.TopK, cfg.RAG.MaxOutputTokens, cfg.RAG.Temperature,
		log,
	)

	return &ApplicationComponents{
		AnswerUsecase: answerUsecase,
		UploadStore:   uploads,
	}
}
