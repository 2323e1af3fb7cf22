package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"campus-rag/internal/domain"
)

// Embedder calls a local Ollama instance for embeddings. Used by the
// local backend profile.
type Embedder struct {
	baseURL string
	model   string
	client  *http.Client
	logger  *slog.Logger
}

func NewEmbedder(baseURL, model string, client *http.Client, logger *slog.Logger) *Embedder {
	return &Embedder{
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		client:  client,
		logger:  logger,
	}
}

type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: text is empty", domain.ErrEmbeddingFailed)
	}

	start := time.Now()
	payload, err := json.Marshal(embedRequest{Model: e.model, Input: []string{text}})
	if err != nil {
		return nil, fmt.Errorf("%w: marshal request: %v", domain.ErrEmbeddingFailed, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/api/embed", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("%w: create request: %v", domain.ErrEmbeddingFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		e.logger.Error("ollama_embed_failed",
			slog.String("error", err.Error()),
			slog.Duration("elapsed", time.Since(start)),
		)
		return nil, fmt.Errorf("%w: %v", domain.ErrEmbeddingFailed, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: ollama returned %d", domain.ErrEmbeddingFailed, resp.StatusCode)
	}

	var body embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", domain.ErrEmbeddingFailed, err)
	}
	if len(body.Embeddings) == 0 || len(body.Embeddings[0]) == 0 {
		return nil, fmt.Errorf("%w: response carries no embedding values", domain.ErrEmbeddingFailed)
	}

	e.logger.Info("ollama_embed_completed",
		slog.Int("dimension", len(body.Embeddings[0])),
		slog.Duration("elapsed", time.Since(start)),
	)
	return body.Embeddings[0], nil
}

func (e *Embedder) Version() string {
	return e.model
}

var _ domain.Embedder = (*Embedder)(nil)
