package vertex

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"campus-rag/internal/domain"
)

// Embedder calls a text-embedding publisher model over REST.
type Embedder struct {
	baseURL string
	model   string
	tokens  oauth2.TokenSource
	client  *http.Client
	logger  *slog.Logger
}

// NewEmbedder constructs an embedder for the given location base URL,
// e.g. https://us-central1-aiplatform.googleapis.com/v1/projects/p/locations/us-central1.
func NewEmbedder(baseURL, model string, tokens oauth2.TokenSource, client *http.Client, logger *slog.Logger) *Embedder {
	return &Embedder{
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		tokens:  tokens,
		client:  client,
		logger:  logger,
	}
}

type embedRequest struct {
	Instances []embedInstance `json:"instances"`
}

type embedInstance struct {
	Content string `json:"content"`
}

type embedResponse struct {
	Predictions []struct {
		Embeddings struct {
			Values []float32 `json:"values"`
		} `json:"embeddings"`
	} `json:"predictions"`
}

func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: text is empty", domain.ErrEmbeddingFailed)
	}

	start := time.Now()
	e.logger.Info("embed_started",
		slog.Int("chars", len(text)),
		slog.String("model", e.model),
	)

	payload, err := json.Marshal(embedRequest{Instances: []embedInstance{{Content: text}}})
	if err != nil {
		return nil, fmt.Errorf("%w: marshal request: %v", domain.ErrEmbeddingFailed, err)
	}

	url := fmt.Sprintf("%s/publishers/google/models/%s:predict", e.baseURL, e.model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("%w: create request: %v", domain.ErrEmbeddingFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")

	token, err := e.tokens.Token()
	if err != nil {
		return nil, fmt.Errorf("%w: fetch token: %v", domain.ErrEmbeddingFailed, err)
	}
	token.SetAuthHeader(req)

	resp, err := e.client.Do(req)
	if err != nil {
		e.logger.Error("embed_request_failed",
			slog.String("error", err.Error()),
			slog.Duration("elapsed", time.Since(start)),
		)
		return nil, fmt.Errorf("%w: %v", domain.ErrEmbeddingFailed, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		e.logger.Error("embed_bad_status",
			slog.Int("status", resp.StatusCode),
			slog.Duration("elapsed", time.Since(start)),
		)
		return nil, fmt.Errorf("%w: embedding endpoint returned %d", domain.ErrEmbeddingFailed, resp.StatusCode)
	}

	var body embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", domain.ErrEmbeddingFailed, err)
	}
	if len(body.Predictions) == 0 || len(body.Predictions[0].Embeddings.Values) == 0 {
		return nil, fmt.Errorf("%w: response carries no embedding values", domain.ErrEmbeddingFailed)
	}

	values := body.Predictions[0].Embeddings.Values
	e.logger.Info("embed_completed",
		slog.Int("dimension", len(values)),
		slog.Duration("elapsed", time.Since(start)),
	)
	return values, nil
}

func (e *Embedder) Version() string {
	return e.model
}

var _ domain.Embedder = (*Embedder)(nil)
