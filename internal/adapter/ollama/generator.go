package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"campus-rag/internal/domain"
)

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string                 `json:"model"`
	Messages []chatMessage          `json:"messages"`
	Stream   bool                   `json:"stream"`
	Options  map[string]interface{} `json:"options,omitempty"`
}

type chatResponse struct {
	Message struct {
		Content string `json:"content"`
	} `json:"message"`
	Done bool `json:"done"`
}

// Generator sends prompts to Ollama's chat endpoint. Used by the local
// backend profile.
type Generator struct {
	baseURL string
	model   string
	client  *http.Client
	logger  *slog.Logger
}

func NewGenerator(baseURL, model string, client *http.Client, logger *slog.Logger) *Generator {
	return &Generator{
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		client:  client,
		logger:  logger,
	}
}

func (g *Generator) Generate(ctx context.Context, prompt string, opts domain.GenerationOptions) (*domain.LLMResponse, error) {
	start := time.Now()

	options := map[string]interface{}{
		"temperature": opts.Temperature,
	}
	if opts.MaxTokens > 0 {
		options["num_predict"] = opts.MaxTokens
	}

	payload, err := json.Marshal(chatRequest{
		Model:    g.model,
		Messages: []chatMessage{{Role: "user", Content: prompt}},
		Stream:   false,
		Options:  options,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: marshal chat request: %v", domain.ErrGenerationFailed, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/api/chat", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("%w: create chat request: %v", domain.ErrGenerationFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrGenerationFailed, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("%w: ollama returned %d: %s", domain.ErrGenerationFailed, resp.StatusCode, string(body))
	}

	var chatResp chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return nil, fmt.Errorf("%w: decode chat response: %v", domain.ErrGenerationFailed, err)
	}

	g.logger.Info("ollama_generate_completed",
		slog.Int("answer_chars", len(chatResp.Message.Content)),
		slog.Duration("elapsed", time.Since(start)),
	)

	return &domain.LLMResponse{
		Text: strings.TrimSpace(chatResp.Message.Content),
		Done: chatResp.Done,
	}, nil
}

func (g *Generator) Version() string {
	return g.model
}

var _ domain.LLMClient = (*Generator)(nil)
