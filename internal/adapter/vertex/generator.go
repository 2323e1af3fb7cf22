package vertex

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

	"golang.org/x/oauth2"
	"golang.org/x/time/rate"

	"campus-rag/internal/domain"
)

// Generator calls a generative publisher model over REST. A client-side
// rate limiter guards the upstream quota shared by all requests.
type Generator struct {
	baseURL string
	model   string
	tokens  oauth2.TokenSource
	client  *http.Client
	limiter *rate.Limiter
	logger  *slog.Logger
}

// NewGenerator constructs a generator. qps caps outgoing generateContent
// calls; zero or negative disables the cap.
func NewGenerator(baseURL, model string, tokens oauth2.TokenSource, client *http.Client, qps float64, logger *slog.Logger) *Generator {
	limiter := rate.NewLimiter(rate.Inf, 1)
	if qps > 0 {
		limiter = rate.NewLimiter(rate.Limit(qps), 1)
	}
	return &Generator{
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		tokens:  tokens,
		client:  client,
		limiter: limiter,
		logger:  logger,
	}
}

type generateRequest struct {
	Contents         []generateContent `json:"contents"`
	GenerationConfig generationConfig  `json:"generationConfig"`
}

type generateContent struct {
	Role  string         `json:"role"`
	Parts []generatePart `json:"parts"`
}

type generatePart struct {
	Text string `json:"text"`
}

type generationConfig struct {
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []generatePart `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

func (g *Generator) Generate(ctx context.Context, prompt string, opts domain.GenerationOptions) (*domain.LLMResponse, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrGenerationFailed, err)
	}

	start := time.Now()
	payload, err := json.Marshal(generateRequest{
		Contents: []generateContent{{
			Role:  "user",
			Parts: []generatePart{{Text: prompt}},
		}},
		GenerationConfig: generationConfig{
			Temperature:     opts.Temperature,
			MaxOutputTokens: opts.MaxTokens,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: marshal request: %v", domain.ErrGenerationFailed, err)
	}

	url := fmt.Sprintf("%s/publishers/google/models/%s:generateContent", g.baseURL, g.model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("%w: create request: %v", domain.ErrGenerationFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")

	token, err := g.tokens.Token()
	if err != nil {
		return nil, fmt.Errorf("%w: fetch token: %v", domain.ErrGenerationFailed, err)
	}
	token.SetAuthHeader(req)

	resp, err := g.client.Do(req)
	if err != nil {
		g.logger.Error("generate_request_failed",
			slog.String("error", err.Error()),
			slog.Duration("elapsed", time.Since(start)),
		)
		return nil, fmt.Errorf("%w: %v", domain.ErrGenerationFailed, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		g.logger.Error("generate_bad_status",
			slog.Int("status", resp.StatusCode),
			slog.String("body", string(body)),
			slog.Duration("elapsed", time.Since(start)),
		)
		return nil, fmt.Errorf("%w: generation endpoint returned %d", domain.ErrGenerationFailed, resp.StatusCode)
	}

	var body generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", domain.ErrGenerationFailed, err)
	}
	if len(body.Candidates) == 0 || len(body.Candidates[0].Content.Parts) == 0 {
		return nil, fmt.Errorf("%w: response carries no candidates", domain.ErrGenerationFailed)
	}

	text := strings.TrimSpace(body.Candidates[0].Content.Parts[0].Text)
	g.logger.Info("generate_completed",
		slog.Int("answer_chars", len(text)),
		slog.Duration("elapsed", time.Since(start)),
	)

	return &domain.LLMResponse{Text: text, Done: true}, nil
}

func (g *Generator) Version() string {
	return g.model
}

var _ domain.LLMClient = (*Generator)(nil)
