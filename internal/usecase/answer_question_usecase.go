package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"campus-rag/internal/domain"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// AnswerQuestionInput carries one group-scoped question through the
// pipeline.
type AnswerQuestionInput struct {
	GroupID string
	Query   string
}

// AnswerQuestionUsecase runs the full retrieval pipeline: embed the
// question, search the tenant's vector index, resolve hits to chunk
// texts, and generate a grounded answer. It never returns an error:
// every failure path is rendered into the answer text so callers need a
// single handling branch.
type AnswerQuestionUsecase interface {
	Execute(ctx context.Context, input AnswerQuestionInput) *domain.Answer
}

const (
	embedFailureAnswer      = "Error: Could not generate embeddings for your question."
	emptyResponseAnswer     = "Error: Unexpected empty response from the answer service."
	unexpectedFailureAnswer = "An unexpected error occurred while answering your question."
)

type answerQuestionUsecase struct {
	embedder      domain.Embedder
	index         domain.VectorIndex
	resolver      ChunkResolver
	promptBuilder PromptBuilder
	llmClient     domain.LLMClient
	topK          int
	maxTokens     int
	temperature   float64
	logger        *slog.Logger
}

// NewAnswerQuestionUsecase wires together the components of the answering
// pipeline. topK bounds downstream resolution cost versus recall.
func NewAnswerQuestionUsecase(
	embedder domain.Embedder,
	index domain.VectorIndex,
	resolver ChunkResolver,
	promptBuilder PromptBuilder,
	llmClient domain.LLMClient,
	topK, maxTokens int,
	temperature float64,
	logger *slog.Logger,
) AnswerQuestionUsecase {
	return &answerQuestionUsecase{
		embedder:      embedder,
		index:         index,
		resolver:      resolver,
		promptBuilder: promptBuilder,
		llmClient:     llmClient,
		topK:          topK,
		maxTokens:     maxTokens,
		temperature:   temperature,
		logger:        logger,
	}
}

func (u *answerQuestionUsecase) Execute(ctx context.Context, input AnswerQuestionInput) (answer *domain.Answer) {
	requestID := uuid.NewString()
	log := u.logger.With(
		slog.String("request_id", requestID),
		slog.String("group_id", input.GroupID),
	)
	total := time.Now()

	// Nothing below may escape to the caller as a panic or error; the
	// result shape is identical on every path.
	defer func() {
		if rec := recover(); rec != nil {
			log.Error("pipeline_panic", slog.Any("panic", rec))
			answer = &domain.Answer{Text: unexpectedFailureAnswer, Contexts: []domain.ContextItem{}}
		}
	}()

	// Embedding. The only stage whose failure aborts the pipeline.
	embedStart := time.Now()
	embedding, err := u.embedder.Embed(ctx, input.Query)
	if err != nil || len(embedding) == 0 {
		reason := "empty embedding"
		if err != nil {
			reason = err.Error()
		}
		log.Error("embed_failed",
			slog.String("error", reason),
			slog.Duration("elapsed", time.Since(embedStart)),
		)
		return &domain.Answer{Text: embedFailureAnswer, Contexts: []domain.ContextItem{}}
	}
	log.Info("embed_completed",
		slog.Int("dimension", len(embedding)),
		slog.Duration("elapsed", time.Since(embedStart)),
	)

	// Searching. A failed search is indistinguishable from a tenant with
	// no matching content; both degrade to a context-free answer.
	searchStart := time.Now()
	hits, err := u.index.Search(ctx, input.GroupID, embedding, u.topK)
	if err != nil {
		log.Warn("search_failed",
			slog.String("error", err.Error()),
			slog.Duration("elapsed", time.Since(searchStart)),
		)
		hits = nil
	}
	log.Info("search_completed",
		slog.Int("hits", len(hits)),
		slog.Duration("elapsed", time.Since(searchStart)),
	)

	contexts := u.resolveHits(ctx, log, hits, input.GroupID)

	// Generating.
	texts := make([]string, len(contexts))
	for i, c := range contexts {
		texts[i] = c.Text
	}
	prompt := u.promptBuilder.Build(input.Query, texts)

	genStart := time.Now()
	resp, err := u.llmClient.Generate(ctx, prompt, domain.GenerationOptions{
		MaxTokens:   u.maxTokens,
		Temperature: u.temperature,
	})
	if err != nil {
		log.Error("generate_failed",
			slog.String("error", err.Error()),
			slog.Duration("elapsed", time.Since(genStart)),
		)
		return &domain.Answer{
			Text:     fmt.Sprintf("Error generating response: %v", err),
			Contexts: contexts,
		}
	}
	if resp == nil || strings.TrimSpace(resp.Text) == "" {
		log.Error("generate_empty_response", slog.Duration("elapsed", time.Since(genStart)))
		return &domain.Answer{Text: emptyResponseAnswer, Contexts: contexts}
	}
	log.Info("generate_completed",
		slog.Int("answer_chars", len(resp.Text)),
		slog.Duration("elapsed", time.Since(genStart)),
	)

	log.Info("pipeline_completed", slog.Duration("total_elapsed", time.Since(total)))
	return &domain.Answer{Text: strings.TrimSpace(resp.Text), Contexts: contexts}
}

// resolveHits resolves each hit independently and in parallel. A failed
// resolution only drops that hit; the returned contexts keep the original
// hit ordering.
func (u *answerQuestionUsecase) resolveHits(ctx context.Context, log *slog.Logger, hits []domain.VectorHit, groupID string) []domain.ContextItem {
	contexts := []domain.ContextItem{}
	if len(hits) == 0 {
		return contexts
	}

	start := time.Now()
	texts := make([]string, len(hits))
	resolved := make([]bool, len(hits))
	panics := make([]any, len(hits))

	g, gctx := errgroup.WithContext(ctx)
	for i, hit := range hits {
		g.Go(func() error {
			// errgroup lets goroutine panics crash the process; capture
			// here and re-raise after Wait on the caller's goroutine,
			// where the pipeline guard can see it.
			defer func() {
				if rec := recover(); rec != nil {
					panics[i] = rec
				}
			}()
			texts[i], resolved[i] = u.resolver.Resolve(gctx, hit, groupID)
			return nil
		})
	}
	_ = g.Wait()

	for _, rec := range panics {
		if rec != nil {
			panic(rec)
		}
	}

	for i, hit := range hits {
		if !resolved[i] {
			continue
		}
		contexts = append(contexts, domain.ContextItem{
			ChunkID: hit.ID,
			Score:   hit.Score,
			Text:    texts[i],
		})
	}

	log.Info("resolve_completed",
		slog.Int("hits", len(hits)),
		slog.Int("resolved", len(contexts)),
		slog.Duration("elapsed", time.Since(start)),
	)
	return contexts
}
