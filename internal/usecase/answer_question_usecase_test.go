package usecase

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"campus-rag/internal/domain"
)

type stubEmbedder struct {
	embedding []float32
	err       error
	calls     int
}

func (s *stubEmbedder) Embed(_ context.Context, _ string) ([]float32, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.embedding, nil
}

func (s *stubEmbedder) Version() string { return "stub-embedder" }

type stubVectorIndex struct {
	hitsByGroup map[string][]domain.VectorHit
	err         error
	gotGroupID  string
	gotTopK     int
}

func (s *stubVectorIndex) Search(_ context.Context, groupID string, _ []float32, topK int) ([]domain.VectorHit, error) {
	s.gotGroupID = groupID
	s.gotTopK = topK
	if s.err != nil {
		return nil, s.err
	}
	return s.hitsByGroup[groupID], nil
}

type stubResolver struct {
	mu      sync.Mutex
	texts   map[string]string
	calls   int
	panic   bool
	panicOn string
}

func (s *stubResolver) Resolve(_ context.Context, hit domain.VectorHit, _ string) (string, bool) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	if s.panic || (s.panicOn != "" && s.panicOn == hit.ID) {
		panic("resolver exploded")
	}
	text, ok := s.texts[hit.ID]
	return text, ok
}

type stubLLM struct {
	response  *domain.LLMResponse
	err       error
	gotPrompt string
	gotOpts   domain.GenerationOptions
}

func (s *stubLLM) Generate(_ context.Context, prompt string, opts domain.GenerationOptions) (*domain.LLMResponse, error) {
	s.gotPrompt = prompt
	s.gotOpts = opts
	if s.err != nil {
		return nil, s.err
	}
	return s.response, nil
}

func (s *stubLLM) Version() string { return "stub-llm" }

func newTestUsecase(embedder *stubEmbedder, index *stubVectorIndex, resolver *stubResolver, llm *stubLLM) AnswerQuestionUsecase {
	return NewAnswerQuestionUsecase(
		embedder,
		index,
		resolver,
		NewGroundedPromptBuilder(),
		llm,
		3, 1024, 0.3,
		testLogger(),
	)
}

func TestAnswerQuestion_HappyPath(t *testing.T) {
	embedder := &stubEmbedder{embedding: []float32{0.1, 0.2, 0.3}}
	index := &stubVectorIndex{
		hitsByGroup: map[string][]domain.VectorHit{
			"g1": {
				{ID: "c1", Score: 0.12},
				{ID: "c2", Score: 0.34},
			},
		},
	}
	resolver := &stubResolver{texts: map[string]string{
		"c1": "first chunk",
		"c2": "second chunk",
	}}
	llm := &stubLLM{response: &domain.LLMResponse{Text: "  grounded answer  ", Done: true}}
	uc := newTestUsecase(embedder, index, resolver, llm)

	answer := uc.Execute(context.Background(), AnswerQuestionInput{GroupID: "g1", Query: "explain"})

	require.NotNil(t, answer)
	assert.Equal(t, "grounded answer", answer.Text)
	require.Len(t, answer.Contexts, 2)
	assert.Equal(t, "c1", answer.Contexts[0].ChunkID)
	assert.Equal(t, "first chunk", answer.Contexts[0].Text)
	assert.Equal(t, "c2", answer.Contexts[1].ChunkID)
	assert.Equal(t, 1, embedder.calls)
	assert.Equal(t, "g1", index.gotGroupID)
	assert.Equal(t, 3, index.gotTopK)
	assert.Equal(t, 1024, llm.gotOpts.MaxTokens)
	assert.InDelta(t, 0.3, llm.gotOpts.Temperature, 1e-9)
	assert.Contains(t, llm.gotPrompt, "first chunk")
	assert.Contains(t, llm.gotPrompt, "second chunk")
}

func TestAnswerQuestion_ContextsKeepHitOrder(t *testing.T) {
	embedder := &stubEmbedder{embedding: []float32{1}}
	index := &stubVectorIndex{
		hitsByGroup: map[string][]domain.VectorHit{
			"g1": {
				{ID: "a", Score: 0.1},
				{ID: "b", Score: 0.2},
				{ID: "c", Score: 0.3},
			},
		},
	}
	resolver := &stubResolver{texts: map[string]string{"a": "ta", "b": "tb", "c": "tc"}}
	llm := &stubLLM{response: &domain.LLMResponse{Text: "ok"}}
	uc := newTestUsecase(embedder, index, resolver, llm)

	answer := uc.Execute(context.Background(), AnswerQuestionInput{GroupID: "g1", Query: "q"})

	require.Len(t, answer.Contexts, 3)
	assert.Equal(t, []string{"a", "b", "c"}, []string{
		answer.Contexts[0].ChunkID,
		answer.Contexts[1].ChunkID,
		answer.Contexts[2].ChunkID,
	})
}

func TestAnswerQuestion_EmbeddingFailureIsFatal(t *testing.T) {
	embedder := &stubEmbedder{err: domain.ErrEmbeddingFailed}
	index := &stubVectorIndex{}
	resolver := &stubResolver{}
	llm := &stubLLM{response: &domain.LLMResponse{Text: "should not be reached"}}
	uc := newTestUsecase(embedder, index, resolver, llm)

	answer := uc.Execute(context.Background(), AnswerQuestionInput{GroupID: "g1", Query: "q"})

	require.NotNil(t, answer)
	assert.Equal(t, "Error: Could not generate embeddings for your question.", answer.Text)
	assert.Empty(t, answer.Contexts)
	assert.NotNil(t, answer.Contexts)
	assert.Empty(t, index.gotGroupID)
	assert.Empty(t, llm.gotPrompt)
}

func TestAnswerQuestion_EmptyEmbeddingIsFatal(t *testing.T) {
	embedder := &stubEmbedder{embedding: []float32{}}
	uc := newTestUsecase(embedder, &stubVectorIndex{}, &stubResolver{}, &stubLLM{})

	answer := uc.Execute(context.Background(), AnswerQuestionInput{GroupID: "g1", Query: "q"})

	assert.Equal(t, "Error: Could not generate embeddings for your question.", answer.Text)
}

func TestAnswerQuestion_SearchFailureDegradesToNoContext(t *testing.T) {
	embedder := &stubEmbedder{embedding: []float32{1}}
	index := &stubVectorIndex{err: domain.ErrSearchFailed}
	resolver := &stubResolver{}
	llm := &stubLLM{response: &domain.LLMResponse{Text: "answered without files"}}
	uc := newTestUsecase(embedder, index, resolver, llm)

	answer := uc.Execute(context.Background(), AnswerQuestionInput{GroupID: "g1", Query: "q"})

	assert.Equal(t, "answered without files", answer.Text)
	assert.Empty(t, answer.Contexts)
	assert.Zero(t, resolver.calls)
	assert.Contains(t, llm.gotPrompt, NoContextMarker)
}

func TestAnswerQuestion_ZeroHitsSkipsResolver(t *testing.T) {
	embedder := &stubEmbedder{embedding: []float32{1}}
	index := &stubVectorIndex{hitsByGroup: map[string][]domain.VectorHit{}}
	resolver := &stubResolver{}
	llm := &stubLLM{response: &domain.LLMResponse{Text: "general knowledge answer"}}
	uc := newTestUsecase(embedder, index, resolver, llm)

	answer := uc.Execute(context.Background(), AnswerQuestionInput{GroupID: "empty-group", Query: "q"})

	assert.Equal(t, "general knowledge answer", answer.Text)
	assert.NotNil(t, answer.Contexts)
	assert.Empty(t, answer.Contexts)
	assert.Zero(t, resolver.calls)
	assert.Contains(t, llm.gotPrompt, NoContextMarker)
}

func TestAnswerQuestion_TenantIsolation(t *testing.T) {
	embedder := &stubEmbedder{embedding: []float32{1}}
	index := &stubVectorIndex{
		hitsByGroup: map[string][]domain.VectorHit{
			"g1": {{ID: "g1-chunk", Score: 0.1}},
			"g2": {{ID: "g2-chunk", Score: 0.1}},
		},
	}
	resolver := &stubResolver{texts: map[string]string{
		"g1-chunk": "g1 text",
		"g2-chunk": "g2 text",
	}}
	llm := &stubLLM{response: &domain.LLMResponse{Text: "ok"}}
	uc := newTestUsecase(embedder, index, resolver, llm)

	answer := uc.Execute(context.Background(), AnswerQuestionInput{GroupID: "g1", Query: "q"})

	require.Len(t, answer.Contexts, 1)
	assert.Equal(t, "g1-chunk", answer.Contexts[0].ChunkID)
	assert.NotContains(t, llm.gotPrompt, "g2 text")
}

func TestAnswerQuestion_UnresolvedHitsAreDropped(t *testing.T) {
	embedder := &stubEmbedder{embedding: []float32{1}}
	index := &stubVectorIndex{
		hitsByGroup: map[string][]domain.VectorHit{
			"g1": {
				{ID: "resolvable", Score: 0.1},
				{ID: "orphaned", Score: 0.2},
			},
		},
	}
	resolver := &stubResolver{texts: map[string]string{"resolvable": "still here"}}
	llm := &stubLLM{response: &domain.LLMResponse{Text: "ok"}}
	uc := newTestUsecase(embedder, index, resolver, llm)

	answer := uc.Execute(context.Background(), AnswerQuestionInput{GroupID: "g1", Query: "q"})

	require.Len(t, answer.Contexts, 1)
	assert.Equal(t, "resolvable", answer.Contexts[0].ChunkID)
	assert.Equal(t, 2, resolver.calls)
}

func TestAnswerQuestion_AllResolutionsFailStillAnswers(t *testing.T) {
	embedder := &stubEmbedder{embedding: []float32{1}}
	index := &stubVectorIndex{
		hitsByGroup: map[string][]domain.VectorHit{
			"g1": {{ID: "gone-1"}, {ID: "gone-2"}, {ID: "gone-3"}},
		},
	}
	resolver := &stubResolver{}
	llm := &stubLLM{response: &domain.LLMResponse{Text: "best effort answer"}}
	uc := newTestUsecase(embedder, index, resolver, llm)

	answer := uc.Execute(context.Background(), AnswerQuestionInput{GroupID: "g1", Query: "q"})

	assert.Equal(t, "best effort answer", answer.Text)
	assert.Empty(t, answer.Contexts)
	assert.Equal(t, 3, resolver.calls)
	assert.Contains(t, llm.gotPrompt, NoContextMarker)
}

func TestAnswerQuestion_GenerationFailureKeepsContexts(t *testing.T) {
	embedder := &stubEmbedder{embedding: []float32{1}}
	index := &stubVectorIndex{
		hitsByGroup: map[string][]domain.VectorHit{
			"g1": {{ID: "c1", Score: 0.5}},
		},
	}
	resolver := &stubResolver{texts: map[string]string{"c1": "chunk text"}}
	llm := &stubLLM{err: errors.New("model overloaded")}
	uc := newTestUsecase(embedder, index, resolver, llm)

	answer := uc.Execute(context.Background(), AnswerQuestionInput{GroupID: "g1", Query: "q"})

	assert.True(t, strings.HasPrefix(answer.Text, "Error generating response: "))
	assert.Contains(t, answer.Text, "model overloaded")
	require.Len(t, answer.Contexts, 1)
	assert.Equal(t, "c1", answer.Contexts[0].ChunkID)
}

func TestAnswerQuestion_EmptyGenerationResponse(t *testing.T) {
	embedder := &stubEmbedder{embedding: []float32{1}}
	index := &stubVectorIndex{}
	resolver := &stubResolver{}
	llm := &stubLLM{response: &domain.LLMResponse{Text: "   \n"}}
	uc := newTestUsecase(embedder, index, resolver, llm)

	answer := uc.Execute(context.Background(), AnswerQuestionInput{GroupID: "g1", Query: "q"})

	assert.Equal(t, "Error: Unexpected empty response from the answer service.", answer.Text)
}

func TestAnswerQuestion_PanicIsContained(t *testing.T) {
	embedder := &stubEmbedder{embedding: []float32{1}}
	index := &stubVectorIndex{
		hitsByGroup: map[string][]domain.VectorHit{
			"g1": {{ID: "c1"}},
		},
	}
	resolver := &stubResolver{panic: true}
	llm := &stubLLM{response: &domain.LLMResponse{Text: "unreachable"}}
	uc := newTestUsecase(embedder, index, resolver, llm)

	var answer *domain.Answer
	require.NotPanics(t, func() {
		answer = uc.Execute(context.Background(), AnswerQuestionInput{GroupID: "g1", Query: "q"})
	})

	require.NotNil(t, answer)
	assert.Equal(t, "An unexpected error occurred while answering your question.", answer.Text)
	assert.NotNil(t, answer.Contexts)
	assert.Empty(t, answer.Contexts)
}

func TestAnswerQuestion_PanicInOneResolutionGoroutineIsContained(t *testing.T) {
	embedder := &stubEmbedder{embedding: []float32{1}}
	index := &stubVectorIndex{
		hitsByGroup: map[string][]domain.VectorHit{
			"g1": {{ID: "fine-1"}, {ID: "explosive"}, {ID: "fine-2"}},
		},
	}
	resolver := &stubResolver{
		texts:   map[string]string{"fine-1": "t1", "fine-2": "t2"},
		panicOn: "explosive",
	}
	llm := &stubLLM{response: &domain.LLMResponse{Text: "unreachable"}}
	uc := newTestUsecase(embedder, index, resolver, llm)

	var answer *domain.Answer
	require.NotPanics(t, func() {
		answer = uc.Execute(context.Background(), AnswerQuestionInput{GroupID: "g1", Query: "q"})
	})

	require.NotNil(t, answer)
	assert.Equal(t, "An unexpected error occurred while answering your question.", answer.Text)
	assert.NotNil(t, answer.Contexts)
	assert.Empty(t, answer.Contexts)
	assert.Equal(t, 3, resolver.calls)
}

func TestAnswerQuestion_RepeatedQuestionIsDeterministic(t *testing.T) {
	embedder := &stubEmbedder{embedding: []float32{0.1, 0.2}}
	index := &stubVectorIndex{
		hitsByGroup: map[string][]domain.VectorHit{
			"g1": {
				{ID: "c1", Score: 0.11},
				{ID: "c2", Score: 0.22},
				{ID: "c3", Score: 0.33},
			},
		},
	}
	resolver := &stubResolver{texts: map[string]string{
		"c1": "t1",
		"c2": "t2",
		"c3": "t3",
	}}
	llm := &stubLLM{response: &domain.LLMResponse{Text: "stable answer"}}
	uc := newTestUsecase(embedder, index, resolver, llm)

	input := AnswerQuestionInput{GroupID: "g1", Query: "same question"}
	first := uc.Execute(context.Background(), input)
	firstPrompt := llm.gotPrompt
	second := uc.Execute(context.Background(), input)

	assert.Equal(t, first, second)
	assert.Equal(t, firstPrompt, llm.gotPrompt)
	assert.Equal(t, 2, embedder.calls)
}
