package usecase

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGroundedPromptBuilder_NoContexts(t *testing.T) {
	builder := NewGroundedPromptBuilder()

	prompt := builder.Build("what is photosynthesis?", nil)

	assert.Contains(t, prompt, NoContextMarker)
	assert.Contains(t, prompt, "(No file context available)")
	assert.Contains(t, prompt, "STUDENT QUESTION:\nwhat is photosynthesis?")
}

func TestGroundedPromptBuilder_WithContexts(t *testing.T) {
	builder := NewGroundedPromptBuilder()

	prompt := builder.Build("summarize the lecture", []string{"chunk one", "chunk two"})

	assert.Contains(t, prompt, "(2 file chunks)")
	assert.Contains(t, prompt, "chunk one\n\nchunk two")
	assert.NotContains(t, prompt, NoContextMarker)
	assert.Contains(t, prompt, "ANSWER:\n")
}

func TestGroundedPromptBuilder_EmptySliceSameAsNil(t *testing.T) {
	builder := NewGroundedPromptBuilder()

	assert.Equal(t, builder.Build("q", nil), builder.Build("q", []string{}))
}
