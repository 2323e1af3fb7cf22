package usecase

import (
	"fmt"
	"strings"
)

// PromptBuilder composes the grounding prompt sent to the generative model.
type PromptBuilder interface {
	Build(question string, contexts []string) string
}

// NoContextMarker replaces the context block when nothing was resolved, so
// the model can disclose that no files were found.
const NoContextMarker = "No context found."

// GroundedPromptBuilder instructs the model to answer strictly from the
// supplied context and to disclose when context is absent.
type GroundedPromptBuilder struct{}

func NewGroundedPromptBuilder() PromptBuilder {
	return &GroundedPromptBuilder{}
}

func (b *GroundedPromptBuilder) Build(question string, contexts []string) string {
	contextText := NoContextMarker
	contextInfo := "(No file context available)"
	if len(contexts) > 0 {
		contextText = strings.Join(contexts, "\n\n")
		contextInfo = fmt.Sprintf("(%d file chunks)", len(contexts))
	}

	var sb strings.Builder
	sb.WriteString("You are a helpful study assistant. Use the context below to answer the student's question.\n")
	sb.WriteString("If the context is empty or no file chunks were found, try to answer from general knowledge\n")
	sb.WriteString("but clearly mention that you couldn't find specific files to reference.\n\n")
	fmt.Fprintf(&sb, "CONTEXT from Group Files %s:\n%s\n\n", contextInfo, contextText)
	fmt.Fprintf(&sb, "STUDENT QUESTION:\n%s\n\nANSWER:\n", question)
	return sb.String()
}
