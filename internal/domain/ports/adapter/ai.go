package adapter

import (
	"context"

	"research-compass/internal/domain/model"
)

// Message represents a chat message.
type Message struct {
	Role    string `json:"role"` // "user", "assistant", "system"
	Content string `json:"content"`
}

// SummaryRequest carries the inputs for a document summary: the first and
// last chunks of extracted text plus the workspace context.
type SummaryRequest struct {
	First  string
	Last   string
	Theme  string
	Intent model.WorkspaceIntent
	Focus  string // name of the primary idea
}

// Summary is the structured output of a summarize call.
type Summary struct {
	Summary        string                   `json:"summary"`
	Recommendation model.ReadRecommendation `json:"readRecommendation"`
}

// IdeaSuggestion is one proposed line of inquiry for a new workspace.
type IdeaSuggestion struct {
	Name        string `json:"path"`
	Description string `json:"description"`
}

// ModelProvider is the port for the LLM provider.
type ModelProvider interface {
	// ChatStream invokes the model in streaming mode. onDelta is called once
	// per incremental content delta, in order; the full assembled text is
	// returned on success. A non-nil error from onDelta aborts the stream.
	ChatStream(ctx context.Context, messages []Message, onDelta func(delta string) error) (string, error)

	// Embed computes a fixed-dimensionality vector for the input text.
	Embed(ctx context.Context, input string) ([]float32, error)

	// Summarize requests a schema-constrained summary + read recommendation.
	Summarize(ctx context.Context, req SummaryRequest) (Summary, error)

	// SuggestIdeas proposes up to three lines of inquiry for a research
	// question (schema-constrained single response).
	SuggestIdeas(ctx context.Context, question string) ([]IdeaSuggestion, error)

	// CountTokens returns prompt tokens for the provided messages
	// (best-effort when exact counting isn't available).
	CountTokens(ctx context.Context, messages []Message) (int, error)
}
