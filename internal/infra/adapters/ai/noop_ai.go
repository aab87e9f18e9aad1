package ai

import (
	"context"
	"strings"
	"time"

	"research-compass/internal/domain/model"
	"research-compass/internal/domain/ports/adapter"
)

var _ adapter.ModelProvider = (*NoopProvider)(nil)

// NoopProvider implements adapter.ModelProvider for local/dev runs without a
// real API key. Responses are canned and streamed word by word.
type NoopProvider struct{}

func NewNoopProvider() *NoopProvider {
	return &NoopProvider{}
}

func (n *NoopProvider) ChatStream(ctx context.Context, messages []adapter.Message, onDelta func(delta string) error) (string, error) {
	reply := "This is a canned response from the noop provider."
	var out strings.Builder
	for i, word := range strings.Fields(reply) {
		select {
		case <-time.After(10 * time.Millisecond):
		case <-ctx.Done():
			return "", ctx.Err()
		}
		if i > 0 {
			word = " " + word
		}
		out.WriteString(word)
		if err := onDelta(word); err != nil {
			return "", err
		}
	}
	return out.String(), nil
}

func (n *NoopProvider) Embed(ctx context.Context, input string) ([]float32, error) {
	vec := make([]float32, 1536)
	for i := range vec {
		vec[i] = float32(len(input)%7) / 7
	}
	return vec, nil
}

func (n *NoopProvider) Summarize(ctx context.Context, req adapter.SummaryRequest) (adapter.Summary, error) {
	return adapter.Summary{
		Summary:        "Placeholder summary for " + req.Theme + ".",
		Recommendation: model.RecommendationSkim,
	}, nil
}

func (n *NoopProvider) SuggestIdeas(ctx context.Context, question string) ([]adapter.IdeaSuggestion, error) {
	return []adapter.IdeaSuggestion{
		{Name: "Survey existing literature", Description: "Map what is already known about the question."},
		{Name: "Identify measurable variables", Description: "Pin down what can actually be observed."},
		{Name: "Compare competing explanations"},
	}, nil
}

func (n *NoopProvider) CountTokens(ctx context.Context, messages []adapter.Message) (int, error) {
	total := 0
	for _, m := range messages {
		total += len(strings.Fields(m.Content))
	}
	return total, nil
}
