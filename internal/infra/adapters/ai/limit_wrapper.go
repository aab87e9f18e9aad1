package ai

import (
	"context"

	"research-compass/internal/domain/ports/adapter"
)

// Compile-time check
var _ adapter.ModelProvider = (*limitedProvider)(nil)

// limitedProvider caps concurrent in-flight calls to the underlying provider
// with a semaphore. Token counting is local and stays unthrottled.
type limitedProvider struct {
	inner adapter.ModelProvider
	sem   chan struct{}
}

func NewLimitedProvider(inner adapter.ModelProvider, maxConcurrent int) adapter.ModelProvider {
	if maxConcurrent <= 0 {
		return inner
	}
	return &limitedProvider{
		inner: inner,
		sem:   make(chan struct{}, maxConcurrent),
	}
}

func (l *limitedProvider) acquire(ctx context.Context) error {
	select {
	case l.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *limitedProvider) ChatStream(ctx context.Context, messages []adapter.Message, onDelta func(delta string) error) (string, error) {
	if err := l.acquire(ctx); err != nil {
		return "", err
	}
	defer func() { <-l.sem }()
	return l.inner.ChatStream(ctx, messages, onDelta)
}

func (l *limitedProvider) Embed(ctx context.Context, input string) ([]float32, error) {
	if err := l.acquire(ctx); err != nil {
		return nil, err
	}
	defer func() { <-l.sem }()
	return l.inner.Embed(ctx, input)
}

func (l *limitedProvider) Summarize(ctx context.Context, req adapter.SummaryRequest) (adapter.Summary, error) {
	if err := l.acquire(ctx); err != nil {
		return adapter.Summary{}, err
	}
	defer func() { <-l.sem }()
	return l.inner.Summarize(ctx, req)
}

func (l *limitedProvider) SuggestIdeas(ctx context.Context, question string) ([]adapter.IdeaSuggestion, error) {
	if err := l.acquire(ctx); err != nil {
		return nil, err
	}
	defer func() { <-l.sem }()
	return l.inner.SuggestIdeas(ctx, question)
}

func (l *limitedProvider) CountTokens(ctx context.Context, messages []adapter.Message) (int, error) {
	return l.inner.CountTokens(ctx, messages)
}
