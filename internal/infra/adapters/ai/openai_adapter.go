package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	"github.com/openai/openai-go/v2/shared"
	"github.com/pkoukk/tiktoken-go"

	"research-compass/internal/domain/model"
	"research-compass/internal/domain/ports/adapter"
	"research-compass/internal/infra/metrics"
)

// Compile-time assurance this adapter satisfies the port
var _ adapter.ModelProvider = (*OpenAIAdapter)(nil)

// OpenAIAdapter implements adapter.ModelProvider with the official SDK:
// Chat Completions for chat and structured calls, the embeddings endpoint
// for vectors, and tiktoken for local token counting.
type OpenAIAdapter struct {
	client     openai.Client
	chatModel  string
	embedModel string
	dimensions int
}

func NewOpenAIAdapter(apiKey, baseURL, chatModel, embedModel string, dimensions int) (*OpenAIAdapter, error) {
	if apiKey == "" {
		return nil, errors.New("openai api key empty")
	}
	if chatModel == "" {
		chatModel = "gpt-4o-mini"
	}
	if embedModel == "" {
		embedModel = "text-embedding-3-small"
	}
	if dimensions <= 0 {
		dimensions = 1536
	}
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &OpenAIAdapter{
		client:     openai.NewClient(opts...),
		chatModel:  chatModel,
		embedModel: embedModel,
		dimensions: dimensions,
	}, nil
}

func (o *OpenAIAdapter) ChatStream(ctx context.Context, messages []adapter.Message, onDelta func(delta string) error) (string, error) {
	start := time.Now()
	stream := o.client.Chat.Completions.NewStreaming(ctx, openai.ChatCompletionNewParams{
		Model:    shared.ChatModel(o.chatModel),
		Messages: toOpenAIMessages(messages),
	})
	acc := openai.ChatCompletionAccumulator{}
	for stream.Next() {
		chunk := stream.Current()
		acc.AddChunk(chunk)
		if len(chunk.Choices) == 0 {
			continue
		}
		if delta := chunk.Choices[0].Delta.Content; delta != "" {
			if err := onDelta(delta); err != nil {
				_ = stream.Close()
				return "", err
			}
		}
	}
	if err := stream.Err(); err != nil {
		metrics.ObserveAICall("openai", "chat", int(time.Since(start).Milliseconds()), false)
		return "", fmt.Errorf("openai stream: %w", err)
	}
	metrics.ObserveAICall("openai", "chat", int(time.Since(start).Milliseconds()), true)
	if len(acc.Choices) == 0 {
		return "", errors.New("openai: no choices in stream")
	}
	return acc.Choices[0].Message.Content, nil
}

func (o *OpenAIAdapter) Embed(ctx context.Context, input string) ([]float32, error) {
	start := time.Now()
	resp, err := o.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Model:      openai.EmbeddingModel(o.embedModel),
		Input:      openai.EmbeddingNewParamsInputUnion{OfString: openai.String(input)},
		Dimensions: openai.Int(int64(o.dimensions)),
	})
	if err != nil {
		metrics.ObserveAICall("openai", "embed", int(time.Since(start).Milliseconds()), false)
		return nil, fmt.Errorf("openai embeddings: %w", err)
	}
	metrics.ObserveAICall("openai", "embed", int(time.Since(start).Milliseconds()), true)
	if len(resp.Data) == 0 {
		return nil, errors.New("openai: empty embedding response")
	}
	raw := resp.Data[0].Embedding
	vec := make([]float32, len(raw))
	for i, v := range raw {
		vec[i] = float32(v)
	}
	return vec, nil
}

func (o *OpenAIAdapter) Summarize(ctx context.Context, req adapter.SummaryRequest) (adapter.Summary, error) {
	raw, err := o.structured(ctx, "resource_summary", summarySchema(), []adapter.Message{
		{Role: "system", Content: summaryPrompt(req)},
	})
	if err != nil {
		return adapter.Summary{}, err
	}
	var out summaryResult
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return adapter.Summary{}, fmt.Errorf("decode summary: %w", err)
	}
	return adapter.Summary{
		Summary:        out.Summary,
		Recommendation: model.ReadRecommendation(out.ReadRecommendation),
	}, nil
}

func (o *OpenAIAdapter) SuggestIdeas(ctx context.Context, question string) ([]adapter.IdeaSuggestion, error) {
	raw, err := o.structured(ctx, "idea", ideasSchema(), []adapter.Message{
		{Role: "system", Content: ideasSystemPrompt},
		{Role: "user", Content: ideasUserPrompt(question)},
	})
	if err != nil {
		return nil, err
	}
	var out ideasResult
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, fmt.Errorf("decode ideas: %w", err)
	}
	suggestions := make([]adapter.IdeaSuggestion, 0, len(out.Ideas))
	for _, idea := range out.Ideas {
		suggestions = append(suggestions, adapter.IdeaSuggestion{Name: idea.Path, Description: idea.Description})
	}
	return suggestions, nil
}

// CountTokens counts locally with tiktoken; no network round-trip.
func (o *OpenAIAdapter) CountTokens(_ context.Context, messages []adapter.Message) (int, error) {
	enc, err := tiktoken.EncodingForModel(o.chatModel)
	if err != nil {
		if enc, err = tiktoken.GetEncoding("o200k_base"); err != nil {
			return 0, fmt.Errorf("tiktoken encoding: %w", err)
		}
	}
	total := 0
	for _, m := range messages {
		// 4 covers the per-message framing tokens of the chat format.
		total += len(enc.Encode(m.Content, nil, nil)) + 4
	}
	return total, nil
}

func (o *OpenAIAdapter) structured(ctx context.Context, name string, schema map[string]any, messages []adapter.Message) (string, error) {
	start := time.Now()
	resp, err := o.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:    shared.ChatModel(o.chatModel),
		Messages: toOpenAIMessages(messages),
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &shared.ResponseFormatJSONSchemaParam{
				JSONSchema: shared.ResponseFormatJSONSchemaJSONSchemaParam{
					Name:   name,
					Schema: schema,
					Strict: openai.Bool(true),
				},
			},
		},
	})
	if err != nil {
		metrics.ObserveAICall("openai", name, int(time.Since(start).Milliseconds()), false)
		return "", fmt.Errorf("openai chat: %w", err)
	}
	metrics.ObserveAICall("openai", name, int(time.Since(start).Milliseconds()), true)
	if len(resp.Choices) == 0 {
		return "", errors.New("openai: no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

func toOpenAIMessages(messages []adapter.Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case "system":
			out = append(out, openai.SystemMessage(m.Content))
		case "assistant":
			out = append(out, openai.AssistantMessage(m.Content))
		default:
			out = append(out, openai.UserMessage(m.Content))
		}
	}
	return out
}
