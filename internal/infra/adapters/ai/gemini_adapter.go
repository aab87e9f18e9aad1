package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"research-compass/internal/domain/model"
	"research-compass/internal/domain/ports/adapter"
)

var _ adapter.ModelProvider = (*GeminiAdapter)(nil)

// GeminiAdapter implements adapter.ModelProvider using the official SDK.
// Structured calls use response schemas; embeddings use the Gemini embedding
// model truncated to the configured dimensionality.
type GeminiAdapter struct {
	client     *genai.Client
	chatModel  string
	embedModel string
	dimensions int
	maxOut     int
}

func NewGeminiAdapter(ctx context.Context, apiKey, baseURL, chatModel, embedModel string, dimensions, maxOut int) (*GeminiAdapter, error) {
	if apiKey == "" {
		return nil, errors.New("gemini: empty api key")
	}
	if chatModel == "" {
		chatModel = "gemini-2.0-flash"
	}
	if embedModel == "" {
		embedModel = "text-embedding-004"
	}
	if dimensions <= 0 {
		dimensions = 1536
	}
	c, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{
			BaseURL: baseURL,
		},
	})
	if err != nil {
		return nil, err
	}
	return &GeminiAdapter{
		client:     c,
		chatModel:  chatModel,
		embedModel: embedModel,
		dimensions: dimensions,
		maxOut:     maxOut,
	}, nil
}

func (g *GeminiAdapter) ChatStream(ctx context.Context, messages []adapter.Message, onDelta func(delta string) error) (string, error) {
	contents, cfg := g.toRequest(messages)
	var full strings.Builder
	for resp, err := range g.client.Models.GenerateContentStream(ctx, g.chatModel, contents, cfg) {
		if err != nil {
			return "", fmt.Errorf("gemini stream: %w", err)
		}
		delta := resp.Text()
		if delta == "" {
			continue
		}
		full.WriteString(delta)
		if err := onDelta(delta); err != nil {
			return "", err
		}
	}
	return full.String(), nil
}

func (g *GeminiAdapter) Embed(ctx context.Context, input string) ([]float32, error) {
	dims := int32(g.dimensions)
	resp, err := g.client.Models.EmbedContent(ctx, g.embedModel,
		[]*genai.Content{{Parts: []*genai.Part{{Text: input}}}},
		&genai.EmbedContentConfig{OutputDimensionality: &dims})
	if err != nil {
		return nil, fmt.Errorf("gemini embed: %w", err)
	}
	if len(resp.Embeddings) == 0 {
		return nil, errors.New("gemini: empty embedding response")
	}
	return resp.Embeddings[0].Values, nil
}

func (g *GeminiAdapter) Summarize(ctx context.Context, req adapter.SummaryRequest) (adapter.Summary, error) {
	raw, err := g.structured(ctx, summaryPrompt(req), geminiSummarySchema())
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

func (g *GeminiAdapter) SuggestIdeas(ctx context.Context, question string) ([]adapter.IdeaSuggestion, error) {
	prompt := ideasSystemPrompt + "\n\n" + ideasUserPrompt(question)
	raw, err := g.structured(ctx, prompt, geminiIdeasSchema())
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

func (g *GeminiAdapter) CountTokens(ctx context.Context, messages []adapter.Message) (int, error) {
	contents, _ := g.toRequest(messages)
	resp, err := g.client.Models.CountTokens(ctx, g.chatModel, contents, nil)
	if err != nil {
		return 0, err
	}
	return int(resp.TotalTokens), nil
}

func (g *GeminiAdapter) structured(ctx context.Context, prompt string, schema *genai.Schema) (string, error) {
	resp, err := g.client.Models.GenerateContent(ctx, g.chatModel,
		[]*genai.Content{{Role: genai.RoleUser, Parts: []*genai.Part{{Text: prompt}}}},
		&genai.GenerateContentConfig{
			ResponseMIMEType: "application/json",
			ResponseSchema:   schema,
		})
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}
	text := resp.Text()
	if text == "" {
		return "", errors.New("gemini: empty structured response")
	}
	return text, nil
}

// toRequest splits system messages into the system instruction and maps the
// rest onto Gemini's user/model roles.
func (g *GeminiAdapter) toRequest(messages []adapter.Message) ([]*genai.Content, *genai.GenerateContentConfig) {
	cfg := &genai.GenerateContentConfig{}
	if g.maxOut > 0 {
		cfg.MaxOutputTokens = int32(g.maxOut)
	}
	contents := make([]*genai.Content, 0, len(messages))
	for _, m := range messages {
		switch strings.ToLower(m.Role) {
		case "system":
			cfg.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: m.Content}}}
		case "assistant", "model":
			contents = append(contents, &genai.Content{Role: genai.RoleModel, Parts: []*genai.Part{{Text: m.Content}}})
		default:
			contents = append(contents, &genai.Content{Role: genai.RoleUser, Parts: []*genai.Part{{Text: m.Content}}})
		}
	}
	return contents, cfg
}

func geminiSummarySchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"summary": {Type: genai.TypeString},
			"readRecommendation": {
				Type: genai.TypeString,
				Enum: []string{"READ", "SKIM", "SKIP"},
			},
		},
		Required: []string{"summary", "readRecommendation"},
	}
}

func geminiIdeasSchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"ideas": {
				Type: genai.TypeArray,
				Items: &genai.Schema{
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"path":        {Type: genai.TypeString},
						"description": {Type: genai.TypeString},
					},
					Required: []string{"path"},
				},
			},
		},
		Required: []string{"ideas"},
	}
}
