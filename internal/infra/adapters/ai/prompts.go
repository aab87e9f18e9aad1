package ai

import (
	"fmt"
	"strings"

	"research-compass/internal/domain/ports/adapter"
)

// Prompt builders and response schemas shared by the provider adapters. Both
// providers receive identical instructions so swapping providers does not
// change product behavior.

func summaryPrompt(req adapter.SummaryRequest) string {
	return fmt.Sprintf(`You are a research assistant, assisting the user in their research on a given "research question". The user has found a paper, article or other document that they think is relevant to their research, and need your help to:
1. Summarize (in about 200 words) the document using the first and last chunks of text extracted from the document,
2. Determine a "read recommendation" for the user, based on the summary you have provided. You can recommend that the user read the document, skim it, or skip it entirely.

The following information is provided to give you more context on the user's research question, intent (a user may want to "research" the topic or "learn" more about it - think researcher vs. student), and current focus-area pertaining to the research question.

Some more guidelines for your responses:
1. Please *do not* use Markdown to format the summary or read recommendation!
2. Please be very objective while considering your recommendation to read, skim, or skip the document. Consider the user's research question, intent, and current focus area while making your recommendation. It is possible that the document is not relevant to the user's research question, and in that case, you should recommend skipping it.

---
Research question: %s
Research intent: %s
Current focus area: %s
First and last chunks of text extracted from the document:
---
%s
%s
---
`, req.Theme, strings.ToLower(string(req.Intent)), req.Focus, req.First, req.Last)
}

const ideasSystemPrompt = `Functioning as a research assistant, your task is to help the user organize their research effort by understanding the "research question", and suggesting UP TO 3 "ideas" that the user can explore. An "idea" is a "way of looking at the problem statement," and may include:
- potential causes of the problem,
- potential solutions to the problem,
- concepts, theories, or other ideas that may be relevant to the problem statement.

For example, if the research question is "What are the best ways to extract value from small datasets for classification tasks?" - you might suggest:
- Data centric augmentation techniques and synthetic data generation,
- Algorithmic bias-variance adaptations for small data,
- Cross-Domain Transfer and Semi-Supervised Learning for Small Data Classification.

Please keep your suggestions concise and to the point; use the ` + "`description`" + ` field to provide a brief explanation of the pathway IF REQUIRED. Additionally, please DO NOT include numbering in your suggestions - they will be presented as cards to the user, which the user will then be able to select from.`

func ideasUserPrompt(question string) string {
	return "The user provided the following research question: " + question
}

func summarySchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"summary": map[string]any{"type": "string"},
			"readRecommendation": map[string]any{
				"type": "string",
				"enum": []string{"READ", "SKIM", "SKIP"},
			},
		},
		"required":             []string{"summary", "readRecommendation"},
		"additionalProperties": false,
	}
}

func ideasSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"ideas": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"path":        map[string]any{"type": "string"},
						"description": map[string]any{"type": []string{"string", "null"}},
					},
					"required":             []string{"path", "description"},
					"additionalProperties": false,
				},
			},
		},
		"required":             []string{"ideas"},
		"additionalProperties": false,
	}
}

// summaryResult and ideasResult mirror the schemas above for decoding.
type summaryResult struct {
	Summary            string `json:"summary"`
	ReadRecommendation string `json:"readRecommendation"`
}

type ideasResult struct {
	Ideas []struct {
		Path        string `json:"path"`
		Description string `json:"description"`
	} `json:"ideas"`
}
