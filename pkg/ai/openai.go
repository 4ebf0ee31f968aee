package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIService implements SuggestionService against any OpenAI-compatible
// chat completion endpoint.
type OpenAIService struct {
	client *openai.Client
	model  string
}

// NewOpenAIService creates a new advisory client. baseURL is optional and
// allows pointing at a compatible local or proxy endpoint.
func NewOpenAIService(apiKey, baseURL, model string) *OpenAIService {
	if model == "" {
		model = openai.GPT4oMini
	}

	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}

	return &OpenAIService{
		client: openai.NewClientWithConfig(config),
		model:  model,
	}
}

const suggestionSystemPrompt = `You are an email follow-up assistant. Given an email that the user has decided to snooze, pick the best time for it to resurface in their queue.

Rules:
- Higher priority means a sooner resurfacing time.
- Respect the user's working hours when asked to; never suggest a time in the past.
- Offer 1-3 alternative times around the main suggestion.

Reply with ONLY a JSON object, no other text:
{"resume_at": "<RFC3339 timestamp>", "reasoning": "<one sentence>", "alternatives": ["<RFC3339>", ...], "confidence": <0.0-1.0>}`

// SuggestSnoozeTime implements SuggestionService
func (s *OpenAIService) SuggestSnoozeTime(ctx context.Context, req SuggestionRequest) (*SuggestionResult, error) {
	userMsg := fmt.Sprintf(`Current time: %s
Priority: %s
Category: %s
Sender: %s
Subject: %s
Snippet: %s
Working hours only: %v (%02d:00-%02d:00 %s)`,
		req.Now.Format(time.RFC3339), req.Priority, req.Category, req.Sender,
		req.Subject, req.Snippet, req.WorkingHoursOnly,
		req.WorkStartHour, req.WorkEndHour, req.Timezone)

	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: s.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: suggestionSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userMsg},
		},
		Temperature: 0.2,
		MaxTokens:   200,
	})
	if err != nil {
		return nil, fmt.Errorf("suggestion completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("suggestion completion: no response choices")
	}

	return parseSuggestion(resp.Choices[0].Message.Content, req.Now)
}

// parseSuggestion extracts the JSON object from the model output and
// validates it into a SuggestionResult.
func parseSuggestion(text string, now time.Time) (*SuggestionResult, error) {
	text = strings.TrimSpace(text)
	if start, end := strings.Index(text, "{"), strings.LastIndex(text, "}"); start != -1 && end > start {
		text = text[start : end+1]
	}

	var raw struct {
		ResumeAt     string   `json:"resume_at"`
		Reasoning    string   `json:"reasoning"`
		Alternatives []string `json:"alternatives"`
		Confidence   float64  `json:"confidence"`
	}
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return nil, fmt.Errorf("failed to parse suggestion JSON: %w", err)
	}

	resumeAt, err := time.Parse(time.RFC3339, raw.ResumeAt)
	if err != nil {
		return nil, fmt.Errorf("failed to parse resume_at %q: %w", raw.ResumeAt, err)
	}
	if !resumeAt.After(now) {
		return nil, fmt.Errorf("suggested time %v is not in the future", resumeAt)
	}

	result := &SuggestionResult{
		Time:       resumeAt,
		Reasoning:  strings.TrimSpace(raw.Reasoning),
		Confidence: raw.Confidence,
	}
	if result.Reasoning == "" {
		result.Reasoning = "suggested by advisory backend"
	}
	if result.Confidence <= 0 || result.Confidence > 1 {
		result.Confidence = 0.6
	}
	for _, alt := range raw.Alternatives {
		if len(result.Alternatives) == 3 {
			break
		}
		if t, err := time.Parse(time.RFC3339, alt); err == nil && t.After(now) {
			result.Alternatives = append(result.Alternatives, t)
		}
	}
	return result, nil
}
