package enrichment

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// Summarizer produces a one-line summary of a post for new-post
// notifications. Implementations must be safe for concurrent use.
type Summarizer interface {
	Summarize(ctx context.Context, text string) (string, error)
}

// OpenAISummarizer summarizes posts with a chat-completion call.
type OpenAISummarizer struct {
	client *openai.Client
	model  string
	logger *slog.Logger
}

// NewOpenAISummarizer creates an OpenAI-backed summarizer.
func NewOpenAISummarizer(apiKey, model string, logger *slog.Logger) *OpenAISummarizer {
	return &OpenAISummarizer{
		client: openai.NewClient(apiKey),
		model:  model,
		logger: logger,
	}
}

const summaryPrompt = "Summarize the following social media post in one short sentence. Reply with the sentence only."

// Summarize asks the model for a one-sentence digest of the post text.
func (s *OpenAISummarizer) Summarize(ctx context.Context, text string) (string, error) {
	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       s.model,
		Temperature: 0.3,
		MaxTokens:   60,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: summaryPrompt},
			{Role: openai.ChatMessageRoleUser, Content: text},
		},
	})
	if err != nil {
		return "", fmt.Errorf("summarize post: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("summarize post: empty completion")
	}

	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// MockSummarizer provides rule-based summaries for tests and for running
// without an API key wired in tests.
type MockSummarizer struct{}

// NewMockSummarizer creates a summarizer that needs no network access.
func NewMockSummarizer() *MockSummarizer {
	return &MockSummarizer{}
}

// Summarize truncates the post to its first sentence, capped at 100 runes.
func (m *MockSummarizer) Summarize(_ context.Context, text string) (string, error) {
	text = strings.TrimSpace(text)
	if idx := strings.IndexAny(text, ".!?\n"); idx > 0 {
		text = text[:idx+1]
	}

	runes := []rune(text)
	if len(runes) > 100 {
		text = string(runes[:100])
	}
	return strings.TrimSpace(text), nil
}
