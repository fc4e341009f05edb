package translate

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/TobiSchelling/MeduzaReader/internal/config"
)

const translatePrompt = `Translate the following %s news text into %s.
Return only the translation, with no commentary, and keep line breaks.`

// OpenAIBackend translates with an OpenAI chat model.
type OpenAIBackend struct {
	Model  string
	apiKey string
	client *openai.Client
}

// NewOpenAIBackend creates a backend reading its API key from
// cfg.APIKeyEnv.
func NewOpenAIBackend(cfg config.OpenAI, timeout time.Duration) *OpenAIBackend {
	if timeout == 0 {
		timeout = 120 * time.Second
	}
	apiKey := os.Getenv(cfg.APIKeyEnv)

	clientCfg := openai.DefaultConfig(apiKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	clientCfg.HTTPClient = &http.Client{Timeout: timeout}

	model := cfg.Model
	if model == "" {
		model = "gpt-4o-mini"
	}
	return &OpenAIBackend{
		Model:  model,
		apiKey: apiKey,
		client: openai.NewClientWithConfig(clientCfg),
	}
}

// IsConfigured checks if the API key is set.
func (o *OpenAIBackend) IsConfigured() bool {
	return o.apiKey != ""
}

// Translate sends one chat completion request.
func (o *OpenAIBackend) Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error) {
	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: o.Model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: fmt.Sprintf(translatePrompt, languageName(sourceLang), languageName(targetLang)),
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: text,
			},
		},
		Temperature: 0.1,
	})
	if err != nil {
		return "", fmt.Errorf("OpenAI API error: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices in OpenAI response")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
