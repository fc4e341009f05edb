package translate

import (
	"context"
	"fmt"
	"strings"

	"github.com/TobiSchelling/MeduzaReader/internal/config"
)

// Backend performs a single translation request.
type Backend interface {
	Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error)
}

// NewBackend creates the backend named by cfg.Provider.
func NewBackend(cfg config.Translation) (Backend, error) {
	switch strings.ToLower(cfg.Provider) {
	case "", "google":
		return NewGoogleBackend(cfg.Google.Endpoint, cfg.Timeout), nil
	case "openai":
		b := NewOpenAIBackend(cfg.OpenAI, cfg.Timeout)
		if !b.IsConfigured() {
			return nil, fmt.Errorf("openai translation backend: %s is not set", cfg.OpenAI.APIKeyEnv)
		}
		return b, nil
	case "ollama":
		b := NewOllamaBackend(cfg.Ollama, cfg.Timeout)
		if !b.IsConfigured() {
			return nil, fmt.Errorf("ollama translation backend: model %q is not available at %s", b.Model, b.BaseURL)
		}
		return b, nil
	default:
		return nil, fmt.Errorf("unknown translation provider %q", cfg.Provider)
	}
}

var languageNames = map[string]string{
	"ru": "Russian",
	"ja": "Japanese",
	"en": "English",
	"de": "German",
	"uk": "Ukrainian",
}

func languageName(code string) string {
	if name, ok := languageNames[strings.ToLower(code)]; ok {
		return name
	}
	return code
}
