package translate

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultGoogleEndpoint = "https://translate.googleapis.com/translate_a/single"

// GoogleBackend calls the public Google Translate web endpoint.
type GoogleBackend struct {
	endpoint string
	client   *http.Client
}

// NewGoogleBackend creates a backend for endpoint.
func NewGoogleBackend(endpoint string, timeout time.Duration) *GoogleBackend {
	if endpoint == "" {
		endpoint = defaultGoogleEndpoint
	}
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &GoogleBackend{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
	}
}

// Translate sends text in the request body so long chunks do not hit URL
// length limits.
func (g *GoogleBackend) Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error) {
	params := url.Values{
		"client": {"gtx"},
		"sl":     {sourceLang},
		"tl":     {targetLang},
		"dt":     {"t"},
	}
	form := url.Values{"q": {text}}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint+"?"+params.Encode(), strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded;charset=utf-8")

	resp, err := g.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("google translate error: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("google translate returned %d: %s", resp.StatusCode, string(respBody))
	}

	var payload []any
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("decoding response: %w", err)
	}
	return parseGoogleSegments(payload)
}

// parseGoogleSegments joins the translated segments of a response shaped
// like [[["translated","original",...], ...], ...].
func parseGoogleSegments(payload []any) (string, error) {
	if len(payload) == 0 {
		return "", fmt.Errorf("empty google translate response")
	}
	segments, ok := payload[0].([]any)
	if !ok {
		return "", fmt.Errorf("unexpected google translate response shape")
	}

	var b strings.Builder
	for _, seg := range segments {
		parts, ok := seg.([]any)
		if !ok || len(parts) == 0 {
			continue
		}
		if s, ok := parts[0].(string); ok {
			b.WriteString(s)
		}
	}
	return b.String(), nil
}
