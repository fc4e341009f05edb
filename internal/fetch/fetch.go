package fetch

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
	"golang.org/x/net/html/charset"

	"github.com/TobiSchelling/MeduzaReader/internal/config"
	"github.com/TobiSchelling/MeduzaReader/internal/logging"
)

const (
	// PlaceholderExtractionFailed replaces the body when the page was
	// fetched but no text could be extracted from it.
	PlaceholderExtractionFailed = "article body extraction failed"

	// PlaceholderFetchError prefixes the cause when the page could not be
	// fetched or parsed.
	PlaceholderFetchError = "article fetch error: "

	maxBodyBytes = 10 << 20
)

// IsPlaceholder reports whether content is one of the retriever's failure
// placeholders rather than extracted text.
func IsPlaceholder(content string) bool {
	return content == PlaceholderExtractionFailed || strings.HasPrefix(content, PlaceholderFetchError)
}

// Retriever fetches article pages and extracts their body text.
type Retriever struct {
	client      *http.Client
	userAgent   string
	selectors   []string
	minLength   int
	readability bool
}

// NewRetriever creates a retriever from cfg.
func NewRetriever(cfg config.Fetch) *Retriever {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	selectors := cfg.Selectors
	if len(selectors) == 0 {
		selectors = config.DefaultSelectors
	}
	minLength := cfg.MinLength
	if minLength <= 0 {
		minLength = 100
	}
	return &Retriever{
		client: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return http.ErrUseLastResponse
				}
				return nil
			},
		},
		userAgent:   cfg.UserAgent,
		selectors:   selectors,
		minLength:   minLength,
		readability: cfg.Readability,
	}
}

// FetchContent returns the body text of the article at link. It never
// fails: on any error a placeholder string is returned instead.
func (r *Retriever) FetchContent(ctx context.Context, link string) string {
	logging.Debugf("Fetching article content: %s", link)

	body, err := r.get(ctx, link)
	if err != nil {
		logging.Warnf("Failed to fetch %s: %v", link, err)
		return PlaceholderFetchError + err.Error()
	}

	content, err := r.extract(body, link)
	if err != nil {
		logging.Warnf("Failed to parse %s: %v", link, err)
		return PlaceholderFetchError + err.Error()
	}
	if content == "" {
		logging.Warnf("No extractable content from: %s", link)
		return PlaceholderExtractionFailed
	}
	if !utf8.ValidString(content) {
		logging.Warnf("Extracted content of %s is not valid UTF-8", link)
		return PlaceholderExtractionFailed
	}
	return content
}

func (r *Retriever) get(ctx context.Context, link string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	if r.userAgent != "" {
		req.Header.Set("User-Agent", r.userAgent)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, &httpError{code: resp.StatusCode}
	}

	// Decoded to UTF-8 using the Content-Type charset, a BOM, or a <meta> tag.
	decoded, err := charset.NewReader(io.LimitReader(resp.Body, maxBodyBytes), resp.Header.Get("Content-Type"))
	if err != nil {
		return nil, fmt.Errorf("detecting charset: %w", err)
	}
	body, err := io.ReadAll(decoded)
	if err != nil {
		return nil, fmt.Errorf("reading body: %w", err)
	}
	return body, nil
}

// extract applies the extraction policy: configured selectors first, then
// readability when enabled, then every <p> on the page.
func (r *Retriever) extract(body []byte, link string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", err
	}

	for _, selector := range r.selectors {
		match := doc.Find(selector).First()
		if match.Length() == 0 {
			continue
		}
		if text := selectionText(match); r.longEnough(text) {
			return text, nil
		}
	}

	if r.readability {
		if text := readabilityText(body, link); r.longEnough(text) {
			return text, nil
		}
	}

	return joinTrimmed(doc.Find("p")), nil
}

func (r *Retriever) longEnough(text string) bool {
	return utf8.RuneCountInString(text) > r.minLength
}

// selectionText collects the text of the block-level descendants of sel,
// one per line. A match without such descendants contributes its own text.
func selectionText(sel *goquery.Selection) string {
	blocks := sel.Find("p, div, span")
	if blocks.Length() == 0 {
		return strings.TrimSpace(sel.Text())
	}
	return joinTrimmed(blocks)
}

func joinTrimmed(sel *goquery.Selection) string {
	var lines []string
	sel.Each(func(_ int, s *goquery.Selection) {
		if text := strings.TrimSpace(s.Text()); text != "" {
			lines = append(lines, text)
		}
	})
	return strings.Join(lines, "\n")
}

func readabilityText(body []byte, link string) string {
	parsedURL, _ := url.Parse(link)
	parsed, err := readability.FromReader(bytes.NewReader(body), parsedURL)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(parsed.TextContent)
}

type httpError struct {
	code int
}

func (e *httpError) Error() string {
	return fmt.Sprintf("HTTP %d %s", e.code, http.StatusText(e.code))
}
