package translate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/time/rate"

	"github.com/TobiSchelling/MeduzaReader/internal/article"
	"github.com/TobiSchelling/MeduzaReader/internal/config"
	"github.com/TobiSchelling/MeduzaReader/internal/fetch"
	"github.com/TobiSchelling/MeduzaReader/internal/logging"
)

var (
	// ErrMalformedInput means the article cannot be translated at all.
	ErrMalformedInput = errors.New("malformed input")

	// ErrEmptyResult means the backend answered with no text.
	ErrEmptyResult = errors.New("empty translation result")
)

// Translator translates text between the configured languages, chunking
// long input and spacing out backend requests.
type Translator struct {
	backend    Backend
	sourceLang string
	targetLang string
	chunkSize  int
	separator  string
	dropFailed bool
	limiter    *rate.Limiter
}

// New creates a Translator.
func New(backend Backend, cfg config.Translation) *Translator {
	chunkSize := cfg.ChunkSize
	if chunkSize <= 0 {
		chunkSize = 4000
	}

	limit := rate.Inf
	if cfg.Delay > 0 {
		limit = rate.Every(cfg.Delay)
	}

	return &Translator{
		backend:    backend,
		sourceLang: cfg.SourceLang,
		targetLang: cfg.TargetLang,
		chunkSize:  chunkSize,
		separator:  cfg.ChunkSeparator,
		dropFailed: cfg.ChunkFailure == config.ChunkFailureDrop,
		limiter:    rate.NewLimiter(limit, 1),
	}
}

// Translate translates text from sourceLang to targetLang. Blank input
// returns "" without contacting the backend. Text longer than the chunk
// size is split and each chunk is translated on its own; a failed chunk
// is either kept untranslated or dropped, per configuration. An error is
// returned only when nothing could be translated.
func (t *Translator) Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", nil
	}

	chunks := SplitChunks(text, t.chunkSize)
	if len(chunks) == 1 {
		return t.request(ctx, text, sourceLang, targetLang)
	}

	logging.Debugf("Translating %d chunks (%d chars)", len(chunks), utf8.RuneCountInString(text))
	translated := make([]string, 0, len(chunks))
	failed := 0
	for i, chunk := range chunks {
		out, err := t.request(ctx, chunk, sourceLang, targetLang)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return "", ctxErr
			}
			failed++
			if t.dropFailed {
				logging.Warnf("Chunk %d/%d failed to translate, dropping it: %v", i+1, len(chunks), err)
				continue
			}
			logging.Warnf("Chunk %d/%d failed to translate, keeping original text: %v", i+1, len(chunks), err)
			out = chunk
		}
		translated = append(translated, out)
	}

	if failed == len(chunks) {
		return "", fmt.Errorf("all %d chunks failed to translate", len(chunks))
	}
	return strings.Join(translated, t.separator), nil
}

func (t *Translator) request(ctx context.Context, text, sourceLang, targetLang string) (string, error) {
	if err := t.limiter.Wait(ctx); err != nil {
		return "", err
	}
	out, err := t.backend.Translate(ctx, text, sourceLang, targetLang)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(out) == "" {
		return "", ErrEmptyResult
	}
	return out, nil
}

// TranslateArticle translates the title, teaser and body of an article independently.
// A field whose translation fails is left nil. An error means the article
// as a whole could not be processed and should be skipped.
func (t *Translator) TranslateArticle(ctx context.Context, a article.Enriched) (out *article.Translated, err error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !utf8.ValidString(a.Title) || !utf8.ValidString(a.TeaserSummary) || !utf8.ValidString(a.FullContent) {
		return nil, fmt.Errorf("%w: invalid UTF-8 in %s", ErrMalformedInput, a.Link)
	}

	defer func() {
		if r := recover(); r != nil {
			out = nil
			err = fmt.Errorf("translating %s: backend panic: %v", a.Link, r)
		}
	}()

	tr := &article.Translated{Enriched: a}
	tr.TranslatedTitle = t.field(ctx, "title", a.Link, a.Title)
	tr.TranslatedSummary = t.field(ctx, "summary", a.Link, a.TeaserSummary)
	if !fetch.IsPlaceholder(a.FullContent) {
		tr.TranslatedContent = t.field(ctx, "content", a.Link, a.FullContent)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	logging.Infof("Translated article: %s", a.Link)
	return tr, nil
}

func (t *Translator) field(ctx context.Context, name, link, text string) *string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	out, err := t.Translate(ctx, text, t.sourceLang, t.targetLang)
	if err != nil {
		logging.Warnf("Failed to translate %s of %s: %v", name, link, err)
		return nil
	}
	return &out
}
