// Package article holds the records that flow through the processing
// pipeline, from a raw feed entry to the stored, translated and summarized
// form.
package article

import (
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

// Raw is a feed entry as published by the source.
type Raw struct {
	Title         string
	Link          string
	Published     string // source format, not normalized
	TeaserSummary string
	RawContent    string
}

// Enriched is a Raw entry whose body has been retrieved from the article
// page. FullContent is never empty: a failed retrieval stores a placeholder.
type Enriched struct {
	Raw
	FullContent string
}

// Translated carries the independently optional translations of an
// Enriched article. A nil field means that translation was not produced.
type Translated struct {
	Enriched
	TranslatedTitle   *string
	TranslatedSummary *string
	TranslatedContent *string
}

// Processed is the persisted form.
type Processed struct {
	Translated
	AutoSummary *string

	// Assigned by the store on append.
	ID        int64
	FetchedAt time.Time
}

// HasTranslatedContent reports whether there is translated body text to
// summarize.
func (t Translated) HasTranslatedContent() bool {
	return t.TranslatedContent != nil && strings.TrimSpace(*t.TranslatedContent) != ""
}

// Matches reports whether text occurs, case-insensitively, in the
// translated title, summary or content. Empty text matches everything.
func (p Processed) Matches(text string) bool {
	text = strings.ToLower(strings.TrimSpace(text))
	if text == "" {
		return true
	}
	for _, field := range []*string{p.TranslatedTitle, p.TranslatedSummary, p.TranslatedContent} {
		if field != nil && strings.Contains(strings.ToLower(*field), text) {
			return true
		}
	}
	return false
}

// ParsePublished parses the source's timestamp string. Feeds mix RFC 1123,
// RFC 3339 and looser formats, so anything dateparse understands is
// accepted. The result is in UTC.
func ParsePublished(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{time.RFC1123Z, time.RFC1123, time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	t, err := dateparse.ParseAny(s)
	if err != nil {
		return time.Time{}, false
	}
	return t.UTC(), true
}

// Deref returns the value of an optional field or "".
func Deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// Ptr returns a pointer to s.
func Ptr(s string) *string { return &s }
