package collect

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"

	"github.com/TobiSchelling/MeduzaReader/internal/article"
	"github.com/TobiSchelling/MeduzaReader/internal/config"
	"github.com/TobiSchelling/MeduzaReader/internal/logging"
)

// ErrFeedUnavailable means the feed could not be fetched or parsed. It is
// distinct from a feed that simply has no entries.
var ErrFeedUnavailable = errors.New("feed unavailable")

// FeedReader reads the configured syndication feed.
type FeedReader struct {
	url    string
	parser *gofeed.Parser
}

// NewFeedReader creates a FeedReader for cfg.URL.
func NewFeedReader(cfg config.Feed) *FeedReader {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	parser := gofeed.NewParser()
	parser.Client = &http.Client{Timeout: timeout}
	if cfg.UserAgent != "" {
		parser.UserAgent = cfg.UserAgent
	}
	return &FeedReader{url: cfg.URL, parser: parser}
}

// FetchFeed returns the feed's entries in feed order. Any network or parse
// failure is reported as ErrFeedUnavailable; no partial list is returned.
func (fr *FeedReader) FetchFeed(ctx context.Context) ([]article.Raw, error) {
	logging.Infof("Fetching feed %s", fr.url)

	feed, err := fr.parser.ParseURLWithContext(fr.url, ctx)
	if err != nil {
		logging.Warnf("Failed to fetch feed %s: %v", fr.url, err)
		return nil, fmt.Errorf("%w: %s: %v", ErrFeedUnavailable, fr.url, err)
	}

	entries := make([]article.Raw, 0, len(feed.Items))
	for _, item := range feed.Items {
		entry, ok := parseItem(item)
		if !ok {
			continue
		}
		entries = append(entries, entry)
	}

	logging.Infof("Parsed %d entries from %s", len(entries), fr.url)
	return entries, nil
}

func parseItem(item *gofeed.Item) (article.Raw, bool) {
	link := strings.TrimSpace(item.Link)
	if link == "" {
		link = strings.TrimSpace(item.GUID)
	}
	if link == "" {
		return article.Raw{}, false
	}

	title := strings.TrimSpace(item.Title)
	if title == "" {
		return article.Raw{}, false
	}

	published := item.Published
	if published == "" {
		published = item.Updated
	}

	return article.Raw{
		Title:         title,
		Link:          link,
		Published:     published,
		TeaserSummary: cleanText(item.Description),
		RawContent:    item.Content,
	}, true
}

// cleanText strips markup from an HTML fragment and collapses whitespace.
func cleanText(fragment string) string {
	text := fragment
	if doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment)); err == nil {
		text = doc.Text()
	}
	return strings.Join(strings.Fields(text), " ")
}
