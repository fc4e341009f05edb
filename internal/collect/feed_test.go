package collect

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/TobiSchelling/MeduzaReader/internal/config"
)

const sampleFeed = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0" xmlns:content="http://purl.org/rss/1.0/modules/content/">
<channel>
  <title>Meduza</title>
  <link>https://meduza.io</link>
  <item>
    <title>Привет, мир!</title>
    <link>https://meduza.io/news/1</link>
    <pubDate>Fri, 06 Feb 2026 12:30:00 +0300</pubDate>
    <description>Короткое описание</description>
    <content:encoded><![CDATA[<p>Полный текст</p>]]></content:encoded>
  </item>
  <item>
    <title>  Вторая новость  </title>
    <guid>https://meduza.io/news/2</guid>
    <pubDate>Fri, 06 Feb 2026 11:00:00 +0300</pubDate>
  </item>
  <item>
    <title></title>
    <link>https://meduza.io/news/untitled</link>
  </item>
</channel>
</rss>`

func newFeedServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestFetchFeed(t *testing.T) {
	srv := newFeedServer(t, http.StatusOK, sampleFeed)
	reader := NewFeedReader(config.Feed{URL: srv.URL})

	entries, err := reader.FetchFeed(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}

	first := entries[0]
	if first.Title != "Привет, мир!" {
		t.Errorf("unexpected title %q", first.Title)
	}
	if first.Link != "https://meduza.io/news/1" {
		t.Errorf("unexpected link %q", first.Link)
	}
	if first.Published != "Fri, 06 Feb 2026 12:30:00 +0300" {
		t.Errorf("published should keep the source format, got %q", first.Published)
	}
	if first.TeaserSummary != "Короткое описание" {
		t.Errorf("unexpected teaser %q", first.TeaserSummary)
	}
	if first.RawContent != "<p>Полный текст</p>" {
		t.Errorf("unexpected raw content %q", first.RawContent)
	}

	second := entries[1]
	if second.Title != "Вторая новость" {
		t.Errorf("expected trimmed title, got %q", second.Title)
	}
	if second.Link != "https://meduza.io/news/2" {
		t.Errorf("expected GUID fallback link, got %q", second.Link)
	}
	if second.RawContent != "" {
		t.Errorf("expected empty raw content, got %q", second.RawContent)
	}
}

func TestFetchFeedEmpty(t *testing.T) {
	srv := newFeedServer(t, http.StatusOK, `<?xml version="1.0"?><rss version="2.0"><channel><title>x</title></channel></rss>`)
	reader := NewFeedReader(config.Feed{URL: srv.URL})

	entries, err := reader.FetchFeed(context.Background())
	if err != nil {
		t.Fatalf("empty feed should not be an error: %v", err)
	}
	if entries == nil || len(entries) != 0 {
		t.Errorf("expected empty non-nil slice, got %#v", entries)
	}
}

func TestFetchFeedHTTPError(t *testing.T) {
	srv := newFeedServer(t, http.StatusBadGateway, "upstream down")
	reader := NewFeedReader(config.Feed{URL: srv.URL})

	entries, err := reader.FetchFeed(context.Background())
	if !errors.Is(err, ErrFeedUnavailable) {
		t.Fatalf("expected ErrFeedUnavailable, got %v", err)
	}
	if entries != nil {
		t.Error("expected no partial entries on failure")
	}
}

func TestFetchFeedUnreachable(t *testing.T) {
	srv := newFeedServer(t, http.StatusOK, sampleFeed)
	url := srv.URL
	srv.Close()

	reader := NewFeedReader(config.Feed{URL: url})
	if _, err := reader.FetchFeed(context.Background()); !errors.Is(err, ErrFeedUnavailable) {
		t.Fatalf("expected ErrFeedUnavailable, got %v", err)
	}
}

func TestFetchFeedMalformed(t *testing.T) {
	srv := newFeedServer(t, http.StatusOK, "this is not a feed")
	reader := NewFeedReader(config.Feed{URL: srv.URL})

	if _, err := reader.FetchFeed(context.Background()); !errors.Is(err, ErrFeedUnavailable) {
		t.Fatalf("expected ErrFeedUnavailable, got %v", err)
	}
}

func TestFetchFeedStripsTeaserMarkup(t *testing.T) {
	feed := `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0"><channel><title>Meduza</title>
  <item>
    <title>Новость</title>
    <link>https://meduza.io/news/3</link>
    <description><![CDATA[<p>Короткое <b>описание</b></p>
      <img src="x.jpg">  Том &amp; Джерри]]></description>
  </item>
</channel></rss>`
	srv := newFeedServer(t, http.StatusOK, feed)
	reader := NewFeedReader(config.Feed{URL: srv.URL})

	entries, err := reader.FetchFeed(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if got := entries[0].TeaserSummary; got != "Короткое описание Том & Джерри" {
		t.Errorf("expected plain-text teaser, got %q", got)
	}
}

func TestCleanText(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"", ""},
		{"  plain   text \n here ", "plain text here"},
		{"<p>a <i>b</i></p>", "a b"},
		{"<img src=\"x.jpg\">", ""},
	}
	for _, tt := range tests {
		if got := cleanText(tt.in); got != tt.want {
			t.Errorf("cleanText(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
