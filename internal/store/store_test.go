package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/TobiSchelling/MeduzaReader/internal/article"
	"github.com/TobiSchelling/MeduzaReader/internal/config"
)

var testNow = time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

func ptr(s string) *string { return &s }

func openTestDB(t *testing.T) *SQLite {
	t.Helper()
	db, err := OpenSQLite(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// backends returns a constructor per backend under test. Postgres runs
// only when MEDUZA_TEST_POSTGRES_DSN is set.
func backends(t *testing.T) map[string]func(t *testing.T) Store {
	t.Helper()
	b := map[string]func(t *testing.T) Store{
		"memory": func(t *testing.T) Store {
			m := NewMemory()
			m.now = func() time.Time { return testNow }
			return m
		},
		"sqlite": func(t *testing.T) Store {
			db := openTestDB(t)
			db.now = func() time.Time { return testNow }
			return db
		},
	}
	if dsn := os.Getenv("MEDUZA_TEST_POSTGRES_DSN"); dsn != "" {
		b["postgres"] = func(t *testing.T) Store {
			ctx := context.Background()
			pg, err := OpenPostgres(ctx, dsn)
			if err != nil {
				t.Fatalf("failed to open postgres: %v", err)
			}
			if _, err := pg.conn.ExecContext(ctx, "TRUNCATE articles RESTART IDENTITY"); err != nil {
				t.Fatalf("truncating: %v", err)
			}
			pg.now = func() time.Time { return testNow }
			t.Cleanup(func() { pg.Close() })
			return pg
		}
	}
	return b
}

func forEachBackend(t *testing.T, fn func(t *testing.T, s Store)) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			fn(t, open(t))
		})
	}
}

func processed(title, published string) article.Processed {
	var p article.Processed
	p.Title = title
	p.Link = "https://meduza.io/news/" + title
	p.Published = published
	p.FullContent = "Текст " + title
	p.TranslatedTitle = ptr("訳 " + title)
	return p
}

func mustAppend(t *testing.T, s Store, a article.Processed) int64 {
	t.Helper()
	id, err := s.Append(context.Background(), a)
	if err != nil {
		t.Fatalf("append %q: %v", a.Title, err)
	}
	return id
}

func titles(list []article.Processed) []string {
	out := make([]string, len(list))
	for i, a := range list {
		out[i] = a.Title
	}
	return out
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestAppendAndCount(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		id1 := mustAppend(t, s, processed("a", "2026-03-01T10:00:00Z"))
		id2 := mustAppend(t, s, processed("b", "2026-03-02T10:00:00Z"))
		if id1 == 0 || id2 <= id1 {
			t.Errorf("expected increasing non-zero IDs, got %d then %d", id1, id2)
		}

		n, err := s.Count(ctx)
		if err != nil {
			t.Fatalf("count: %v", err)
		}
		if n != 2 {
			t.Errorf("expected 2 rows, got %d", n)
		}
	})
}

func TestAppendAllowsDuplicates(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s Store) {
		a := processed("same", "2026-03-01T10:00:00Z")
		mustAppend(t, s, a)
		mustAppend(t, s, a)

		n, _ := s.Count(context.Background())
		if n != 2 {
			t.Errorf("expected duplicates to be stored, got %d rows", n)
		}
	})
}

func TestRoundTripFields(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s Store) {
		in := processed("full", "Sun, 15 Mar 2026 09:30:00 +0300")
		in.TeaserSummary = "Тизер"
		in.TranslatedSummary = ptr("ティーザー")
		in.TranslatedContent = ptr("本文")
		in.AutoSummary = ptr("要約")
		id := mustAppend(t, s, in)

		bare := processed("bare", "2026-03-01T10:00:00Z")
		bare.TranslatedTitle = nil
		mustAppend(t, s, bare)

		got, err := s.Query(context.Background(), Filter{})
		if err != nil {
			t.Fatalf("query: %v", err)
		}
		if len(got) != 2 {
			t.Fatalf("expected 2 rows, got %d", len(got))
		}

		a := got[0]
		if a.ID != id || a.Title != "full" || a.Link != in.Link || a.Published != in.Published {
			t.Errorf("unexpected identity fields: %+v", a)
		}
		if a.FullContent != in.FullContent || a.TeaserSummary != "Тизер" {
			t.Errorf("unexpected content fields: %q / %q", a.FullContent, a.TeaserSummary)
		}
		if article.Deref(a.TranslatedTitle) != "訳 full" || article.Deref(a.TranslatedSummary) != "ティーザー" ||
			article.Deref(a.TranslatedContent) != "本文" || article.Deref(a.AutoSummary) != "要約" {
			t.Errorf("unexpected translated fields: %+v", a.Translated)
		}
		if a.FetchedAt.IsZero() {
			t.Error("expected FetchedAt to be set")
		}

		b := got[1]
		if b.TranslatedTitle != nil || b.TranslatedSummary != nil || b.TranslatedContent != nil || b.AutoSummary != nil {
			t.Errorf("expected absent fields to stay nil, got %+v", b.Translated)
		}
	})
}

func TestQueryOrdersByPublishedMixedFormats(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s Store) {
		mustAppend(t, s, processed("rfc1123", "Mon, 09 Mar 2026 10:00:00 +0300"))
		mustAppend(t, s, processed("garbage", "вчера вечером"))
		mustAppend(t, s, processed("rfc3339", "2026-03-14T08:00:00Z"))
		mustAppend(t, s, processed("loose", "2026-03-10 12:00:00"))
		mustAppend(t, s, processed("empty", ""))

		got, err := s.Query(context.Background(), Filter{})
		if err != nil {
			t.Fatalf("query: %v", err)
		}
		want := []string{"rfc3339", "loose", "rfc1123", "empty", "garbage"}
		if !equalStrings(titles(got), want) {
			t.Errorf("expected order %v, got %v", want, titles(got))
		}
	})
}

func TestQueryLimitAndOffset(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		for i := 0; i < 12; i++ {
			mustAppend(t, s, processed(fmt.Sprintf("a%02d", i), fmt.Sprintf("2026-03-%02dT10:00:00Z", i+1)))
		}

		got, _ := s.Query(ctx, Filter{})
		if len(got) != DefaultLimit {
			t.Errorf("expected default limit %d, got %d", DefaultLimit, len(got))
		}

		got, _ = s.Query(ctx, Filter{Limit: 3})
		if want := []string{"a11", "a10", "a09"}; !equalStrings(titles(got), want) {
			t.Errorf("expected %v, got %v", want, titles(got))
		}

		got, _ = s.Query(ctx, Filter{Limit: 3, Offset: 10})
		if want := []string{"a01", "a00"}; !equalStrings(titles(got), want) {
			t.Errorf("expected %v, got %v", want, titles(got))
		}

		got, err := s.Query(ctx, Filter{Limit: 3, Offset: 50})
		if err != nil {
			t.Fatalf("query: %v", err)
		}
		if got == nil || len(got) != 0 {
			t.Errorf("expected empty non-nil page, got %v", got)
		}
	})
}

func TestQueryTextFilter(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s Store) {
		ctx := context.Background()

		a := processed("title-hit", "2026-03-05T10:00:00Z")
		a.TranslatedTitle = ptr("ПРИВЕТ из Москвы")
		mustAppend(t, s, a)

		b := processed("summary-hit", "2026-03-04T10:00:00Z")
		b.TranslatedSummary = ptr("Сказал привет")
		mustAppend(t, s, b)

		c := processed("content-hit", "2026-03-03T10:00:00Z")
		c.TranslatedContent = ptr("...Привет...")
		mustAppend(t, s, c)

		d := processed("raw-only", "2026-03-02T10:00:00Z")
		d.Title = "привет в оригинале"
		mustAppend(t, s, d)

		e := processed("percent", "2026-03-01T10:00:00Z")
		e.TranslatedTitle = ptr("рост 100% за год")
		mustAppend(t, s, e)

		got, err := s.Query(ctx, Filter{Text: "  привет "})
		if err != nil {
			t.Fatalf("query: %v", err)
		}
		if want := []string{"title-hit", "summary-hit", "content-hit"}; !equalStrings(titles(got), want) {
			t.Errorf("expected %v, got %v", want, titles(got))
		}

		got, _ = s.Query(ctx, Filter{Text: "0%"})
		if want := []string{"percent"}; !equalStrings(titles(got), want) {
			t.Errorf("expected %v, got %v", want, titles(got))
		}

		got, _ = s.Query(ctx, Filter{Text: "%"})
		if len(got) != 1 {
			t.Errorf("expected %% to match literally, got %v", titles(got))
		}
	})
}

func TestQueryDateRange(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		mustAppend(t, s, processed("this-morning", "2026-03-15T06:00:00Z"))
		mustAppend(t, s, processed("yesterday", "2026-03-14T20:00:00Z"))
		mustAppend(t, s, processed("ten-days", "2026-03-05T12:00:00Z"))
		mustAppend(t, s, processed("two-months", "2026-01-10T12:00:00Z"))
		mustAppend(t, s, processed("unknown", "не указано"))

		cases := []struct {
			r    DateRange
			want []string
		}{
			{All, []string{"this-morning", "yesterday", "ten-days", "two-months", "unknown"}},
			{Today, []string{"this-morning"}},
			{Week, []string{"this-morning", "yesterday"}},
			{Month, []string{"this-morning", "yesterday", "ten-days"}},
		}
		for _, tc := range cases {
			got, err := s.Query(ctx, Filter{Range: tc.r})
			if err != nil {
				t.Fatalf("query %s: %v", tc.r, err)
			}
			if !equalStrings(titles(got), tc.want) {
				t.Errorf("range %s: expected %v, got %v", tc.r, tc.want, titles(got))
			}
		}
	})
}

func TestHasTranslatedTitle(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		mustAppend(t, s, processed("x", ""))

		ok, err := s.HasTranslatedTitle(ctx, "訳 x")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !ok {
			t.Error("expected translated title to be found")
		}
		ok, _ = s.HasTranslatedTitle(ctx, "訳 X")
		if ok {
			t.Error("expected exact match only")
		}
	})
}

func TestParseDateRange(t *testing.T) {
	cases := map[string]DateRange{"": All, "all": All, "today": Today, "7d": Week, "30D": Month}
	for in, want := range cases {
		got, err := ParseDateRange(in)
		if err != nil {
			t.Errorf("ParseDateRange(%q): %v", in, err)
		}
		if got != want {
			t.Errorf("ParseDateRange(%q) = %s, want %s", in, got, want)
		}
	}
	if _, err := ParseDateRange("1y"); err == nil {
		t.Error("expected error for unknown range")
	}
}

func TestOpenBackends(t *testing.T) {
	ctx := context.Background()

	s, err := Open(ctx, config.Storage{Backend: "sqlite", DataDir: t.TempDir()})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	s.Close()

	s, err = Open(ctx, config.Storage{Backend: "memory"})
	if err != nil {
		t.Fatalf("open memory: %v", err)
	}
	if _, ok := s.(*Memory); !ok {
		t.Errorf("expected *Memory, got %T", s)
	}

	t.Setenv("MEDUZA_TEST_EMPTY_DSN", "")
	if _, err := Open(ctx, config.Storage{Backend: "postgres", PostgresDSNEnv: "MEDUZA_TEST_EMPTY_DSN"}); err == nil {
		t.Error("expected error when the DSN variable is empty")
	}

	if _, err := Open(ctx, config.Storage{Backend: "mongo"}); err == nil {
		t.Error("expected error for unknown backend")
	}
}

func TestOpenFallsBackToMemory(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "not-a-dir")
	if err := os.WriteFile(blocker, []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	s, err := Open(context.Background(), config.Storage{Backend: "sqlite", DataDir: filepath.Join(blocker, "data")})
	if err != nil {
		t.Fatalf("expected fallback instead of error: %v", err)
	}
	defer s.Close()
	if _, ok := s.(*Memory); !ok {
		t.Fatalf("expected *Memory fallback, got %T", s)
	}

	if _, err := s.Append(context.Background(), article.Processed{}); err != nil {
		t.Fatalf("append to fallback store: %v", err)
	}
	if n, _ := s.Count(context.Background()); n != 1 {
		t.Errorf("expected 1 row in fallback store, got %d", n)
	}
}
