package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/TobiSchelling/MeduzaReader/internal/article"
)

// timeLayout is fixed-width UTC so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05Z"

// searchSeparator joins the searchable fields so a match cannot span two
// of them.
const searchSeparator = "\x1f"

var articleColumns = []string{
	"id", "title", "link", "content", "teaser",
	"translated_title", "translated_summary", "translated_content",
	"summary", "published", "fetched_at",
}

// sqlStore implements Store on database/sql. The SQLite and Postgres
// backends differ only in placeholder format and how the new row ID is
// returned.
type sqlStore struct {
	mu          sync.Mutex // single writer
	conn        *sql.DB
	sb          sq.StatementBuilderType
	returningID bool
	now         func() time.Time
}

func newSQLStore(conn *sql.DB, placeholder sq.PlaceholderFormat, returningID bool) *sqlStore {
	return &sqlStore{
		conn:        conn,
		sb:          sq.StatementBuilder.PlaceholderFormat(placeholder),
		returningID: returningID,
		now:         time.Now,
	}
}

func (s *sqlStore) Append(ctx context.Context, a article.Processed) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	fetchedAt := a.FetchedAt
	if fetchedAt.IsZero() {
		fetchedAt = s.now()
	}
	var publishedAt any
	if t, ok := publishedKey(a.Published); ok {
		publishedAt = t.Format(timeLayout)
	}

	insert := s.sb.Insert("articles").
		Columns(
			"title", "link", "content", "teaser",
			"translated_title", "translated_summary", "translated_content",
			"summary", "published", "published_at", "fetched_at", "search_text",
		).
		Values(
			a.Title, a.Link, a.FullContent, a.TeaserSummary,
			a.TranslatedTitle, a.TranslatedSummary, a.TranslatedContent,
			a.AutoSummary, a.Published, publishedAt, fetchedAt.UTC().Format(timeLayout), searchText(a),
		)

	if s.returningID {
		query, args, err := insert.Suffix("RETURNING id").ToSql()
		if err != nil {
			return 0, fmt.Errorf("building insert: %w", err)
		}
		var id int64
		if err := s.conn.QueryRowContext(ctx, query, args...).Scan(&id); err != nil {
			return 0, fmt.Errorf("inserting article %s: %w", a.Link, err)
		}
		return id, nil
	}

	query, args, err := insert.ToSql()
	if err != nil {
		return 0, fmt.Errorf("building insert: %w", err)
	}
	result, err := s.conn.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("inserting article %s: %w", a.Link, err)
	}
	return result.LastInsertId()
}

func (s *sqlStore) Query(ctx context.Context, f Filter) ([]article.Processed, error) {
	q := s.sb.Select(articleColumns...).From("articles")

	if needle := f.needle(); needle != "" {
		q = q.Where(sq.Expr(`search_text LIKE ? ESCAPE '\'`, "%"+escapeLike(needle)+"%"))
	}
	if start, ok := f.Range.Start(s.now()); ok {
		q = q.Where(sq.GtOrEq{"published_at": start.UTC().Format(timeLayout)})
	}

	q = q.OrderBy("published_at IS NULL", "published_at DESC", "id DESC").
		Limit(uint64(f.limit()))
	if f.Offset > 0 {
		q = q.Offset(uint64(f.Offset))
	}

	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building query: %w", err)
	}
	rows, err := s.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying articles: %w", err)
	}
	defer rows.Close()
	return scanArticles(rows)
}

func (s *sqlStore) HasTranslatedTitle(ctx context.Context, title string) (bool, error) {
	query, args, err := s.sb.Select("COUNT(*)").From("articles").
		Where(sq.Eq{"translated_title": title}).ToSql()
	if err != nil {
		return false, fmt.Errorf("building query: %w", err)
	}
	var n int
	if err := s.conn.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return false, fmt.Errorf("checking translated title: %w", err)
	}
	return n > 0, nil
}

func (s *sqlStore) Count(ctx context.Context) (int, error) {
	query, args, err := s.sb.Select("COUNT(*)").From("articles").ToSql()
	if err != nil {
		return 0, fmt.Errorf("building query: %w", err)
	}
	var n int
	if err := s.conn.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting articles: %w", err)
	}
	return n, nil
}

func (s *sqlStore) Close() error {
	return s.conn.Close()
}

func scanArticles(rows *sql.Rows) ([]article.Processed, error) {
	articles := []article.Processed{}
	for rows.Next() {
		var a article.Processed
		var translatedTitle, translatedSummary, translatedContent, summary sql.NullString
		var fetchedAt string
		if err := rows.Scan(
			&a.ID, &a.Title, &a.Link, &a.FullContent, &a.TeaserSummary,
			&translatedTitle, &translatedSummary, &translatedContent,
			&summary, &a.Published, &fetchedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning article: %w", err)
		}
		a.TranslatedTitle = nullToPtr(translatedTitle)
		a.TranslatedSummary = nullToPtr(translatedSummary)
		a.TranslatedContent = nullToPtr(translatedContent)
		a.AutoSummary = nullToPtr(summary)
		if t, err := time.Parse(timeLayout, fetchedAt); err == nil {
			a.FetchedAt = t
		}
		articles = append(articles, a)
	}
	return articles, rows.Err()
}

func nullToPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	return &ns.String
}

// searchText is the lower-cased haystack for text filters. SQLite's
// LOWER folds ASCII only, so folding happens here.
func searchText(a article.Processed) string {
	fields := make([]string, 0, 3)
	for _, f := range []*string{a.TranslatedTitle, a.TranslatedSummary, a.TranslatedContent} {
		if f != nil {
			fields = append(fields, *f)
		}
	}
	return strings.ToLower(strings.Join(fields, searchSeparator))
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
