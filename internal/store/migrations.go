package store

import (
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/TobiSchelling/MeduzaReader/internal/article"
	"github.com/TobiSchelling/MeduzaReader/internal/logging"
)

// legacyTable holds rows of a pre-migration database until they are
// imported.
const legacyTable = "articles_legacy"

// Migration represents a single schema migration step.
type Migration struct {
	Version     int
	Description string
	Up          func(tx *sql.Tx) error
}

// migrations is the ordered list of all schema migrations.
// Append new migrations to the end with incrementing Version numbers.
var migrations = []Migration{
	{
		Version:     1,
		Description: "initial schema",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`
CREATE TABLE IF NOT EXISTS articles (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    title TEXT NOT NULL DEFAULT '',
    link TEXT NOT NULL DEFAULT '',
    content TEXT NOT NULL DEFAULT '',
    teaser TEXT NOT NULL DEFAULT '',
    translated_title TEXT,
    translated_summary TEXT,
    translated_content TEXT,
    summary TEXT,
    published TEXT NOT NULL DEFAULT '',
    published_at TEXT,
    fetched_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now')),
    search_text TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_articles_published_at ON articles(published_at);
CREATE INDEX IF NOT EXISTS idx_articles_translated_title ON articles(translated_title);
`)
			return err
		},
	},
	{
		Version:     2,
		Description: "import legacy articles",
		Up:          importLegacy,
	},
}

// latestVersion returns the highest migration version.
func latestVersion() int {
	return migrations[len(migrations)-1].Version
}

// legacyColumns are read from the flat pre-migration table when present.
var legacyColumns = []string{"title", "content", "translated_title", "translated_content", "summary", "published"}

type legacyRow struct {
	title, content, published   string
	translatedTitle, translated sql.NullString
	summary                     sql.NullString
}

// importLegacy copies rows from the legacy table into articles and drops
// it. Missing legacy columns read as NULL.
func importLegacy(tx *sql.Tx) error {
	var exists int
	if err := tx.QueryRow(
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?", legacyTable,
	).Scan(&exists); err != nil {
		return fmt.Errorf("checking legacy table: %w", err)
	}
	if exists == 0 {
		return nil
	}

	present := make(map[string]bool)
	info, err := tx.Query("SELECT name FROM pragma_table_info('" + legacyTable + "')")
	if err != nil {
		return fmt.Errorf("reading legacy columns: %w", err)
	}
	for info.Next() {
		var name string
		if err := info.Scan(&name); err != nil {
			info.Close()
			return err
		}
		present[name] = true
	}
	info.Close()

	selects := make([]string, len(legacyColumns))
	for i, c := range legacyColumns {
		if present[c] {
			selects[i] = "CAST(" + c + " AS TEXT)"
		} else {
			selects[i] = "NULL"
		}
	}
	query, _, err := sq.Select(selects...).From(legacyTable).OrderBy("rowid").ToSql()
	if err != nil {
		return err
	}

	rows, err := tx.Query(query)
	if err != nil {
		return fmt.Errorf("reading legacy rows: %w", err)
	}
	var legacy []legacyRow
	for rows.Next() {
		var title, content, published sql.NullString
		var r legacyRow
		if err := rows.Scan(&title, &content, &r.translatedTitle, &r.translated, &r.summary, &published); err != nil {
			rows.Close()
			return fmt.Errorf("scanning legacy row: %w", err)
		}
		r.title, r.content, r.published = title.String, content.String, published.String
		legacy = append(legacy, r)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	fetchedAt := time.Now().UTC().Format(timeLayout)
	for _, r := range legacy {
		a := article.Processed{}
		a.Title = r.title
		a.FullContent = r.content
		a.Published = r.published
		a.TranslatedTitle = nullToPtr(r.translatedTitle)
		a.TranslatedContent = nullToPtr(r.translated)
		a.AutoSummary = nullToPtr(r.summary)

		var publishedAt any
		if t, ok := publishedKey(a.Published); ok {
			publishedAt = t.Format(timeLayout)
		}
		query, args, err := sq.Insert("articles").
			Columns("title", "content", "translated_title", "translated_content", "summary",
				"published", "published_at", "fetched_at", "search_text").
			Values(a.Title, a.FullContent, a.TranslatedTitle, a.TranslatedContent, a.AutoSummary,
				a.Published, publishedAt, fetchedAt, searchText(a)).
			ToSql()
		if err != nil {
			return err
		}
		if _, err := tx.Exec(query, args...); err != nil {
			return fmt.Errorf("importing legacy row %q: %w", a.Title, err)
		}
	}

	if _, err := tx.Exec("DROP TABLE " + legacyTable); err != nil {
		return fmt.Errorf("dropping legacy table: %w", err)
	}
	logging.Infof("imported %d legacy articles", len(legacy))
	return nil
}
