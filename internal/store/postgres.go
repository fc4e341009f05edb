package store

import (
	"context"
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/jackc/pgx/v5/stdlib"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS articles (
    id BIGSERIAL PRIMARY KEY,
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
    fetched_at TEXT NOT NULL,
    search_text TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_articles_published_at ON articles(published_at);
CREATE INDEX IF NOT EXISTS idx_articles_translated_title ON articles(translated_title);
`

// Postgres is a Store on a PostgreSQL server, reached through the pgx
// database/sql driver.
type Postgres struct {
	*sqlStore
}

// OpenPostgres connects to dsn and creates the articles table if needed.
func OpenPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	conn, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening postgres: %w", err)
	}
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}
	if _, err := conn.ExecContext(ctx, postgresSchema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return &Postgres{sqlStore: newSQLStore(conn, sq.Dollar, true)}, nil
}
