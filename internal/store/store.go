// Package store persists processed articles and answers filtered,
// paginated queries over them. Every backend implements the same query
// contract: newest published first, text and date-range filters, and a
// hard row limit.
package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/TobiSchelling/MeduzaReader/internal/article"
	"github.com/TobiSchelling/MeduzaReader/internal/config"
	"github.com/TobiSchelling/MeduzaReader/internal/logging"
)

// DefaultLimit is used when a Filter does not set one.
const DefaultLimit = 10

// ErrUnknownBackend is returned by Open for an unsupported backend name.
var ErrUnknownBackend = errors.New("unknown storage backend")

// Store is the persistence contract shared by all backends.
type Store interface {
	// Append inserts a new row and returns its ID. No uniqueness is
	// enforced.
	Append(ctx context.Context, a article.Processed) (int64, error)

	// Query returns matching rows ordered by published time, newest first.
	// Rows with an unparseable published string come last.
	Query(ctx context.Context, f Filter) ([]article.Processed, error)

	// HasTranslatedTitle reports whether a row with exactly this
	// translated title exists.
	HasTranslatedTitle(ctx context.Context, title string) (bool, error)

	// Count returns the number of stored rows.
	Count(ctx context.Context) (int, error)

	Close() error
}

// DateRange bounds the published time of query results.
type DateRange int

const (
	All DateRange = iota
	Today
	Week
	Month
)

// ParseDateRange accepts "all", "today", "7d" and "30d".
func ParseDateRange(s string) (DateRange, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "all":
		return All, nil
	case "today":
		return Today, nil
	case "7d", "week":
		return Week, nil
	case "30d", "month":
		return Month, nil
	default:
		return All, fmt.Errorf("unknown date range %q (want all, today, 7d or 30d)", s)
	}
}

func (r DateRange) String() string {
	switch r {
	case Today:
		return "today"
	case Week:
		return "7d"
	case Month:
		return "30d"
	default:
		return "all"
	}
}

// Start returns the earliest published time admitted by r. ok is false
// for an unbounded range.
func (r DateRange) Start(now time.Time) (start time.Time, ok bool) {
	switch r {
	case Today:
		y, m, d := now.Date()
		return time.Date(y, m, d, 0, 0, 0, 0, now.Location()), true
	case Week:
		return now.AddDate(0, 0, -7), true
	case Month:
		return now.AddDate(0, 0, -30), true
	default:
		return time.Time{}, false
	}
}

// Filter selects rows for Query.
type Filter struct {
	Text   string // case-insensitive substring of translated title, summary or content
	Range  DateRange
	Limit  int // <= 0 means DefaultLimit
	Offset int
}

func (f Filter) limit() int {
	if f.Limit <= 0 {
		return DefaultLimit
	}
	return f.Limit
}

func (f Filter) needle() string {
	return strings.ToLower(strings.TrimSpace(f.Text))
}

// Open opens the backend named by cfg.Backend. When the SQLite file cannot
// be opened, Open logs a warning and returns an in-memory store instead.
func Open(ctx context.Context, cfg config.Storage) (Store, error) {
	switch strings.ToLower(cfg.Backend) {
	case "", "sqlite":
		dir := cfg.DataDir
		if dir == "" {
			dir = config.DataDir()
		}
		db, err := OpenSQLite(filepath.Join(dir, "meduzareader.db"))
		if err != nil {
			logging.Warnf("SQLite storage unavailable, falling back to memory (articles are lost on exit): %v", err)
			return NewMemory(), nil
		}
		return db, nil
	case "memory":
		return NewMemory(), nil
	case "postgres":
		dsn := os.Getenv(cfg.PostgresDSNEnv)
		if dsn == "" {
			return nil, fmt.Errorf("postgres storage: %s is not set", cfg.PostgresDSNEnv)
		}
		pg, err := OpenPostgres(ctx, dsn)
		if err != nil {
			return nil, err
		}
		return pg, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.Backend)
	}
}

// publishedKey normalizes a published string for ordering and range
// filtering. Seconds precision keeps every backend in agreement.
func publishedKey(published string) (time.Time, bool) {
	t, ok := article.ParsePublished(published)
	if !ok {
		return time.Time{}, false
	}
	return t.Truncate(time.Second), true
}
