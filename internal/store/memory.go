package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/TobiSchelling/MeduzaReader/internal/article"
)

type memoryRow struct {
	article.Processed
	publishedAt time.Time
	hasDate     bool
}

// Memory is an in-process Store. Its contents are lost on Close.
type Memory struct {
	mu     sync.RWMutex
	rows   []memoryRow
	nextID int64
	now    func() time.Time
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{nextID: 1, now: time.Now}
}

func (m *Memory) Append(ctx context.Context, a article.Processed) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	a.ID = m.nextID
	m.nextID++
	if a.FetchedAt.IsZero() {
		a.FetchedAt = m.now().UTC().Truncate(time.Second)
	}
	row := memoryRow{Processed: a}
	row.publishedAt, row.hasDate = publishedKey(a.Published)
	m.rows = append(m.rows, row)
	return a.ID, nil
}

func (m *Memory) Query(ctx context.Context, f Filter) ([]article.Processed, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	start, bounded := f.Range.Start(m.now())
	start = start.Truncate(time.Second)

	var matched []memoryRow
	for _, row := range m.rows {
		if !row.Matches(f.Text) {
			continue
		}
		if bounded && (!row.hasDate || row.publishedAt.Before(start)) {
			continue
		}
		matched = append(matched, row)
	}

	sort.Slice(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		if a.hasDate != b.hasDate {
			return a.hasDate
		}
		if !a.publishedAt.Equal(b.publishedAt) {
			return a.publishedAt.After(b.publishedAt)
		}
		return a.ID > b.ID
	})

	if f.Offset >= len(matched) {
		return []article.Processed{}, nil
	}
	matched = matched[max(f.Offset, 0):]
	if len(matched) > f.limit() {
		matched = matched[:f.limit()]
	}

	out := make([]article.Processed, len(matched))
	for i, row := range matched {
		out[i] = row.Processed
	}
	return out, nil
}

func (m *Memory) HasTranslatedTitle(ctx context.Context, title string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, row := range m.rows {
		if row.TranslatedTitle != nil && *row.TranslatedTitle == title {
			return true, nil
		}
	}
	return false, nil
}

func (m *Memory) Count(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.rows), nil
}

func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows = nil
	return nil
}
