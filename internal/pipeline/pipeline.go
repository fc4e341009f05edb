// Package pipeline runs a batch of feed entries through content
// retrieval, translation, summarization and storage, one article at a
// time.
package pipeline

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/TobiSchelling/MeduzaReader/internal/article"
	"github.com/TobiSchelling/MeduzaReader/internal/collect"
	"github.com/TobiSchelling/MeduzaReader/internal/config"
	"github.com/TobiSchelling/MeduzaReader/internal/logging"
	"github.com/TobiSchelling/MeduzaReader/internal/store"
)

// ErrFeedUnavailable is returned by Run when the feed cannot be read.
var ErrFeedUnavailable = collect.ErrFeedUnavailable

const defaultLimit = 5

// stagesPerArticle is the number of progress steps reported per article.
const stagesPerArticle = 4

// feedPercent is the share of progress reported once the feed is read.
const feedPercent = 5

// FeedSource lists the current feed entries.
type FeedSource interface {
	FetchFeed(ctx context.Context) ([]article.Raw, error)
}

// ContentSource returns the body text of an article page, or a
// placeholder.
type ContentSource interface {
	FetchContent(ctx context.Context, link string) string
}

type ArticleTranslator interface {
	TranslateArticle(ctx context.Context, a article.Enriched) (*article.Translated, error)
}

type Summarizer interface {
	Summarize(text string, targetLength int) (string, error)
}

// Deps are the collaborators of a Pipeline.
type Deps struct {
	Feed       FeedSource
	Content    ContentSource
	Translator ArticleTranslator
	Summarizer Summarizer
	Store      store.Store
}

// State is a step of a batch run.
type State int

const (
	StateIdle State = iota
	StateFetchingFeed
	StateRetrieving
	StateTranslating
	StateSummarizing
	StateSaving
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateFetchingFeed:
		return "fetching feed"
	case StateRetrieving:
		return "retrieving"
	case StateTranslating:
		return "translating"
	case StateSummarizing:
		return "summarizing"
	case StateSaving:
		return "saving"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Progress is reported after every completed stage.
type Progress struct {
	Percent int
	State   State
	Index   int // 1-based article index, 0 before the first article
	Total   int
	Title   string
}

func (p Progress) String() string {
	if p.Index == 0 {
		return fmt.Sprintf("[%3d%%] %s", p.Percent, p.State)
	}
	return fmt.Sprintf("[%3d%%] %d/%d %s: %s", p.Percent, p.Index, p.Total, p.State, p.Title)
}

// ProgressFunc receives progress updates. It may be nil.
type ProgressFunc func(Progress)

// ItemResult is the outcome of one article.
type ItemResult struct {
	Title     string
	Link      string
	Stage     State // last stage reached
	Saved     bool
	Duplicate bool
	Err       error
}

// Result holds the results of a batch run.
type Result struct {
	RunID      uuid.UUID
	State      State
	Found      int
	Attempted  int
	Saved      int
	Duplicates int
	Items      []ItemResult
}

// Failed returns the items that ended with an error.
func (r *Result) Failed() []ItemResult {
	var out []ItemResult
	for _, it := range r.Items {
		if it.Err != nil {
			out = append(out, it)
		}
	}
	return out
}

// Pipeline sequences the processing stages.
type Pipeline struct {
	deps Deps
	cfg  config.Pipeline
}

// New creates a new pipeline.
func New(deps Deps, cfg config.Pipeline) *Pipeline {
	return &Pipeline{deps: deps, cfg: cfg}
}

func (p *Pipeline) limit(n int) int {
	if n > 0 {
		return n
	}
	if p.cfg.Limit > 0 {
		return p.cfg.Limit
	}
	return defaultLimit
}

// Run processes up to limit feed entries. Only a feed failure is returned
// as an error; per-article failures are recorded in Result.Items and the
// batch continues. A cancelled context stops new articles from starting.
func (p *Pipeline) Run(ctx context.Context, limit int, progress ProgressFunc) (*Result, error) {
	r := &Result{RunID: uuid.New(), State: StateIdle}
	tracker := &progressTracker{fn: progress}
	tag := r.RunID.String()[:8]

	r.State = StateFetchingFeed
	logging.Infof("[%s] Fetching feed...", tag)
	entries, err := p.deps.Feed.FetchFeed(ctx)
	if err != nil {
		r.State = StateFailed
		logging.Errorf("[%s] Feed fetch failed: %v", tag, err)
		return r, fmt.Errorf("fetching feed: %w", err)
	}
	r.Found = len(entries)

	if n := p.limit(limit); len(entries) > n {
		entries = entries[:n]
	}
	tracker.start(len(entries))
	logging.Infof("[%s] Found %d entries, processing %d", tag, r.Found, len(entries))

	for i, raw := range entries {
		if err := ctx.Err(); err != nil {
			logging.Warnf("[%s] Stopping before article %d/%d: %v", tag, i+1, len(entries), err)
			break
		}
		r.Attempted++
		item := p.processOne(ctx, tag, i, len(entries), raw, tracker)
		if item.Saved {
			r.Saved++
		}
		if item.Duplicate {
			r.Duplicates++
		}
		r.Items = append(r.Items, item)
	}

	r.State = StateDone
	tracker.finish()
	logging.Infof("[%s] Done: %d saved, %d duplicates, %d failed of %d attempted",
		tag, r.Saved, r.Duplicates, len(r.Failed()), r.Attempted)
	return r, nil
}

func (p *Pipeline) processOne(ctx context.Context, tag string, i, total int, raw article.Raw, tracker *progressTracker) (item ItemResult) {
	item = ItemResult{Title: raw.Title, Link: raw.Link}
	step := func(s State) {
		item.Stage = s
		tracker.step(Progress{State: s, Index: i + 1, Total: total, Title: raw.Title})
	}
	defer tracker.completeItem(i+1, total, raw.Title)
	defer func() {
		if r := recover(); r != nil {
			item.Err = fmt.Errorf("panic after %s: %v", item.Stage, r)
			logging.Errorf("[%s] Recovered from panic processing %s: %v", tag, raw.Link, r)
		}
	}()

	logging.Infof("[%s] Article %d/%d: %s", tag, i+1, total, raw.Title)

	enriched := article.Enriched{Raw: raw, FullContent: p.deps.Content.FetchContent(ctx, raw.Link)}
	step(StateRetrieving)

	translated, err := p.deps.Translator.TranslateArticle(ctx, enriched)
	if err != nil {
		item.Stage = StateTranslating
		item.Err = fmt.Errorf("translating: %w", err)
		logging.Warnf("[%s] Skipping %s: %v", tag, raw.Link, item.Err)
		return item
	}
	step(StateTranslating)

	processed := article.Processed{Translated: *translated}
	if translated.HasTranslatedContent() {
		summary, err := p.deps.Summarizer.Summarize(*translated.TranslatedContent, 0)
		switch {
		case err != nil:
			logging.Warnf("[%s] Summarization failed for %s: %v", tag, raw.Link, err)
		case summary != "":
			processed.AutoSummary = &summary
		}
	}
	step(StateSummarizing)

	if p.cfg.SkipDuplicates && translated.TranslatedTitle != nil {
		dup, err := p.deps.Store.HasTranslatedTitle(ctx, *translated.TranslatedTitle)
		if err != nil {
			logging.Warnf("[%s] Duplicate check failed for %s: %v", tag, raw.Link, err)
		} else if dup {
			item.Stage = StateSaving
			item.Duplicate = true
			logging.Infof("[%s] Already stored, skipping: %s", tag, *translated.TranslatedTitle)
			return item
		}
	}

	if _, err := p.deps.Store.Append(ctx, processed); err != nil {
		item.Stage = StateSaving
		item.Err = fmt.Errorf("saving: %w", err)
		logging.Errorf("[%s] Failed to save %s: %v", tag, raw.Link, err)
		return item
	}
	item.Saved = true
	step(StateSaving)
	return item
}

// DryRun returns the feed entries a Run with the same limit would
// process.
func (p *Pipeline) DryRun(ctx context.Context, limit int) ([]article.Raw, error) {
	entries, err := p.deps.Feed.FetchFeed(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetching feed: %w", err)
	}
	if n := p.limit(limit); len(entries) > n {
		entries = entries[:n]
	}
	return entries, nil
}
