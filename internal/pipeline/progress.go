package pipeline

// progressTracker turns completed stages into a percentage. The feed
// accounts for the first feedPercent, the articles share the rest
// evenly, and the reported value never decreases.
type progressTracker struct {
	fn    ProgressFunc
	total int // stages in the batch
	done  int
	last  int
}

func (t *progressTracker) start(articles int) {
	t.total = articles * stagesPerArticle
	t.emit(Progress{Percent: feedPercent, State: StateFetchingFeed, Total: articles})
}

func (t *progressTracker) step(p Progress) {
	t.done++
	t.emit(p)
}

// completeItem accounts for the stages an article skipped after a
// failure.
func (t *progressTracker) completeItem(index, total int, title string) {
	want := index * stagesPerArticle
	if t.done >= want {
		return
	}
	t.done = want
	t.emit(Progress{State: StateSaving, Index: index, Total: total, Title: title})
}

func (t *progressTracker) finish() {
	t.done = t.total
	t.emit(Progress{Percent: 100, State: StateDone, Total: t.total / stagesPerArticle})
}

func (t *progressTracker) emit(p Progress) {
	if p.Percent == 0 {
		p.Percent = feedPercent
		if t.total > 0 {
			p.Percent += t.done * (100 - feedPercent) / t.total
		}
	}
	if p.Percent < t.last {
		p.Percent = t.last
	}
	t.last = p.Percent
	if t.fn != nil {
		t.fn(p)
	}
}
