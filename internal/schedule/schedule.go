// Package schedule runs batch jobs on a cron schedule.
package schedule

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/robfig/cron/v3"

	"github.com/TobiSchelling/MeduzaReader/internal/logging"
)

// Job is one scheduled batch.
type Job func(ctx context.Context) error

// Runner runs a Job on a cron schedule. A run that is still in progress
// when the next one is due causes that tick to be skipped.
type Runner struct {
	cron *cron.Cron
	spec string
	id   cron.EntryID
}

// New parses spec (standard five-field cron or descriptors such as
// "@every 1h") and registers job. The job receives ctx.
func New(ctx context.Context, spec string, job Job) (*Runner, error) {
	logger := cron.VerbosePrintfLogger(log.New(os.Stderr, "cron: ", log.LstdFlags))
	c := cron.New(cron.WithChain(
		cron.Recover(logger),
		cron.SkipIfStillRunning(logger),
	))

	id, err := c.AddFunc(spec, func() {
		logging.Infof("Scheduled run starting")
		if err := job(ctx); err != nil {
			logging.Errorf("Scheduled run failed: %v", err)
			return
		}
		logging.Infof("Scheduled run completed")
	})
	if err != nil {
		return nil, fmt.Errorf("invalid schedule %q: %w", spec, err)
	}
	return &Runner{cron: c, spec: spec, id: id}, nil
}

// Start starts the scheduler in its own goroutine.
func (r *Runner) Start() {
	r.cron.Start()
	logging.Infof("Scheduled batch runs with %q, next at %s", r.spec, r.cron.Entry(r.id).Next.Format("2006-01-02 15:04:05"))
}

// Stop stops the scheduler and waits for a running job to finish or ctx
// to be done.
func (r *Runner) Stop(ctx context.Context) {
	done := r.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
	}
}

// Run starts the scheduler and blocks until ctx is cancelled.
func (r *Runner) Run(ctx context.Context) {
	r.Start()
	<-ctx.Done()
	logging.Infof("Stopping scheduler...")
	r.Stop(context.Background())
}
