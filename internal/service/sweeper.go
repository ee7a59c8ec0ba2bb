package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/ilbumi/satin/internal/config"
	"github.com/ilbumi/satin/internal/domain"
	"github.com/ilbumi/satin/internal/sse"
	"github.com/ilbumi/satin/internal/store"
)

// staleJobReason is recorded on jobs failed by the sweeper.
const staleJobReason = "job timed out: no result reported"

// JobSweeper fails running ML jobs that have not reported back within the
// configured window.
type JobSweeper struct {
	jobs       *store.MLJobRepository
	events     EventEmitter
	staleAfter time.Duration
	interval   time.Duration
	logger     *slog.Logger
	now        func() time.Time
}

// NewJobSweeper creates a sweeper.
func NewJobSweeper(repos *store.Repositories, cfg config.MLJobConfig, deps Deps) *JobSweeper {
	deps = deps.withDefaults()
	return &JobSweeper{
		jobs:       repos.MLJobs,
		events:     deps.Events,
		staleAfter: cfg.StaleAfter,
		interval:   cfg.SweepInterval,
		logger:     deps.Logger,
		now:        time.Now,
	}
}

// Run sweeps once immediately and then every interval until ctx is done.
func (s *JobSweeper) Run(ctx context.Context) {
	interval := s.interval
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.sweepAndLog(ctx)
	for {
		select {
		case <-ticker.C:
			s.sweepAndLog(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// Sweep fails every running job started before now - staleAfter and
// returns how many were failed. Jobs that change state concurrently are
// skipped.
func (s *JobSweeper) Sweep(ctx context.Context) (int, error) {
	if s.staleAfter <= 0 {
		return 0, nil
	}
	stale, err := s.jobs.Stale(ctx, s.now().Add(-s.staleAfter))
	if err != nil {
		return 0, err
	}

	failed := 0
	for _, j := range stale {
		job, err := s.jobs.Fail(ctx, j.ID, staleJobReason)
		if err != nil {
			s.logger.Debug("stale job changed state before sweep", "job_id", j.ID, "error", err)
			continue
		}
		if job == nil || job.Status != domain.JobFailed {
			continue
		}
		s.events.Emit(sse.NewJobEvent(job))
		failed++
	}
	return failed, nil
}

func (s *JobSweeper) sweepAndLog(ctx context.Context) {
	count, err := s.Sweep(ctx)
	if err != nil {
		if ctx.Err() == nil {
			s.logger.Warn("ml job sweep failed", "error", err)
		}
		return
	}
	if count > 0 {
		s.logger.Info("ml job sweep completed", "failed", count)
	}
}
