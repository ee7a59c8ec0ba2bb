package store

import (
	"context"
	"log/slog"
	"time"

	"github.com/ilbumi/satin/internal/domain"
	"github.com/ilbumi/satin/internal/id"
)

// MLJobRepository stores inference jobs and enforces their status machine:
//
//	queued -> running -> completed | failed
//	queued | running -> cancelled
//	failed -> queued (retry)
type MLJobRepository struct {
	*Collection[domain.MLJob]
}

// NewMLJobRepository creates the ML job repository.
func NewMLJobRepository(b Backend, cache *Cache, logger *slog.Logger) *MLJobRepository {
	c := NewCollection[domain.MLJob](b, CollectionMLJobs).
		WithIndex("imageId", func(j *domain.MLJob) []string { return []string{j.ImageID} }).
		WithIndex("status", func(j *domain.MLJob) []string { return []string{string(j.Status)} }).
		WithCache(cache).
		WithLogger(logger)
	return &MLJobRepository{Collection: c}
}

// Enqueue stores a new queued job.
func (r *MLJobRepository) Enqueue(ctx context.Context, job *domain.MLJob) (*domain.MLJob, error) {
	job.Status = domain.JobQueued
	job.Attempts = 0
	job.StartedAt, job.CompletedAt = nil, nil
	return r.InsertOne(ctx, job)
}

// Start moves a queued job to running and counts the attempt.
func (r *MLJobRepository) Start(ctx context.Context, jobID string) (*domain.MLJob, error) {
	return r.Mutate(ctx, jobID, func(j *domain.MLJob) error {
		if j.Status != domain.JobQueued {
			return ErrInvalidTransition
		}
		now := time.Now().UTC()
		j.Status = domain.JobRunning
		j.StartedAt = &now
		j.Attempts++
		j.Error = ""
		return nil
	})
}

// Complete records predictions for a running job.
func (r *MLJobRepository) Complete(ctx context.Context, jobID string, predictions []domain.Prediction) (*domain.MLJob, error) {
	return r.Mutate(ctx, jobID, func(j *domain.MLJob) error {
		if j.Status != domain.JobRunning {
			return ErrInvalidTransition
		}
		now := time.Now().UTC()
		j.Status = domain.JobCompleted
		j.Predictions = predictions
		j.CompletedAt = &now
		return nil
	})
}

// Fail marks a queued or running job failed with a reason.
func (r *MLJobRepository) Fail(ctx context.Context, jobID, reason string) (*domain.MLJob, error) {
	return r.Mutate(ctx, jobID, func(j *domain.MLJob) error {
		if j.Status.IsTerminal() {
			return ErrInvalidTransition
		}
		now := time.Now().UTC()
		j.Status = domain.JobFailed
		j.Error = reason
		j.CompletedAt = &now
		return nil
	})
}

// Cancel stops a job that has not finished.
func (r *MLJobRepository) Cancel(ctx context.Context, jobID string) (*domain.MLJob, error) {
	return r.Mutate(ctx, jobID, func(j *domain.MLJob) error {
		if j.Status.IsTerminal() {
			return ErrInvalidTransition
		}
		now := time.Now().UTC()
		j.Status = domain.JobCancelled
		j.CompletedAt = &now
		return nil
	})
}

// Retry puts a failed job back in the queue.
func (r *MLJobRepository) Retry(ctx context.Context, jobID string) (*domain.MLJob, error) {
	return r.Mutate(ctx, jobID, func(j *domain.MLJob) error {
		if j.Status != domain.JobFailed {
			return ErrInvalidTransition
		}
		j.Status = domain.JobQueued
		j.StartedAt, j.CompletedAt = nil, nil
		return nil
	})
}

// ByImage returns the jobs of an image, newest first.
func (r *MLJobRepository) ByImage(ctx context.Context, imageID string) ([]*domain.MLJob, error) {
	hexID, ok := id.Normalize(imageID)
	if !ok {
		return []*domain.MLJob{}, nil
	}
	return r.Find(ctx, Query(Eq("imageId", hexID)).OrderBy(Desc("createdAt"), Desc("id")))
}

// List returns one page of jobs, optionally restricted to a status.
func (r *MLJobRepository) List(ctx context.Context, status domain.MLJobStatus, params PaginationParams) (*PaginatedResult[*domain.MLJob], error) {
	q := Query().OrderBy(Desc("createdAt"), Desc("id"))
	if status != "" {
		q.Where(Eq("status", string(status)))
	}
	return r.Page(ctx, q, params)
}

// Queued returns up to limit queued jobs, oldest first.
func (r *MLJobRepository) Queued(ctx context.Context, limit int) ([]*domain.MLJob, error) {
	return r.Find(ctx, Query(Eq("status", string(domain.JobQueued))).OrderBy(Asc("createdAt"), Asc("id")).Page(0, limit))
}

// Stale returns running jobs started before cutoff.
func (r *MLJobRepository) Stale(ctx context.Context, cutoff time.Time) ([]*domain.MLJob, error) {
	running, err := r.Find(ctx, Query(Eq("status", string(domain.JobRunning))).OrderBy(Asc("startedAt")))
	if err != nil {
		return nil, err
	}

	stale := make([]*domain.MLJob, 0, len(running))
	for _, j := range running {
		if j.StartedAt != nil && j.StartedAt.Before(cutoff) {
			stale = append(stale, j)
		}
	}
	return stale, nil
}

