package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/ilbumi/satin/internal/domain"
	"github.com/ilbumi/satin/internal/id"
	"github.com/ilbumi/satin/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMLJobs_Lifecycle(t *testing.T) {
	forEachBackend(t, func(t *testing.T, b store.Backend) {
		repo := store.NewMLJobRepository(b, store.NewCache(0, 0), nil)
		ctx := context.Background()
		img := id.NewHex()

		job, err := repo.Enqueue(ctx, &domain.MLJob{ImageID: img, Model: "yolo", Attempts: 7})
		require.NoError(t, err)
		assert.Equal(t, domain.JobQueued, job.Status)
		assert.Zero(t, job.Attempts)

		_, err = repo.Complete(ctx, job.ID, nil)
		require.ErrorIs(t, err, store.ErrInvalidTransition)

		running, err := repo.Start(ctx, job.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.JobRunning, running.Status)
		assert.Equal(t, 1, running.Attempts)
		require.NotNil(t, running.StartedAt)

		_, err = repo.Start(ctx, job.ID)
		require.ErrorIs(t, err, store.ErrInvalidTransition)

		failed, err := repo.Fail(ctx, job.ID, "model timeout")
		require.NoError(t, err)
		assert.Equal(t, "model timeout", failed.Error)

		requeued, err := repo.Retry(ctx, job.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.JobQueued, requeued.Status)
		assert.Nil(t, requeued.StartedAt)

		_, err = repo.Start(ctx, job.ID)
		require.NoError(t, err)
		done, err := repo.Complete(ctx, job.ID, []domain.Prediction{{Label: "cat", Confidence: 0.8, BoundingBox: boxA}})
		require.NoError(t, err)
		assert.Equal(t, domain.JobCompleted, done.Status)
		assert.Equal(t, 2, done.Attempts)
		assert.Empty(t, done.Error)
		require.Len(t, done.Predictions, 1)
		assert.Equal(t, boxA, done.Predictions[0].BoundingBox)

		_, err = repo.Cancel(ctx, job.ID)
		require.ErrorIs(t, err, store.ErrInvalidTransition)

		missing, err := repo.Start(ctx, id.NewHex())
		require.NoError(t, err)
		assert.Nil(t, missing)

		byImage, err := repo.ByImage(ctx, img)
		require.NoError(t, err)
		require.Len(t, byImage, 1)

		stored, err := repo.FindByID(ctx, job.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.JobCompleted, stored.Status, "rejected transitions leave the job untouched")
	})
}

func TestMLJobs_QueuedAndStale(t *testing.T) {
	repo := store.NewMLJobRepository(newBadger(t), nil, nil)
	ctx := context.Background()

	first, err := repo.Enqueue(ctx, &domain.MLJob{ImageID: id.NewHex(), Model: "a"})
	require.NoError(t, err)
	second, err := repo.Enqueue(ctx, &domain.MLJob{ImageID: id.NewHex(), Model: "b"})
	require.NoError(t, err)
	cancelled, err := repo.Enqueue(ctx, &domain.MLJob{ImageID: id.NewHex(), Model: "c"})
	require.NoError(t, err)
	_, err = repo.Cancel(ctx, cancelled.ID)
	require.NoError(t, err)

	queued, err := repo.Queued(ctx, 10)
	require.NoError(t, err)
	require.Len(t, queued, 2)
	assert.Equal(t, first.ID, queued[0].ID)
	assert.Equal(t, second.ID, queued[1].ID)

	_, err = repo.Start(ctx, first.ID)
	require.NoError(t, err)

	stale, err := repo.Stale(ctx, time.Now().Add(time.Minute))
	require.NoError(t, err)
	require.Len(t, stale, 1)
	assert.Equal(t, first.ID, stale[0].ID)

	stale, err = repo.Stale(ctx, time.Now().Add(-time.Minute))
	require.NoError(t, err)
	assert.Empty(t, stale)

	page, err := repo.List(ctx, domain.JobCancelled, store.PaginationParams{})
	require.NoError(t, err)
	assert.Equal(t, 1, page.Total)
}
