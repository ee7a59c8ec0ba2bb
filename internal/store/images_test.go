package store_test

import (
	"context"
	"testing"

	"github.com/ilbumi/satin/internal/domain"
	"github.com/ilbumi/satin/internal/id"
	"github.com/ilbumi/satin/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestImages_CreateAndFilter(t *testing.T) {
	forEachBackend(t, func(t *testing.T, b store.Backend) {
		repo := store.NewImageRepository(b, store.NewCache(0, 0), nil)
		ctx := context.Background()
		project, other := id.NewHex(), id.NewHex()

		create := func(projectID, filename, checksum string) *domain.Image {
			img, err := repo.Create(ctx, &domain.Image{ProjectID: projectID, Filename: filename, Checksum: checksum})
			require.NoError(t, err)
			return img
		}
		cat := create(project, "Cat.png", "c1")
		dog := create(project, "dog.jpg", "c2")
		create(other, "cat-too.png", "c1")

		assert.Equal(t, domain.ImagePending, cat.Status)

		_, err := repo.SetStatus(ctx, dog.ID, domain.ImageAnnotated)
		require.NoError(t, err)

		page, err := repo.List(ctx, store.ImageFilter{ProjectID: project}, store.PaginationParams{Limit: 1})
		require.NoError(t, err)
		assert.Equal(t, 2, page.Total)
		assert.True(t, page.HasMore)
		require.Len(t, page.Items, 1)

		next, err := repo.List(ctx, store.ImageFilter{ProjectID: project}, store.PaginationParams{Limit: 1, Cursor: page.NextCursor})
		require.NoError(t, err)
		assert.False(t, next.HasMore)
		assert.ElementsMatch(t, []string{cat.ID, dog.ID}, []string{page.Items[0].ID, next.Items[0].ID})

		byName, err := repo.List(ctx, store.ImageFilter{Filename: "CAT"}, store.PaginationParams{})
		require.NoError(t, err)
		assert.Equal(t, 2, byName.Total)

		annotated, err := repo.List(ctx, store.ImageFilter{ProjectID: project, Status: domain.ImageAnnotated}, store.PaginationParams{})
		require.NoError(t, err)
		require.Len(t, annotated.Items, 1)
		assert.Equal(t, dog.ID, annotated.Items[0].ID)

		dup, err := repo.FindByChecksum(ctx, project, "c1")
		require.NoError(t, err)
		require.NotNil(t, dup)
		assert.Equal(t, cat.ID, dup.ID)

		none, err := repo.FindByChecksum(ctx, project, "")
		require.NoError(t, err)
		assert.Nil(t, none)

		counts, err := repo.StatusCounts(ctx, project)
		require.NoError(t, err)
		assert.Equal(t, map[string]int{"pending": 1, "annotated": 1}, counts)

		all, err := repo.ByProject(ctx, "not-hex")
		require.NoError(t, err)
		assert.Empty(t, all)
	})
}

func TestProjects(t *testing.T) {
	repo := store.NewProjectRepository(newBadger(t), nil, nil)
	ctx := context.Background()

	birds, err := repo.Create(ctx, &domain.Project{Name: "Birds", Labels: []string{"wildlife"}})
	require.NoError(t, err)
	cars, err := repo.Create(ctx, &domain.Project{Name: "Cars"})
	require.NoError(t, err)

	assert.Equal(t, domain.ProjectActive, cars.Status)
	assert.NotNil(t, cars.Labels)

	archived, err := repo.Archive(ctx, cars.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ProjectArchived, archived.Status)
	assert.False(t, archived.UpdatedAt.Before(archived.CreatedAt))

	active, err := repo.List(ctx, domain.ProjectActive, "", store.PaginationParams{})
	require.NoError(t, err)
	require.Len(t, active.Items, 1)
	assert.Equal(t, birds.ID, active.Items[0].ID)

	named, err := repo.List(ctx, "", "car", store.PaginationParams{})
	require.NoError(t, err)
	require.Len(t, named.Items, 1)
	assert.Equal(t, cars.ID, named.Items[0].ID)

	labelled, err := repo.ByLabel(ctx, "wildlife")
	require.NoError(t, err)
	require.Len(t, labelled, 1)
	assert.Equal(t, birds.ID, labelled[0].ID)

	missing, err := repo.Archive(ctx, id.NewHex())
	require.NoError(t, err)
	assert.Nil(t, missing)
}
