package service

import (
	"context"
	"testing"

	"github.com/ilbumi/satin/internal/domain"
	domainerrors "github.com/ilbumi/satin/internal/errors"
	"github.com/ilbumi/satin/internal/search"
	"github.com/ilbumi/satin/internal/sse"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProjectService_CreateProject(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	p, err := env.projects.CreateProject(ctx, CreateProjectRequest{
		Name:        "  Street\tScenes ",
		Description: "<p>Urban <em>traffic</em></p>",
		Labels:      []string{"city", " city ", "", "night"},
	})
	require.NoError(t, err)

	assert.Equal(t, "Street Scenes", p.Name)
	assert.Equal(t, domain.ProjectActive, p.Status)
	assert.Equal(t, []string{"city", "night"}, p.Labels)
	assert.NotContains(t, p.Description, "<p>")
	assert.Len(t, env.events.ofType(sse.EventProjectCreated), 1)

	res, err := env.index.Search(ctx, search.SearchParams{Query: "street", Types: []search.DocType{search.DocTypeProject}, Limit: 5})
	require.NoError(t, err)
	require.Len(t, res.Hits, 1)
	assert.Equal(t, p.ID, res.Hits[0].ID)

	_, err = env.projects.CreateProject(ctx, CreateProjectRequest{Name: " \n "})
	assert.Equal(t, domainerrors.CodeValidation, domainerrors.CodeOf(err))
}

func TestProjectService_UpdateAndArchive(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	p := env.createProject(t, "Drones")

	updated, err := env.projects.UpdateProject(ctx, p.ID, UpdateProjectRequest{
		Description: ptr("aerial"),
		Labels:      []string{"sky"},
	})
	require.NoError(t, err)
	assert.Equal(t, "aerial", updated.Description)
	assert.Equal(t, []string{"sky"}, updated.Labels)

	archived, err := env.projects.ArchiveProject(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ProjectArchived, archived.Status)

	byLabel, err := env.projects.ProjectsByLabel(ctx, "sky")
	require.NoError(t, err)
	assert.Len(t, byLabel, 1)

	page, err := env.projects.ListProjects(ctx, ListProjectsRequest{Status: domain.ProjectActive})
	require.NoError(t, err)
	assert.Empty(t, page.Items)

	_, err = env.projects.ListProjects(ctx, ListProjectsRequest{Status: "gone"})
	assert.Equal(t, domainerrors.CodeValidation, domainerrors.CodeOf(err))

	_, err = env.projects.ListProjects(ctx, ListProjectsRequest{Cursor: "%%%"})
	assert.Equal(t, domainerrors.CodeValidation, domainerrors.CodeOf(err))

	_, err = env.projects.ArchiveProject(ctx, "507f1f77bcf86cd799439011")
	assert.ErrorIs(t, err, domainerrors.ErrNotFound)
}

func TestProjectService_ListProjects_Pages(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	for _, name := range []string{"a", "b", "c"} {
		env.createProject(t, name)
	}

	first, err := env.projects.ListProjects(ctx, ListProjectsRequest{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, first.Items, 2)
	assert.True(t, first.HasMore)
	assert.Equal(t, 3, first.Total)

	second, err := env.projects.ListProjects(ctx, ListProjectsRequest{Limit: 2, Cursor: first.NextCursor})
	require.NoError(t, err)
	assert.Len(t, second.Items, 1)
	assert.False(t, second.HasMore)
}

func TestProjectService_StatsAndDelete(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	p := env.createProject(t, "Fish")
	img := env.uploadImage(t, p.ID, 5)
	_, err := env.tasks.CreateTask(ctx, CreateTaskRequest{ProjectID: p.ID, ImageID: img.ID})
	require.NoError(t, err)

	stats, err := env.projects.ProjectStats(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.ImageCount)
	assert.Equal(t, 1, stats.TaskCount)
	assert.Equal(t, 1, stats.ImagesByStatus[string(domain.ImagePending)])
	assert.Equal(t, 1, stats.TasksByStatus[string(domain.TaskPending)])

	err = env.projects.DeleteProject(ctx, p.ID)
	assert.Equal(t, domainerrors.CodeConflict, domainerrors.CodeOf(err))

	require.NoError(t, env.images.DeleteImage(ctx, img.ID))
	require.NoError(t, env.projects.DeleteProject(ctx, p.ID))

	_, err = env.projects.GetProject(ctx, p.ID)
	assert.ErrorIs(t, err, domainerrors.ErrNotFound)
	assert.Len(t, env.events.ofType(sse.EventProjectDeleted), 1)
}
