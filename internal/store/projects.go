package store

import (
	"context"
	"log/slog"

	"github.com/ilbumi/satin/internal/domain"
)

// ProjectRepository stores projects.
type ProjectRepository struct {
	*Collection[domain.Project]
}

// NewProjectRepository creates the project repository.
func NewProjectRepository(b Backend, cache *Cache, logger *slog.Logger) *ProjectRepository {
	c := NewCollection[domain.Project](b, CollectionProjects).
		WithIndex("status", func(p *domain.Project) []string { return []string{string(p.Status)} }).
		WithIndex("labels", func(p *domain.Project) []string { return p.Labels }).
		WithCache(cache).
		WithLogger(logger)
	return &ProjectRepository{Collection: c}
}

// Create stores a new project, defaulting its status to active.
func (r *ProjectRepository) Create(ctx context.Context, p *domain.Project) (*domain.Project, error) {
	if p.Status == "" {
		p.Status = domain.ProjectActive
	}
	if p.Labels == nil {
		p.Labels = []string{}
	}
	return r.InsertOne(ctx, p)
}

// List returns one page of projects, optionally restricted to a status and
// a case-insensitive name substring.
func (r *ProjectRepository) List(ctx context.Context, status domain.ProjectStatus, name string, params PaginationParams) (*PaginatedResult[*domain.Project], error) {
	q := Query().OrderBy(Desc("createdAt"), Desc("id"))
	if status != "" {
		q.Where(Eq("status", string(status)))
	}
	if name != "" {
		q.Where(Contains("name", name, true))
	}
	return r.Page(ctx, q, params)
}

// ByLabel returns projects carrying label.
func (r *ProjectRepository) ByLabel(ctx context.Context, label string) ([]*domain.Project, error) {
	return r.Find(ctx, Query(Eq("labels", label)).OrderBy(Asc("name")))
}

// Archive marks a project archived.
func (r *ProjectRepository) Archive(ctx context.Context, projectID string) (*domain.Project, error) {
	return r.UpdateOne(ctx, projectID, Set{"status": string(domain.ProjectArchived)})
}
