package service

import (
	"context"
	"log/slog"

	"github.com/ilbumi/satin/internal/domain"
	domainerrors "github.com/ilbumi/satin/internal/errors"
	"github.com/ilbumi/satin/internal/id"
	"github.com/ilbumi/satin/internal/sanitize"
	"github.com/ilbumi/satin/internal/sse"
	"github.com/ilbumi/satin/internal/store"
	"github.com/ilbumi/satin/internal/validation"
)

const (
	maxProjectName        = 200
	maxProjectDescription = 5000
	maxLabelLength        = 50
)

// ProjectService manages projects.
type ProjectService struct {
	repos     *store.Repositories
	validator *validation.Validator
	events    EventEmitter
	indexer   SearchIndexer
	logger    *slog.Logger
}

// NewProjectService creates a new project service.
func NewProjectService(repos *store.Repositories, deps Deps) *ProjectService {
	deps = deps.withDefaults()
	return &ProjectService{
		repos:     repos,
		validator: deps.Validator,
		events:    deps.Events,
		indexer:   deps.Indexer,
		logger:    deps.Logger,
	}
}

// CreateProjectRequest contains fields for creating a project.
type CreateProjectRequest struct {
	Name        string   `json:"name" validate:"required,max=200"`
	Description string   `json:"description" validate:"max=5000"`
	Labels      []string `json:"labels" validate:"max=100"`
}

// UpdateProjectRequest contains fields for updating a project.
type UpdateProjectRequest struct {
	Name        *string               `json:"name" validate:"omitempty,max=200"`
	Description *string               `json:"description" validate:"omitempty,max=5000"`
	Labels      []string              `json:"labels" validate:"omitempty,max=100"`
	Status      *domain.ProjectStatus `json:"status" validate:"omitempty,oneof=active archived"`
}

// ListProjectsRequest filters a project listing.
type ListProjectsRequest struct {
	Status domain.ProjectStatus `validate:"omitempty,oneof=active archived"`
	Name   string
	Limit  int
	Cursor string
}

// CreateProject creates an active project.
func (s *ProjectService) CreateProject(ctx context.Context, req CreateProjectRequest) (*domain.Project, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}
	name := sanitize.Name(req.Name, maxProjectName)
	if name == "" {
		return nil, domainerrors.ValidationWithDetails("validation failed", map[string]string{"name": "is required"})
	}

	p, err := s.repos.Projects.Create(ctx, &domain.Project{
		Name:        name,
		Description: sanitize.Text(req.Description, maxProjectDescription),
		Labels:      sanitize.Labels(req.Labels, maxLabelLength),
	})
	if err != nil {
		return nil, err
	}

	s.afterWrite(ctx, sse.EventProjectCreated, p)
	s.logger.Info("project created", "id", p.ID, "name", p.Name)
	return p, nil
}

// GetProject returns a single project.
func (s *ProjectService) GetProject(ctx context.Context, projectID string) (*domain.Project, error) {
	if _, err := id.Parse(projectID); err != nil {
		return nil, err
	}
	p, err := s.repos.Projects.FindByID(ctx, projectID)
	return notFound(p, err, "project %s not found", projectID)
}

// ListProjects returns one page of projects.
func (s *ProjectService) ListProjects(ctx context.Context, req ListProjectsRequest) (*store.PaginatedResult[*domain.Project], error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}
	params, err := pageParams(req.Limit, req.Cursor)
	if err != nil {
		return nil, err
	}
	return s.repos.Projects.List(ctx, req.Status, sanitize.Name(req.Name, maxProjectName), params)
}

// ProjectsByLabel returns projects carrying label.
func (s *ProjectService) ProjectsByLabel(ctx context.Context, label string) ([]*domain.Project, error) {
	label = sanitize.Name(label, maxLabelLength)
	if label == "" {
		return []*domain.Project{}, nil
	}
	return s.repos.Projects.ByLabel(ctx, label)
}

// UpdateProject changes project fields.
func (s *ProjectService) UpdateProject(ctx context.Context, projectID string, req UpdateProjectRequest) (*domain.Project, error) {
	if _, err := id.Parse(projectID); err != nil {
		return nil, err
	}
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	set := store.Set{}
	if req.Name != nil {
		name := sanitize.Name(*req.Name, maxProjectName)
		if name == "" {
			return nil, domainerrors.ValidationWithDetails("validation failed", map[string]string{"name": "must not be blank"})
		}
		set["name"] = name
	}
	if req.Description != nil {
		set["description"] = sanitize.Text(*req.Description, maxProjectDescription)
	}
	if req.Labels != nil {
		set["labels"] = sanitize.Labels(req.Labels, maxLabelLength)
	}
	if req.Status != nil {
		set["status"] = string(*req.Status)
	}

	if len(set) == 0 {
		return s.GetProject(ctx, projectID)
	}

	p, err := s.repos.Projects.UpdateOne(ctx, projectID, set)
	p, err = notFound(p, err, "project %s not found", projectID)
	if err != nil {
		return nil, err
	}
	s.afterWrite(ctx, sse.EventProjectUpdated, p)
	return p, nil
}

// ArchiveProject marks a project archived.
func (s *ProjectService) ArchiveProject(ctx context.Context, projectID string) (*domain.Project, error) {
	if _, err := id.Parse(projectID); err != nil {
		return nil, err
	}
	p, err := s.repos.Projects.Archive(ctx, projectID)
	p, err = notFound(p, err, "project %s not found", projectID)
	if err != nil {
		return nil, err
	}
	s.afterWrite(ctx, sse.EventProjectUpdated, p)
	s.logger.Info("project archived", "id", p.ID)
	return p, nil
}

// DeleteProject removes an empty project together with its tasks and jobs.
// Projects that still own images are rejected with a conflict.
func (s *ProjectService) DeleteProject(ctx context.Context, projectID string) error {
	p, err := s.GetProject(ctx, projectID)
	if err != nil {
		return err
	}

	images, err := s.repos.Images.Count(ctx, store.Query(store.Eq("projectId", p.ID)))
	if err != nil {
		return err
	}
	if images > 0 {
		return domainerrors.Conflictf("project %s still has %d images", p.ID, images)
	}

	tasks, err := s.repos.Tasks.DeleteMany(ctx, store.Query(store.Eq("projectId", p.ID)))
	if err != nil {
		return err
	}
	jobs, err := s.repos.MLJobs.DeleteMany(ctx, store.Query(store.Eq("projectId", p.ID)))
	if err != nil {
		return err
	}
	if _, err := s.repos.Projects.DeleteOne(ctx, p.ID); err != nil {
		return err
	}

	logIndexError(s.logger, s.indexer.DeleteProject(ctx, p.ID), "delete_project", p.ID)
	s.events.Emit(sse.NewProjectDeletedEvent(p.ID))

	s.logger.Info("project deleted", "id", p.ID, "tasks", tasks, "jobs", jobs)
	return nil
}

// ProjectStats returns image and task counts for a project.
func (s *ProjectService) ProjectStats(ctx context.Context, projectID string) (*domain.ProjectStats, error) {
	p, err := s.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}

	images, err := s.repos.Images.StatusCounts(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	tasks, err := s.repos.Tasks.StatusCounts(ctx, p.ID)
	if err != nil {
		return nil, err
	}

	stats := &domain.ProjectStats{
		ProjectID:      p.ID,
		TasksByStatus:  tasks,
		ImagesByStatus: images,
	}
	for _, n := range images {
		stats.ImageCount += n
	}
	for _, n := range tasks {
		stats.TaskCount += n
	}
	return stats, nil
}

func (s *ProjectService) afterWrite(ctx context.Context, t sse.EventType, p *domain.Project) {
	logIndexError(s.logger, s.indexer.IndexProject(ctx, p), "index_project", p.ID)
	s.events.Emit(sse.NewProjectEvent(t, p))
}
