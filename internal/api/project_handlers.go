package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/ilbumi/satin/internal/api/dto"
	"github.com/ilbumi/satin/internal/domain"
	"github.com/ilbumi/satin/internal/service"
	"github.com/ilbumi/satin/internal/store"
)

func (s *Server) registerProjectRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "listProjects",
		Method:      http.MethodGet,
		Path:        "/api/v1/projects",
		Summary:     "List projects",
		Description: "Returns a page of projects, optionally filtered by status, name or label",
		Tags:        []string{"Projects"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleListProjects)

	huma.Register(s.api, huma.Operation{
		OperationID:   "createProject",
		Method:        http.MethodPost,
		Path:          "/api/v1/projects",
		Summary:       "Create project",
		Description:   "Creates a new active project",
		Tags:          []string{"Projects"},
		DefaultStatus: http.StatusCreated,
		Security:      []map[string][]string{{"bearer": {}}},
	}, s.handleCreateProject)

	huma.Register(s.api, huma.Operation{
		OperationID: "getProject",
		Method:      http.MethodGet,
		Path:        "/api/v1/projects/{id}",
		Summary:     "Get project",
		Description: "Returns a project by ID",
		Tags:        []string{"Projects"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleGetProject)

	huma.Register(s.api, huma.Operation{
		OperationID: "updateProject",
		Method:      http.MethodPatch,
		Path:        "/api/v1/projects/{id}",
		Summary:     "Update project",
		Description: "Updates the provided project fields",
		Tags:        []string{"Projects"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleUpdateProject)

	huma.Register(s.api, huma.Operation{
		OperationID: "deleteProject",
		Method:      http.MethodDelete,
		Path:        "/api/v1/projects/{id}",
		Summary:     "Delete project",
		Description: "Deletes a project without images, together with its tasks and ML jobs",
		Tags:        []string{"Projects"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleDeleteProject)

	huma.Register(s.api, huma.Operation{
		OperationID: "archiveProject",
		Method:      http.MethodPost,
		Path:        "/api/v1/projects/{id}/archive",
		Summary:     "Archive project",
		Description: "Marks a project archived; archived projects accept no new images or tasks",
		Tags:        []string{"Projects"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleArchiveProject)

	huma.Register(s.api, huma.Operation{
		OperationID: "getProjectStats",
		Method:      http.MethodGet,
		Path:        "/api/v1/projects/{id}/stats",
		Summary:     "Get project stats",
		Description: "Returns image and task counts by status",
		Tags:        []string{"Projects"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleGetProjectStats)
}

// === DTOs ===

// ListProjectsInput contains parameters for listing projects.
type ListProjectsInput struct {
	Authorization string `header:"Authorization"`
	Status        string `query:"status" doc:"Filter by status: active or archived"`
	Name          string `query:"name" doc:"Case-insensitive name substring"`
	Label         string `query:"label" doc:"Only projects carrying this label (disables pagination)"`
	dto.PaginationParams
}

// ListProjectsOutput wraps a page of projects for Huma.
type ListProjectsOutput struct {
	Body dto.ListResponse[*domain.Project]
}

// CreateProjectRequest is the request body for creating a project.
type CreateProjectRequest struct {
	Name        string   `json:"name" minLength:"1" maxLength:"200" doc:"Project name"`
	Description string   `json:"description,omitempty" maxLength:"5000" doc:"Free text, HTML is converted to markdown"`
	Labels      []string `json:"labels,omitempty" maxItems:"100" doc:"Class labels used in this project"`
}

// CreateProjectInput wraps the create project request for Huma.
type CreateProjectInput struct {
	Authorization string `header:"Authorization"`
	Body          CreateProjectRequest
}

// ProjectOutput wraps a project for Huma.
type ProjectOutput struct {
	Body *domain.Project
}

// GetProjectInput contains parameters for getting a project.
type GetProjectInput struct {
	Authorization string `header:"Authorization"`
	ID            string `path:"id" doc:"Project ID"`
}

// UpdateProjectRequest is the request body for updating a project.
type UpdateProjectRequest struct {
	Name        *string  `json:"name,omitempty" maxLength:"200" doc:"Project name"`
	Description *string  `json:"description,omitempty" maxLength:"5000" doc:"Project description"`
	Labels      []string `json:"labels,omitempty" maxItems:"100" doc:"Replaces the label list"`
	Status      *string  `json:"status,omitempty" enum:"active,archived" doc:"Project status"`
}

// UpdateProjectInput wraps the update project request for Huma.
type UpdateProjectInput struct {
	Authorization string `header:"Authorization"`
	ID            string `path:"id" doc:"Project ID"`
	Body          UpdateProjectRequest
}

// ProjectStatsOutput wraps project statistics for Huma.
type ProjectStatsOutput struct {
	Body *domain.ProjectStats
}

// === Handlers ===

func (s *Server) handleListProjects(ctx context.Context, input *ListProjectsInput) (*ListProjectsOutput, error) {
	if err := s.authorize(ctx, input.Authorization); err != nil {
		return nil, err
	}

	if input.Label != "" {
		projects, err := s.services.Projects.ProjectsByLabel(ctx, input.Label)
		if err != nil {
			return nil, err
		}
		return &ListProjectsOutput{Body: dto.ListResponse[*domain.Project]{Items: projects, Total: len(projects)}}, nil
	}

	page, err := s.services.Projects.ListProjects(ctx, service.ListProjectsRequest{
		Status: domain.ProjectStatus(input.Status),
		Name:   input.Name,
		Limit:  input.Limit,
		Cursor: input.Cursor,
	})
	if err != nil {
		return nil, err
	}

	return &ListProjectsOutput{Body: listOf(page)}, nil
}

func (s *Server) handleCreateProject(ctx context.Context, input *CreateProjectInput) (*ProjectOutput, error) {
	if err := s.authorize(ctx, input.Authorization); err != nil {
		return nil, err
	}

	p, err := s.services.Projects.CreateProject(ctx, service.CreateProjectRequest{
		Name:        input.Body.Name,
		Description: input.Body.Description,
		Labels:      input.Body.Labels,
	})
	if err != nil {
		return nil, err
	}

	return &ProjectOutput{Body: p}, nil
}

func (s *Server) handleGetProject(ctx context.Context, input *GetProjectInput) (*ProjectOutput, error) {
	if err := s.authorize(ctx, input.Authorization); err != nil {
		return nil, err
	}

	p, err := s.services.Projects.GetProject(ctx, input.ID)
	if err != nil {
		return nil, err
	}

	return &ProjectOutput{Body: p}, nil
}

func (s *Server) handleUpdateProject(ctx context.Context, input *UpdateProjectInput) (*ProjectOutput, error) {
	if err := s.authorize(ctx, input.Authorization); err != nil {
		return nil, err
	}

	req := service.UpdateProjectRequest{
		Name:        input.Body.Name,
		Description: input.Body.Description,
		Labels:      input.Body.Labels,
	}
	if input.Body.Status != nil {
		status := domain.ProjectStatus(*input.Body.Status)
		req.Status = &status
	}

	p, err := s.services.Projects.UpdateProject(ctx, input.ID, req)
	if err != nil {
		return nil, err
	}

	return &ProjectOutput{Body: p}, nil
}

func (s *Server) handleDeleteProject(ctx context.Context, input *GetProjectInput) (*dto.MessageOutput, error) {
	if err := s.authorize(ctx, input.Authorization); err != nil {
		return nil, err
	}

	if err := s.services.Projects.DeleteProject(ctx, input.ID); err != nil {
		return nil, err
	}

	return dto.Message("Project deleted"), nil
}

func (s *Server) handleArchiveProject(ctx context.Context, input *GetProjectInput) (*ProjectOutput, error) {
	if err := s.authorize(ctx, input.Authorization); err != nil {
		return nil, err
	}

	p, err := s.services.Projects.ArchiveProject(ctx, input.ID)
	if err != nil {
		return nil, err
	}

	return &ProjectOutput{Body: p}, nil
}

func (s *Server) handleGetProjectStats(ctx context.Context, input *GetProjectInput) (*ProjectStatsOutput, error) {
	if err := s.authorize(ctx, input.Authorization); err != nil {
		return nil, err
	}

	stats, err := s.services.Projects.ProjectStats(ctx, input.ID)
	if err != nil {
		return nil, err
	}

	return &ProjectStatsOutput{Body: stats}, nil
}

// listOf converts a store page without reshaping its items.
func listOf[T any](page *store.PaginatedResult[T]) dto.ListResponse[T] {
	return dto.NewListResponse(page, func(v T) T { return v })
}
