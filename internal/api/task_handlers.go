package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/ilbumi/satin/internal/api/dto"
	"github.com/ilbumi/satin/internal/domain"
	"github.com/ilbumi/satin/internal/service"
)

func (s *Server) registerTaskRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "listTasks",
		Method:      http.MethodGet,
		Path:        "/api/v1/tasks",
		Summary:     "List tasks",
		Description: "Returns a page of tasks, highest priority first",
		Tags:        []string{"Tasks"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleListTasks)

	huma.Register(s.api, huma.Operation{
		OperationID: "listTasksDetailed",
		Method:      http.MethodGet,
		Path:        "/api/v1/tasks/detailed",
		Summary:     "List tasks with details",
		Description: "Returns tasks with their image and project embedded",
		Tags:        []string{"Tasks"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleListTasksDetailed)

	huma.Register(s.api, huma.Operation{
		OperationID:   "createTask",
		Method:        http.MethodPost,
		Path:          "/api/v1/tasks",
		Summary:       "Create task",
		Description:   "Creates a pending task for an image of a project",
		Tags:          []string{"Tasks"},
		DefaultStatus: http.StatusCreated,
		Security:      []map[string][]string{{"bearer": {}}},
	}, s.handleCreateTask)

	huma.Register(s.api, huma.Operation{
		OperationID: "getTask",
		Method:      http.MethodGet,
		Path:        "/api/v1/tasks/{id}",
		Summary:     "Get task",
		Description: "Returns a task with its image and project",
		Tags:        []string{"Tasks"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleGetTask)

	huma.Register(s.api, huma.Operation{
		OperationID: "updateTask",
		Method:      http.MethodPatch,
		Path:        "/api/v1/tasks/{id}",
		Summary:     "Update task",
		Description: "Updates priority, due date or notes",
		Tags:        []string{"Tasks"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleUpdateTask)

	huma.Register(s.api, huma.Operation{
		OperationID: "deleteTask",
		Method:      http.MethodDelete,
		Path:        "/api/v1/tasks/{id}",
		Summary:     "Delete task",
		Description: "Deletes a task",
		Tags:        []string{"Tasks"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleDeleteTask)

	huma.Register(s.api, huma.Operation{
		OperationID: "updateTaskStatus",
		Method:      http.MethodPost,
		Path:        "/api/v1/tasks/{id}/status",
		Summary:     "Change task status",
		Description: "Moves a task through pending, in_progress, review and completed",
		Tags:        []string{"Tasks"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleUpdateTaskStatus)

	huma.Register(s.api, huma.Operation{
		OperationID: "assignTask",
		Method:      http.MethodPost,
		Path:        "/api/v1/tasks/{id}/assignee",
		Summary:     "Assign task",
		Description: "Sets the assignee; an empty assignee unassigns the task",
		Tags:        []string{"Tasks"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleAssignTask)
}

// === DTOs ===

// ListTasksInput contains parameters for listing tasks.
type ListTasksInput struct {
	Authorization string `header:"Authorization"`
	ProjectID     string `query:"projectId" doc:"Filter by project"`
	ImageID       string `query:"imageId" doc:"Filter by image"`
	Assignee      string `query:"assignee" doc:"Filter by assignee"`
	Status        string `query:"status" doc:"Filter by status: pending, in_progress, review or completed"`
	dto.PaginationParams
}

// ListTasksOutput wraps a page of tasks for Huma.
type ListTasksOutput struct {
	Body dto.ListResponse[*domain.Task]
}

// ListTasksDetailedOutput wraps detailed tasks for Huma.
type ListTasksDetailedOutput struct {
	Body dto.ListResponse[*domain.TaskWithDetails]
}

// CreateTaskRequest is the request body for creating a task.
type CreateTaskRequest struct {
	ProjectID string     `json:"projectId" doc:"Project ID"`
	ImageID   string     `json:"imageId" doc:"Image ID, must belong to the project"`
	Assignee  string     `json:"assignee,omitempty" maxLength:"100" doc:"Annotator"`
	Priority  int        `json:"priority,omitempty" minimum:"0" maximum:"10" doc:"0 to 10, higher first"`
	DueAt     *FlexTime  `json:"dueAt,omitempty" doc:"Due date"`
	Notes     string     `json:"notes,omitempty" maxLength:"5000" doc:"Free text notes"`
}

// CreateTaskInput wraps the create task request for Huma.
type CreateTaskInput struct {
	Authorization string `header:"Authorization"`
	Body          CreateTaskRequest
}

// TaskOutput wraps a task for Huma.
type TaskOutput struct {
	Body *domain.Task
}

// TaskDetailsOutput wraps a detailed task for Huma.
type TaskDetailsOutput struct {
	Body *domain.TaskWithDetails
}

// GetTaskInput contains parameters for getting a task.
type GetTaskInput struct {
	Authorization string `header:"Authorization"`
	ID            string `path:"id" doc:"Task ID"`
}

// UpdateTaskRequest is the request body for updating a task.
type UpdateTaskRequest struct {
	Priority *int       `json:"priority,omitempty" minimum:"0" maximum:"10" doc:"Priority"`
	DueAt    *FlexTime  `json:"dueAt,omitempty" doc:"Due date"`
	Notes    *string    `json:"notes,omitempty" maxLength:"5000" doc:"Notes"`
}

// UpdateTaskInput wraps the update task request for Huma.
type UpdateTaskInput struct {
	Authorization string `header:"Authorization"`
	ID            string `path:"id" doc:"Task ID"`
	Body          UpdateTaskRequest
}

// TaskStatusRequest is the request body for a status change.
type TaskStatusRequest struct {
	Status string `json:"status" enum:"pending,in_progress,review,completed" doc:"Target status"`
}

// TaskStatusInput wraps the status change for Huma.
type TaskStatusInput struct {
	Authorization string `header:"Authorization"`
	ID            string `path:"id" doc:"Task ID"`
	Body          TaskStatusRequest
}

// AssignTaskRequest is the request body for assigning a task.
type AssignTaskRequest struct {
	Assignee string `json:"assignee,omitempty" maxLength:"100" doc:"Annotator, empty to unassign"`
}

// AssignTaskInput wraps the assignment for Huma.
type AssignTaskInput struct {
	Authorization string `header:"Authorization"`
	ID            string `path:"id" doc:"Task ID"`
	Body          AssignTaskRequest
}

// === Handlers ===

func (input *ListTasksInput) request() service.ListTasksRequest {
	return service.ListTasksRequest{
		ProjectID: input.ProjectID,
		ImageID:   input.ImageID,
		Assignee:  input.Assignee,
		Status:    domain.TaskStatus(input.Status),
		Limit:     input.Limit,
		Cursor:    input.Cursor,
	}
}

func (s *Server) handleListTasks(ctx context.Context, input *ListTasksInput) (*ListTasksOutput, error) {
	if err := s.authorize(ctx, input.Authorization); err != nil {
		return nil, err
	}

	page, err := s.services.Tasks.ListTasks(ctx, input.request())
	if err != nil {
		return nil, err
	}

	return &ListTasksOutput{Body: listOf(page)}, nil
}

func (s *Server) handleListTasksDetailed(ctx context.Context, input *ListTasksInput) (*ListTasksDetailedOutput, error) {
	if err := s.authorize(ctx, input.Authorization); err != nil {
		return nil, err
	}

	tasks, err := s.services.Tasks.ListTasksWithDetails(ctx, input.request())
	if err != nil {
		return nil, err
	}
	if tasks == nil {
		tasks = []*domain.TaskWithDetails{}
	}

	return &ListTasksDetailedOutput{Body: dto.ListResponse[*domain.TaskWithDetails]{Items: tasks, Total: len(tasks)}}, nil
}

func (s *Server) handleCreateTask(ctx context.Context, input *CreateTaskInput) (*TaskOutput, error) {
	if err := s.authorize(ctx, input.Authorization); err != nil {
		return nil, err
	}

	task, err := s.services.Tasks.CreateTask(ctx, service.CreateTaskRequest{
		ProjectID: input.Body.ProjectID,
		ImageID:   input.Body.ImageID,
		Assignee:  input.Body.Assignee,
		Priority:  input.Body.Priority,
		DueAt:     input.Body.DueAt.timePtr(),
		Notes:     input.Body.Notes,
	})
	if err != nil {
		return nil, err
	}

	return &TaskOutput{Body: task}, nil
}

func (s *Server) handleGetTask(ctx context.Context, input *GetTaskInput) (*TaskDetailsOutput, error) {
	if err := s.authorize(ctx, input.Authorization); err != nil {
		return nil, err
	}

	task, err := s.services.Tasks.GetTask(ctx, input.ID)
	if err != nil {
		return nil, err
	}

	return &TaskDetailsOutput{Body: task}, nil
}

func (s *Server) handleUpdateTask(ctx context.Context, input *UpdateTaskInput) (*TaskOutput, error) {
	if err := s.authorize(ctx, input.Authorization); err != nil {
		return nil, err
	}

	task, err := s.services.Tasks.UpdateTask(ctx, input.ID, service.UpdateTaskRequest{
		Priority: input.Body.Priority,
		DueAt:    input.Body.DueAt.timePtr(),
		Notes:    input.Body.Notes,
	})
	if err != nil {
		return nil, err
	}

	return &TaskOutput{Body: task}, nil
}

func (s *Server) handleDeleteTask(ctx context.Context, input *GetTaskInput) (*dto.MessageOutput, error) {
	if err := s.authorize(ctx, input.Authorization); err != nil {
		return nil, err
	}

	if err := s.services.Tasks.DeleteTask(ctx, input.ID); err != nil {
		return nil, err
	}

	return dto.Message("task deleted"), nil
}

func (s *Server) handleUpdateTaskStatus(ctx context.Context, input *TaskStatusInput) (*TaskOutput, error) {
	if err := s.authorize(ctx, input.Authorization); err != nil {
		return nil, err
	}

	task, err := s.services.Tasks.UpdateTaskStatus(ctx, input.ID, domain.TaskStatus(input.Body.Status))
	if err != nil {
		return nil, err
	}

	return &TaskOutput{Body: task}, nil
}

func (s *Server) handleAssignTask(ctx context.Context, input *AssignTaskInput) (*TaskOutput, error) {
	if err := s.authorize(ctx, input.Authorization); err != nil {
		return nil, err
	}

	task, err := s.services.Tasks.AssignTask(ctx, input.ID, input.Body.Assignee)
	if err != nil {
		return nil, err
	}

	return &TaskOutput{Body: task}, nil
}
