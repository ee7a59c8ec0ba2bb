package service

import (
	"context"
	"log/slog"
	"slices"
	"time"

	"github.com/ilbumi/satin/internal/domain"
	domainerrors "github.com/ilbumi/satin/internal/errors"
	"github.com/ilbumi/satin/internal/id"
	"github.com/ilbumi/satin/internal/sanitize"
	"github.com/ilbumi/satin/internal/sse"
	"github.com/ilbumi/satin/internal/store"
	"github.com/ilbumi/satin/internal/validation"
)

const (
	maxAssignee  = 100
	maxTaskNotes = 5000
)

// taskTransitions lists the statuses reachable from each task status.
var taskTransitions = map[domain.TaskStatus][]domain.TaskStatus{
	domain.TaskPending:    {domain.TaskInProgress},
	domain.TaskInProgress: {domain.TaskPending, domain.TaskReview},
	domain.TaskReview:     {domain.TaskInProgress, domain.TaskCompleted},
	domain.TaskCompleted:  {domain.TaskReview},
}

// TaskService manages annotation tasks.
type TaskService struct {
	repos     *store.Repositories
	validator *validation.Validator
	events    EventEmitter
	logger    *slog.Logger
}

// NewTaskService creates a new task service.
func NewTaskService(repos *store.Repositories, deps Deps) *TaskService {
	deps = deps.withDefaults()
	return &TaskService{
		repos:     repos,
		validator: deps.Validator,
		events:    deps.Events,
		logger:    deps.Logger,
	}
}

// CreateTaskRequest contains fields for creating a task.
type CreateTaskRequest struct {
	ProjectID string     `json:"projectId" validate:"required,objectid"`
	ImageID   string     `json:"imageId" validate:"required,objectid"`
	Assignee  string     `json:"assignee" validate:"max=100"`
	Priority  int        `json:"priority" validate:"min=0,max=10"`
	DueAt     *time.Time `json:"dueAt"`
	Notes     string     `json:"notes" validate:"max=5000"`
}

// UpdateTaskRequest contains fields for updating a task.
type UpdateTaskRequest struct {
	Priority *int       `json:"priority" validate:"omitempty,min=0,max=10"`
	DueAt    *time.Time `json:"dueAt"`
	Notes    *string    `json:"notes" validate:"omitempty,max=5000"`
}

// ListTasksRequest filters a task listing.
type ListTasksRequest struct {
	ProjectID string            `validate:"omitempty,objectid"`
	ImageID   string            `validate:"omitempty,objectid"`
	Assignee  string            `validate:"max=100"`
	Status    domain.TaskStatus `validate:"omitempty,oneof=pending in_progress review completed"`
	Limit     int
	Cursor    string
}

func (r ListTasksRequest) filter() store.TaskFilter {
	return store.TaskFilter{
		ProjectID: r.ProjectID,
		ImageID:   r.ImageID,
		Assignee:  r.Assignee,
		Status:    r.Status,
	}
}

// CreateTask creates a pending task for an image of a project.
func (s *TaskService) CreateTask(ctx context.Context, req CreateTaskRequest) (*domain.Task, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	project, err := s.repos.Projects.FindByID(ctx, req.ProjectID)
	if project, err = notFound(project, err, "project %s not found", req.ProjectID); err != nil {
		return nil, err
	}
	if project.Status == domain.ProjectArchived {
		return nil, domainerrors.Conflictf("project %s is archived", project.ID)
	}
	img, err := s.repos.Images.FindByID(ctx, req.ImageID)
	if img, err = notFound(img, err, "image %s not found", req.ImageID); err != nil {
		return nil, err
	}
	if img.ProjectID != project.ID {
		return nil, domainerrors.ValidationWithDetails("validation failed",
			map[string]string{"imageId": "image belongs to another project"})
	}

	t, err := s.repos.Tasks.Create(ctx, &domain.Task{
		ProjectID: project.ID,
		ImageID:   img.ID,
		Assignee:  sanitize.Name(req.Assignee, maxAssignee),
		Priority:  req.Priority,
		DueAt:     req.DueAt,
		Notes:     sanitize.Text(req.Notes, maxTaskNotes),
	})
	if err != nil {
		return nil, err
	}

	s.events.Emit(sse.NewTaskEvent(sse.EventTaskCreated, t))
	s.logger.Info("task created", "id", t.ID, "project_id", t.ProjectID, "image_id", t.ImageID)
	return t, nil
}

// GetTask returns a task with its image and project embedded.
func (s *TaskService) GetTask(ctx context.Context, taskID string) (*domain.TaskWithDetails, error) {
	if _, err := id.Parse(taskID); err != nil {
		return nil, err
	}
	t, err := s.repos.Tasks.GetWithDetails(ctx, taskID)
	return notFound(t, err, "task %s not found", taskID)
}

// ListTasks returns one page of tasks.
func (s *TaskService) ListTasks(ctx context.Context, req ListTasksRequest) (*store.PaginatedResult[*domain.Task], error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}
	params, err := pageParams(req.Limit, req.Cursor)
	if err != nil {
		return nil, err
	}
	return s.repos.Tasks.List(ctx, req.filter(), params)
}

// ListTasksWithDetails returns tasks with image and project embedded.
// Limit and Cursor are applied as an offset window.
func (s *TaskService) ListTasksWithDetails(ctx context.Context, req ListTasksRequest) ([]*domain.TaskWithDetails, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}
	params, err := pageParams(req.Limit, req.Cursor)
	if err != nil {
		return nil, err
	}
	offset, _ := params.Offset()
	return s.repos.Tasks.ListWithDetails(ctx, req.filter(), offset, params.Limit)
}

// UpdateTask changes scheduling fields of a task.
func (s *TaskService) UpdateTask(ctx context.Context, taskID string, req UpdateTaskRequest) (*domain.Task, error) {
	if _, err := id.Parse(taskID); err != nil {
		return nil, err
	}
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	set := store.Set{}
	if req.Priority != nil {
		set["priority"] = *req.Priority
	}
	if req.DueAt != nil {
		set["dueAt"] = req.DueAt.UTC()
	}
	if req.Notes != nil {
		set["notes"] = sanitize.Text(*req.Notes, maxTaskNotes)
	}
	if len(set) == 0 {
		t, err := s.repos.Tasks.FindByID(ctx, taskID)
		return notFound(t, err, "task %s not found", taskID)
	}

	t, err := s.repos.Tasks.UpdateOne(ctx, taskID, set)
	if t, err = notFound(t, err, "task %s not found", taskID); err != nil {
		return nil, err
	}
	s.events.Emit(sse.NewTaskEvent(sse.EventTaskUpdated, t))
	return t, nil
}

// AssignTask sets the assignee; "" unassigns.
func (s *TaskService) AssignTask(ctx context.Context, taskID, assignee string) (*domain.Task, error) {
	if _, err := id.Parse(taskID); err != nil {
		return nil, err
	}
	t, err := s.repos.Tasks.Assign(ctx, taskID, sanitize.Name(assignee, maxAssignee))
	if t, err = notFound(t, err, "task %s not found", taskID); err != nil {
		return nil, err
	}
	s.events.Emit(sse.NewTaskEvent(sse.EventTaskUpdated, t))
	s.logger.Info("task assigned", "id", t.ID, "assignee", t.Assignee)
	return t, nil
}

// UpdateTaskStatus moves a task through its workflow. Completing a task
// marks its image reviewed.
func (s *TaskService) UpdateTaskStatus(ctx context.Context, taskID string, status domain.TaskStatus) (*domain.Task, error) {
	if err := s.validator.Var("status", string(status), "required,oneof=pending in_progress review completed"); err != nil {
		return nil, err
	}
	if _, err := id.Parse(taskID); err != nil {
		return nil, err
	}

	t, err := s.repos.Tasks.Mutate(ctx, taskID, func(t *domain.Task) error {
		if t.Status == status {
			return nil
		}
		if !slices.Contains(taskTransitions[t.Status], status) {
			return domainerrors.Conflictf("task cannot move from %s to %s", t.Status, status).
				WithCause(store.ErrInvalidTransition)
		}
		t.Status = status
		return nil
	})
	if t, err = notFound(t, err, "task %s not found", taskID); err != nil {
		return nil, err
	}

	if status == domain.TaskCompleted {
		if img, err := s.repos.Images.SetStatus(ctx, t.ImageID, domain.ImageReviewed); err != nil {
			s.logger.Warn("failed to mark image reviewed", "image_id", t.ImageID, "error", err)
		} else if img != nil {
			s.events.Emit(sse.NewImageEvent(sse.EventImageUpdated, img))
		}
	}

	s.events.Emit(sse.NewTaskEvent(sse.EventTaskUpdated, t))
	s.logger.Info("task status changed", "id", t.ID, "status", t.Status)
	return t, nil
}

// DeleteTask removes a task.
func (s *TaskService) DeleteTask(ctx context.Context, taskID string) error {
	if _, err := id.Parse(taskID); err != nil {
		return err
	}
	t, err := s.repos.Tasks.FindByID(ctx, taskID)
	if t, err = notFound(t, err, "task %s not found", taskID); err != nil {
		return err
	}
	if _, err := s.repos.Tasks.DeleteOne(ctx, t.ID); err != nil {
		return err
	}
	s.events.Emit(sse.NewTaskDeletedEvent(t))
	return nil
}
