package store

import (
	"context"
	"log/slog"

	"github.com/ilbumi/satin/internal/domain"
	"github.com/ilbumi/satin/internal/id"
)

// TaskFilter narrows task listings. Empty fields do not filter.
type TaskFilter struct {
	ProjectID string
	ImageID   string
	Assignee  string
	Status    domain.TaskStatus
}

// Query builds the QuerySpec for a filter, by priority then age.
func (f TaskFilter) Query() *QuerySpec {
	q := Query().OrderBy(Desc("priority"), Asc("createdAt"), Asc("id"))
	if f.ProjectID != "" {
		q.Where(Eq("projectId", normalizeRef(f.ProjectID)))
	}
	if f.ImageID != "" {
		q.Where(Eq("imageId", normalizeRef(f.ImageID)))
	}
	if f.Assignee != "" {
		q.Where(Eq("assignee", f.Assignee))
	}
	if f.Status != "" {
		q.Where(Eq("status", string(f.Status)))
	}
	return q
}

// TaskRepository stores annotation tasks.
type TaskRepository struct {
	*Collection[domain.Task]
}

// NewTaskRepository creates the task repository.
func NewTaskRepository(b Backend, cache *Cache, logger *slog.Logger) *TaskRepository {
	c := NewCollection[domain.Task](b, CollectionTasks).
		WithIndex("projectId", func(t *domain.Task) []string { return []string{t.ProjectID} }).
		WithIndex("imageId", func(t *domain.Task) []string { return []string{t.ImageID} }).
		WithIndex("assignee", func(t *domain.Task) []string { return []string{t.Assignee} }).
		WithIndex("status", func(t *domain.Task) []string { return []string{string(t.Status)} }).
		WithCache(cache).
		WithLogger(logger)
	return &TaskRepository{Collection: c}
}

// Create stores a new task, defaulting its status to pending.
func (r *TaskRepository) Create(ctx context.Context, t *domain.Task) (*domain.Task, error) {
	if t.Status == "" {
		t.Status = domain.TaskPending
	}
	return r.InsertOne(ctx, t)
}

// List returns one page of tasks matching filter.
func (r *TaskRepository) List(ctx context.Context, filter TaskFilter, params PaginationParams) (*PaginatedResult[*domain.Task], error) {
	return r.Page(ctx, filter.Query(), params)
}

// ListWithDetails returns tasks matching filter with their image and
// project embedded. Dangling references embed as nil.
func (r *TaskRepository) ListWithDetails(ctx context.Context, filter TaskFilter, skip, limit int) ([]*domain.TaskWithDetails, error) {
	q := filter.Query()

	stages := []Stage{Match(q.Filters...), Sort(q.Sort...)}
	if skip > 0 {
		stages = append(stages, Skip(skip))
	}
	if limit > 0 {
		stages = append(stages, Limit(limit))
	}
	stages = append(stages,
		LookupStage{From: CollectionImages, LocalField: "imageId", ForeignField: "id", As: "image", Single: true},
		LookupStage{From: CollectionProjects, LocalField: "projectId", ForeignField: "id", As: "project", Single: true},
	)

	docs, err := r.Aggregate(ctx, stages...)
	if err != nil {
		return nil, err
	}
	return DecodeAll[domain.TaskWithDetails](docs)
}

// GetWithDetails returns one task with its image and project, or nil.
func (r *TaskRepository) GetWithDetails(ctx context.Context, taskID string) (*domain.TaskWithDetails, error) {
	hexID, ok := id.Normalize(taskID)
	if !ok {
		return nil, nil
	}

	docs, err := r.Aggregate(ctx,
		Match(Eq("id", hexID)),
		LookupStage{From: CollectionImages, LocalField: "imageId", ForeignField: "id", As: "image", Single: true},
		LookupStage{From: CollectionProjects, LocalField: "projectId", ForeignField: "id", As: "project", Single: true},
	)
	if err != nil || len(docs) == 0 {
		return nil, err
	}

	out, err := DecodeAll[domain.TaskWithDetails](docs)
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

// SetStatus moves a task to status.
func (r *TaskRepository) SetStatus(ctx context.Context, taskID string, status domain.TaskStatus) (*domain.Task, error) {
	return r.UpdateOne(ctx, taskID, Set{"status": string(status)})
}

// Assign sets the assignee ("" unassigns).
func (r *TaskRepository) Assign(ctx context.Context, taskID, assignee string) (*domain.Task, error) {
	return r.UpdateOne(ctx, taskID, Set{"assignee": assignee})
}

// StatusCounts returns the number of tasks per status in a project.
func (r *TaskRepository) StatusCounts(ctx context.Context, projectID string) (map[string]int, error) {
	return countBy(ctx, r.Collection, Match(Eq("projectId", normalizeRef(projectID))), "status")
}

// countBy groups the matched documents of c by field and returns the sizes.
func countBy[T any](ctx context.Context, c *Collection[T], match MatchStage, field string) (map[string]int, error) {
	docs, err := c.Aggregate(ctx, match, GroupStage{By: []string{field}, CountField: "count"})
	if err != nil {
		return nil, err
	}

	out := make(map[string]int, len(docs))
	for _, d := range docs {
		key, _ := d.Get(field)
		n, _ := d.Get("count")
		k, _ := key.(string)
		f, _ := n.(float64)
		out[k] = int(f)
	}
	return out, nil
}
