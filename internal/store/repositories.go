package store

import "log/slog"

// Collection names.
const (
	CollectionAnnotations = "annotations"
	CollectionTags        = "tags"
	CollectionImages      = "images"
	CollectionProjects    = "projects"
	CollectionTasks       = "tasks"
	CollectionMLJobs      = "mljobs"
)

// Repositories groups every repository over one backend and cache.
type Repositories struct {
	Backend     Backend
	Cache       *Cache
	Annotations *AnnotationRepository
	Tags        *TagRepository
	Images      *ImageRepository
	Projects    *ProjectRepository
	Tasks       *TaskRepository
	MLJobs      *MLJobRepository
}

// NewRepositories wires the repositories. cache may be nil to disable caching.
func NewRepositories(b Backend, cache *Cache, logger *slog.Logger) *Repositories {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Repositories{
		Backend:     b,
		Cache:       cache,
		Annotations: NewAnnotationRepository(b, cache, logger.With("repository", CollectionAnnotations)),
		Tags:        NewTagRepository(b, cache, logger.With("repository", CollectionTags)),
		Images:      NewImageRepository(b, cache, logger.With("repository", CollectionImages)),
		Projects:    NewProjectRepository(b, cache, logger.With("repository", CollectionProjects)),
		Tasks:       NewTaskRepository(b, cache, logger.With("repository", CollectionTasks)),
		MLJobs:      NewMLJobRepository(b, cache, logger.With("repository", CollectionMLJobs)),
	}
}

// Close closes the backend.
func (r *Repositories) Close() error {
	return r.Backend.Close()
}
