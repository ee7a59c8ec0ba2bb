package api

import (
	"github.com/ilbumi/satin/internal/service"
)

// Services groups all business logic services used by the API server.
// This reduces the parameter count for NewServer and improves testability.
type Services struct {
	Projects    *service.ProjectService
	Images      *service.ImageService
	Annotations *service.AnnotationService
	Tags        *service.TagService
	Tasks       *service.TaskService
	MLJobs      *service.MLJobService
	Search      *service.SearchService
}
