package providers

import (
	"github.com/samber/do/v2"

	"github.com/ilbumi/satin/internal/config"
	"github.com/ilbumi/satin/internal/logger"
	"github.com/ilbumi/satin/internal/media/fetch"
	"github.com/ilbumi/satin/internal/media/images"
	"github.com/ilbumi/satin/internal/service"
	"github.com/ilbumi/satin/internal/validation"
)

// ProvideServiceDeps provides the collaborators shared by all services.
func ProvideServiceDeps(i do.Injector) (service.Deps, error) {
	sseHandle := do.MustInvoke[*SSEManagerHandle](i)
	searchService := do.MustInvoke[*service.SearchService](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.Deps{
		Validator: validation.New(),
		Events:    sseHandle.Manager,
		Indexer:   searchService,
		Logger:    log.Logger,
	}, nil
}

// ProvideProjectService provides the project service.
func ProvideProjectService(i do.Injector) (*service.ProjectService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	deps := do.MustInvoke[service.Deps](i)

	return service.NewProjectService(storeHandle.Repositories, deps), nil
}

// ProvideImageService provides the image service.
func ProvideImageService(i do.Injector) (*service.ImageService, error) {
	cfg := do.MustInvoke[*config.Config](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	storage := do.MustInvoke[*images.Storage](i)
	processor := do.MustInvoke[*images.Processor](i)
	fetcher := do.MustInvoke[*fetch.Fetcher](i)
	deps := do.MustInvoke[service.Deps](i)

	return service.NewImageService(storeHandle.Repositories, storage, processor, fetcher, cfg.Storage, deps), nil
}

// ProvideAnnotationService provides the annotation service.
func ProvideAnnotationService(i do.Injector) (*service.AnnotationService, error) {
	cfg := do.MustInvoke[*config.Config](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	deps := do.MustInvoke[service.Deps](i)

	return service.NewAnnotationService(storeHandle.Repositories, cfg.Annotation, deps), nil
}

// ProvideTagService provides the tag service.
func ProvideTagService(i do.Injector) (*service.TagService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	deps := do.MustInvoke[service.Deps](i)

	return service.NewTagService(storeHandle.Repositories, deps), nil
}

// ProvideTaskService provides the task service.
func ProvideTaskService(i do.Injector) (*service.TaskService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	deps := do.MustInvoke[service.Deps](i)

	return service.NewTaskService(storeHandle.Repositories, deps), nil
}

// ProvideMLJobService provides the ML job service.
func ProvideMLJobService(i do.Injector) (*service.MLJobService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	annotations := do.MustInvoke[*service.AnnotationService](i)
	deps := do.MustInvoke[service.Deps](i)

	return service.NewMLJobService(storeHandle.Repositories, annotations, deps), nil
}
