package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/ilbumi/satin/internal/config"
	"github.com/ilbumi/satin/internal/domain"
	domainerrors "github.com/ilbumi/satin/internal/errors"
	"github.com/ilbumi/satin/internal/id"
	"github.com/ilbumi/satin/internal/media/fetch"
	"github.com/ilbumi/satin/internal/media/images"
	"github.com/ilbumi/satin/internal/sanitize"
	"github.com/ilbumi/satin/internal/sse"
	"github.com/ilbumi/satin/internal/store"
	"github.com/ilbumi/satin/internal/validation"
)

const maxMetadataEntries = 50

// ImageService registers, serves and removes project images.
type ImageService struct {
	repos     *store.Repositories
	storage   *images.Storage
	processor *images.Processor
	fetcher   *fetch.Fetcher
	maxUpload int64
	validator *validation.Validator
	events    EventEmitter
	indexer   SearchIndexer
	logger    *slog.Logger
}

// NewImageService creates a new image service. fetcher may be nil, which
// disables URL imports.
func NewImageService(
	repos *store.Repositories,
	storage *images.Storage,
	processor *images.Processor,
	fetcher *fetch.Fetcher,
	cfg config.StorageConfig,
	deps Deps,
) *ImageService {
	deps = deps.withDefaults()
	return &ImageService{
		repos:     repos,
		storage:   storage,
		processor: processor,
		fetcher:   fetcher,
		maxUpload: cfg.MaxUploadBytes,
		validator: deps.Validator,
		events:    deps.Events,
		indexer:   deps.Indexer,
		logger:    deps.Logger,
	}
}

// RegisterImageRequest describes an image being added to a project.
type RegisterImageRequest struct {
	ProjectID string            `json:"projectId" validate:"required,objectid"`
	Filename  string            `json:"filename" validate:"max=255"`
	URL       string            `json:"url,omitempty" validate:"omitempty,url"`
	Metadata  map[string]string `json:"metadata,omitempty" validate:"max=50"`
}

// ImportImageRequest asks the server to download an image into a project.
type ImportImageRequest struct {
	ProjectID string            `json:"projectId" validate:"required,objectid"`
	URL       string            `json:"url" validate:"required,url"`
	Metadata  map[string]string `json:"metadata,omitempty" validate:"max=50"`
}

// UpdateImageRequest contains fields for updating an image record.
type UpdateImageRequest struct {
	Filename *string             `json:"filename" validate:"omitempty,max=255"`
	Status   *domain.ImageStatus `json:"status" validate:"omitempty,oneof=pending annotated reviewed"`
	Metadata map[string]string   `json:"metadata" validate:"omitempty,max=50"`
}

// ListImagesRequest filters an image listing.
type ListImagesRequest struct {
	ProjectID string             `validate:"omitempty,objectid"`
	Status    domain.ImageStatus `validate:"omitempty,oneof=pending annotated reviewed"`
	Filename  string
	Limit     int
	Cursor    string
}

// RegisterResult is the outcome of adding an image.
type RegisterResult struct {
	Image     *domain.Image
	Duplicate bool // the project already held identical content
}

// RegisterImage stores the content of r, reads its dimensions and
// placeholder, and records it in the project. Content already present in
// the project returns the existing record.
func (s *ImageService) RegisterImage(ctx context.Context, req RegisterImageRequest, r io.Reader) (*RegisterResult, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}
	project, err := s.activeProject(ctx, req.ProjectID)
	if err != nil {
		return nil, err
	}

	filename := sanitize.Filename(req.Filename)
	stored, err := s.storage.Save(r, filepath.Ext(filename), s.maxUpload)
	switch {
	case errors.Is(err, images.ErrTooLarge):
		return nil, domainerrors.PayloadTooLarge(fmt.Sprintf("image exceeds %d bytes", s.maxUpload))
	case errors.Is(err, images.ErrEmpty):
		return nil, domainerrors.Validation("image data is empty")
	case err != nil:
		return nil, fmt.Errorf("store image: %w", err)
	}

	info, err := s.analyze(stored)
	if err != nil {
		if !stored.Existed {
			if rmErr := s.storage.Delete(stored.Path); rmErr != nil {
				s.logger.Warn("failed to remove rejected upload", "path", stored.Path, "error", rmErr)
			}
		}
		return nil, domainerrors.UnsupportedMedia("file is not a supported image").WithCause(err)
	}

	existing, err := s.repos.Images.FindByChecksum(ctx, project.ID, stored.Checksum)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		s.logger.Info("duplicate image upload", "image_id", existing.ID, "project_id", project.ID)
		return &RegisterResult{Image: existing, Duplicate: true}, nil
	}

	if filename == "" {
		filename = stored.Checksum[:12] + info.Ext()
	}

	img, err := s.repos.Images.Create(ctx, &domain.Image{
		ProjectID:   project.ID,
		Filename:    filename,
		StoragePath: stored.Path,
		URL:         req.URL,
		MimeType:    info.MimeType,
		Size:        stored.Size,
		Width:       info.Width,
		Height:      info.Height,
		Checksum:    stored.Checksum,
		BlurHash:    info.BlurHash,
		Metadata:    cleanMetadata(req.Metadata),
	})
	if err != nil {
		return nil, err
	}

	logIndexError(s.logger, s.indexer.IndexImage(ctx, img), "index_image", img.ID)
	s.events.Emit(sse.NewImageEvent(sse.EventImageCreated, img))

	s.logger.Info("image registered",
		"id", img.ID,
		"project_id", img.ProjectID,
		"filename", img.Filename,
		"width", img.Width,
		"height", img.Height,
	)
	return &RegisterResult{Image: img}, nil
}

// ImportImage downloads an image by URL and registers it.
func (s *ImageService) ImportImage(ctx context.Context, req ImportImageRequest) (*RegisterResult, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}
	if s.fetcher == nil {
		return nil, domainerrors.Forbidden("url import is disabled")
	}
	rawURL, err := sanitize.URL(req.URL)
	if err != nil {
		return nil, domainerrors.ValidationWithDetails("validation failed", map[string]string{"url": err.Error()})
	}
	if _, err := s.activeProject(ctx, req.ProjectID); err != nil {
		return nil, err
	}

	res, err := s.fetcher.Fetch(ctx, rawURL, s.maxUpload)
	if err != nil {
		var statusErr *fetch.StatusError
		switch {
		case errors.Is(err, fetch.ErrTooLarge):
			return nil, domainerrors.PayloadTooLarge("remote image exceeds size limit")
		case errors.Is(err, fetch.ErrNotImage):
			return nil, domainerrors.UnsupportedMedia("remote resource is not an image")
		case errors.As(err, &statusErr):
			return nil, domainerrors.Validationf("remote server returned status %d", statusErr.Status)
		default:
			return nil, domainerrors.Validation("failed to download image").WithCause(err)
		}
	}

	return s.RegisterImage(ctx, RegisterImageRequest{
		ProjectID: req.ProjectID,
		Filename:  res.Filename,
		URL:       rawURL,
		Metadata:  req.Metadata,
	}, bytes.NewReader(res.Data))
}

// GetImage returns a single image record.
func (s *ImageService) GetImage(ctx context.Context, imageID string) (*domain.Image, error) {
	if _, err := id.Parse(imageID); err != nil {
		return nil, err
	}
	img, err := s.repos.Images.FindByID(ctx, imageID)
	return notFound(img, err, "image %s not found", imageID)
}

// ListImages returns one page of images.
func (s *ImageService) ListImages(ctx context.Context, req ListImagesRequest) (*store.PaginatedResult[*domain.Image], error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}
	params, err := pageParams(req.Limit, req.Cursor)
	if err != nil {
		return nil, err
	}
	return s.repos.Images.List(ctx, store.ImageFilter{
		ProjectID: req.ProjectID,
		Status:    req.Status,
		Filename:  sanitize.Name(req.Filename, 255),
	}, params)
}

// OpenImageFile opens the stored file of an image. The caller closes it.
func (s *ImageService) OpenImageFile(ctx context.Context, imageID string) (*domain.Image, *os.File, error) {
	img, err := s.GetImage(ctx, imageID)
	if err != nil {
		return nil, nil, err
	}
	f, err := s.storage.Open(img.StoragePath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil, domainerrors.NotFoundf("file of image %s is missing", img.ID)
	}
	if err != nil {
		return nil, nil, err
	}
	return img, f, nil
}

// UpdateImage changes the filename, status or metadata of an image.
func (s *ImageService) UpdateImage(ctx context.Context, imageID string, req UpdateImageRequest) (*domain.Image, error) {
	if _, err := id.Parse(imageID); err != nil {
		return nil, err
	}
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	set := store.Set{}
	if req.Filename != nil {
		name := sanitize.Filename(*req.Filename)
		if name == "" {
			return nil, domainerrors.ValidationWithDetails("validation failed", map[string]string{"filename": "must not be blank"})
		}
		set["filename"] = name
	}
	if req.Status != nil {
		set["status"] = string(*req.Status)
	}
	if req.Metadata != nil {
		set["metadata"] = cleanMetadata(req.Metadata)
	}
	if len(set) == 0 {
		return s.GetImage(ctx, imageID)
	}

	img, err := s.repos.Images.UpdateOne(ctx, imageID, set)
	if img, err = notFound(img, err, "image %s not found", imageID); err != nil {
		return nil, err
	}
	logIndexError(s.logger, s.indexer.IndexImage(ctx, img), "index_image", img.ID)
	s.events.Emit(sse.NewImageEvent(sse.EventImageUpdated, img))
	return img, nil
}

// DeleteImage removes an image with its annotation history, tasks and ML
// jobs. The stored file is removed once no other record references it.
func (s *ImageService) DeleteImage(ctx context.Context, imageID string) error {
	img, err := s.GetImage(ctx, imageID)
	if err != nil {
		return err
	}

	purged, err := s.repos.Annotations.PurgeImage(ctx, img.ID)
	if err != nil {
		return fmt.Errorf("purge annotations: %w", err)
	}
	tasks, err := s.repos.Tasks.DeleteMany(ctx, store.Query(store.Eq("imageId", img.ID)))
	if err != nil {
		return fmt.Errorf("delete tasks: %w", err)
	}
	if _, err := s.repos.MLJobs.DeleteMany(ctx, store.Query(store.Eq("imageId", img.ID))); err != nil {
		return fmt.Errorf("delete ml jobs: %w", err)
	}
	if _, err := s.repos.Images.DeleteOne(ctx, img.ID); err != nil {
		return err
	}

	shared, err := s.repos.Images.Count(ctx, store.Query(store.Eq("checksum", img.Checksum), store.Eq("storagePath", img.StoragePath)))
	if err != nil {
		s.logger.Warn("failed to check shared image file", "path", img.StoragePath, "error", err)
	} else if shared == 0 {
		if err := s.storage.Delete(img.StoragePath); err != nil {
			s.logger.Warn("failed to remove image file", "path", img.StoragePath, "error", err)
		}
	}

	logIndexError(s.logger, s.indexer.DeleteImage(ctx, img.ID), "delete_image", img.ID)
	logIndexError(s.logger, s.indexer.SyncAnnotations(ctx, img.ID), "sync_annotations", img.ID)
	s.events.Emit(sse.NewImageDeletedEvent(img))

	s.logger.Info("image deleted", "id", img.ID, "annotations", purged, "tasks", tasks)
	return nil
}

func (s *ImageService) activeProject(ctx context.Context, projectID string) (*domain.Project, error) {
	p, err := s.repos.Projects.FindByID(ctx, projectID)
	if p, err = notFound(p, err, "project %s not found", projectID); err != nil {
		return nil, err
	}
	if p.Status == domain.ProjectArchived {
		return nil, domainerrors.Conflictf("project %s is archived", p.ID)
	}
	return p, nil
}

func (s *ImageService) analyze(stored *images.Stored) (*images.Info, error) {
	path, err := s.storage.Path(stored.Path)
	if err != nil {
		return nil, err
	}
	return s.processor.AnalyzeFile(path)
}

// cleanMetadata sanitizes keys and values and drops blank keys.
func cleanMetadata(in map[string]string) map[string]string {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]string, min(len(in), maxMetadataEntries))
	for k, v := range in {
		k = sanitize.Name(k, 100)
		if k == "" {
			continue
		}
		out[k] = sanitize.Name(v, 1000)
		if len(out) == maxMetadataEntries {
			break
		}
	}
	return out
}
