package store

import (
	"context"
	"log/slog"

	"github.com/ilbumi/satin/internal/domain"
	"github.com/ilbumi/satin/internal/id"
)

// ImageFilter narrows image listings. Empty fields do not filter.
type ImageFilter struct {
	ProjectID string
	Status    domain.ImageStatus
	Filename  string // case-insensitive substring
}

// ImageRepository stores image records.
type ImageRepository struct {
	*Collection[domain.Image]
}

// NewImageRepository creates the image repository.
func NewImageRepository(b Backend, cache *Cache, logger *slog.Logger) *ImageRepository {
	c := NewCollection[domain.Image](b, CollectionImages).
		WithIndex("projectId", func(i *domain.Image) []string { return []string{i.ProjectID} }).
		WithIndex("checksum", func(i *domain.Image) []string { return []string{i.Checksum} }).
		WithIndex("status", func(i *domain.Image) []string { return []string{string(i.Status)} }).
		WithCache(cache).
		WithLogger(logger)
	return &ImageRepository{Collection: c}
}

// Create stores a new image, defaulting its status to pending.
func (r *ImageRepository) Create(ctx context.Context, img *domain.Image) (*domain.Image, error) {
	if img.Status == "" {
		img.Status = domain.ImagePending
	}
	return r.InsertOne(ctx, img)
}

// Query builds the QuerySpec for a filter, newest first.
func (f ImageFilter) Query() *QuerySpec {
	q := Query().OrderBy(Desc("createdAt"), Desc("id"))
	if f.ProjectID != "" {
		q.Where(Eq("projectId", normalizeRef(f.ProjectID)))
	}
	if f.Status != "" {
		q.Where(Eq("status", string(f.Status)))
	}
	if f.Filename != "" {
		q.Where(Contains("filename", f.Filename, true))
	}
	return q
}

// List returns one page of images matching filter.
func (r *ImageRepository) List(ctx context.Context, filter ImageFilter, params PaginationParams) (*PaginatedResult[*domain.Image], error) {
	return r.Page(ctx, filter.Query(), params)
}

// ByProject returns every image of a project, newest first.
func (r *ImageRepository) ByProject(ctx context.Context, projectID string) ([]*domain.Image, error) {
	hexID, ok := id.Normalize(projectID)
	if !ok {
		return []*domain.Image{}, nil
	}
	return r.Find(ctx, ImageFilter{ProjectID: hexID}.Query())
}

// FindByChecksum returns an image of the project with identical content, or nil.
func (r *ImageRepository) FindByChecksum(ctx context.Context, projectID, checksum string) (*domain.Image, error) {
	if checksum == "" {
		return nil, nil
	}
	return r.FindOne(ctx, Query(Eq("checksum", checksum), Eq("projectId", normalizeRef(projectID))))
}

// SetStatus changes the annotation progress of an image.
func (r *ImageRepository) SetStatus(ctx context.Context, imageID string, status domain.ImageStatus) (*domain.Image, error) {
	return r.UpdateOne(ctx, imageID, Set{"status": string(status)})
}

// StatusCounts returns the number of images per status in a project.
func (r *ImageRepository) StatusCounts(ctx context.Context, projectID string) (map[string]int, error) {
	return countBy(ctx, r.Collection, Match(Eq("projectId", normalizeRef(projectID))), "status")
}
