package store

import (
	"context"
	"encoding/json/v2"
	"fmt"
	"log/slog"

	jsonpatch "github.com/evanphx/json-patch/v5"

	"github.com/ilbumi/satin/internal/domain"
	"github.com/ilbumi/satin/internal/id"
)

// NewAnnotation is the input for creating an annotation version.
type NewAnnotation struct {
	ImageID     string
	BoundingBox domain.BoundingBox
	Tags        []string
	Description string
	Confidence  *float64
	Source      string            // defaults to domain.SourceManual
	ChangeType  domain.ChangeType // defaults to domain.ChangeCreate
}

// AnnotationPatch holds the fields an update may change. Nil (zero) fields
// are left untouched; a non-nil empty Tags clears the tags.
type AnnotationPatch struct {
	BoundingBox *domain.BoundingBox `json:"boundingBox,omitzero"`
	Tags        []string            `json:"tags,omitzero"`
	Description *string             `json:"description,omitzero"`
	Confidence  *float64            `json:"confidence,omitzero"`
	Source      *string             `json:"source,omitzero"`
}

// protectedAnnotationFields are owned by the version chain and ignored in patches.
var protectedAnnotationFields = []string{"id", "imageId", "version", "changeType", "createdAt", "updatedAt"}

// AnnotationRepository stores annotations as an append-only version chain
// per image. Documents are never modified in place: updates, soft deletes
// and restores append a new version.
type AnnotationRepository struct {
	*Collection[domain.Annotation]
	logger *slog.Logger
}

// NewAnnotationRepository creates the annotation repository.
func NewAnnotationRepository(b Backend, cache *Cache, logger *slog.Logger) *AnnotationRepository {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	c := NewCollection[domain.Annotation](b, CollectionAnnotations).
		WithIndex("imageId", func(a *domain.Annotation) []string { return []string{a.ImageID} }).
		WithIndex("tags", func(a *domain.Annotation) []string { return a.Tags }).
		WithIndex("source", func(a *domain.Annotation) []string { return []string{a.Source} }).
		WithIndex("changeType", func(a *domain.Annotation) []string { return []string{string(a.ChangeType)} }).
		WithCache(cache).
		WithLogger(logger)

	return &AnnotationRepository{Collection: c, logger: logger}
}

// Create appends a version numbered one past the image's latest version.
//
// The next version is read and then written without isolation: two
// concurrent writers for the same image can both produce the same version.
func (r *AnnotationRepository) Create(ctx context.Context, in NewAnnotation) (*domain.Annotation, error) {
	imageID, err := id.Parse(in.ImageID)
	if err != nil {
		return nil, err
	}

	a := &domain.Annotation{
		ImageID:     imageID.Hex(),
		BoundingBox: in.BoundingBox,
		Tags:        in.Tags,
		Description: in.Description,
		Confidence:  in.Confidence,
		Source:      in.Source,
		ChangeType:  in.ChangeType,
	}
	if a.Source == "" {
		a.Source = domain.SourceManual
	}
	if a.ChangeType == "" {
		a.ChangeType = domain.ChangeCreate
	}
	if a.Tags == nil {
		a.Tags = []string{}
	}

	return r.appendVersion(ctx, a)
}

// Update appends an UPDATE version merging patch into the given version.
// It returns nil when the annotation does not exist.
func (r *AnnotationRepository) Update(ctx context.Context, annotationID string, patch AnnotationPatch) (*domain.Annotation, error) {
	data, err := json.Marshal(patch)
	if err != nil {
		return nil, fmt.Errorf("marshal patch: %w", err)
	}
	return r.UpdateRaw(ctx, annotationID, data)
}

// UpdateRaw is Update for a JSON merge patch. Explicit nulls in the patch
// are dropped before merging, so they never clear a field. Chain fields
// (id, imageId, version, changeType, timestamps) are ignored.
func (r *AnnotationRepository) UpdateRaw(ctx context.Context, annotationID string, patch []byte) (*domain.Annotation, error) {
	current, err := r.FindByID(ctx, annotationID)
	if err != nil || current == nil {
		return nil, err
	}

	next, err := mergeAnnotation(current, patch)
	if err != nil {
		return nil, err
	}
	next.ChangeType = domain.ChangeUpdate

	return r.appendVersion(ctx, next)
}

// SoftDelete appends a DELETE version copying the given version's fields.
// It returns nil when the annotation does not exist.
func (r *AnnotationRepository) SoftDelete(ctx context.Context, annotationID string) (*domain.Annotation, error) {
	current, err := r.FindByID(ctx, annotationID)
	if err != nil || current == nil {
		return nil, err
	}

	next := cloneAnnotation(current)
	next.ChangeType = domain.ChangeDelete
	return r.appendVersion(ctx, next)
}

// Restore appends an UPDATE version copying the content of targetVersion.
// It returns nil when no such version exists for the image.
func (r *AnnotationRepository) Restore(ctx context.Context, imageID string, targetVersion int) (*domain.Annotation, error) {
	hexID, ok := id.Normalize(imageID)
	if !ok {
		return nil, nil
	}

	target, err := r.FindOne(ctx, Query(
		Eq("imageId", hexID),
		Eq("version", targetVersion),
	).OrderBy(Desc("createdAt"), Desc("id")))
	if err != nil || target == nil {
		return nil, err
	}

	next := cloneAnnotation(target)
	next.ChangeType = domain.ChangeUpdate
	return r.appendVersion(ctx, next)
}

// LatestForImage returns the highest version for an image, or nil.
func (r *AnnotationRepository) LatestForImage(ctx context.Context, imageID string) (*domain.Annotation, error) {
	hexID, ok := id.Normalize(imageID)
	if !ok {
		return nil, nil
	}
	return r.FindOne(ctx, Query(Eq("imageId", hexID)).OrderBy(Desc("version"), Desc("createdAt"), Desc("id")))
}

// ActiveForImage returns the current state of every live lineage of an
// image: versions are grouped by exact bounding box, the highest version of
// each group wins, and groups whose winner is a DELETE are dropped.
// Results are ordered by version, newest first.
func (r *AnnotationRepository) ActiveForImage(ctx context.Context, imageID string) ([]*domain.Annotation, error) {
	hexID, ok := id.Normalize(imageID)
	if !ok {
		return []*domain.Annotation{}, nil
	}

	docs, err := r.Aggregate(ctx,
		Match(Eq("imageId", hexID)),
		Sort(Desc("version"), Desc("createdAt"), Desc("id")),
		GroupFirst("imageId", "boundingBox"),
		Match(Ne("changeType", string(domain.ChangeDelete))),
		Sort(Desc("version")),
	)
	if err != nil {
		return nil, fmt.Errorf("active annotations for image %s: %w", hexID, err)
	}
	return DecodeAll[domain.Annotation](docs)
}

// HistoryForImage returns every version of an image, newest first.
func (r *AnnotationRepository) HistoryForImage(ctx context.Context, imageID string) ([]*domain.Annotation, error) {
	hexID, ok := id.Normalize(imageID)
	if !ok {
		return []*domain.Annotation{}, nil
	}
	return r.Find(ctx, Query(Eq("imageId", hexID)).OrderBy(Desc("version"), Desc("createdAt")))
}

// CountActiveForImage returns len(ActiveForImage).
func (r *AnnotationRepository) CountActiveForImage(ctx context.Context, imageID string) (int, error) {
	active, err := r.ActiveForImage(ctx, imageID)
	if err != nil {
		return 0, err
	}
	return len(active), nil
}

// FindByTags returns versions referencing any of tagIDs.
func (r *AnnotationRepository) FindByTags(ctx context.Context, tagIDs []string) ([]*domain.Annotation, error) {
	valid := make([]string, 0, len(tagIDs))
	for _, t := range tagIDs {
		if hexID, ok := id.Normalize(t); ok {
			valid = append(valid, hexID)
		}
	}
	if len(valid) == 0 {
		return []*domain.Annotation{}, nil
	}
	return r.Find(ctx, Query(In("tags", valid...)).OrderBy(Desc("createdAt"), Desc("id")))
}

// FindByConfidenceRange returns versions whose confidence lies within the
// inclusive bounds. Nil bounds are open. Versions without a confidence
// never match.
func (r *AnnotationRepository) FindByConfidenceRange(ctx context.Context, minConf, maxConf *float64) ([]*domain.Annotation, error) {
	q := Query(Exists("confidence"))
	if minConf != nil {
		q.Where(Gte("confidence", *minConf))
	}
	if maxConf != nil {
		q.Where(Lte("confidence", *maxConf))
	}
	return r.Find(ctx, q.OrderBy(Desc("confidence"), Desc("createdAt")))
}

// FindBySource returns versions with the given provenance.
func (r *AnnotationRepository) FindBySource(ctx context.Context, source string) ([]*domain.Annotation, error) {
	return r.Find(ctx, Query(Eq("source", source)).OrderBy(Desc("createdAt"), Desc("id")))
}

// PurgeImage hard-deletes every version of an image and returns the count.
func (r *AnnotationRepository) PurgeImage(ctx context.Context, imageID string) (int, error) {
	hexID, ok := id.Normalize(imageID)
	if !ok {
		return 0, nil
	}
	return r.DeleteMany(ctx, Query(Eq("imageId", hexID)))
}

// appendVersion stamps a as the image's next version and inserts it.
func (r *AnnotationRepository) appendVersion(ctx context.Context, a *domain.Annotation) (*domain.Annotation, error) {
	latest, err := r.LatestForImage(ctx, a.ImageID)
	if err != nil {
		return nil, err
	}

	a.ID = ""
	a.Version = 1
	if latest != nil {
		a.Version = latest.Version + 1
	}

	created, err := r.InsertOne(ctx, a)
	if err != nil {
		return nil, err
	}

	r.logger.Debug("annotation version appended",
		"image_id", created.ImageID,
		"annotation_id", created.ID,
		"version", created.Version,
		"change", created.ChangeType)

	return created, nil
}

func cloneAnnotation(a *domain.Annotation) *domain.Annotation {
	c := *a
	c.Base = domain.Base{}
	c.Tags = append([]string{}, a.Tags...)
	if a.Confidence != nil {
		conf := *a.Confidence
		c.Confidence = &conf
	}
	return &c
}

// mergeAnnotation applies a JSON merge patch to a copy of current.
func mergeAnnotation(current *domain.Annotation, patch []byte) (*domain.Annotation, error) {
	var fields map[string]any
	if err := json.Unmarshal(patch, &fields); err != nil {
		return nil, fmt.Errorf("invalid patch: %w", err)
	}
	pruneNulls(fields)
	for _, f := range protectedAnnotationFields {
		delete(fields, f)
	}

	cleaned, err := json.Marshal(fields)
	if err != nil {
		return nil, err
	}
	base, err := json.Marshal(cloneAnnotation(current))
	if err != nil {
		return nil, err
	}

	merged, err := jsonpatch.MergePatch(base, cleaned)
	if err != nil {
		return nil, fmt.Errorf("merge patch: %w", err)
	}

	var next domain.Annotation
	if err := json.Unmarshal(merged, &next); err != nil {
		return nil, fmt.Errorf("invalid patch: %w", err)
	}
	next.ImageID = current.ImageID
	if next.Tags == nil {
		next.Tags = []string{}
	}
	return &next, nil
}

// pruneNulls removes null members recursively.
func pruneNulls(m map[string]any) {
	for k, v := range m {
		switch x := v.(type) {
		case nil:
			delete(m, k)
		case map[string]any:
			pruneNulls(x)
		}
	}
}
