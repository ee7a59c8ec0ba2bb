package service

import (
	"context"
	"encoding/json/v2"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ilbumi/satin/internal/config"
	"github.com/ilbumi/satin/internal/domain"
	domainerrors "github.com/ilbumi/satin/internal/errors"
	"github.com/ilbumi/satin/internal/id"
	"github.com/ilbumi/satin/internal/sanitize"
	"github.com/ilbumi/satin/internal/sse"
	"github.com/ilbumi/satin/internal/store"
	"github.com/ilbumi/satin/internal/validation"
)

// maxSourceLength bounds the provenance label.
const maxSourceLength = 100

// AnnotationService manages annotation version chains.
type AnnotationService struct {
	repos     *store.Repositories
	cfg       config.AnnotationConfig
	validator *validation.Validator
	events    EventEmitter
	indexer   SearchIndexer
	logger    *slog.Logger
}

// NewAnnotationService creates a new annotation service.
func NewAnnotationService(repos *store.Repositories, cfg config.AnnotationConfig, deps Deps) *AnnotationService {
	deps = deps.withDefaults()
	return &AnnotationService{
		repos:     repos,
		cfg:       cfg,
		validator: deps.Validator,
		events:    deps.Events,
		indexer:   deps.Indexer,
		logger:    deps.Logger,
	}
}

// CreateAnnotationRequest is the input for a new annotation lineage.
type CreateAnnotationRequest struct {
	ImageID     string             `json:"imageId" validate:"required,objectid"`
	BoundingBox domain.BoundingBox `json:"boundingBox"`
	Tags        []string           `json:"tags" validate:"omitempty,dive,objectid"`
	Description string             `json:"description"`
	Confidence  *float64           `json:"confidence,omitempty"`
	Source      string             `json:"source,omitempty" validate:"omitempty,max=100"`
}

// UpdateAnnotationRequest changes fields of the lineage an annotation
// belongs to. Nil fields are left untouched; a non-nil empty Tags clears them.
type UpdateAnnotationRequest struct {
	BoundingBox *domain.BoundingBox `json:"boundingBox,omitempty"`
	Tags        []string            `json:"tags,omitempty" validate:"omitempty,dive,objectid"`
	Description *string             `json:"description,omitempty"`
	Confidence  *float64            `json:"confidence,omitempty"`
	Source      *string             `json:"source,omitempty" validate:"omitempty,max=100"`
}

// CreateAnnotation appends the first version of a new lineage and bumps the usage
// count of every referenced tag.
func (s *AnnotationService) CreateAnnotation(ctx context.Context, req CreateAnnotationRequest) (*domain.Annotation, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}
	if err := s.checkBox(req.BoundingBox); err != nil {
		return nil, err
	}

	imageID, _ := id.Normalize(req.ImageID)
	tags := normalizeIDs(req.Tags)

	a, err := s.repos.Annotations.Create(ctx, store.NewAnnotation{
		ImageID:     imageID,
		BoundingBox: req.BoundingBox,
		Tags:        tags,
		Description: sanitize.Text(req.Description, s.cfg.MaxDescription),
		Confidence:  req.Confidence,
		Source:      sanitize.Name(req.Source, maxSourceLength),
	})
	if err != nil {
		return nil, fmt.Errorf("create annotation: %w", err)
	}

	for _, tagID := range tags {
		found, err := s.repos.Tags.IncrementUsageCount(ctx, tagID)
		if err != nil {
			s.logger.Warn("failed to increment tag usage", "tag_id", tagID, "error", err)
			continue
		}
		if !found {
			s.logger.Debug("annotation references unknown tag", "tag_id", tagID, "annotation_id", a.ID)
		}
	}

	s.markAnnotated(ctx, imageID)
	s.afterWrite(ctx, a, false)
	return a, nil
}

// UpdateAnnotation appends a new version of the lineage annotationID belongs to.
func (s *AnnotationService) UpdateAnnotation(ctx context.Context, annotationID string, req UpdateAnnotationRequest) (*domain.Annotation, error) {
	if _, err := id.Parse(annotationID); err != nil {
		return nil, err
	}
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}
	if req.BoundingBox != nil {
		if err := s.checkBox(*req.BoundingBox); err != nil {
			return nil, err
		}
	}

	patch := store.AnnotationPatch{
		BoundingBox: req.BoundingBox,
		Confidence:  req.Confidence,
	}
	if req.Tags != nil {
		patch.Tags = normalizeIDs(req.Tags)
	}
	if req.Description != nil {
		d := sanitize.Text(*req.Description, s.cfg.MaxDescription)
		patch.Description = &d
	}
	if req.Source != nil {
		src := sanitize.Name(*req.Source, maxSourceLength)
		patch.Source = &src
	}

	a, err := s.repos.Annotations.Update(ctx, annotationID, patch)
	a, err = notFound(a, err, "annotation %s not found", annotationID)
	if err != nil {
		return nil, err
	}
	s.afterWrite(ctx, a, false)
	return a, nil
}

// PatchAnnotation applies a JSON merge patch to the lineage annotationID belongs to.
// Version chain fields and null members in the patch are ignored. A partial
// bounding box is merged over the current one before it is checked.
func (s *AnnotationService) PatchAnnotation(ctx context.Context, annotationID string, patch []byte) (*domain.Annotation, error) {
	if _, err := id.Parse(annotationID); err != nil {
		return nil, err
	}
	current, err := s.repos.Annotations.FindByID(ctx, annotationID)
	current, err = notFound(current, err, "annotation %s not found", annotationID)
	if err != nil {
		return nil, err
	}
	cleaned, err := s.cleanPatch(patch, current.BoundingBox)
	if err != nil {
		return nil, err
	}
	a, err := s.repos.Annotations.UpdateRaw(ctx, annotationID, cleaned)
	a, err = notFound(a, err, "annotation %s not found", annotationID)
	if err != nil {
		return nil, err
	}
	s.afterWrite(ctx, a, false)
	return a, nil
}

// DeleteAnnotation appends a soft-delete marker for the lineage of annotationID.
func (s *AnnotationService) DeleteAnnotation(ctx context.Context, annotationID string) (*domain.Annotation, error) {
	if _, err := id.Parse(annotationID); err != nil {
		return nil, err
	}
	a, err := s.repos.Annotations.SoftDelete(ctx, annotationID)
	a, err = notFound(a, err, "annotation %s not found", annotationID)
	if err != nil {
		return nil, err
	}
	s.afterWrite(ctx, a, false)
	return a, nil
}

// Restore re-appends the content of version of imageID as the newest version.
func (s *AnnotationService) Restore(ctx context.Context, imageID string, version int) (*domain.Annotation, error) {
	if _, err := id.Parse(imageID); err != nil {
		return nil, err
	}
	if version < 1 {
		return nil, domainerrors.Validation("version must be at least 1")
	}
	a, err := s.repos.Annotations.Restore(ctx, imageID, version)
	a, err = notFound(a, err, "version %d of image %s not found", version, imageID)
	if err != nil {
		return nil, err
	}
	s.afterWrite(ctx, a, true)
	return a, nil
}

// GetAnnotation returns one annotation version.
func (s *AnnotationService) GetAnnotation(ctx context.Context, annotationID string) (*domain.Annotation, error) {
	if _, err := id.Parse(annotationID); err != nil {
		return nil, err
	}
	a, err := s.repos.Annotations.FindByID(ctx, annotationID)
	return notFound(a, err, "annotation %s not found", annotationID)
}

// LatestAnnotation returns the newest version of any lineage of imageID.
func (s *AnnotationService) LatestAnnotation(ctx context.Context, imageID string) (*domain.Annotation, error) {
	if _, err := id.Parse(imageID); err != nil {
		return nil, err
	}
	a, err := s.repos.Annotations.LatestForImage(ctx, imageID)
	return notFound(a, err, "image %s has no annotations", imageID)
}

// ActiveAnnotations returns the current state of every non-deleted lineage of imageID.
func (s *AnnotationService) ActiveAnnotations(ctx context.Context, imageID string) ([]*domain.Annotation, error) {
	if _, err := id.Parse(imageID); err != nil {
		return nil, err
	}
	return s.repos.Annotations.ActiveForImage(ctx, imageID)
}

// History returns every version of imageID, newest first.
func (s *AnnotationService) History(ctx context.Context, imageID string) ([]*domain.Annotation, error) {
	if _, err := id.Parse(imageID); err != nil {
		return nil, err
	}
	return s.repos.Annotations.HistoryForImage(ctx, imageID)
}

// CountActive returns the number of live lineages on imageID.
func (s *AnnotationService) CountActive(ctx context.Context, imageID string) (int, error) {
	if _, err := id.Parse(imageID); err != nil {
		return 0, err
	}
	return s.repos.Annotations.CountActiveForImage(ctx, imageID)
}

// FindByTags returns versions referencing any of tagIDs.
func (s *AnnotationService) FindByTags(ctx context.Context, tagIDs []string) ([]*domain.Annotation, error) {
	return s.repos.Annotations.FindByTags(ctx, tagIDs)
}

// FindByConfidence returns versions whose confidence is within the
// inclusive bounds. Nil bounds are open.
func (s *AnnotationService) FindByConfidence(ctx context.Context, minConf, maxConf *float64) ([]*domain.Annotation, error) {
	if minConf != nil && maxConf != nil && *minConf > *maxConf {
		return nil, domainerrors.Validation("minimum confidence exceeds maximum")
	}
	return s.repos.Annotations.FindByConfidenceRange(ctx, minConf, maxConf)
}

// FindBySource returns versions with the given provenance label.
func (s *AnnotationService) FindBySource(ctx context.Context, source string) ([]*domain.Annotation, error) {
	source = strings.TrimSpace(source)
	if source == "" {
		return nil, domainerrors.Validation("source is required")
	}
	return s.repos.Annotations.FindBySource(ctx, source)
}

// checkBox rejects boxes with negative origin, empty area or an edge beyond
// the configured coordinate limit.
func (s *AnnotationService) checkBox(b domain.BoundingBox) error {
	details := map[string]string{}
	if b.X < 0 {
		details["boundingBox.x"] = "must not be negative"
	}
	if b.Y < 0 {
		details["boundingBox.y"] = "must not be negative"
	}
	if b.Width <= 0 {
		details["boundingBox.width"] = "must be positive"
	}
	if b.Height <= 0 {
		details["boundingBox.height"] = "must be positive"
	}
	if limit := s.cfg.MaxCoordinate; limit > 0 {
		if b.X+b.Width > limit {
			details["boundingBox.width"] = fmt.Sprintf("box exceeds maximum coordinate %g", limit)
		}
		if b.Y+b.Height > limit {
			details["boundingBox.height"] = fmt.Sprintf("box exceeds maximum coordinate %g", limit)
		}
	}
	if len(details) > 0 {
		return domainerrors.ValidationWithDetails("invalid bounding box", details)
	}
	return nil
}

// cleanPatch checks and sanitizes the members of a merge patch the same
// way UpdateAnnotation treats its request. The box member is replaced by the
// full box it produces over current.
func (s *AnnotationService) cleanPatch(patch []byte, current domain.BoundingBox) ([]byte, error) {
	var fields map[string]any
	if err := json.Unmarshal(patch, &fields); err != nil {
		return nil, domainerrors.Validation("patch must be a JSON object").WithCause(err)
	}

	if raw, ok := fields["boundingBox"]; ok && raw != nil {
		b, err := overlayBox(current, raw)
		if err != nil {
			return nil, domainerrors.ValidationWithDetails("invalid bounding box", map[string]string{"boundingBox": "must be an object of numbers"})
		}
		if err := s.checkBox(b); err != nil {
			return nil, err
		}
		fields["boundingBox"] = b
	}
	if raw, ok := fields["tags"]; ok && raw != nil {
		list, ok := raw.([]any)
		if !ok {
			return nil, domainerrors.ValidationWithDetails("validation failed", map[string]string{"tags": "must be an array"})
		}
		tags := make([]string, 0, len(list))
		for _, v := range list {
			str, _ := v.(string)
			if !id.IsValid(str) {
				return nil, domainerrors.ValidationWithDetails("validation failed", map[string]string{"tags": "must contain object ids"})
			}
			tags = append(tags, str)
		}
		fields["tags"] = normalizeIDs(tags)
	}
	if d, ok := fields["description"].(string); ok {
		fields["description"] = sanitize.Text(d, s.cfg.MaxDescription)
	}
	if src, ok := fields["source"].(string); ok {
		fields["source"] = sanitize.Name(src, maxSourceLength)
	}

	return json.Marshal(fields)
}

// overlayBox sets the non-null members of a patch box on top of base.
func overlayBox(base domain.BoundingBox, raw any) (domain.BoundingBox, error) {
	members, ok := raw.(map[string]any)
	if !ok {
		return domain.BoundingBox{}, fmt.Errorf("bounding box patch is %T, not an object", raw)
	}

	data, err := json.Marshal(base)
	if err != nil {
		return domain.BoundingBox{}, err
	}
	var merged map[string]any
	if err := json.Unmarshal(data, &merged); err != nil {
		return domain.BoundingBox{}, err
	}
	for k, v := range members {
		if v != nil {
			merged[k] = v
		}
	}

	var b domain.BoundingBox
	if data, err = json.Marshal(merged); err != nil {
		return domain.BoundingBox{}, err
	}
	if err := json.Unmarshal(data, &b); err != nil {
		return domain.BoundingBox{}, err
	}
	return b, nil
}

// markAnnotated moves a pending image to annotated on its first annotation.
func (s *AnnotationService) markAnnotated(ctx context.Context, imageID string) {
	img, err := s.repos.Images.FindByID(ctx, imageID)
	if err != nil || img == nil || img.Status != domain.ImagePending {
		return
	}
	updated, err := s.repos.Images.SetStatus(ctx, imageID, domain.ImageAnnotated)
	if err != nil {
		s.logger.Warn("failed to mark image annotated", "image_id", imageID, "error", err)
		return
	}
	if updated != nil {
		s.events.Emit(sse.NewImageEvent(sse.EventImageUpdated, updated))
	}
}

func (s *AnnotationService) afterWrite(ctx context.Context, a *domain.Annotation, restored bool) {
	logIndexError(s.logger, s.indexer.SyncAnnotations(ctx, a.ImageID), "sync_annotations", a.ImageID)

	event := sse.NewAnnotationEvent(a, restored)
	if img, err := s.repos.Images.FindByID(ctx, a.ImageID); err == nil && img != nil {
		event.ProjectID = img.ProjectID
	}
	s.events.Emit(event)

	s.logger.Debug("annotation version appended",
		"annotation_id", a.ID,
		"image_id", a.ImageID,
		"version", a.Version,
		"change", a.ChangeType,
	)
}

// normalizeIDs lowercases ids and drops duplicates, keeping first-seen order.
func normalizeIDs(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]bool, len(in))
	for _, raw := range in {
		hexID, ok := id.Normalize(raw)
		if !ok || seen[hexID] {
			continue
		}
		seen[hexID] = true
		out = append(out, hexID)
	}
	return out
}
