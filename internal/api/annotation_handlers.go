package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/ilbumi/satin/internal/api/dto"
	"github.com/ilbumi/satin/internal/domain"
	domainerrors "github.com/ilbumi/satin/internal/errors"
	"github.com/ilbumi/satin/internal/service"
)

func (s *Server) registerAnnotationRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "findAnnotations",
		Method:      http.MethodGet,
		Path:        "/api/v1/annotations",
		Summary:     "Find annotations",
		Description: "Returns annotation versions matching tags, source or a confidence range. Exactly one filter kind is required",
		Tags:        []string{"Annotations"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleFindAnnotations)

	huma.Register(s.api, huma.Operation{
		OperationID:   "createAnnotation",
		Method:        http.MethodPost,
		Path:          "/api/v1/annotations",
		Summary:       "Create annotation",
		Description:   "Appends a new version for the image. Identical boxes continue the existing lineage",
		Tags:          []string{"Annotations"},
		DefaultStatus: http.StatusCreated,
		Security:      []map[string][]string{{"bearer": {}}},
	}, s.handleCreateAnnotation)

	huma.Register(s.api, huma.Operation{
		OperationID: "getAnnotation",
		Method:      http.MethodGet,
		Path:        "/api/v1/annotations/{id}",
		Summary:     "Get annotation",
		Description: "Returns one annotation version by ID",
		Tags:        []string{"Annotations"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleGetAnnotation)

	huma.Register(s.api, huma.Operation{
		OperationID: "updateAnnotation",
		Method:      http.MethodPut,
		Path:        "/api/v1/annotations/{id}",
		Summary:     "Update annotation",
		Description: "Appends a new version of the lineage with the provided fields changed",
		Tags:        []string{"Annotations"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleUpdateAnnotation)

	huma.Register(s.api, huma.Operation{
		OperationID: "patchAnnotation",
		Method:      http.MethodPatch,
		Path:        "/api/v1/annotations/{id}",
		Summary:     "Patch annotation",
		Description: "Applies a JSON merge patch and appends the result as a new version",
		Tags:        []string{"Annotations"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handlePatchAnnotation)

	huma.Register(s.api, huma.Operation{
		OperationID: "deleteAnnotation",
		Method:      http.MethodDelete,
		Path:        "/api/v1/annotations/{id}",
		Summary:     "Delete annotation",
		Description: "Appends a delete marker to the lineage and returns it",
		Tags:        []string{"Annotations"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleDeleteAnnotation)

	huma.Register(s.api, huma.Operation{
		OperationID: "listActiveAnnotations",
		Method:      http.MethodGet,
		Path:        "/api/v1/images/{id}/annotations",
		Summary:     "List active annotations",
		Description: "Returns the newest version of every live lineage on the image",
		Tags:        []string{"Annotations"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleListActiveAnnotations)

	huma.Register(s.api, huma.Operation{
		OperationID: "getAnnotationHistory",
		Method:      http.MethodGet,
		Path:        "/api/v1/images/{id}/annotations/history",
		Summary:     "Get annotation history",
		Description: "Returns every annotation version of the image, newest first",
		Tags:        []string{"Annotations"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleGetAnnotationHistory)

	huma.Register(s.api, huma.Operation{
		OperationID: "getLatestAnnotation",
		Method:      http.MethodGet,
		Path:        "/api/v1/images/{id}/annotations/latest",
		Summary:     "Get latest annotation",
		Description: "Returns the most recent version of any lineage on the image",
		Tags:        []string{"Annotations"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleGetLatestAnnotation)

	huma.Register(s.api, huma.Operation{
		OperationID: "countActiveAnnotations",
		Method:      http.MethodGet,
		Path:        "/api/v1/images/{id}/annotations/count",
		Summary:     "Count active annotations",
		Description: "Returns the number of live lineages on the image",
		Tags:        []string{"Annotations"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleCountActiveAnnotations)

	huma.Register(s.api, huma.Operation{
		OperationID:   "restoreAnnotation",
		Method:        http.MethodPost,
		Path:          "/api/v1/images/{id}/annotations/restore",
		Summary:       "Restore annotation version",
		Description:   "Re-appends the content of an earlier version as the newest version",
		Tags:          []string{"Annotations"},
		DefaultStatus: http.StatusCreated,
		Security:      []map[string][]string{{"bearer": {}}},
	}, s.handleRestoreAnnotation)
}

// === DTOs ===

// FindAnnotationsInput contains the annotation search filters.
type FindAnnotationsInput struct {
	Authorization string `header:"Authorization"`
	Tags          string `query:"tags" doc:"Comma separated tag IDs; matches versions with any of them"`
	Source        string `query:"source" doc:"Provenance label, e.g. manual or ml:<model>"`
	MinConfidence string `query:"minConfidence" doc:"Inclusive lower confidence bound"`
	MaxConfidence string `query:"maxConfidence" doc:"Inclusive upper confidence bound"`
}

// AnnotationListOutput wraps a list of annotation versions for Huma.
type AnnotationListOutput struct {
	Body dto.ListResponse[*domain.Annotation]
}

// CreateAnnotationRequest is the request body for creating an annotation.
type CreateAnnotationRequest struct {
	ImageID     string             `json:"imageId" doc:"Annotated image"`
	BoundingBox domain.BoundingBox `json:"boundingBox" doc:"Box in image pixel coordinates"`
	Tags        []string           `json:"tags,omitempty" doc:"Tag IDs"`
	Description string             `json:"description,omitempty" doc:"Free text, HTML is converted to markdown"`
	Confidence  *float64           `json:"confidence,omitempty" minimum:"0" maximum:"1" doc:"Confidence in [0, 1]"`
	Source      string             `json:"source,omitempty" maxLength:"100" doc:"Provenance label, defaults to manual"`
}

// CreateAnnotationInput wraps the create annotation request for Huma.
type CreateAnnotationInput struct {
	Authorization string `header:"Authorization"`
	Body          CreateAnnotationRequest
}

// AnnotationOutput wraps one annotation version for Huma.
type AnnotationOutput struct {
	Body *domain.Annotation
}

// GetAnnotationInput contains parameters for getting an annotation.
type GetAnnotationInput struct {
	Authorization string `header:"Authorization"`
	ID            string `path:"id" doc:"Annotation version ID"`
}

// UpdateAnnotationRequest is the request body for updating an annotation.
type UpdateAnnotationRequest struct {
	BoundingBox *domain.BoundingBox `json:"boundingBox,omitempty" doc:"New box; a different box starts a new lineage"`
	Tags        []string            `json:"tags,omitempty" doc:"Replaces the tag IDs"`
	Description *string             `json:"description,omitempty" doc:"Free text"`
	Confidence  *float64            `json:"confidence,omitempty" minimum:"0" maximum:"1" doc:"Confidence in [0, 1]"`
	Source      *string             `json:"source,omitempty" maxLength:"100" doc:"Provenance label"`
}

// UpdateAnnotationInput wraps the update annotation request for Huma.
type UpdateAnnotationInput struct {
	Authorization string `header:"Authorization"`
	ID            string `path:"id" doc:"Annotation version ID"`
	Body          UpdateAnnotationRequest
}

// PatchAnnotationInput carries a JSON merge patch.
type PatchAnnotationInput struct {
	Authorization string `header:"Authorization"`
	ID            string `path:"id" doc:"Annotation version ID"`
	RawBody       []byte
}

// ImageAnnotationsInput addresses the annotations of one image.
type ImageAnnotationsInput struct {
	Authorization string `header:"Authorization"`
	ID            string `path:"id" doc:"Image ID"`
}

// AnnotationCountResponse contains the number of live lineages.
type AnnotationCountResponse struct {
	ImageID string `json:"imageId" doc:"Image ID"`
	Count   int    `json:"count" doc:"Live lineages"`
}

// AnnotationCountOutput wraps the count for Huma.
type AnnotationCountOutput struct {
	Body AnnotationCountResponse
}

// RestoreAnnotationRequest is the request body for restoring a version.
type RestoreAnnotationRequest struct {
	Version int `json:"version" minimum:"1" doc:"Version number to restore"`
}

// RestoreAnnotationInput wraps the restore request for Huma.
type RestoreAnnotationInput struct {
	Authorization string `header:"Authorization"`
	ID            string `path:"id" doc:"Image ID"`
	Body          RestoreAnnotationRequest
}

// === Handlers ===

func (s *Server) handleFindAnnotations(ctx context.Context, input *FindAnnotationsInput) (*AnnotationListOutput, error) {
	if err := s.authorize(ctx, input.Authorization); err != nil {
		return nil, err
	}

	var (
		found []*domain.Annotation
		err   error
	)
	switch {
	case input.Tags != "":
		found, err = s.services.Annotations.FindByTags(ctx, splitCSV(input.Tags))
	case input.Source != "":
		found, err = s.services.Annotations.FindBySource(ctx, input.Source)
	case input.MinConfidence != "" || input.MaxConfidence != "":
		var minConf, maxConf *float64
		if minConf, err = parseOptionalFloat("minConfidence", input.MinConfidence); err != nil {
			return nil, err
		}
		if maxConf, err = parseOptionalFloat("maxConfidence", input.MaxConfidence); err != nil {
			return nil, err
		}
		found, err = s.services.Annotations.FindByConfidence(ctx, minConf, maxConf)
	default:
		return nil, domainerrors.Validation("one of tags, source, minConfidence or maxConfidence is required")
	}
	if err != nil {
		return nil, err
	}

	return annotationList(found), nil
}

func (s *Server) handleCreateAnnotation(ctx context.Context, input *CreateAnnotationInput) (*AnnotationOutput, error) {
	if err := s.authorize(ctx, input.Authorization); err != nil {
		return nil, err
	}

	a, err := s.services.Annotations.CreateAnnotation(ctx, service.CreateAnnotationRequest{
		ImageID:     input.Body.ImageID,
		BoundingBox: input.Body.BoundingBox,
		Tags:        input.Body.Tags,
		Description: input.Body.Description,
		Confidence:  input.Body.Confidence,
		Source:      input.Body.Source,
	})
	if err != nil {
		return nil, err
	}

	return &AnnotationOutput{Body: a}, nil
}

func (s *Server) handleGetAnnotation(ctx context.Context, input *GetAnnotationInput) (*AnnotationOutput, error) {
	if err := s.authorize(ctx, input.Authorization); err != nil {
		return nil, err
	}

	a, err := s.services.Annotations.GetAnnotation(ctx, input.ID)
	if err != nil {
		return nil, err
	}

	return &AnnotationOutput{Body: a}, nil
}

func (s *Server) handleUpdateAnnotation(ctx context.Context, input *UpdateAnnotationInput) (*AnnotationOutput, error) {
	if err := s.authorize(ctx, input.Authorization); err != nil {
		return nil, err
	}

	a, err := s.services.Annotations.UpdateAnnotation(ctx, input.ID, service.UpdateAnnotationRequest{
		BoundingBox: input.Body.BoundingBox,
		Tags:        input.Body.Tags,
		Description: input.Body.Description,
		Confidence:  input.Body.Confidence,
		Source:      input.Body.Source,
	})
	if err != nil {
		return nil, err
	}

	return &AnnotationOutput{Body: a}, nil
}

func (s *Server) handlePatchAnnotation(ctx context.Context, input *PatchAnnotationInput) (*AnnotationOutput, error) {
	if err := s.authorize(ctx, input.Authorization); err != nil {
		return nil, err
	}

	a, err := s.services.Annotations.PatchAnnotation(ctx, input.ID, input.RawBody)
	if err != nil {
		return nil, err
	}

	return &AnnotationOutput{Body: a}, nil
}

func (s *Server) handleDeleteAnnotation(ctx context.Context, input *GetAnnotationInput) (*AnnotationOutput, error) {
	if err := s.authorize(ctx, input.Authorization); err != nil {
		return nil, err
	}

	a, err := s.services.Annotations.DeleteAnnotation(ctx, input.ID)
	if err != nil {
		return nil, err
	}

	return &AnnotationOutput{Body: a}, nil
}

func (s *Server) handleListActiveAnnotations(ctx context.Context, input *ImageAnnotationsInput) (*AnnotationListOutput, error) {
	if err := s.authorize(ctx, input.Authorization); err != nil {
		return nil, err
	}

	active, err := s.services.Annotations.ActiveAnnotations(ctx, input.ID)
	if err != nil {
		return nil, err
	}

	return annotationList(active), nil
}

func (s *Server) handleGetAnnotationHistory(ctx context.Context, input *ImageAnnotationsInput) (*AnnotationListOutput, error) {
	if err := s.authorize(ctx, input.Authorization); err != nil {
		return nil, err
	}

	history, err := s.services.Annotations.History(ctx, input.ID)
	if err != nil {
		return nil, err
	}

	return annotationList(history), nil
}

func (s *Server) handleGetLatestAnnotation(ctx context.Context, input *ImageAnnotationsInput) (*AnnotationOutput, error) {
	if err := s.authorize(ctx, input.Authorization); err != nil {
		return nil, err
	}

	a, err := s.services.Annotations.LatestAnnotation(ctx, input.ID)
	if err != nil {
		return nil, err
	}

	return &AnnotationOutput{Body: a}, nil
}

func (s *Server) handleCountActiveAnnotations(ctx context.Context, input *ImageAnnotationsInput) (*AnnotationCountOutput, error) {
	if err := s.authorize(ctx, input.Authorization); err != nil {
		return nil, err
	}

	count, err := s.services.Annotations.CountActive(ctx, input.ID)
	if err != nil {
		return nil, err
	}

	return &AnnotationCountOutput{Body: AnnotationCountResponse{ImageID: input.ID, Count: count}}, nil
}

func (s *Server) handleRestoreAnnotation(ctx context.Context, input *RestoreAnnotationInput) (*AnnotationOutput, error) {
	if err := s.authorize(ctx, input.Authorization); err != nil {
		return nil, err
	}

	a, err := s.services.Annotations.Restore(ctx, input.ID, input.Body.Version)
	if err != nil {
		return nil, err
	}

	return &AnnotationOutput{Body: a}, nil
}

func annotationList(items []*domain.Annotation) *AnnotationListOutput {
	if items == nil {
		items = []*domain.Annotation{}
	}
	return &AnnotationListOutput{Body: dto.ListResponse[*domain.Annotation]{Items: items, Total: len(items)}}
}
