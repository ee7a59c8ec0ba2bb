package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/ilbumi/satin/internal/api/dto"
	"github.com/ilbumi/satin/internal/domain"
	"github.com/ilbumi/satin/internal/service"
)

func (s *Server) registerImageRoutes() {
	// Upload and file serving use chi directly for multipart and range handling.
	s.router.With(s.requireAuth).Post("/api/v1/images/upload", withExtendedTimeout(s.handleUploadImage, 5*time.Minute))
	s.router.With(s.requireAuth).Get("/api/v1/images/{id}/file", s.handleServeImageFile)

	huma.Register(s.api, huma.Operation{
		OperationID: "listImages",
		Method:      http.MethodGet,
		Path:        "/api/v1/images",
		Summary:     "List images",
		Description: "Returns a page of images, optionally filtered by project, status or filename",
		Tags:        []string{"Images"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleListImages)

	huma.Register(s.api, huma.Operation{
		OperationID:   "importImage",
		Method:        http.MethodPost,
		Path:          "/api/v1/images/import",
		Summary:       "Import image",
		Description:   "Downloads an image by URL into a project",
		Tags:          []string{"Images"},
		DefaultStatus: http.StatusCreated,
		Security:      []map[string][]string{{"bearer": {}}},
	}, s.handleImportImage)

	huma.Register(s.api, huma.Operation{
		OperationID: "getImage",
		Method:      http.MethodGet,
		Path:        "/api/v1/images/{id}",
		Summary:     "Get image",
		Description: "Returns an image record by ID",
		Tags:        []string{"Images"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleGetImage)

	huma.Register(s.api, huma.Operation{
		OperationID: "updateImage",
		Method:      http.MethodPatch,
		Path:        "/api/v1/images/{id}",
		Summary:     "Update image",
		Description: "Updates the filename, status or metadata of an image",
		Tags:        []string{"Images"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleUpdateImage)

	huma.Register(s.api, huma.Operation{
		OperationID: "deleteImage",
		Method:      http.MethodDelete,
		Path:        "/api/v1/images/{id}",
		Summary:     "Delete image",
		Description: "Deletes an image with its annotation history, tasks and ML jobs",
		Tags:        []string{"Images"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleDeleteImage)
}

// === DTOs ===

// ImageResponse contains image data in API responses.
type ImageResponse struct {
	ID        string             `json:"id" doc:"Image ID"`
	ProjectID string             `json:"projectId" doc:"Owning project"`
	Filename  string             `json:"filename" doc:"Display filename"`
	FileURL   string             `json:"fileUrl" doc:"Path serving the image bytes"`
	SourceURL string             `json:"sourceUrl,omitempty" doc:"Original URL for imported images"`
	MimeType  string             `json:"mimeType" doc:"Detected content type"`
	Size      int64              `json:"size" doc:"Size in bytes"`
	Width     int                `json:"width" doc:"Width in pixels"`
	Height    int                `json:"height" doc:"Height in pixels"`
	Checksum  string             `json:"checksum" doc:"BLAKE2b-256 of the content, hex"`
	BlurHash  string             `json:"blurHash,omitempty" doc:"BlurHash placeholder"`
	Status    domain.ImageStatus `json:"status" doc:"pending, annotated or reviewed"`
	Metadata  map[string]string  `json:"metadata,omitempty" doc:"Free-form metadata"`
	CreatedAt time.Time          `json:"createdAt" doc:"Creation time"`
	UpdatedAt time.Time          `json:"updatedAt" doc:"Last update time"`
}

// ImageUploadResponse is returned by upload and import.
type ImageUploadResponse struct {
	Image     ImageResponse `json:"image" doc:"The registered image"`
	Duplicate bool          `json:"duplicate" doc:"True when the project already held identical content"`
}

// ListImagesInput contains parameters for listing images.
type ListImagesInput struct {
	Authorization string `header:"Authorization"`
	ProjectID     string `query:"projectId" doc:"Filter by project"`
	Status        string `query:"status" doc:"Filter by status: pending, annotated or reviewed"`
	Filename      string `query:"filename" doc:"Case-insensitive filename substring"`
	dto.PaginationParams
}

// ListImagesOutput wraps a page of images for Huma.
type ListImagesOutput struct {
	Body dto.ListResponse[ImageResponse]
}

// ImportImageRequest is the request body for importing an image by URL.
type ImportImageRequest struct {
	ProjectID string            `json:"projectId" doc:"Target project"`
	URL       string            `json:"url" format:"uri" doc:"http or https URL of the image"`
	Metadata  map[string]string `json:"metadata,omitempty" doc:"Free-form metadata"`
}

// ImportImageInput wraps the import request for Huma.
type ImportImageInput struct {
	Authorization string `header:"Authorization"`
	Body          ImportImageRequest
}

// ImageUploadOutput wraps the upload response for Huma.
type ImageUploadOutput struct {
	Body ImageUploadResponse
}

// GetImageInput contains parameters for getting an image.
type GetImageInput struct {
	Authorization string `header:"Authorization"`
	ID            string `path:"id" doc:"Image ID"`
}

// ImageOutput wraps an image for Huma.
type ImageOutput struct {
	Body ImageResponse
}

// UpdateImageRequest is the request body for updating an image.
type UpdateImageRequest struct {
	Filename *string           `json:"filename,omitempty" maxLength:"255" doc:"Display filename"`
	Status   *string           `json:"status,omitempty" enum:"pending,annotated,reviewed" doc:"Review status"`
	Metadata map[string]string `json:"metadata,omitempty" doc:"Replaces the metadata map"`
}

// UpdateImageInput wraps the update image request for Huma.
type UpdateImageInput struct {
	Authorization string `header:"Authorization"`
	ID            string `path:"id" doc:"Image ID"`
	Body          UpdateImageRequest
}

// === Handlers ===

func (s *Server) handleListImages(ctx context.Context, input *ListImagesInput) (*ListImagesOutput, error) {
	if err := s.authorize(ctx, input.Authorization); err != nil {
		return nil, err
	}

	page, err := s.services.Images.ListImages(ctx, service.ListImagesRequest{
		ProjectID: input.ProjectID,
		Status:    domain.ImageStatus(input.Status),
		Filename:  input.Filename,
		Limit:     input.Limit,
		Cursor:    input.Cursor,
	})
	if err != nil {
		return nil, err
	}

	return &ListImagesOutput{Body: dto.NewListResponse(page, mapImageResponse)}, nil
}

func (s *Server) handleImportImage(ctx context.Context, input *ImportImageInput) (*ImageUploadOutput, error) {
	if err := s.authorize(ctx, input.Authorization); err != nil {
		return nil, err
	}

	res, err := s.services.Images.ImportImage(ctx, service.ImportImageRequest{
		ProjectID: input.Body.ProjectID,
		URL:       input.Body.URL,
		Metadata:  input.Body.Metadata,
	})
	if err != nil {
		return nil, err
	}

	return &ImageUploadOutput{Body: ImageUploadResponse{Image: mapImageResponse(res.Image), Duplicate: res.Duplicate}}, nil
}

func (s *Server) handleGetImage(ctx context.Context, input *GetImageInput) (*ImageOutput, error) {
	if err := s.authorize(ctx, input.Authorization); err != nil {
		return nil, err
	}

	img, err := s.services.Images.GetImage(ctx, input.ID)
	if err != nil {
		return nil, err
	}

	return &ImageOutput{Body: mapImageResponse(img)}, nil
}

func (s *Server) handleUpdateImage(ctx context.Context, input *UpdateImageInput) (*ImageOutput, error) {
	if err := s.authorize(ctx, input.Authorization); err != nil {
		return nil, err
	}

	req := service.UpdateImageRequest{
		Filename: input.Body.Filename,
		Metadata: input.Body.Metadata,
	}
	if input.Body.Status != nil {
		status := domain.ImageStatus(*input.Body.Status)
		req.Status = &status
	}

	img, err := s.services.Images.UpdateImage(ctx, input.ID, req)
	if err != nil {
		return nil, err
	}

	return &ImageOutput{Body: mapImageResponse(img)}, nil
}

func (s *Server) handleDeleteImage(ctx context.Context, input *GetImageInput) (*dto.MessageOutput, error) {
	if err := s.authorize(ctx, input.Authorization); err != nil {
		return nil, err
	}

	if err := s.services.Images.DeleteImage(ctx, input.ID); err != nil {
		return nil, err
	}

	return dto.Message("Image deleted"), nil
}

// === Mappers ===

func mapImageResponse(img *domain.Image) ImageResponse {
	return ImageResponse{
		ID:        img.ID,
		ProjectID: img.ProjectID,
		Filename:  img.Filename,
		FileURL:   "/api/v1/images/" + img.ID + "/file",
		SourceURL: img.URL,
		MimeType:  img.MimeType,
		Size:      img.Size,
		Width:     img.Width,
		Height:    img.Height,
		Checksum:  img.Checksum,
		BlurHash:  img.BlurHash,
		Status:    img.Status,
		Metadata:  img.Metadata,
		CreatedAt: img.CreatedAt,
		UpdatedAt: img.UpdatedAt,
	}
}
