package api

import (
	"encoding/json/v2"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	domainerrors "github.com/ilbumi/satin/internal/errors"
	"github.com/ilbumi/satin/internal/http/response"
	"github.com/ilbumi/satin/internal/service"
)

// withExtendedTimeout lifts the server read and write deadlines for slow uploads.
func withExtendedTimeout(next http.HandlerFunc, timeout time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rc := http.NewResponseController(w)
		// Not every ResponseWriter supports deadlines; the server defaults apply then.
		_ = rc.SetReadDeadline(time.Now().Add(timeout))
		_ = rc.SetWriteDeadline(time.Now().Add(timeout))
		next(w, r)
	}
}

// handleUploadImage handles multipart image uploads.
// Form fields: file (required), projectId (required), filename and metadata
// (a JSON object of strings), both optional.
// This is a chi handler (not Huma) because Huma doesn't easily support multipart forms.
func (s *Server) handleUploadImage(w http.ResponseWriter, r *http.Request) {
	if s.maxUpload > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload+uploadOverhead)
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			response.HandleError(w, domainerrors.PayloadTooLarge("upload exceeds size limit"), s.logger)
			return
		}
		response.BadRequest(w, "multipart field \"file\" is required", s.logger)
		return
	}
	defer file.Close()

	req := service.RegisterImageRequest{
		ProjectID: r.FormValue("projectId"),
		Filename:  r.FormValue("filename"),
	}
	if req.Filename == "" {
		req.Filename = header.Filename
	}
	if raw := r.FormValue("metadata"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &req.Metadata); err != nil {
			response.BadRequest(w, "metadata must be a JSON object of strings", s.logger)
			return
		}
	}

	res, err := s.services.Images.RegisterImage(r.Context(), req, file)
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}

	body := ImageUploadResponse{Image: mapImageResponse(res.Image), Duplicate: res.Duplicate}
	if res.Duplicate {
		response.Success(w, body, s.logger)
		return
	}
	response.Created(w, body, s.logger)
}

// handleServeImageFile streams the stored bytes of an image. Range and
// conditional requests are handled by http.ServeContent.
func (s *Server) handleServeImageFile(w http.ResponseWriter, r *http.Request) {
	img, f, err := s.services.Images.OpenImageFile(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", img.MimeType)
	w.Header().Set("ETag", `"`+img.Checksum+`"`)
	w.Header().Set("Cache-Control", CacheImmutable)
	w.Header().Set("X-Content-Type-Options", "nosniff")

	http.ServeContent(w, r, img.Filename, img.CreatedAt, f)
}
