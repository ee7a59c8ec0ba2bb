package api

import (
	"bytes"
	"encoding/json/v2"
	"image"
	"image/color"
	"image/png"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ilbumi/satin/internal/api/dto"
	"github.com/ilbumi/satin/internal/auth"
	"github.com/ilbumi/satin/internal/config"
	"github.com/ilbumi/satin/internal/domain"
	"github.com/ilbumi/satin/internal/media/fetch"
	"github.com/ilbumi/satin/internal/media/images"
	"github.com/ilbumi/satin/internal/search"
	"github.com/ilbumi/satin/internal/service"
	"github.com/ilbumi/satin/internal/sse"
	"github.com/ilbumi/satin/internal/store"
)

const testAPIKey = "satin-test-key"

// testEnvelope mirrors the response envelope with typed data.
type testEnvelope[T any] struct {
	Version int    `json:"v"`
	Success bool   `json:"success"`
	Data    T      `json:"data"`
	Error   string `json:"error"`
	Code    string `json:"code"`
	Details any    `json:"details"`
}

// testServer wraps the API server with a humatest client.
type testServer struct {
	*Server
	api        humatest.TestAPI
	sseManager *sse.Manager
	token      string
}

type serverOption func(*Options)

// withAuth replaces the authenticator; nil disables authentication.
func withAuth(a *auth.Authenticator) serverOption {
	return func(o *Options) { o.Auth = a }
}

func newTestAuthenticator(t *testing.T, key string) *auth.Authenticator {
	t.Helper()
	keyHex, err := auth.GenerateKeyHex()
	require.NoError(t, err)
	tokens, err := auth.NewTokenService(keyHex, 15*time.Minute)
	require.NoError(t, err)
	return auth.NewAuthenticator(key, tokens, nil)
}

// setupTestServer creates a server over an in-memory store and index.
// Authentication is enabled with testAPIKey unless overridden.
func setupTestServer(t *testing.T, opts ...serverOption) *testServer {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	backend, err := store.OpenBadgerInMemory(nil)
	require.NoError(t, err)
	repos := store.NewRepositories(backend, nil, nil)
	t.Cleanup(func() { _ = repos.Close() })

	index, err := search.NewSearchIndex(search.Options{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = index.Close() })

	storage, err := images.NewStorage(t.TempDir())
	require.NoError(t, err)

	sseManager := sse.NewManager(logger)

	searchService := service.NewSearchService(index, repos, nil)
	deps := service.Deps{Events: sseManager, Indexer: searchService}
	annotations := service.NewAnnotationService(repos, config.AnnotationConfig{MaxCoordinate: 10000, MaxDescription: 500}, deps)

	services := &Services{
		Projects:    service.NewProjectService(repos, deps),
		Images:      service.NewImageService(repos, storage, images.NewProcessor(nil), fetch.NewFetcher(nil, nil), config.StorageConfig{MaxUploadBytes: 1 << 20}, deps),
		Annotations: annotations,
		Tags:        service.NewTagService(repos, deps),
		Tasks:       service.NewTaskService(repos, deps),
		MLJobs:      service.NewMLJobService(repos, annotations, deps),
		Search:      searchService,
	}

	options := Options{
		Auth:           newTestAuthenticator(t, testAPIKey),
		SSE:            sseManager,
		Backend:        backend,
		MaxUploadBytes: 1 << 20,
		Version:        "test",
		Logger:         logger,
	}
	for _, o := range opts {
		o(&options)
	}

	s := NewServer(services, options)
	ts := &testServer{
		Server:     s,
		api:        humatest.Wrap(t, s.api),
		sseManager: sseManager,
	}

	if options.Auth != nil && options.Auth.Enabled() {
		resp := ts.api.Post("/api/v1/auth/token", map[string]any{"apiKey": testAPIKey, "client": "tests"})
		require.Equal(t, http.StatusOK, resp.Code, "token exchange failed: %s", resp.Body.String())
		env := decodeEnvelope[dto.TokenResponse](t, resp)
		ts.token = env.Data.Token
	}

	return ts
}

// authHeader returns the header argument humatest expects.
func (ts *testServer) authHeader() string {
	return "Authorization: Bearer " + ts.token
}

func decodeEnvelope[T any](t *testing.T, resp *httptest.ResponseRecorder) testEnvelope[T] {
	t.Helper()
	var env testEnvelope[T]
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &env), resp.Body.String())
	return env
}

func (ts *testServer) createProject(t *testing.T, name string) *domain.Project {
	t.Helper()
	resp := ts.api.Post("/api/v1/projects", ts.authHeader(), map[string]any{"name": name})
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())
	return decodeEnvelope[*domain.Project](t, resp).Data
}

// upload posts a multipart image through the raw router.
func (ts *testServer) upload(t *testing.T, projectID, filename string, content []byte) *httptest.ResponseRecorder {
	t.Helper()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	require.NoError(t, mw.WriteField("projectId", projectID))
	require.NoError(t, mw.WriteField("metadata", `{"camera":"north"}`))
	part, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/images/upload", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+ts.token)
	w := httptest.NewRecorder()
	ts.ServeHTTP(w, req)
	return w
}

func (ts *testServer) uploadImage(t *testing.T, projectID string, shade uint8) ImageResponse {
	t.Helper()
	w := ts.upload(t, projectID, "frame.png", pngBytes(t, 32, 24, shade))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decodeEnvelope[ImageUploadResponse](t, w).Data.Image
}

func pngBytes(t *testing.T, w, h int, shade uint8) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.Set(x, y, color.RGBA{R: shade, G: uint8(x * 7), B: uint8(y * 9), A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// === Tests ===

func TestServer_OpenAPIDocument(t *testing.T) {
	ts := setupTestServer(t)

	doc := ts.API().OpenAPI()
	require.NotNil(t, doc)
	assert.Equal(t, "Satin API", doc.Info.Title)
	assert.Equal(t, "test", doc.Info.Version)

	for _, path := range []string{
		"/api/v1/projects",
		"/api/v1/images/{id}",
		"/api/v1/annotations/{id}",
		"/api/v1/tags/tree",
		"/api/v1/tasks/{id}/status",
		"/api/v1/ml-jobs/{id}/complete",
		"/api/v1/search",
	} {
		assert.Contains(t, doc.Paths, path)
	}
}

func TestServer_RequestIDHeader(t *testing.T) {
	ts := setupTestServer(t)

	resp := ts.api.Get("/health", "X-Request-ID: trace-me")
	assert.Equal(t, "trace-me", resp.Header().Get(RequestIDHeader))

	resp = ts.api.Get("/health")
	assert.Len(t, resp.Header().Get(RequestIDHeader), 36)
}

func TestServer_UnknownRouteIsNotFound(t *testing.T) {
	ts := setupTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/nothing-here", http.NoBody)
	w := httptest.NewRecorder()
	ts.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}
