package service

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"sync"
	"testing"

	"github.com/ilbumi/satin/internal/config"
	"github.com/ilbumi/satin/internal/domain"
	"github.com/ilbumi/satin/internal/media/images"
	"github.com/ilbumi/satin/internal/search"
	"github.com/ilbumi/satin/internal/sse"
	"github.com/ilbumi/satin/internal/store"
	"github.com/stretchr/testify/require"
)

// recordingEmitter keeps every emitted event.
type recordingEmitter struct {
	mu     sync.Mutex
	events []sse.Event
}

func (r *recordingEmitter) Emit(e sse.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recordingEmitter) ofType(t sse.EventType) []sse.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []sse.Event
	for _, e := range r.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

type testEnv struct {
	repos       *store.Repositories
	events      *recordingEmitter
	index       *search.SearchIndex
	search      *SearchService
	storage     *images.Storage
	annotations *AnnotationService
	tags        *TagService
	projects    *ProjectService
	images      *ImageService
	tasks       *TaskService
	jobs        *MLJobService
}

var testAnnotationConfig = config.AnnotationConfig{MaxCoordinate: 1000, MaxDescription: 50}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	backend, err := store.OpenBadgerInMemory(nil)
	require.NoError(t, err)
	repos := store.NewRepositories(backend, nil, nil)
	t.Cleanup(func() { _ = repos.Close() })

	index, err := search.NewSearchIndex(search.Options{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = index.Close() })

	storage, err := images.NewStorage(t.TempDir())
	require.NoError(t, err)

	env := &testEnv{
		repos:   repos,
		events:  &recordingEmitter{},
		index:   index,
		storage: storage,
	}
	env.search = NewSearchService(index, repos, nil)

	deps := Deps{Events: env.events, Indexer: env.search}
	env.annotations = NewAnnotationService(repos, testAnnotationConfig, deps)
	env.tags = NewTagService(repos, deps)
	env.projects = NewProjectService(repos, deps)
	env.images = NewImageService(repos, storage, images.NewProcessor(nil), nil,
		config.StorageConfig{MaxUploadBytes: 1 << 20}, deps)
	env.tasks = NewTaskService(repos, deps)
	env.jobs = NewMLJobService(repos, env.annotations, deps)
	return env
}

func (e *testEnv) createProject(t *testing.T, name string) *domain.Project {
	t.Helper()
	p, err := e.projects.CreateProject(context.Background(), CreateProjectRequest{Name: name})
	require.NoError(t, err)
	return p
}

func (e *testEnv) uploadImage(t *testing.T, projectID string, shade uint8) *domain.Image {
	t.Helper()
	res, err := e.images.RegisterImage(context.Background(), RegisterImageRequest{
		ProjectID: projectID,
		Filename:  "frame.png",
	}, bytes.NewReader(pngBytes(t, 16, 12, shade)))
	require.NoError(t, err)
	return res.Image
}

func pngBytes(t *testing.T, w, h int, shade uint8) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.Set(x, y, color.RGBA{R: shade, G: uint8(x * 10), B: uint8(y * 10), A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func box(x, y, w, h float64) domain.BoundingBox {
	return domain.BoundingBox{X: x, Y: y, Width: w, Height: h}
}

func ptr[T any](v T) *T { return &v }
