package watcher

import (
	"context"
	"crypto/sha256"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/ilbumi/satin/internal/config"
	"github.com/ilbumi/satin/internal/domain"
	"github.com/ilbumi/satin/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testProjectID = "65f1c2a9e4b0a1b2c3d4e5f6"

// fakeRegistrar deduplicates by content hash like the image service.
type fakeRegistrar struct {
	mu       sync.Mutex
	byHash   map[[32]byte]*domain.Image
	requests []service.RegisterImageRequest
	fail     bool
}

func newFakeRegistrar() *fakeRegistrar {
	return &fakeRegistrar{byHash: make(map[[32]byte]*domain.Image)}
}

func (f *fakeRegistrar) RegisterImage(_ context.Context, req service.RegisterImageRequest, r io.Reader) (*service.RegisterResult, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if f.fail {
		return nil, errors.New("file is not a supported image")
	}

	sum := sha256.Sum256(data)
	if img, ok := f.byHash[sum]; ok {
		return &service.RegisterResult{Image: img, Duplicate: true}, nil
	}
	img := &domain.Image{ProjectID: req.ProjectID, Filename: req.Filename}
	img.ID = req.Filename
	f.byHash[sum] = img
	return &service.RegisterResult{Image: img}, nil
}

func (f *fakeRegistrar) calls() []service.RegisterImageRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]service.RegisterImageRequest(nil), f.requests...)
}

func newTestIngester(t *testing.T, reg Registrar) (*Ingester, string) {
	t.Helper()
	dir := t.TempDir()
	in, err := NewIngester(reg, config.IngestConfig{Dir: dir, ProjectID: testProjectID, Debounce: 50 * time.Millisecond}, nil)
	require.NoError(t, err)
	return in, dir
}

func TestNewIngester_RequiresConfig(t *testing.T) {
	_, err := NewIngester(newFakeRegistrar(), config.IngestConfig{ProjectID: testProjectID}, nil)
	assert.Error(t, err)

	_, err = NewIngester(newFakeRegistrar(), config.IngestConfig{Dir: t.TempDir()}, nil)
	assert.Error(t, err)
}

func TestIngester_Sweep(t *testing.T) {
	reg := newFakeRegistrar()
	in, dir := newTestIngester(t, reg)

	require.NoError(t, os.MkdirAll(filepath.Join(dir, "cam1"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.png"), []byte("first"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "cam1", "b.JPG"), []byte("second"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "copy.png"), []byte("first"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "readme.txt"), []byte("skip"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".hidden.png"), []byte("skip"), 0o644))

	count, err := in.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	assert.Equal(t, IngestStats{Registered: 2, Duplicates: 1}, in.Stats())

	calls := reg.calls()
	require.Len(t, calls, 3)
	paths := map[string]bool{}
	for _, c := range calls {
		assert.Equal(t, testProjectID, c.ProjectID)
		paths[c.Metadata["ingestPath"]] = true
	}
	assert.True(t, paths["cam1/b.JPG"])
}

func TestIngester_ProcessEvent(t *testing.T) {
	reg := newFakeRegistrar()
	in, dir := newTestIngester(t, reg)
	ctx := context.Background()

	file := filepath.Join(dir, "frame.png")
	require.NoError(t, os.WriteFile(file, []byte("frame"), 0o644))

	require.NoError(t, in.ProcessEvent(ctx, Event{Type: EventAdded, Path: file}))
	require.NoError(t, in.ProcessEvent(ctx, Event{Type: EventRemoved, Path: file}))
	assert.Len(t, reg.calls(), 1)
	assert.Equal(t, "frame.png", reg.calls()[0].Filename)

	err := in.ProcessEvent(ctx, Event{Type: EventAdded, Path: filepath.Join(dir, "gone.png")})
	assert.Error(t, err)

	reg.fail = true
	require.NoError(t, os.WriteFile(file, []byte("broken"), 0o644))
	assert.Error(t, in.ProcessEvent(ctx, Event{Type: EventAdded, Path: file}))
	assert.Equal(t, int64(2), in.Stats().Failed)
}

func TestIngester_Run(t *testing.T) {
	reg := newFakeRegistrar()
	in, dir := newTestIngester(t, reg)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "existing.png"), []byte("old"), 0o644))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- in.Run(ctx) }()

	require.Eventually(t, func() bool { return in.Stats().Registered == 1 }, 2*time.Second, 20*time.Millisecond)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "dropped.webp"), []byte("new"), 0o644))
	require.Eventually(t, func() bool { return in.Stats().Registered == 2 }, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("ingester did not stop")
	}
}
