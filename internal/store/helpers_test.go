package store_test

import (
	"path/filepath"
	"testing"

	"github.com/ilbumi/satin/internal/store"
	"github.com/ilbumi/satin/internal/store/sqlite"
	"github.com/stretchr/testify/require"
)

// backendFactories lists every Backend implementation so behaviour tests
// run against each of them.
var backendFactories = []struct {
	name string
	open func(t *testing.T) store.Backend
}{
	{"badger", func(t *testing.T) store.Backend {
		b, err := store.OpenBadger(filepath.Join(t.TempDir(), "db"), nil)
		require.NoError(t, err)
		return b
	}},
	{"sqlite", func(t *testing.T) store.Backend {
		s, err := sqlite.Open(filepath.Join(t.TempDir(), "satin.db"), nil)
		require.NoError(t, err)
		return s
	}},
}

// forEachBackend runs fn as a subtest per backend.
func forEachBackend(t *testing.T, fn func(t *testing.T, b store.Backend)) {
	t.Helper()
	for _, f := range backendFactories {
		t.Run(f.name, func(t *testing.T) {
			b := f.open(t)
			t.Cleanup(func() { _ = b.Close() })
			fn(t, b)
		})
	}
}

// newBadger opens a throwaway badger backend for single-backend tests.
func newBadger(t *testing.T) store.Backend {
	t.Helper()
	b, err := store.OpenBadgerInMemory(nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })
	return b
}
