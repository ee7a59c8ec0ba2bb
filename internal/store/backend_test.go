package store_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/ilbumi/satin/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackend_InsertGet(t *testing.T) {
	forEachBackend(t, func(t *testing.T, b store.Backend) {
		ctx := context.Background()

		require.NoError(t, b.Insert(ctx, "tags", "1", []byte(`{"name":"cat"}`), nil))

		got, err := b.Get(ctx, "tags", "1")
		require.NoError(t, err)
		assert.JSONEq(t, `{"name":"cat"}`, string(got))

		err = b.Insert(ctx, "tags", "1", []byte(`{}`), nil)
		assert.ErrorIs(t, err, store.ErrAlreadyExists)

		_, err = b.Get(ctx, "tags", "2")
		assert.ErrorIs(t, err, store.ErrNotFound)

		// Same id in another collection is a different document.
		_, err = b.Get(ctx, "images", "1")
		assert.ErrorIs(t, err, store.ErrNotFound)
	})
}

func TestBackend_LookupMaintainedAcrossModify(t *testing.T) {
	forEachBackend(t, func(t *testing.T, b store.Backend) {
		ctx := context.Background()

		require.NoError(t, b.Insert(ctx, "annotations", "a", []byte(`{}`), []store.IndexEntry{
			{Name: "tags", Value: "cat"},
			{Name: "tags", Value: "dog"},
		}))
		require.NoError(t, b.Insert(ctx, "annotations", "b", []byte(`{}`), []store.IndexEntry{
			{Name: "tags", Value: "cats"},
		}))

		ids, err := b.Lookup(ctx, "annotations", "tags", "cat")
		require.NoError(t, err)
		assert.Equal(t, []string{"a"}, ids, "prefix of another value must not match")

		err = b.Modify(ctx, "annotations", "a", func(old []byte) ([]byte, []store.IndexEntry, error) {
			return []byte(`{"v":2}`), []store.IndexEntry{{Name: "tags", Value: "bird"}}, nil
		})
		require.NoError(t, err)

		ids, err = b.Lookup(ctx, "annotations", "tags", "cat")
		require.NoError(t, err)
		assert.Empty(t, ids)

		ids, err = b.Lookup(ctx, "annotations", "tags", "bird")
		require.NoError(t, err)
		assert.Equal(t, []string{"a"}, ids)

		got, err := b.Get(ctx, "annotations", "a")
		require.NoError(t, err)
		assert.JSONEq(t, `{"v":2}`, string(got))
	})
}

func TestBackend_ModifyErrors(t *testing.T) {
	forEachBackend(t, func(t *testing.T, b store.Backend) {
		ctx := context.Background()

		err := b.Modify(ctx, "tags", "missing", func(old []byte) ([]byte, []store.IndexEntry, error) {
			t.Fatal("fn must not run for a missing document")
			return nil, nil, nil
		})
		assert.ErrorIs(t, err, store.ErrNotFound)

		require.NoError(t, b.Insert(ctx, "tags", "1", []byte(`{"n":1}`), nil))
		boom := errors.New("boom")
		err = b.Modify(ctx, "tags", "1", func(old []byte) ([]byte, []store.IndexEntry, error) {
			return nil, nil, boom
		})
		assert.ErrorIs(t, err, boom)

		got, err := b.Get(ctx, "tags", "1")
		require.NoError(t, err)
		assert.JSONEq(t, `{"n":1}`, string(got), "failed modify must not write")
	})
}

func TestBackend_ConcurrentModifyIsAtomic(t *testing.T) {
	forEachBackend(t, func(t *testing.T, b store.Backend) {
		ctx := context.Background()
		require.NoError(t, b.Insert(ctx, "tags", "1", []byte(`0`), nil))

		const workers = 4
		const perWorker = 5
		var wg sync.WaitGroup
		for range workers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for range perWorker {
					err := b.Modify(ctx, "tags", "1", func(old []byte) ([]byte, []store.IndexEntry, error) {
						var n int
						_, _ = fmt.Sscan(string(old), &n)
						return []byte(fmt.Sprint(n + 1)), nil, nil
					})
					assert.NoError(t, err)
				}
			}()
		}
		wg.Wait()

		got, err := b.Get(ctx, "tags", "1")
		require.NoError(t, err)
		assert.Equal(t, fmt.Sprint(workers*perWorker), string(got))
	})
}

func TestBackend_DeleteAndScan(t *testing.T) {
	forEachBackend(t, func(t *testing.T, b store.Backend) {
		ctx := context.Background()
		for _, id := range []string{"c", "a", "b"} {
			require.NoError(t, b.Insert(ctx, "tags", id, []byte(`"`+id+`"`),
				[]store.IndexEntry{{Name: "name", Value: id}}))
		}
		require.NoError(t, b.Insert(ctx, "images", "z", []byte(`"z"`), nil))

		var bodies []string
		for data, err := range b.Scan(ctx, "tags") {
			require.NoError(t, err)
			bodies = append(bodies, string(data))
		}
		assert.Equal(t, []string{`"a"`, `"b"`, `"c"`}, bodies)

		existed, err := b.Delete(ctx, "tags", "a")
		require.NoError(t, err)
		assert.True(t, existed)

		existed, err = b.Delete(ctx, "tags", "a")
		require.NoError(t, err)
		assert.False(t, existed)

		n, err := b.DeleteMany(ctx, "tags", []string{"b", "c", "nope"})
		require.NoError(t, err)
		assert.Equal(t, 2, n)

		ids, err := b.Lookup(ctx, "tags", "name", "b")
		require.NoError(t, err)
		assert.Empty(t, ids)

		count := 0
		for _, err := range b.Scan(ctx, "tags") {
			require.NoError(t, err)
			count++
		}
		assert.Zero(t, count)

		_, err = b.Get(ctx, "images", "z")
		assert.NoError(t, err)
	})
}

func TestBackend_ScanStopsEarly(t *testing.T) {
	forEachBackend(t, func(t *testing.T, b store.Backend) {
		ctx := context.Background()
		for i := range 5 {
			require.NoError(t, b.Insert(ctx, "tags", fmt.Sprint(i), []byte(`{}`), nil))
		}

		seen := 0
		for _, err := range b.Scan(ctx, "tags") {
			require.NoError(t, err)
			seen++
			if seen == 2 {
				break
			}
		}
		assert.Equal(t, 2, seen)
	})
}
