package store_test

import (
	"context"
	"testing"

	"github.com/ilbumi/satin/internal/domain"
	"github.com/ilbumi/satin/internal/id"
	"github.com/ilbumi/satin/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type widget struct {
	domain.Base
	Name   string   `json:"name"`
	Kind   string   `json:"kind"`
	Labels []string `json:"labels"`
	Size   int      `json:"size"`
}

func newWidgets(b store.Backend, cache *store.Cache) *store.Collection[widget] {
	return store.NewCollection[widget](b, "widgets").
		WithIndex("kind", func(w *widget) []string { return []string{w.Kind} }).
		WithIndex("labels", func(w *widget) []string { return w.Labels }).
		WithCache(cache)
}

func seedWidgets(t *testing.T, c *store.Collection[widget]) []*widget {
	t.Helper()
	ctx := context.Background()
	var out []*widget
	for _, w := range []widget{
		{Name: "bolt", Kind: "hardware", Labels: []string{"small", "metal"}, Size: 1},
		{Name: "nut", Kind: "hardware", Labels: []string{"small"}, Size: 2},
		{Name: "plank", Kind: "wood", Labels: []string{"large"}, Size: 30},
	} {
		created, err := c.InsertOne(ctx, &w)
		require.NoError(t, err)
		out = append(out, created)
	}
	return out
}

func TestCollection_InsertAssignsIDAndTimestamps(t *testing.T) {
	forEachBackend(t, func(t *testing.T, b store.Backend) {
		c := newWidgets(b, nil)
		w, err := c.InsertOne(context.Background(), &widget{Name: "bolt"})
		require.NoError(t, err)

		assert.True(t, id.IsValid(w.ID))
		assert.False(t, w.CreatedAt.IsZero())
		assert.Equal(t, w.CreatedAt, w.UpdatedAt)

		_, err = c.InsertOne(context.Background(), &widget{Base: domain.Base{ID: w.ID}})
		assert.ErrorIs(t, err, store.ErrAlreadyExists)

		_, err = c.InsertOne(context.Background(), &widget{Base: domain.Base{ID: "not-an-id"}})
		assert.ErrorIs(t, err, id.ErrInvalidID)
	})
}

func TestCollection_FindByIDSoftFailures(t *testing.T) {
	forEachBackend(t, func(t *testing.T, b store.Backend) {
		c := newWidgets(b, store.NewCache(0, 0))
		ctx := context.Background()
		seeded := seedWidgets(t, c)

		got, err := c.FindByID(ctx, seeded[0].ID)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "bolt", got.Name)

		for _, bad := range []string{"", "xyz", "{$gt: ''}", id.NewHex()} {
			got, err := c.FindByID(ctx, bad)
			assert.NoError(t, err, bad)
			assert.Nil(t, got, bad)
		}
	})
}

func TestCollection_FindUsesFiltersSortAndWindow(t *testing.T) {
	forEachBackend(t, func(t *testing.T, b store.Backend) {
		c := newWidgets(b, nil)
		ctx := context.Background()
		seedWidgets(t, c)

		got, err := c.Find(ctx, store.Query(store.Eq("kind", "hardware")).OrderBy(store.Desc("size")))
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, "nut", got[0].Name)
		assert.Equal(t, "bolt", got[1].Name)

		got, err = c.Find(ctx, store.Query(store.In("labels", "large", "metal")).OrderBy(store.Asc("name")))
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, "bolt", got[0].Name)
		assert.Equal(t, "plank", got[1].Name)

		got, err = c.Find(ctx, store.Query().OrderBy(store.Asc("size")).Page(1, 1))
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "nut", got[0].Name)

		got, err = c.Find(ctx, store.Query(store.Eq("kind", "glass")))
		require.NoError(t, err)
		assert.NotNil(t, got)
		assert.Empty(t, got)

		n, err := c.Count(ctx, store.Query(store.Gte("size", 2)).Page(0, 1))
		require.NoError(t, err)
		assert.Equal(t, 2, n, "count ignores the window")

		one, err := c.FindOne(ctx, store.Query(store.Eq("kind", "wood")))
		require.NoError(t, err)
		require.NotNil(t, one)
		assert.Equal(t, "plank", one.Name)

		none, err := c.FindOne(ctx, store.Query(store.Eq("kind", "glass")))
		require.NoError(t, err)
		assert.Nil(t, none)
	})
}

func TestCollection_UpdateMutateIncrement(t *testing.T) {
	forEachBackend(t, func(t *testing.T, b store.Backend) {
		c := newWidgets(b, store.NewCache(0, 0))
		ctx := context.Background()
		seeded := seedWidgets(t, c)
		bolt := seeded[0]

		// Prime the cache, then make sure writes are visible.
		_, err := c.Find(ctx, store.Query(store.Eq("kind", "hardware")))
		require.NoError(t, err)

		updated, err := c.UpdateOne(ctx, bolt.ID, store.Set{"kind": "fastener", "id": "ignored"})
		require.NoError(t, err)
		require.NotNil(t, updated)
		assert.Equal(t, "fastener", updated.Kind)
		assert.Equal(t, bolt.ID, updated.ID)
		assert.Equal(t, bolt.CreatedAt, updated.CreatedAt)
		assert.True(t, updated.UpdatedAt.After(bolt.UpdatedAt) || updated.UpdatedAt.Equal(bolt.UpdatedAt))

		hardware, err := c.FindByIndex(ctx, "kind", "hardware")
		require.NoError(t, err)
		assert.Len(t, hardware, 1, "index must follow the update")

		mutated, err := c.Mutate(ctx, bolt.ID, func(w *widget) error {
			w.Labels = append(w.Labels, "shiny")
			w.ID = "hijack"
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, bolt.ID, mutated.ID)
		assert.Contains(t, mutated.Labels, "shiny")

		ok, err := c.IncrementOne(ctx, bolt.ID, "size", 5)
		require.NoError(t, err)
		assert.True(t, ok)
		got, err := c.FindByID(ctx, bolt.ID)
		require.NoError(t, err)
		assert.Equal(t, 6, got.Size)

		ok, err = c.IncrementOne(ctx, id.NewHex(), "size", 1)
		require.NoError(t, err)
		assert.False(t, ok)

		missing, err := c.UpdateOne(ctx, "bogus", store.Set{"kind": "x"})
		require.NoError(t, err)
		assert.Nil(t, missing)
	})
}

func TestCollection_Delete(t *testing.T) {
	forEachBackend(t, func(t *testing.T, b store.Backend) {
		c := newWidgets(b, store.NewCache(0, 0))
		ctx := context.Background()
		seeded := seedWidgets(t, c)

		ok, err := c.DeleteOne(ctx, seeded[2].ID)
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = c.DeleteOne(ctx, "bogus")
		require.NoError(t, err)
		assert.False(t, ok)

		n, err := c.DeleteMany(ctx, store.Query(store.Eq("kind", "hardware")))
		require.NoError(t, err)
		assert.Equal(t, 2, n)

		total, err := c.Count(ctx, nil)
		require.NoError(t, err)
		assert.Zero(t, total)
	})
}

func TestCollection_Page(t *testing.T) {
	c := newWidgets(newBadger(t), nil)
	ctx := context.Background()
	seedWidgets(t, c)

	q := store.Query().OrderBy(store.Asc("size"))
	page, err := c.Page(ctx, q, store.PaginationParams{Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, page.Total)
	assert.True(t, page.HasMore)
	require.Len(t, page.Items, 2)

	page, err = c.Page(ctx, q, store.PaginationParams{Limit: 2, Cursor: page.NextCursor})
	require.NoError(t, err)
	assert.False(t, page.HasMore)
	assert.Empty(t, page.NextCursor)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "plank", page.Items[0].Name)
}

func TestCollection_All(t *testing.T) {
	c := newWidgets(newBadger(t), nil)
	seeded := seedWidgets(t, c)

	var names []string
	for w, err := range c.All(context.Background()) {
		require.NoError(t, err)
		names = append(names, w.Name)
	}
	assert.ElementsMatch(t, []string{seeded[0].Name, seeded[1].Name, seeded[2].Name}, names)
}
