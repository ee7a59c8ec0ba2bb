package store_test

import (
	"context"
	"testing"

	"github.com/ilbumi/satin/internal/domain"
	"github.com/ilbumi/satin/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type part struct {
	domain.Base
	WidgetID string `json:"widgetId"`
	Label    string `json:"label"`
}

func TestAggregate_MatchSortGroup(t *testing.T) {
	forEachBackend(t, func(t *testing.T, b store.Backend) {
		c := newWidgets(b, nil)
		ctx := context.Background()
		seedWidgets(t, c)

		docs, err := c.Aggregate(ctx,
			store.Match(store.Exists("kind")),
			store.Sort(store.Desc("size")),
			store.GroupStage{By: []string{"kind"}, CountField: "count"},
			store.Sort(store.Asc("kind")),
		)
		require.NoError(t, err)
		require.Len(t, docs, 2)

		assert.Equal(t, "hardware", docs[0]["kind"])
		assert.Equal(t, "nut", docs[0]["name"], "group keeps the first document in sort order")
		assert.Equal(t, 2.0, docs[0]["count"])
		assert.Equal(t, "wood", docs[1]["kind"])
		assert.Equal(t, 1.0, docs[1]["count"])
	})
}

func TestAggregate_SkipLimitAddFields(t *testing.T) {
	c := newWidgets(newBadger(t), nil)
	ctx := context.Background()
	seedWidgets(t, c)

	docs, err := c.Aggregate(ctx,
		store.Sort(store.Asc("size")),
		store.Skip(1),
		store.Limit(1),
		store.AddFields(map[string]func(store.Document) any{
			"shout": func(d store.Document) any { return d["name"].(string) + "!" },
		}),
	)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "nut!", docs[0]["shout"])

	widgets, err := store.DecodeAll[widget](docs)
	require.NoError(t, err)
	assert.Equal(t, "nut", widgets[0].Name)
}

func TestAggregate_Lookup(t *testing.T) {
	forEachBackend(t, func(t *testing.T, b store.Backend) {
		widgets := newWidgets(b, nil)
		parts := store.NewCollection[part](b, "parts")
		ctx := context.Background()
		seeded := seedWidgets(t, widgets)

		_, err := parts.InsertOne(ctx, &part{WidgetID: seeded[0].ID, Label: "thread"})
		require.NoError(t, err)
		_, err = parts.InsertOne(ctx, &part{WidgetID: seeded[0].ID, Label: "head"})
		require.NoError(t, err)
		_, err = parts.InsertOne(ctx, &part{WidgetID: "000000000000000000000000", Label: "orphan"})
		require.NoError(t, err)

		// Join by id, single.
		docs, err := parts.Aggregate(ctx,
			store.Sort(store.Asc("label")),
			store.LookupStage{From: "widgets", LocalField: "widgetId", ForeignField: "id", As: "widget", Single: true},
		)
		require.NoError(t, err)
		require.Len(t, docs, 3)
		assert.Equal(t, "bolt", docs[0]["widget"].(map[string]any)["name"])
		assert.Nil(t, docs[1]["widget"], "dangling reference joins as null")

		// Join by a foreign field, many.
		docs, err = widgets.Aggregate(ctx,
			store.Match(store.Eq("name", "bolt")),
			store.LookupStage{From: "parts", LocalField: "id", ForeignField: "widgetId", As: "parts"},
		)
		require.NoError(t, err)
		require.Len(t, docs, 1)
		assert.Len(t, docs[0]["parts"], 2)
	})
}

func TestAggregate_GroupByObjectField(t *testing.T) {
	docs := []store.Document{
		{"id": "1", "box": map[string]any{"x": 1.0, "y": 2.0}},
		{"id": "2", "box": map[string]any{"y": 2.0, "x": 1.0}},
		{"id": "3", "box": map[string]any{"x": 1.0, "y": 2.5}},
	}

	out, err := store.RunPipeline(context.Background(), nil, docs, store.GroupFirst("box"))
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "1", out[0]["id"])
	assert.Equal(t, "3", out[1]["id"])
}
