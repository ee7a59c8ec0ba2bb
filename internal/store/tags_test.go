package store_test

import (
	"context"
	"sync"
	"testing"

	"github.com/ilbumi/satin/internal/domain"
	"github.com/ilbumi/satin/internal/id"
	"github.com/ilbumi/satin/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTags(t *testing.T, b store.Backend) *store.TagRepository {
	t.Helper()
	return store.NewTagRepository(b, store.NewCache(0, 0), nil)
}

func mustTag(t *testing.T, repo *store.TagRepository, name, parentID string) *domain.Tag {
	t.Helper()
	tag, err := repo.CreateHierarchical(context.Background(), store.NewTag{Name: name, ParentID: parentID})
	require.NoError(t, err)
	require.NotNil(t, tag)
	return tag
}

func reload(t *testing.T, repo *store.TagRepository, tagID string) *domain.Tag {
	t.Helper()
	tag, err := repo.FindByID(context.Background(), tagID)
	require.NoError(t, err)
	require.NotNil(t, tag, "tag %s", tagID)
	return tag
}

// assertPlacement checks the path invariant of tag against its stored parent.
func assertPlacement(t *testing.T, repo *store.TagRepository, tag *domain.Tag) {
	t.Helper()
	if tag.ParentID == "" {
		assert.Equal(t, tag.Name, tag.Path)
		assert.Zero(t, tag.Depth)
		return
	}
	parent := reload(t, repo, tag.ParentID)
	assert.Equal(t, parent.Path+"/"+tag.Name, tag.Path)
	assert.Equal(t, parent.Depth+1, tag.Depth)
}

func TestTags_CreateHierarchical(t *testing.T) {
	forEachBackend(t, func(t *testing.T, b store.Backend) {
		repo := newTags(t, b)

		animal := mustTag(t, repo, "Animal", "")
		mammal := mustTag(t, repo, "Mammal", animal.ID)
		cat := mustTag(t, repo, "Cat", mammal.ID)

		assert.Equal(t, "Animal", animal.Path)
		assert.Equal(t, 0, animal.Depth)
		assert.Equal(t, "Animal/Mammal/Cat", cat.Path)
		assert.Equal(t, 2, cat.Depth)
		assert.Equal(t, mammal.ID, cat.ParentID)

		for _, tag := range []*domain.Tag{animal, mammal, cat} {
			assertPlacement(t, repo, reload(t, repo, tag.ID))
		}
	})
}

func TestTags_UnknownParentCreatesRoot(t *testing.T) {
	repo := newTags(t, newBadger(t))

	for _, parent := range []string{id.NewHex(), "garbage"} {
		tag := mustTag(t, repo, "orphan-"+parent, parent)
		assert.Empty(t, tag.ParentID)
		assert.Equal(t, tag.Name, tag.Path)
		assert.Zero(t, tag.Depth)
	}
}

func TestTags_MoveRewritesSubtree(t *testing.T) {
	forEachBackend(t, func(t *testing.T, b store.Backend) {
		repo := newTags(t, b)
		ctx := context.Background()

		animal := mustTag(t, repo, "Animal", "")
		mammal := mustTag(t, repo, "Mammal", animal.ID)
		cat := mustTag(t, repo, "Cat", mammal.ID)
		kitten := mustTag(t, repo, "Kitten", cat.ID)
		pets := mustTag(t, repo, "Pets", "")

		moved, err := repo.Move(ctx, cat.ID, pets.ID)
		require.NoError(t, err)
		require.NotNil(t, moved)
		assert.Equal(t, "Pets/Cat", moved.Path)
		assert.Equal(t, 1, moved.Depth)
		assert.Equal(t, pets.ID, moved.ParentID)

		k := reload(t, repo, kitten.ID)
		assert.Equal(t, "Pets/Cat/Kitten", k.Path)
		assert.Equal(t, 2, k.Depth)
		assertPlacement(t, repo, k)

		toRoot, err := repo.Move(ctx, cat.ID, "")
		require.NoError(t, err)
		assert.Equal(t, "Cat", toRoot.Path)
		assert.Empty(t, toRoot.ParentID)
		assert.Equal(t, "Cat/Kitten", reload(t, repo, kitten.ID).Path)

		children, err := repo.Children(ctx, mammal.ID)
		require.NoError(t, err)
		assert.Empty(t, children)
	})
}

func TestTags_MoveRejectsCycles(t *testing.T) {
	forEachBackend(t, func(t *testing.T, b store.Backend) {
		repo := newTags(t, b)
		ctx := context.Background()

		a := mustTag(t, repo, "A", "")
		bTag := mustTag(t, repo, "B", a.ID)
		c := mustTag(t, repo, "C", bTag.ID)

		got, err := repo.Move(ctx, a.ID, c.ID)
		require.NoError(t, err)
		assert.Nil(t, got)

		got, err = repo.Move(ctx, a.ID, a.ID)
		require.NoError(t, err)
		assert.Nil(t, got)

		after := reload(t, repo, a.ID)
		assert.Empty(t, after.ParentID)
		assert.Equal(t, "A", after.Path)
		assert.Zero(t, after.Depth)
		assert.Equal(t, "A/B/C", reload(t, repo, c.ID).Path)

		_, err = repo.MoveTag(ctx, a.ID, c.ID)
		assert.ErrorIs(t, err, store.ErrTagCycle)

		_, err = repo.MoveTag(ctx, id.NewHex(), a.ID)
		assert.ErrorIs(t, err, store.ErrTagNotFound)
		assert.NotErrorIs(t, err, store.ErrTagCycle)

		got, err = repo.Move(ctx, id.NewHex(), a.ID)
		require.NoError(t, err)
		assert.Nil(t, got)
	})
}

func TestTags_MoveToUnknownParentDemotesToRoot(t *testing.T) {
	repo := newTags(t, newBadger(t))
	ctx := context.Background()

	a := mustTag(t, repo, "A", "")
	b := mustTag(t, repo, "B", a.ID)

	got, err := repo.Move(ctx, b.ID, id.NewHex())
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Empty(t, got.ParentID)
	assert.Equal(t, "B", got.Path)
}

func TestTags_DeleteWithDescendants(t *testing.T) {
	forEachBackend(t, func(t *testing.T, b store.Backend) {
		repo := newTags(t, b)
		ctx := context.Background()

		r := mustTag(t, repo, "R", "")
		c := mustTag(t, repo, "C", r.ID)
		g := mustTag(t, repo, "G", c.ID)
		other := mustTag(t, repo, "Other", "")
		// Shares a textual prefix with R but is not below it.
		rx := mustTag(t, repo, "RX", "")

		n, err := repo.DeleteWithDescendants(ctx, r.ID)
		require.NoError(t, err)
		assert.Equal(t, 3, n)

		for _, gone := range []string{r.ID, c.ID, g.ID} {
			got, err := repo.FindByID(ctx, gone)
			require.NoError(t, err)
			assert.Nil(t, got)
		}
		reload(t, repo, other.ID)
		reload(t, repo, rx.ID)

		n, err = repo.DeleteWithDescendants(ctx, r.ID)
		require.NoError(t, err)
		assert.Zero(t, n)
	})
}

func TestTags_DeleteLeavesAnnotationReferences(t *testing.T) {
	b := newBadger(t)
	repos := store.NewRepositories(b, nil, nil)
	ctx := context.Background()

	tag := mustTag(t, repos.Tags, "cat", "")
	a, err := repos.Annotations.Create(ctx, store.NewAnnotation{
		ImageID:     id.NewHex(),
		BoundingBox: boxA,
		Tags:        []string{tag.ID},
	})
	require.NoError(t, err)

	_, err = repos.Tags.DeleteWithDescendants(ctx, tag.ID)
	require.NoError(t, err)

	got, err := repos.Annotations.FindByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{tag.ID}, got.Tags)
}

func TestTags_RenamePropagates(t *testing.T) {
	forEachBackend(t, func(t *testing.T, b store.Backend) {
		repo := newTags(t, b)
		ctx := context.Background()

		p := mustTag(t, repo, "Old", "")
		c := mustTag(t, repo, "C", p.ID)
		g := mustTag(t, repo, "G", c.ID)

		renamed, err := repo.UpdateHierarchical(ctx, p.ID, store.TagPatch{Name: ptr("New")})
		require.NoError(t, err)
		require.NotNil(t, renamed)
		assert.Equal(t, "New", renamed.Name)
		assert.Equal(t, "New", renamed.Path)

		child := reload(t, repo, c.ID)
		assert.Equal(t, "New/C", child.Path)
		assert.Equal(t, 1, child.Depth)
		assert.Equal(t, "New/C/G", reload(t, repo, g.ID).Path)
	})
}

func TestTags_UpdateHierarchical(t *testing.T) {
	repo := newTags(t, newBadger(t))
	ctx := context.Background()

	a := mustTag(t, repo, "A", "")
	b := mustTag(t, repo, "B", "")
	leaf := mustTag(t, repo, "Leaf", a.ID)
	below := mustTag(t, repo, "Below", leaf.ID)

	got, err := repo.UpdateHierarchical(ctx, leaf.ID, store.TagPatch{
		Name:        ptr("Renamed"),
		ParentID:    ptr(b.ID),
		Description: ptr("moved and renamed"),
		Color:       ptr("#00ff00"),
	})
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "B/Renamed", got.Path)
	assert.Equal(t, b.ID, got.ParentID)
	assert.Equal(t, "moved and renamed", got.Description)
	assert.Equal(t, "#00ff00", got.Color)
	assert.Equal(t, "B/Renamed/Below", reload(t, repo, below.ID).Path)
	assertPlacement(t, repo, reload(t, repo, below.ID))

	// Rejected move aborts the whole update.
	got, err = repo.UpdateHierarchical(ctx, leaf.ID, store.TagPatch{
		Name:     ptr("Nope"),
		ParentID: ptr(below.ID),
	})
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.Equal(t, "Renamed", reload(t, repo, leaf.ID).Name)

	got, err = repo.UpdateHierarchical(ctx, id.NewHex(), store.TagPatch{Name: ptr("x")})
	require.NoError(t, err)
	assert.Nil(t, got)

	unchanged, err := repo.UpdateHierarchical(ctx, a.ID, store.TagPatch{})
	require.NoError(t, err)
	assert.Equal(t, "A", unchanged.Path)
}

func TestTags_Navigation(t *testing.T) {
	forEachBackend(t, func(t *testing.T, b store.Backend) {
		repo := newTags(t, b)
		ctx := context.Background()

		animal := mustTag(t, repo, "Animal", "")
		vehicle := mustTag(t, repo, "Vehicle", "")
		mammal := mustTag(t, repo, "Mammal", animal.ID)
		bird := mustTag(t, repo, "Bird", animal.ID)
		cat := mustTag(t, repo, "Cat", mammal.ID)

		ancestors, err := repo.Ancestors(ctx, cat.ID)
		require.NoError(t, err)
		assert.Equal(t, []string{mammal.ID, animal.ID}, tagIDs(ancestors))

		ancestors, err = repo.Ancestors(ctx, animal.ID)
		require.NoError(t, err)
		assert.Empty(t, ancestors)

		descendants, err := repo.Descendants(ctx, animal.ID)
		require.NoError(t, err)
		assert.Equal(t, []string{bird.ID, mammal.ID, cat.ID}, tagIDs(descendants))

		roots, err := repo.Roots(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{animal.ID, vehicle.ID}, tagIDs(roots))

		children, err := repo.Children(ctx, animal.ID)
		require.NoError(t, err)
		assert.Equal(t, []string{bird.ID, mammal.ID}, tagIDs(children))

		depth1, err := repo.FindByDepth(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, []string{bird.ID, mammal.ID}, tagIDs(depth1))

		found, err := repo.SearchByName(ctx, "MA", 10)
		require.NoError(t, err)
		assert.Equal(t, []string{animal.ID, mammal.ID}, tagIDs(found))

		found, err = repo.SearchByName(ctx, "a", 1)
		require.NoError(t, err)
		assert.Len(t, found, 1)

		found, err = repo.SearchByName(ctx, "  ", 10)
		require.NoError(t, err)
		assert.Empty(t, found)
	})
}

func TestTags_UsageCounts(t *testing.T) {
	forEachBackend(t, func(t *testing.T, b store.Backend) {
		repo := newTags(t, b)
		ctx := context.Background()

		cat := mustTag(t, repo, "cat", "")
		dog := mustTag(t, repo, "dog", "")
		emu := mustTag(t, repo, "emu", "")

		for range 3 {
			ok, err := repo.IncrementUsageCount(ctx, dog.ID)
			require.NoError(t, err)
			assert.True(t, ok)
		}
		ok, err := repo.IncrementUsageCount(ctx, emu.ID)
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = repo.IncrementUsageCount(ctx, id.NewHex())
		require.NoError(t, err)
		assert.False(t, ok)

		top, err := repo.MostUsed(ctx, 0)
		require.NoError(t, err)
		assert.Equal(t, []string{dog.ID, emu.ID, cat.ID}, tagIDs(top))
		assert.Equal(t, 3, top[0].UsageCount)

		top, err = repo.MostUsed(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, []string{dog.ID}, tagIDs(top))
	})
}

func tagIDs(list []*domain.Tag) []string {
	out := make([]string, len(list))
	for i, t := range list {
		out[i] = t.ID
	}
	return out
}

// Subtrees are defined by path prefix, so two roots with the same name
// share one subtree: deleting either removes the other's children too.
func TestTags_SameNamedRootsSharePathPrefix(t *testing.T) {
	forEachBackend(t, func(t *testing.T, b store.Backend) {
		repo := newTags(t, b)
		ctx := context.Background()

		first := mustTag(t, repo, "Animal", "")
		second := mustTag(t, repo, "Animal", "")
		child := mustTag(t, repo, "Cat", first.ID)
		assert.Equal(t, "Animal/Cat", child.Path)

		descendants, err := repo.Descendants(ctx, second.ID)
		require.NoError(t, err)
		assert.Equal(t, []string{child.ID}, tagIDs(descendants))

		count, err := repo.DeleteWithDescendants(ctx, second.ID)
		require.NoError(t, err)
		assert.Equal(t, 2, count)

		gone, err := repo.FindByID(ctx, child.ID)
		require.NoError(t, err)
		assert.Nil(t, gone)
		reload(t, repo, first.ID)
	})
}

// Moves rewrite descendants one document at a time without isolation, so
// overlapping moves may leave paths that disagree with their parents. They
// must still complete and leave every tag readable.
func TestTags_ConcurrentMovesStayReadable(t *testing.T) {
	forEachBackend(t, func(t *testing.T, b store.Backend) {
		repo := newTags(t, b)
		ctx := context.Background()

		animal := mustTag(t, repo, "Animal", "")
		mammal := mustTag(t, repo, "Mammal", animal.ID)
		cat := mustTag(t, repo, "Cat", mammal.ID)
		mustTag(t, repo, "Kitten", cat.ID)
		vehicle := mustTag(t, repo, "Vehicle", "")
		plant := mustTag(t, repo, "Plant", "")

		moves := []struct{ tagID, parentID string }{
			{mammal.ID, vehicle.ID},
			{cat.ID, plant.ID},
			{animal.ID, plant.ID},
		}

		var wg sync.WaitGroup
		for _, m := range moves {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := repo.MoveTag(ctx, m.tagID, m.parentID)
				assert.NoError(t, err)
			}()
		}
		wg.Wait()

		count := 0
		for tag, err := range repo.All(ctx) {
			require.NoError(t, err)
			require.NotNil(t, tag)
			assert.NotEmpty(t, tag.Name)
			assert.NotEmpty(t, tag.Path)
			count++
		}
		assert.Equal(t, 6, count)
	})
}
