package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runStoreSuite checks the behavior every backend has to share. newStore must
// return an empty store.
func runStoreSuite(t *testing.T, newStore func(t *testing.T) Store) {
	t.Helper()
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	insert := func(t *testing.T, s Store, text string, parent *string, minute int) Node {
		t.Helper()
		node, err := s.Insert(context.Background(), NewNode{
			Text:      text,
			ParentID:  parent,
			CreatedAt: base.Add(time.Duration(minute) * time.Minute),
		})
		require.NoError(t, err)
		require.NotEmpty(t, node.ID)
		return node
	}

	t.Run("insert and find one", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)
		root := insert(t, s, "root", nil, 0)
		child := insert(t, s, "child", &root.ID, 1)

		got, err := s.FindOne(ctx, child.ID)
		require.NoError(t, err)
		assert.Equal(t, "child", got.Text)
		assert.Equal(t, root.ID, got.Parent())
		assert.True(t, got.CreatedAt.Equal(base.Add(time.Minute)))

		top, err := s.FindOne(ctx, root.ID)
		require.NoError(t, err)
		assert.True(t, top.IsRoot())

		count, err := s.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, count)
	})

	t.Run("find one missing", func(t *testing.T) {
		s := newStore(t)
		_, err := s.FindOne(context.Background(), "000000000000000000000000")
		assert.True(t, errors.Is(err, ErrNotFound))
	})

	t.Run("find by filter", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)
		root := insert(t, s, "root", nil, 0)
		a := insert(t, s, "a", &root.ID, 2)
		b := insert(t, s, "b", &root.ID, 1)
		c := insert(t, s, "c", &a.ID, 3)
		orphan := insert(t, s, "orphan", StringPtr("gone"), 4)

		all, err := s.Find(ctx, Filter{})
		require.NoError(t, err)
		assert.Equal(t, []string{root.ID, b.ID, a.ID, c.ID, orphan.ID}, nodeIDs(all))

		children, err := s.Find(ctx, Filter{ParentIDs: []string{root.ID, a.ID}})
		require.NoError(t, err)
		assert.Equal(t, []string{b.ID, a.ID, c.ID}, nodeIDs(children))

		byID, err := s.Find(ctx, Filter{IDs: []string{c.ID, root.ID, "missing"}})
		require.NoError(t, err)
		assert.Equal(t, []string{root.ID, c.ID}, nodeIDs(byID))

		none, err := s.Find(ctx, Filter{IDs: []string{}})
		require.NoError(t, err)
		assert.Empty(t, none)

		both, err := s.Find(ctx, Filter{IDs: []string{a.ID, c.ID}, ParentIDs: []string{a.ID}})
		require.NoError(t, err)
		assert.Equal(t, []string{c.ID}, nodeIDs(both))
	})

	t.Run("delete many", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)
		root := insert(t, s, "root", nil, 0)
		a := insert(t, s, "a", &root.ID, 1)
		b := insert(t, s, "b", &a.ID, 2)

		deleted, err := s.DeleteMany(ctx, []string{a.ID, b.ID, a.ID, "missing"})
		require.NoError(t, err)
		assert.Equal(t, 2, deleted)

		left, err := s.Find(ctx, Filter{})
		require.NoError(t, err)
		assert.Equal(t, []string{root.ID}, nodeIDs(left))

		children, err := s.Find(ctx, Filter{ParentIDs: []string{root.ID}})
		require.NoError(t, err)
		assert.Empty(t, children)

		deleted, err = s.DeleteMany(ctx, []string{})
		require.NoError(t, err)
		assert.Zero(t, deleted)
	})

	t.Run("update parent", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)
		one := insert(t, s, "one", nil, 0)
		two := insert(t, s, "two", &one.ID, 1)
		three := insert(t, s, "three", &two.ID, 2)

		require.NoError(t, s.Update(ctx, three.ID, Patch{ParentID: &one.ID}))
		moved, err := s.FindOne(ctx, three.ID)
		require.NoError(t, err)
		assert.Equal(t, one.ID, moved.Parent())

		children, err := s.Find(ctx, Filter{ParentIDs: []string{two.ID}})
		require.NoError(t, err)
		assert.Empty(t, children)

		require.NoError(t, s.Update(ctx, three.ID, Patch{Detach: true}))
		detached, err := s.FindOne(ctx, three.ID)
		require.NoError(t, err)
		assert.True(t, detached.IsRoot())

		err = s.Update(ctx, "000000000000000000000000", Patch{ParentID: &one.ID})
		assert.True(t, errors.Is(err, ErrNotFound))
	})

	t.Run("ping", func(t *testing.T) {
		s := newStore(t)
		assert.NoError(t, s.Ping(context.Background()))
	})
}

func nodeIDs(nodes []Node) []string {
	out := make([]string, 0, len(nodes))
	for _, node := range nodes {
		out = append(out, node.ID)
	}
	return out
}

func TestMemoryStore(t *testing.T) {
	runStoreSuite(t, func(t *testing.T) Store {
		return NewMemoryStore()
	})
}

func TestMemoryStoreSeedKeepsBrokenRecords(t *testing.T) {
	s := NewMemoryStore()
	s.Seed(Node{ID: "a", Text: "a", ParentID: StringPtr("b")}, Node{ID: "b", Text: "b", ParentID: StringPtr("a")})

	nodes, err := s.Find(context.Background(), Filter{ParentIDs: []string{"a"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, nodeIDs(nodes))
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	s.Seed(Node{ID: "a", Text: "a", ParentID: StringPtr("root")})

	node, err := s.FindOne(ctx, "a")
	require.NoError(t, err)
	*node.ParentID = "elsewhere"

	again, err := s.FindOne(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "root", again.Parent())
}
