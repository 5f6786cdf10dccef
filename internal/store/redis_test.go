package store

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMiniRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	s, err := NewRedisStore("redis://"+mr.Addr(), "test:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s, mr
}

func TestRedisStore(t *testing.T) {
	runStoreSuite(t, func(t *testing.T) Store {
		s, _ := newMiniRedisStore(t)
		return s
	})
}

func TestRedisStoreMaintainsIndexes(t *testing.T) {
	ctx := context.Background()
	s, mr := newMiniRedisStore(t)

	root, err := s.Insert(ctx, NewNode{Text: "root"})
	require.NoError(t, err)
	child, err := s.Insert(ctx, NewNode{Text: "child", ParentID: &root.ID})
	require.NoError(t, err)

	members, err := mr.SMembers("test:children:" + root.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{child.ID}, members)

	require.NoError(t, s.Update(ctx, child.ID, Patch{Detach: true}))
	assert.False(t, mr.Exists("test:children:"+root.ID), "empty children set is removed")

	_, err = s.DeleteMany(ctx, []string{root.ID, child.ID})
	require.NoError(t, err)
	assert.False(t, mr.Exists("test:node:"+root.ID))
	assert.False(t, mr.Exists("test:nodes"))
}

func TestNewRedisStoreRejectsBadURL(t *testing.T) {
	_, err := NewRedisStore("://nope", "")
	assert.Error(t, err)
}

func TestNewRedisStoreWithClientDefaultsPrefix(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	s := NewRedisStoreWithClient(client, "")
	t.Cleanup(func() { _ = s.Close() })

	node, err := s.Insert(context.Background(), NewNode{Text: "root"})
	require.NoError(t, err)
	assert.True(t, mr.Exists("mindtree:node:"+node.ID))
}
