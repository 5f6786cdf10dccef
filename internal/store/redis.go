package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"mindtree/internal/util"
)

const redisMaxTxRetries = 3

// RedisStore keeps each node as a JSON value and maintains two index sets: all
// node ids, and the children of each parent id. Writes run in MULTI/EXEC under
// WATCH so a batch is applied whole or retried.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore connects to the Redis URL and checks it is reachable.
func NewRedisStore(redisURL, prefix string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return NewRedisStoreWithClient(client, prefix), nil
}

func NewRedisStoreWithClient(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "mindtree:"
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) nodeKey(id string) string     { return s.prefix + "node:" + id }
func (s *RedisStore) allKey() string               { return s.prefix + "nodes" }
func (s *RedisStore) childrenKey(id string) string { return s.prefix + "children:" + id }

func (s *RedisStore) Find(ctx context.Context, filter Filter) ([]Node, error) {
	if filter.empty() {
		return []Node{}, nil
	}

	var ids []string
	switch {
	case filter.ParentIDs != nil:
		keys := make([]string, 0, len(filter.ParentIDs))
		for _, parentID := range dedupe(filter.ParentIDs) {
			keys = append(keys, s.childrenKey(parentID))
		}
		members, err := s.client.SUnion(ctx, keys...).Result()
		if err != nil {
			return nil, fmt.Errorf("read children index: %w", err)
		}
		ids = members
	case filter.IDs != nil:
		ids = dedupe(filter.IDs)
	default:
		members, err := s.client.SMembers(ctx, s.allKey()).Result()
		if err != nil {
			return nil, fmt.Errorf("read node index: %w", err)
		}
		ids = members
	}

	nodes, err := s.load(ctx, s.client, ids)
	if err != nil {
		return nil, err
	}
	m := filter.matcher()
	out := make([]Node, 0, len(nodes))
	for _, node := range nodes {
		if m.match(node) {
			out = append(out, node)
		}
	}
	SortNodes(out)
	return out, nil
}

func (s *RedisStore) FindOne(ctx context.Context, id string) (Node, error) {
	raw, err := s.client.Get(ctx, s.nodeKey(id)).Result()
	if err == redis.Nil {
		return Node{}, ErrNotFound
	}
	if err != nil {
		return Node{}, fmt.Errorf("get node: %w", err)
	}
	return decodeRedisNode(raw)
}

func (s *RedisStore) Insert(ctx context.Context, input NewNode) (Node, error) {
	createdAt := input.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	node := Node{
		ID:        util.NewID("nd"),
		Text:      input.Text,
		ParentID:  copyString(input.ParentID),
		CreatedAt: createdAt,
	}
	payload, err := json.Marshal(node)
	if err != nil {
		return Node{}, fmt.Errorf("marshal node: %w", err)
	}
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.nodeKey(node.ID), payload, 0)
		pipe.SAdd(ctx, s.allKey(), node.ID)
		if node.ParentID != nil {
			pipe.SAdd(ctx, s.childrenKey(*node.ParentID), node.ID)
		}
		return nil
	})
	if err != nil {
		return Node{}, fmt.Errorf("insert node: %w", err)
	}
	return node, nil
}

func (s *RedisStore) DeleteMany(ctx context.Context, ids []string) (int, error) {
	ids = dedupe(ids)
	if len(ids) == 0 {
		return 0, nil
	}
	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, s.nodeKey(id))
	}

	deleted := 0
	err := s.watch(ctx, func(tx *redis.Tx) error {
		nodes, err := s.load(ctx, tx, ids)
		if err != nil {
			return err
		}
		var del *redis.IntCmd
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			del = pipe.Del(ctx, keys...)
			pipe.SRem(ctx, s.allKey(), toAny(ids)...)
			for _, node := range nodes {
				if node.ParentID != nil {
					pipe.SRem(ctx, s.childrenKey(*node.ParentID), node.ID)
				}
			}
			return nil
		})
		if err != nil {
			return err
		}
		deleted = int(del.Val())
		return nil
	}, keys...)
	if err != nil {
		return 0, fmt.Errorf("delete nodes: %w", err)
	}
	return deleted, nil
}

func (s *RedisStore) Update(ctx context.Context, id string, patch Patch) error {
	key := s.nodeKey(id)
	err := s.watch(ctx, func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Result()
		if err == redis.Nil {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		node, err := decodeRedisNode(raw)
		if err != nil {
			return err
		}
		previous := copyString(node.ParentID)
		switch {
		case patch.Detach:
			node.ParentID = nil
		case patch.ParentID != nil:
			node.ParentID = copyString(patch.ParentID)
		default:
			return nil
		}
		payload, err := json.Marshal(node)
		if err != nil {
			return fmt.Errorf("marshal node: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, payload, 0)
			if previous != nil {
				pipe.SRem(ctx, s.childrenKey(*previous), id)
			}
			if node.ParentID != nil {
				pipe.SAdd(ctx, s.childrenKey(*node.ParentID), id)
			}
			return nil
		})
		return err
	}, key)
	if errors.Is(err, ErrNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("update node: %w", err)
	}
	return nil
}

func (s *RedisStore) Count(ctx context.Context) (int, error) {
	count, err := s.client.SCard(ctx, s.allKey()).Result()
	if err != nil {
		return 0, fmt.Errorf("count nodes: %w", err)
	}
	return int(count), nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

// watch runs fn under WATCH on keys and retries when another client touched
// them before EXEC.
func (s *RedisStore) watch(ctx context.Context, fn func(*redis.Tx) error, keys ...string) error {
	var err error
	for attempt := 0; attempt < redisMaxTxRetries; attempt++ {
		err = s.client.Watch(ctx, fn, keys...)
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
	}
	return err
}

type multiGetter interface {
	MGet(ctx context.Context, keys ...string) *redis.SliceCmd
}

func (s *RedisStore) load(ctx context.Context, client multiGetter, ids []string) ([]Node, error) {
	if len(ids) == 0 {
		return []Node{}, nil
	}
	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, s.nodeKey(id))
	}
	values, err := client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("load nodes: %w", err)
	}
	nodes := make([]Node, 0, len(values))
	for _, value := range values {
		raw, ok := value.(string)
		if !ok {
			continue
		}
		node, err := decodeRedisNode(raw)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, node)
	}
	return nodes, nil
}

func decodeRedisNode(raw string) (Node, error) {
	var node Node
	if err := json.Unmarshal([]byte(raw), &node); err != nil {
		return Node{}, fmt.Errorf("unmarshal node: %w", err)
	}
	node.CreatedAt = node.CreatedAt.UTC()
	return node, nil
}

func toAny(values []string) []any {
	out := make([]any, len(values))
	for i, value := range values {
		out[i] = value
	}
	return out
}
