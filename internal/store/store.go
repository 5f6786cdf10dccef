// Package store holds the flat node records and the storage backends that
// persist them.
package store

import (
	"context"
	"errors"
	"sort"
)

var ErrNotFound = errors.New("node not found")

// Store is the storage collaborator used by the tree logic. Backends only
// persist records; they do not enforce parent existence or acyclicity.
type Store interface {
	Find(ctx context.Context, filter Filter) ([]Node, error)
	FindOne(ctx context.Context, id string) (Node, error)
	Insert(ctx context.Context, node NewNode) (Node, error)
	DeleteMany(ctx context.Context, ids []string) (int, error)
	Update(ctx context.Context, id string, patch Patch) error
	Count(ctx context.Context) (int, error)
	Ping(ctx context.Context) error
	Close() error
}

// SortNodes orders records by creation time, then id.
func SortNodes(nodes []Node) {
	sort.SliceStable(nodes, func(i, j int) bool {
		if !nodes[i].CreatedAt.Equal(nodes[j].CreatedAt) {
			return nodes[i].CreatedAt.Before(nodes[j].CreatedAt)
		}
		return nodes[i].ID < nodes[j].ID
	})
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
