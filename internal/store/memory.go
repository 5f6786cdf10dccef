package store

import (
	"context"
	"sync"
	"time"

	"mindtree/internal/util"
)

// MemoryStore keeps records in process memory. It backs local development and
// tests.
type MemoryStore struct {
	mu    sync.RWMutex
	nodes map[string]Node
	now   func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		nodes: make(map[string]Node),
		now:   time.Now,
	}
}

// Seed inserts records as-is, keeping their ids. It bypasses every check and
// exists to load fixtures, including broken ones.
func (s *MemoryStore) Seed(nodes ...Node) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, node := range nodes {
		s.nodes[node.ID] = cloneNode(node)
	}
}

func (s *MemoryStore) Find(_ context.Context, filter Filter) ([]Node, error) {
	if filter.empty() {
		return []Node{}, nil
	}
	m := filter.matcher()
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Node
	if m.ids != nil {
		out = make([]Node, 0, len(m.ids))
		for id := range m.ids {
			if node, ok := s.nodes[id]; ok && m.match(node) {
				out = append(out, cloneNode(node))
			}
		}
	} else {
		out = make([]Node, 0, len(s.nodes))
		for _, node := range s.nodes {
			if m.match(node) {
				out = append(out, cloneNode(node))
			}
		}
	}
	SortNodes(out)
	return out, nil
}

func (s *MemoryStore) FindOne(_ context.Context, id string) (Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	node, ok := s.nodes[id]
	if !ok {
		return Node{}, ErrNotFound
	}
	return cloneNode(node), nil
}

func (s *MemoryStore) Insert(_ context.Context, input NewNode) (Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	createdAt := input.CreatedAt
	if createdAt.IsZero() {
		createdAt = s.now().UTC()
	}
	node := Node{
		ID:        util.NewID("nd"),
		Text:      input.Text,
		ParentID:  copyString(input.ParentID),
		CreatedAt: createdAt,
	}
	s.nodes[node.ID] = node
	return cloneNode(node), nil
}

func (s *MemoryStore) DeleteMany(_ context.Context, ids []string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	deleted := 0
	for _, id := range dedupe(ids) {
		if _, ok := s.nodes[id]; ok {
			delete(s.nodes, id)
			deleted++
		}
	}
	return deleted, nil
}

func (s *MemoryStore) Update(_ context.Context, id string, patch Patch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	node, ok := s.nodes[id]
	if !ok {
		return ErrNotFound
	}
	switch {
	case patch.Detach:
		node.ParentID = nil
	case patch.ParentID != nil:
		node.ParentID = copyString(patch.ParentID)
	}
	s.nodes[id] = node
	return nil
}

func (s *MemoryStore) Count(context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.nodes), nil
}

func (s *MemoryStore) Ping(context.Context) error { return nil }

func (s *MemoryStore) Close() error { return nil }

func cloneNode(node Node) Node {
	node.ParentID = copyString(node.ParentID)
	return node
}

func copyString(value *string) *string {
	if value == nil {
		return nil
	}
	copied := *value
	return &copied
}
