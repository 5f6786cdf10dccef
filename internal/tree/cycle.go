package tree

import (
	"context"
	"errors"
	"fmt"

	"mindtree/internal/store"
)

// WouldCycle reports whether making candidateParentID the parent of nodeID
// would put nodeID in its own ancestor chain. The walk goes up from the
// candidate and stops at a root or a missing ancestor. It is bounded by the
// stored node count; running past the bound or revisiting an ancestor counts as
// a cycle.
func WouldCycle(ctx context.Context, s store.Store, nodeID string, candidateParentID *string) (bool, error) {
	if candidateParentID == nil || *candidateParentID == "" {
		return false, nil
	}
	if *candidateParentID == nodeID {
		return true, nil
	}

	limit, err := s.Count(ctx)
	if err != nil {
		return false, fmt.Errorf("count nodes: %w", err)
	}

	visited := make(map[string]struct{})
	current := *candidateParentID
	for hops := 0; ; hops++ {
		if current == nodeID {
			return true, nil
		}
		if hops > limit {
			return true, nil
		}
		if _, ok := visited[current]; ok {
			return true, nil
		}
		visited[current] = struct{}{}

		node, err := s.FindOne(ctx, current)
		if errors.Is(err, store.ErrNotFound) {
			return false, nil
		}
		if err != nil {
			return false, fmt.Errorf("load ancestor %s: %w", current, err)
		}
		if node.ParentID == nil {
			return false, nil
		}
		current = *node.ParentID
	}
}
