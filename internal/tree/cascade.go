package tree

import (
	"context"
	"errors"
	"fmt"

	"mindtree/internal/store"
)

// Descendants returns the ids of every node below id, breadth first. Each
// round asks the store for the children of the whole frontier at once.
func Descendants(ctx context.Context, s store.Store, id string) ([]string, error) {
	seen := map[string]struct{}{id: {}}
	frontier := []string{id}
	var out []string
	for len(frontier) > 0 {
		children, err := s.Find(ctx, store.Filter{ParentIDs: frontier})
		if err != nil {
			return nil, fmt.Errorf("find children: %w", err)
		}
		var next []string
		for _, child := range children {
			if _, ok := seen[child.ID]; ok {
				continue
			}
			seen[child.ID] = struct{}{}
			out = append(out, child.ID)
			next = append(next, child.ID)
		}
		frontier = next
	}
	return out, nil
}

// DeleteWithDescendants removes id and its whole descendant set in one batch
// and returns the removed ids, id first. A missing id is a no-op.
func DeleteWithDescendants(ctx context.Context, s store.Store, id string) ([]string, error) {
	if _, err := s.FindOne(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("load node: %w", err)
	}
	descendants, err := Descendants(ctx, s, id)
	if err != nil {
		return nil, err
	}
	ids := append([]string{id}, descendants...)
	if err := RemoveBatch(ctx, s, "delete", ids); err != nil {
		return nil, err
	}
	return ids, nil
}

// RemoveBatch deletes ids and checks the outcome. A short count or a failed
// call is followed by a re-read; survivors get one retry. The result is
// success, an error with nothing removed, or a PartialFailure naming the ids
// still stored.
func RemoveBatch(ctx context.Context, s store.Store, op string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	pending := ids
	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		removed, err := s.DeleteMany(ctx, pending)
		if err == nil && removed == len(pending) {
			return nil
		}
		lastErr = err

		remaining, findErr := s.Find(ctx, store.Filter{IDs: pending})
		if findErr != nil {
			return &Error{
				Kind:      KindPartialFailure,
				Op:        op,
				Message:   "could not verify batch delete",
				Remaining: pending,
				Err:       errors.Join(err, findErr),
			}
		}
		if len(remaining) == 0 {
			return nil
		}
		pending = nodeIDs(remaining)
	}

	if len(pending) == len(ids) {
		if lastErr == nil {
			lastErr = errors.New("store removed nothing")
		}
		return fmt.Errorf("%s: %w", op, lastErr)
	}
	return &Error{
		Kind:      KindPartialFailure,
		Op:        op,
		Message:   "descendant set only partly removed",
		Remaining: pending,
		Removed:   without(ids, pending),
		Err:       lastErr,
	}
}

// without returns ids minus drop, keeping the order of ids.
func without(ids, drop []string) []string {
	skip := make(map[string]struct{}, len(drop))
	for _, id := range drop {
		skip[id] = struct{}{}
	}
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := skip[id]; !ok {
			out = append(out, id)
		}
	}
	return out
}

func nodeIDs(nodes []store.Node) []string {
	ids := make([]string, 0, len(nodes))
	for _, node := range nodes {
		ids = append(ids, node.ID)
	}
	return ids
}
