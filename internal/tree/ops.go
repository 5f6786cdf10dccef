package tree

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"mindtree/internal/store"
)

// Create inserts a node. An empty parent id creates a root; any other parent
// must exist.
func Create(ctx context.Context, s store.Store, text string, parentID *string) (store.Node, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return store.Node{}, invalid("create", "", "text is required", nil)
	}
	parentID = normalizeParent(parentID)
	if parentID != nil {
		if _, err := s.FindOne(ctx, *parentID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return store.Node{}, notFound("create", *parentID, "parent node not found")
			}
			return store.Node{}, fmt.Errorf("load parent: %w", err)
		}
	}
	node, err := s.Insert(ctx, store.NewNode{
		Text:      text,
		ParentID:  parentID,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		return store.Node{}, fmt.Errorf("insert node: %w", err)
	}
	return node, nil
}

// Move re-parents nodeID under newParentID. Moving to the root is not
// supported; the target parent must exist and must not be nodeID or one of its
// descendants. On rejection the store is left unchanged.
func Move(ctx context.Context, s store.Store, nodeID string, newParentID *string) (store.Node, error) {
	node, err := s.FindOne(ctx, nodeID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return store.Node{}, notFound("move", nodeID, "node not found")
		}
		return store.Node{}, fmt.Errorf("load node: %w", err)
	}

	newParentID = normalizeParent(newParentID)
	if newParentID == nil {
		return store.Node{}, invalid("move", nodeID, "newParentId is required", nil)
	}
	if _, err := s.FindOne(ctx, *newParentID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return store.Node{}, notFound("move", *newParentID, "parent node not found")
		}
		return store.Node{}, fmt.Errorf("load parent: %w", err)
	}

	cycle, err := WouldCycle(ctx, s, nodeID, newParentID)
	if err != nil {
		return store.Node{}, err
	}
	if cycle {
		return store.Node{}, invalid("move", nodeID, "cannot move a node under itself or its descendants", ErrCycle)
	}

	if err := s.Update(ctx, nodeID, store.Patch{ParentID: newParentID}); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return store.Node{}, notFound("move", nodeID, "node not found")
		}
		return store.Node{}, fmt.Errorf("update node: %w", err)
	}
	node.ParentID = newParentID
	return node, nil
}

func normalizeParent(parentID *string) *string {
	if parentID == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*parentID)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
