package tree

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"mindtree/internal/store"
)

type ReconcileMode string

const (
	// ModePurge deletes every record that is not placed in the tree.
	ModePurge ReconcileMode = "purge"
	// ModeReattach turns orphans into roots and breaks stored cycles.
	ModeReattach ReconcileMode = "reattach"
)

func ParseReconcileMode(value string) (ReconcileMode, error) {
	switch ReconcileMode(value) {
	case ModePurge, ModeReattach:
		return ReconcileMode(value), nil
	default:
		return "", invalid("reconcile", "", fmt.Sprintf("unknown mode %q", value), nil)
	}
}

type ReconcileResult struct {
	Mode       ReconcileMode `json:"mode"`
	Purged     []string      `json:"purged"`
	Reattached []string      `json:"reattached"`
}

// Orphans returns the stored records that the tree does not place.
func Orphans(ctx context.Context, s store.Store) ([]store.Node, error) {
	records, err := s.Find(ctx, store.Filter{})
	if err != nil {
		return nil, fmt.Errorf("load nodes: %w", err)
	}
	_, unplaced := Assemble(records)
	if unplaced == nil {
		unplaced = []store.Node{}
	}
	return unplaced, nil
}

// Reconcile repairs records the tree cannot place.
func Reconcile(ctx context.Context, s store.Store, mode ReconcileMode) (ReconcileResult, error) {
	result := ReconcileResult{Mode: mode, Purged: []string{}, Reattached: []string{}}
	records, err := s.Find(ctx, store.Filter{})
	if err != nil {
		return result, fmt.Errorf("load nodes: %w", err)
	}

	switch mode {
	case ModePurge:
		_, unplaced := Assemble(records)
		ids := nodeIDs(unplaced)
		if err := RemoveBatch(ctx, s, "reconcile", ids); err != nil {
			return result, err
		}
		result.Purged = ids
		return result, nil
	case ModeReattach:
		for _, id := range detachPlan(records) {
			if err := s.Update(ctx, id, store.Patch{Detach: true}); err != nil {
				if errors.Is(err, store.ErrNotFound) {
					continue
				}
				return result, fmt.Errorf("detach %s: %w", id, err)
			}
			result.Reattached = append(result.Reattached, id)
		}
		return result, nil
	default:
		return result, invalid("reconcile", "", fmt.Sprintf("unknown mode %q", mode), nil)
	}
}

// detachPlan picks the records whose parent must be cleared so that every
// record is placed: first each orphan with a missing parent, then for every
// remaining cycle its lowest id.
func detachPlan(records []store.Node) []string {
	working := make([]store.Node, len(records))
	copy(working, records)
	index := make(map[string]int, len(working))
	for i, record := range working {
		index[record.ID] = i
	}

	var plan []string
	_, unplaced := Assemble(working)
	sort.Slice(unplaced, func(i, j int) bool { return unplaced[i].ID < unplaced[j].ID })
	for _, record := range unplaced {
		if record.ParentID == nil {
			continue
		}
		if _, ok := index[*record.ParentID]; !ok {
			working[index[record.ID]].ParentID = nil
			plan = append(plan, record.ID)
		}
	}

	for rounds := 0; rounds < len(working); rounds++ {
		_, unplaced = Assemble(working)
		if len(unplaced) == 0 {
			break
		}
		member := cycleMember(working, index, unplaced[0].ID)
		working[index[member]].ParentID = nil
		plan = append(plan, member)
	}
	return plan
}

// cycleMember follows parent pointers from start until an id repeats and
// returns the lowest id on the loop it found.
func cycleMember(records []store.Node, index map[string]int, start string) string {
	position := make(map[string]int)
	var path []string
	current := start
	for {
		if at, ok := position[current]; ok {
			loop := path[at:]
			lowest := loop[0]
			for _, id := range loop[1:] {
				if id < lowest {
					lowest = id
				}
			}
			return lowest
		}
		position[current] = len(path)
		path = append(path, current)
		parent := records[index[current]].ParentID
		if parent == nil {
			return current
		}
		if _, ok := index[*parent]; !ok {
			return current
		}
		current = *parent
	}
}
