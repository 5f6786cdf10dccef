package store

import "time"

// Node is a flat mind-map record. The parent relation is stored as a plain id
// reference; children are derived on read.
type Node struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	ParentID  *string   `json:"parentId"`
	CreatedAt time.Time `json:"createdAt"`
}

func (n Node) IsRoot() bool {
	return n.ParentID == nil
}

// Parent returns the parent id or "" for roots.
func (n Node) Parent() string {
	if n.ParentID == nil {
		return ""
	}
	return *n.ParentID
}

// NewNode is a record to insert; the backend assigns the id.
type NewNode struct {
	Text      string
	ParentID  *string
	CreatedAt time.Time
}

// Patch is a partial update. ParentID re-parents the node; Detach clears the
// parent and wins over ParentID.
type Patch struct {
	ParentID *string
	Detach   bool
}

// Filter selects records. A nil slice places no constraint; a non-nil empty
// slice matches nothing. Both constraints apply together.
type Filter struct {
	IDs       []string
	ParentIDs []string
}

func (f Filter) empty() bool {
	return (f.IDs != nil && len(f.IDs) == 0) || (f.ParentIDs != nil && len(f.ParentIDs) == 0)
}

// matcher builds lookup sets once so a scan costs one map probe per record
// and constraint.
func (f Filter) matcher() nodeMatcher {
	return nodeMatcher{ids: toSet(f.IDs), parents: toSet(f.ParentIDs)}
}

type nodeMatcher struct {
	ids     map[string]struct{}
	parents map[string]struct{}
}

func (m nodeMatcher) match(node Node) bool {
	if m.ids != nil {
		if _, ok := m.ids[node.ID]; !ok {
			return false
		}
	}
	if m.parents != nil {
		if node.ParentID == nil {
			return false
		}
		if _, ok := m.parents[*node.ParentID]; !ok {
			return false
		}
	}
	return true
}

// toSet keeps the nil/non-nil distinction of values.
func toSet(values []string) map[string]struct{} {
	if values == nil {
		return nil
	}
	set := make(map[string]struct{}, len(values))
	for _, value := range values {
		set[value] = struct{}{}
	}
	return set
}

func StringPtr(value string) *string {
	return &value
}
