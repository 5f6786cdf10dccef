// Package tree derives the mind-map hierarchy from flat parent-pointer records
// and guards the operations that change it.
package tree

import (
	"mindtree/internal/store"
)

// Tree is a node with its derived children.
type Tree struct {
	store.Node
	Children []*Tree `json:"children"`
}

// Assemble places every record reachable from a root. Records whose parent is
// missing, or that are only reachable through a stored cycle, are returned as
// unplaced. Each id is placed at most once.
func Assemble(records []store.Node) (roots []*Tree, unplaced []store.Node) {
	byParent := make(map[string][]store.Node)
	var rootRecords []store.Node
	for _, record := range records {
		if record.ParentID == nil {
			rootRecords = append(rootRecords, record)
			continue
		}
		byParent[*record.ParentID] = append(byParent[*record.ParentID], record)
	}
	store.SortNodes(rootRecords)
	for _, group := range byParent {
		store.SortNodes(group)
	}

	placed := make(map[string]struct{}, len(records))
	roots = make([]*Tree, 0, len(rootRecords))
	for _, record := range rootRecords {
		if _, ok := placed[record.ID]; ok {
			continue
		}
		placed[record.ID] = struct{}{}
		root := newTree(record)
		attach(root, byParent, placed)
		roots = append(roots, root)
	}

	for _, record := range records {
		if _, ok := placed[record.ID]; !ok {
			unplaced = append(unplaced, record)
		}
	}
	return roots, unplaced
}

// BuildTree returns the roots of the assembled tree and drops unplaced records.
func BuildTree(records []store.Node) []*Tree {
	roots, _ := Assemble(records)
	return roots
}

// Subtree assembles root together with the given descendant records.
func Subtree(root store.Node, descendants []store.Node) *Tree {
	byParent := make(map[string][]store.Node)
	for _, record := range descendants {
		if record.ParentID == nil || record.ID == root.ID {
			continue
		}
		byParent[*record.ParentID] = append(byParent[*record.ParentID], record)
	}
	for _, group := range byParent {
		store.SortNodes(group)
	}
	placed := map[string]struct{}{root.ID: {}}
	top := newTree(root)
	attach(top, byParent, placed)
	return top
}

// Flatten lists the nodes of the forest in pre-order.
func Flatten(roots []*Tree) []store.Node {
	var out []store.Node
	stack := make([]*Tree, 0, len(roots))
	for i := len(roots) - 1; i >= 0; i-- {
		stack = append(stack, roots[i])
	}
	for len(stack) > 0 {
		current := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		out = append(out, current.Node)
		for i := len(current.Children) - 1; i >= 0; i-- {
			stack = append(stack, current.Children[i])
		}
	}
	return out
}

// Depth returns the number of levels in the forest.
func Depth(roots []*Tree) int {
	type level struct {
		tree  *Tree
		depth int
	}
	deepest := 0
	queue := make([]level, 0, len(roots))
	for _, root := range roots {
		queue = append(queue, level{tree: root, depth: 1})
	}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		if current.depth > deepest {
			deepest = current.depth
		}
		for _, child := range current.tree.Children {
			queue = append(queue, level{tree: child, depth: current.depth + 1})
		}
	}
	return deepest
}

func attach(top *Tree, byParent map[string][]store.Node, placed map[string]struct{}) {
	queue := []*Tree{top}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for _, record := range byParent[current.ID] {
			if _, ok := placed[record.ID]; ok {
				continue
			}
			placed[record.ID] = struct{}{}
			child := newTree(record)
			current.Children = append(current.Children, child)
			queue = append(queue, child)
		}
	}
}

func newTree(node store.Node) *Tree {
	return &Tree{Node: node, Children: []*Tree{}}
}
