// Package eventstream defines the events emitted when the tree changes and the
// publisher interface that carries them.
package eventstream

import (
	"time"

	"mindtree/internal/store"
	"mindtree/internal/util"
)

const (
	// SchemaVersionV1 is the first version of the event payload schema.
	SchemaVersionV1 = 1

	EventTypeNodeCreated = "mindtree.node.created"
	EventTypeNodeMoved   = "mindtree.node.moved"
	EventTypeNodeDeleted = "mindtree.node.deleted"
)

// NodeEvent is a transport-neutral payload describing one tree change.
type NodeEvent struct {
	SchemaVersion int       `json:"schema_version"`
	EventType     string    `json:"event_type"`
	EventID       string    `json:"event_id"`
	EmittedAt     time.Time `json:"emitted_at"`
	NodeID        string    `json:"node_id"`
	// Node is the record after the change; absent for deletions.
	Node *store.Node `json:"node,omitempty"`
	// PreviousParentID is set on moves.
	PreviousParentID *string `json:"previous_parent_id,omitempty"`
	// DeletedIDs lists the whole removed subtree, root first.
	DeletedIDs []string `json:"deleted_ids,omitempty"`
	RequestID  string   `json:"request_id,omitempty"`
}

func newEvent(eventType, nodeID string) *NodeEvent {
	return &NodeEvent{
		SchemaVersion: SchemaVersionV1,
		EventType:     eventType,
		EventID:       util.NewID("evt"),
		EmittedAt:     time.Now().UTC(),
		NodeID:        nodeID,
	}
}

func NodeCreated(node store.Node) *NodeEvent {
	event := newEvent(EventTypeNodeCreated, node.ID)
	event.Node = &node
	return event
}

func NodeMoved(node store.Node, previousParentID *string) *NodeEvent {
	event := newEvent(EventTypeNodeMoved, node.ID)
	event.Node = &node
	event.PreviousParentID = previousParentID
	return event
}

func NodeDeleted(id string, deleted []string) *NodeEvent {
	event := newEvent(EventTypeNodeDeleted, id)
	event.DeletedIDs = deleted
	return event
}
