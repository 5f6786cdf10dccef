package eventstream

import "context"

// Publisher publishes node events to an event stream backend.
type Publisher interface {
	Publish(ctx context.Context, event *NodeEvent) error
	Close() error
}
