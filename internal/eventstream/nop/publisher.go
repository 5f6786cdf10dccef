package nop

import (
	"context"

	"mindtree/internal/eventstream"
)

// Publisher is a no-op eventstream publisher used for tests and disabled mode.
type Publisher struct{}

func NewPublisher() *Publisher {
	return &Publisher{}
}

// Publish validates input and otherwise does nothing.
func (p *Publisher) Publish(_ context.Context, event *eventstream.NodeEvent) error {
	if event == nil {
		return eventstream.ErrNilNodeEvent
	}
	return nil
}

func (p *Publisher) Close() error {
	return nil
}
