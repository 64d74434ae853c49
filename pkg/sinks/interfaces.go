package sinks

import "context"

// Sink delivers exchange events to one downstream system. Publish is called
// from the goroutine that completed the exchange, so implementations must be
// safe for concurrent use.
type Sink interface {
	ID() string
	Type() string
	Publish(ctx context.Context, evt Event) error
}

// acceptor is implemented by sinks that only want some events. Fanout skips
// them for the rest so they are not counted as deliveries.
type acceptor interface {
	Accepts(evt Event) bool
}
