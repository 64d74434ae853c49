package sinks

import (
	"time"

	"github.com/taller-web/hello-client/internal/domain"
)

// Event represents the payload published downstream.
type Event struct {
	Client    string          `json:"client"`
	Exchange  domain.Exchange `json:"exchange"`
	EmittedAt time.Time       `json:"emitted_at"`
}

// NewEvent wraps an exchange produced by the named client.
func NewEvent(client string, ex domain.Exchange) Event {
	return Event{
		Client:    client,
		Exchange:  ex,
		EmittedAt: time.Now().UTC(),
	}
}

// Event outcomes.
const (
	OutcomeRendered = "rendered"
	OutcomeFailed   = "failed"
	OutcomeDropped  = "dropped"
)

// Outcome classifies the exchange: rendered, failed (rendered as an error),
// or dropped (failed without touching the display).
func (e Event) Outcome() string {
	switch {
	case e.Exchange.Failed() && e.Exchange.Rendered:
		return OutcomeFailed
	case e.Exchange.Failed():
		return OutcomeDropped
	default:
		return OutcomeRendered
	}
}

// attributes are attached to queue/topic messages for filtering.
func (e Event) attributes() map[string]string {
	return map[string]string{
		"operation": string(e.Exchange.Operation),
		"outcome":   e.Outcome(),
	}
}
