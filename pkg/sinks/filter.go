package sinks

import (
	"context"
	"io"
)

// filteredSink drops events whose operation or outcome the config entry did
// not ask for. An empty list accepts everything.
type filteredSink struct {
	Sink
	operations map[string]struct{}
	outcomes   map[string]struct{}
}

func withFilter(s Sink, cfg SinkConfig) Sink {
	if len(cfg.Operations) == 0 && len(cfg.Outcomes) == 0 {
		return s
	}
	return &filteredSink{
		Sink:       s,
		operations: toSet(cfg.Operations),
		outcomes:   toSet(cfg.Outcomes),
	}
}

// Accepts reports whether evt passes the filter.
func (f *filteredSink) Accepts(evt Event) bool {
	return matches(f.operations, string(evt.Exchange.Operation)) && matches(f.outcomes, evt.Outcome())
}

func (f *filteredSink) Publish(ctx context.Context, evt Event) error {
	if !f.Accepts(evt) {
		return nil
	}
	return f.Sink.Publish(ctx, evt)
}

func (f *filteredSink) Close() error {
	if c, ok := f.Sink.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

func toSet(values []string) map[string]struct{} {
	if len(values) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return set
}

func matches(set map[string]struct{}, v string) bool {
	if set == nil {
		return true
	}
	_, ok := set[v]
	return ok
}
