package sinks

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Builder creates a Sink from a config entry.
type Builder func(ctx context.Context, cfg SinkConfig, log Logger) (Sink, error)

// Registry maps sink types to builders. Sinks it builds honour the
// operations/outcomes filters of their config entry.
type Registry struct {
	mu       sync.RWMutex
	builders map[string]Builder
}

// NewRegistry returns a registry seeded with builders.
func NewRegistry(builders map[string]Builder) *Registry {
	r := &Registry{builders: make(map[string]Builder, len(builders))}
	for typ, b := range builders {
		r.Register(typ, b)
	}
	return r
}

// DefaultRegistry knows every sink type this package ships.
func DefaultRegistry() *Registry {
	return NewRegistry(map[string]Builder{
		TypeHTTP:   newHTTPSink,
		TypeSQS:    newSQSSink,
		TypeSNS:    newSNSSink,
		TypePubSub: newPubSubSink,
	})
}

// Register adds or replaces the builder for typ. Blank types and nil
// builders are ignored.
func (r *Registry) Register(typ string, builder Builder) {
	typ = strings.ToLower(strings.TrimSpace(typ))
	if typ == "" || builder == nil {
		return
	}
	r.mu.Lock()
	r.builders[typ] = builder
	r.mu.Unlock()
}

// Types lists the registered sink types in sorted order.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.builders))
	for typ := range r.builders {
		out = append(out, typ)
	}
	sort.Strings(out)
	return out
}

// Build constructs the sink described by cfg.
func (r *Registry) Build(ctx context.Context, cfg SinkConfig, log Logger) (Sink, error) {
	r.mu.RLock()
	builder := r.builders[strings.ToLower(cfg.Type)]
	r.mu.RUnlock()

	if builder == nil {
		return nil, fmt.Errorf("sink %q: unknown type %q (known: %s)", cfg.ID, cfg.Type, strings.Join(r.Types(), ", "))
	}
	s, err := builder(ctx, cfg, ensureLogger(log))
	if err != nil {
		return nil, fmt.Errorf("sink %q: %w", cfg.ID, err)
	}
	return withFilter(s, cfg), nil
}

// BuildAll builds every config in order. On failure the sinks already built
// are closed and the error is returned.
func BuildAll(ctx context.Context, reg *Registry, cfgs []SinkConfig, log Logger) ([]Sink, error) {
	if reg == nil || len(cfgs) == 0 {
		return nil, nil
	}

	out := make([]Sink, 0, len(cfgs))
	for _, cfg := range cfgs {
		s, err := reg.Build(ctx, cfg, log)
		if err != nil {
			_ = NewFanout(out).Close()
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}
