package sinks

import (
	"context"
	"errors"
	"fmt"
	"io"
)

// Fanout dispatches events to all configured sinks.
type Fanout struct {
	sinks []Sink
}

// NewFanout builds a dispatcher that fans out events across sinks.
func NewFanout(list []Sink) *Fanout {
	cp := make([]Sink, 0, len(list))
	for _, s := range list {
		if s == nil {
			continue
		}
		cp = append(cp, s)
	}
	return &Fanout{sinks: cp}
}

// Publish forwards the event to every sink that accepts it and returns how
// many delivered it.
func (f *Fanout) Publish(ctx context.Context, evt Event) (int, error) {
	if f == nil || len(f.sinks) == 0 {
		return 0, nil
	}

	var errs []error
	successful := 0
	for _, s := range f.sinks {
		if a, ok := s.(acceptor); ok && !a.Accepts(evt) {
			continue
		}
		if err := s.Publish(ctx, evt); err != nil {
			errs = append(errs, fmt.Errorf("%s sink[%s]: %w", s.Type(), s.ID(), err))
		} else {
			successful++
		}
	}
	return successful, errors.Join(errs...)
}

// Size returns the number of active sinks.
func (f *Fanout) Size() int {
	if f == nil {
		return 0
	}
	return len(f.sinks)
}

// Close releases sinks holding connections.
func (f *Fanout) Close() error {
	if f == nil {
		return nil
	}
	var errs []error
	for _, s := range f.sinks {
		if c, ok := s.(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close %s sink[%s]: %w", s.Type(), s.ID(), err))
			}
		}
	}
	return errors.Join(errs...)
}
