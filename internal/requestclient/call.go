package requestclient

import (
	"context"
)

// Result is the outcome of a finished Call.
type Result struct {
	Text       string
	StatusCode int
	// Rendered is false when nothing was written to the display target.
	Rendered bool
}

// Call tracks one in-flight submission.
type Call struct {
	id     string
	done   chan struct{}
	result Result
	err    error
}

func newCall(id string) *Call {
	return &Call{id: id, done: make(chan struct{})}
}

// ID returns the request id sent as X-Request-ID.
func (c *Call) ID() string { return c.id }

// Done is closed once the response (or failure) has been handled.
func (c *Call) Done() <-chan struct{} { return c.done }

// Wait blocks until the call completes or ctx ends. The error is the
// transport error of the request, or ctx.Err() if waiting was abandoned.
func (c *Call) Wait(ctx context.Context) (Result, error) {
	select {
	case <-c.done:
		return c.result, c.err
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

func (c *Call) finish(res Result, err error) {
	c.result = res
	c.err = err
	close(c.done)
}
