package requestclient

import (
	"context"

	"github.com/google/uuid"
	"github.com/taller-web/hello-client/internal/domain"
	"github.com/taller-web/hello-client/internal/logger"
	"github.com/taller-web/hello-client/pkg/display"
)

const (
	DefaultGetPath  = "/hello"
	DefaultPostPath = "/hellopost"

	// RequestIDHeader carries the exchange id to the server.
	RequestIDHeader = "X-Request-ID"
)

// Observer is notified after every submission has been handled.
type Observer interface {
	Observe(ctx context.Context, ex domain.Exchange)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ctx context.Context, ex domain.Exchange)

func (f ObserverFunc) Observe(ctx context.Context, ex domain.Exchange) { f(ctx, ex) }

// Option configures a RequestClient.
type Option func(*RequestClient)

// WithPaths overrides the GET and POST endpoint paths.
func WithPaths(getPath, postPath string) Option {
	return func(c *RequestClient) {
		if getPath != "" {
			c.getPath = getPath
		}
		if postPath != "" {
			c.postPath = postPath
		}
	}
}

// WithPostFallback sets the secondary input read by SubmitPost when no value is given.
func WithPostFallback(in display.Input) Option {
	return func(c *RequestClient) { c.postFallback = in }
}

// WithSilentGetFailures leaves the GET display untouched when the request
// fails before a response arrives.
func WithSilentGetFailures() Option {
	return func(c *RequestClient) { c.renderGetErrors = false }
}

// WithObserver registers an observer for completed exchanges.
func WithObserver(o Observer) Option {
	return func(c *RequestClient) { c.observer = o }
}

// WithLogger sets the logger.
func WithLogger(log logger.Logger) Option {
	return func(c *RequestClient) { c.log = logger.Ensure(log) }
}

// WithIDGenerator replaces the uuid request id generator.
func WithIDGenerator(fn func() string) Option {
	return func(c *RequestClient) {
		if fn != nil {
			c.newID = fn
		}
	}
}

func defaultID() string { return uuid.NewString() }
