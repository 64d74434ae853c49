// Package requestclient turns user submissions into GET and POST requests
// and renders each response into its display target.
package requestclient

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/taller-web/hello-client/internal/domain"
	"github.com/taller-web/hello-client/internal/logger"
	"github.com/taller-web/hello-client/pkg/display"
	"github.com/taller-web/hello-client/pkg/httpclient"
)

// ErrorPrefix is prepended to failure descriptions written to a display.
const ErrorPrefix = "Error: "

// RequestClient issues one request per submission without blocking the
// caller. Overlapping submissions are not ordered: whichever response
// arrives last owns the display.
type RequestClient struct {
	http       httpclient.Client
	baseURL    string
	getPath    string
	postPath   string
	getTarget  display.Target
	postTarget display.Target

	postFallback    display.Input
	renderGetErrors bool
	observer        Observer
	log             logger.Logger
	newID           func() string

	inflight sync.WaitGroup
}

// New builds a client sending requests to baseURL and rendering into the two targets.
func New(client httpclient.Client, baseURL string, getTarget, postTarget display.Target, opts ...Option) (*RequestClient, error) {
	if client == nil {
		return nil, errors.New("http client must not be nil")
	}
	if strings.TrimSpace(baseURL) == "" {
		return nil, errors.New("base url is empty")
	}
	if getTarget == nil || postTarget == nil {
		return nil, errors.New("display targets must not be nil")
	}

	c := &RequestClient{
		http:            client,
		baseURL:         strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		getPath:         DefaultGetPath,
		postPath:        DefaultPostPath,
		getTarget:       getTarget,
		postTarget:      postTarget,
		renderGetErrors: true,
		log:             logger.NopLogger{},
		newID:           defaultID,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// SubmitGet sends name to the GET endpoint. The response body is rendered
// into the GET target whatever its status code.
func (c *RequestClient) SubmitGet(ctx context.Context, name string) *Call {
	return c.dispatch(ctx, submission{
		op:           domain.OperationGet,
		method:       http.MethodGet,
		path:         c.getPath,
		name:         name,
		target:       c.getTarget,
		renderErrors: c.renderGetErrors,
	})
}

// SubmitPost sends name to the POST endpoint with an empty body. A nil or
// empty name falls back to the secondary input's current value. Failures
// are rendered as "Error: <description>".
func (c *RequestClient) SubmitPost(ctx context.Context, name *string) *Call {
	return c.dispatch(ctx, submission{
		op:           domain.OperationPost,
		method:       http.MethodPost,
		path:         c.postPath,
		name:         c.resolvePostName(name),
		target:       c.postTarget,
		renderErrors: true,
	})
}

// Wait blocks until every submitted call has completed.
func (c *RequestClient) Wait() {
	c.inflight.Wait()
}

func (c *RequestClient) resolvePostName(name *string) string {
	if name != nil && *name != "" {
		return *name
	}
	if c.postFallback != nil {
		return c.postFallback.Value()
	}
	if name != nil {
		return *name
	}
	return ""
}

type submission struct {
	op           domain.Operation
	method       string
	path         string
	name         string
	target       display.Target
	renderErrors bool
}

func (c *RequestClient) dispatch(ctx context.Context, s submission) *Call {
	if ctx == nil {
		ctx = context.Background()
	}

	call := newCall(c.newID())
	url := buildURL(c.baseURL, s.path, s.name)

	c.inflight.Add(1)
	go func() {
		defer c.inflight.Done()
		c.run(ctx, call, url, s)
	}()
	return call
}

func (c *RequestClient) run(ctx context.Context, call *Call, url string, s submission) {
	ex := domain.Exchange{
		ID:        call.ID(),
		Operation: s.op,
		Method:    s.method,
		URL:       url,
		Name:      s.name,
		Target:    targetID(s.target),
		StartedAt: time.Now().UTC(),
	}

	headers := map[string]string{RequestIDHeader: call.ID()}
	resp, err := c.send(ctx, s.method, url, headers)
	ex.Duration = time.Since(ex.StartedAt)

	var res Result
	if err != nil {
		ex.Error = err.Error()
		if s.renderErrors {
			res.Text = ErrorPrefix + err.Error()
			res.Rendered = true
			s.target.SetText(res.Text)
		}
		c.log.WarnObj("request failed", "request_error", map[string]any{
			"id":       call.ID(),
			"method":   s.method,
			"url":      url,
			"rendered": res.Rendered,
			"error":    err.Error(),
		})
	} else {
		res.StatusCode = resp.StatusCode()
		res.Text = string(resp.Body())
		res.Rendered = true
		ex.Bytes = len(res.Text)
		s.target.SetText(res.Text)
		c.log.DebugObj("response rendered", "response_meta", map[string]any{
			"id":          call.ID(),
			"method":      s.method,
			"status_code": res.StatusCode,
			"bytes":       len(res.Text),
			"elapsed_ms":  ex.Duration.Milliseconds(),
		})
	}

	ex.StatusCode = res.StatusCode
	ex.Rendered = res.Rendered
	if c.observer != nil {
		c.observer.Observe(context.WithoutCancel(ctx), ex)
	}

	call.finish(res, err)
}

func (c *RequestClient) send(ctx context.Context, method, url string, headers map[string]string) (httpclient.Response, error) {
	if method == http.MethodGet {
		return c.http.Get(ctx, url, headers)
	}
	return c.http.Do(ctx, method, url, headers)
}

func targetID(t display.Target) string {
	if idt, ok := t.(interface{ ID() string }); ok {
		return idt.ID()
	}
	return ""
}
