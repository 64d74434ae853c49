package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/taller-web/hello-client/internal/config"
	"github.com/taller-web/hello-client/internal/domain"
	"github.com/taller-web/hello-client/internal/logger"
	"github.com/taller-web/hello-client/internal/metrics"
	"github.com/taller-web/hello-client/internal/requestclient"
	"github.com/taller-web/hello-client/internal/storage"
	"github.com/taller-web/hello-client/pkg/display"
	"github.com/taller-web/hello-client/pkg/httpclient"
	"github.com/taller-web/hello-client/pkg/sinks"
)

// Session is the client runtime. It owns the display, the request client and
// everything that observes completed exchanges: history, sinks and metrics.
type Session struct {
	cfg     *config.Config
	client  *requestclient.RequestClient
	page    *display.Page
	inputs  sessionInputs
	fanout  *sinks.Fanout
	store   storage.Store
	metrics *metrics.Collector
	server  *http.Server
	log     logger.Logger
}

type sessionInputs struct {
	name     display.Input
	postName display.Input
}

// Option customizes a Session.
type Option func(*sessionOptions)

type sessionOptions struct {
	httpClient httpclient.Client
}

// WithHTTPClient replaces the resty transport.
func WithHTTPClient(c httpclient.Client) Option {
	return func(o *sessionOptions) { o.httpClient = c }
}

// NewSession builds a session from config. Rendered text is printed to out.
func NewSession(ctx context.Context, cfg *config.Config, log logger.Logger, out io.Writer, opts ...Option) (*Session, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if log == nil {
		log = &logger.NopLogger{}
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if out == nil {
		out = io.Discard
	}

	var so sessionOptions
	for _, opt := range opts {
		opt(&so)
	}

	s := &Session{cfg: cfg, log: log}

	getTarget, postTarget, err := s.initDisplay(out)
	if err != nil {
		return nil, err
	}

	store, err := storage.NewStore(cfg.HistoryType, cfg.HistoryPath, storage.Options{
		EntryTTL:        cfg.HistoryTTL,
		CleanupInterval: cfg.HistoryCleanupInterval,
	})
	if err != nil {
		return nil, fmt.Errorf("init history: %w", err)
	}
	s.store = store
	log.InfoObj("history initialized", "history_config", map[string]any{
		"type":                     cfg.HistoryType,
		"path":                     cfg.HistoryPath,
		"ttl_seconds":              int(cfg.HistoryTTL.Seconds()),
		"cleanup_interval_seconds": int(cfg.HistoryCleanupInterval.Seconds()),
	})

	fanout, err := buildSinks(ctx, cfg, log)
	if err != nil {
		s.closeStore()
		return nil, err
	}
	s.fanout = fanout

	collector, err := metrics.NewCollector(nil)
	if err != nil {
		s.closeStore()
		_ = fanout.Close()
		return nil, fmt.Errorf("init metrics: %w", err)
	}
	s.metrics = collector

	hc := so.httpClient
	if hc == nil {
		hc = httpclient.NewRestyClient(cfg.RequestTimeout)
	}

	clientOpts := []requestclient.Option{
		requestclient.WithPaths(cfg.GetPath, cfg.PostPath),
		requestclient.WithPostFallback(s.inputs.postName),
		requestclient.WithObserver(requestclient.ObserverFunc(s.observe)),
		requestclient.WithLogger(log),
	}
	if !cfg.RenderGetErrors {
		clientOpts = append(clientOpts, requestclient.WithSilentGetFailures())
	}

	client, err := requestclient.New(hc, cfg.BaseURL, getTarget, postTarget, clientOpts...)
	if err != nil {
		s.closeStore()
		_ = fanout.Close()
		return nil, fmt.Errorf("init request client: %w", err)
	}
	s.client = client

	log.InfoObj("session ready", "session_meta", map[string]any{
		"base_url":          cfg.BaseURL,
		"get_path":          cfg.GetPath,
		"post_path":         cfg.PostPath,
		"page":              s.page != nil,
		"sinks_count":       fanout.Size(),
		"render_get_errors": cfg.RenderGetErrors,
	})
	return s, nil
}

// initDisplay wires the console and, when configured, an HTML page.
func (s *Session) initDisplay(out io.Writer) (display.Target, display.Target, error) {
	cfg := s.cfg
	getConsole := display.NewConsole(cfg.GetOutputID, out)
	postConsole := getConsole.ShareWriter(cfg.PostOutputID)

	switch {
	case cfg.PageFile != "":
		page, err := display.LoadPage(cfg.PageFile)
		if err != nil {
			return nil, nil, fmt.Errorf("load page: %w", err)
		}
		s.page = page
	case cfg.PageOut != "":
		s.page = display.DefaultPage()
	}

	if s.page == nil {
		s.inputs = sessionInputs{
			name:     display.NewField(cfg.NameInputID, cfg.Name),
			postName: display.NewField(cfg.PostNameInputID, cfg.PostName),
		}
		return getConsole, postConsole, nil
	}

	for _, id := range []string{cfg.NameInputID, cfg.PostNameInputID, cfg.GetOutputID, cfg.PostOutputID} {
		if !s.page.Has(id) {
			s.log.WarnObj("page element missing", "element_id", id)
		}
	}
	if cfg.Name != "" {
		s.page.SetInputValue(cfg.NameInputID, cfg.Name)
	}
	if cfg.PostName != "" {
		s.page.SetInputValue(cfg.PostNameInputID, cfg.PostName)
	}
	s.inputs = sessionInputs{
		name:     s.page.Input(cfg.NameInputID),
		postName: s.page.Input(cfg.PostNameInputID),
	}
	return display.Multi(getConsole, s.page.Output(cfg.GetOutputID)),
		display.Multi(postConsole, s.page.Output(cfg.PostOutputID)),
		nil
}

func buildSinks(ctx context.Context, cfg *config.Config, log logger.Logger) (*sinks.Fanout, error) {
	if strings.TrimSpace(cfg.SinksFile) == "" {
		return sinks.NewFanout(nil), nil
	}

	reg, err := sinks.LoadRegistry(cfg.SinksFile)
	if err != nil {
		return nil, fmt.Errorf("load sinks registry: %w", err)
	}
	enabled := reg.Enabled()

	built, err := sinks.BuildAll(ctx, sinks.DefaultRegistry(), enabled, log)
	if err != nil {
		return nil, fmt.Errorf("build sinks: %w", err)
	}

	summaries := make([]map[string]string, 0, len(enabled))
	for _, sc := range enabled {
		summaries = append(summaries, map[string]string{"id": sc.ID, "type": sc.Type})
	}
	log.InfoObj("sinks registry loaded", "sinks_meta", map[string]any{
		"count": len(summaries),
		"sinks": summaries,
	})
	return sinks.NewFanout(built), nil
}

// Get submits the GET form. A nil name reads the name input.
func (s *Session) Get(ctx context.Context, name *string) *requestclient.Call {
	value := ""
	if name != nil {
		value = *name
	} else if s.inputs.name != nil {
		value = s.inputs.name.Value()
	}
	return s.client.SubmitGet(ctx, value)
}

// Post submits the POST form. A nil or empty name reads the post name input.
func (s *Session) Post(ctx context.Context, name *string) *requestclient.Call {
	return s.client.SubmitPost(ctx, name)
}

// History returns the most recent exchanges, newest first.
func (s *Session) History(limit int) ([]domain.Exchange, error) {
	if s.store == nil {
		return nil, nil
	}
	return s.store.Recent(limit)
}

// Page returns the HTML page, or nil when the session runs console-only.
func (s *Session) Page() *display.Page { return s.page }

// Metrics returns the session's collector.
func (s *Session) Metrics() *metrics.Collector { return s.metrics }

// observe fans a finished exchange out to history, metrics and sinks.
// Failures here are logged only; they never reach the display.
func (s *Session) observe(ctx context.Context, ex domain.Exchange) {
	s.metrics.Observe(ctx, ex)

	if err := s.store.Record(ex); err != nil {
		s.log.ErrorObj("history record failed", "error", err)
	}

	if s.fanout.Size() == 0 {
		return
	}
	delivered, err := s.fanout.Publish(ctx, sinks.NewEvent(s.cfg.AppName, ex))
	if err != nil {
		s.log.ErrorObj("sink publish failed", "sink_error", map[string]any{
			"exchange_id": ex.ID,
			"delivered":   delivered,
			"error":       err.Error(),
		})
	}
}

// ServeMetrics starts the /metrics listener when metrics_addr is set.
func (s *Session) ServeMetrics() {
	if s.cfg.MetricsAddr == "" || s.server != nil {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", s.metrics.Handler())
	s.server = &http.Server{
		Addr:              s.cfg.MetricsAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.ErrorObj("metrics listener failed", "error", err)
		}
	}()
	s.log.InfoObj("metrics listener started", "metrics_addr", s.cfg.MetricsAddr)
}

// Close waits for in-flight submissions, then writes the page and releases
// sinks, history and the metrics listener.
func (s *Session) Close() error {
	if s == nil {
		return nil
	}
	if s.client != nil {
		s.client.Wait()
	}

	var errs []error
	if s.page != nil && s.cfg.PageOut != "" {
		if err := s.page.WriteFile(s.cfg.PageOut); err != nil {
			errs = append(errs, err)
		} else {
			s.log.InfoObj("page written", "page_out", s.cfg.PageOut)
		}
	}
	if s.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := s.server.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown metrics listener: %w", err))
		}
		cancel()
	}
	if err := s.fanout.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := s.store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close history: %w", err))
	}
	return errors.Join(errs...)
}

func (s *Session) closeStore() {
	if s == nil || s.store == nil {
		return
	}
	if err := s.store.Close(); err != nil {
		s.log.ErrorObj("history close failed", "error", err)
	}
}
