package metrics

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/taller-web/hello-client/internal/domain"
)

// Outcome label values.
const (
	OutcomeRendered = "rendered"
	OutcomeFailed   = "failed"
)

// Collector counts submissions by operation and outcome and tracks latency.
type Collector struct {
	gatherer prometheus.Gatherer
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	statuses *prometheus.CounterVec
}

// NewCollector registers the client metrics on reg. A nil reg gets a fresh
// registry so repeated construction in tests never collides.
func NewCollector(reg *prometheus.Registry) (*Collector, error) {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	c := &Collector{
		gatherer: reg,
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hello_client_requests_total",
				Help: "Total number of submissions handled, by operation and outcome.",
			},
			[]string{"operation", "outcome"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "hello_client_request_duration_seconds",
				Help:    "Time from dispatch until the response or failure was handled.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		statuses: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hello_client_responses_total",
				Help: "Responses received, by operation and HTTP status class.",
			},
			[]string{"operation", "class"},
		),
	}

	for _, col := range []prometheus.Collector{c.requests, c.duration, c.statuses} {
		if err := reg.Register(col); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Observe records one completed exchange.
func (c *Collector) Observe(_ context.Context, ex domain.Exchange) {
	if c == nil {
		return
	}
	op := string(ex.Operation)

	outcome := OutcomeRendered
	if ex.Failed() {
		outcome = OutcomeFailed
	}
	c.requests.WithLabelValues(op, outcome).Inc()
	c.duration.WithLabelValues(op).Observe(ex.Duration.Seconds())
	if ex.StatusCode > 0 {
		c.statuses.WithLabelValues(op, statusClass(ex.StatusCode)).Inc()
	}
}

// Handler exposes the registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.gatherer, promhttp.HandlerOpts{})
}

func statusClass(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	case code >= 300:
		return "3xx"
	case code >= 200:
		return "2xx"
	default:
		return "1xx"
	}
}
