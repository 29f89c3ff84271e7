// Package metrics exposes Prometheus metrics for crawls, scoring calls and
// the HTTP service.
//
// Every Metrics value owns its own registry, so tests and several services
// in one process never collide on registration.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nao1215/trustcrawl/internal/crawler"
	"github.com/nao1215/trustcrawl/internal/model"
)

const namespace = "trustcrawl"

// Label values.
const (
	statusOK    = "ok"
	statusError = "error"

	reasonBlocked       = "blocklist"
	reasonZeroTransfers = "zero_transfers"
)

// Metrics holds every collector of the process.
type Metrics struct {
	registry *prometheus.Registry

	// FetchesTotal counts neighbor lookups. Labels: chain, status.
	FetchesTotal *prometheus.CounterVec

	// RetriesTotal counts large-account retries. Labels: chain.
	RetriesTotal *prometheus.CounterVec

	// SkippedNeighborsTotal counts neighbors dropped before an edge was
	// recorded. Labels: chain, reason.
	SkippedNeighborsTotal *prometheus.CounterVec

	// FetchDurationSeconds measures one address lookup including the retry.
	// Labels: chain.
	FetchDurationSeconds *prometheus.HistogramVec

	// CrawlsTotal counts finished requests. Labels: chain, status.
	CrawlsTotal *prometheus.CounterVec

	// CrawlDurationSeconds measures the crawl phase. Labels: chain.
	CrawlDurationSeconds *prometheus.HistogramVec

	// StepDurationSeconds measures one pipeline step. Labels: chain, step, status.
	StepDurationSeconds *prometheus.HistogramVec

	// CrawlAddresses measures the number of addresses per crawl. Labels: chain.
	CrawlAddresses *prometheus.HistogramVec

	// HTTPRequestsTotal counts served requests. Labels: route, method, code.
	HTTPRequestsTotal *prometheus.CounterVec

	// HTTPRequestDurationSeconds measures served requests. Labels: route.
	HTTPRequestDurationSeconds *prometheus.HistogramVec

	// BlocklistSize is the number of blocklisted addresses in effect.
	BlocklistSize prometheus.Gauge
}

// New creates and registers all collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		FetchesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "neighbor",
				Name:      "fetches_total",
				Help:      "Total number of neighbor lookups by chain and status",
			},
			[]string{"chain", "status"},
		),
		RetriesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "neighbor",
				Name:      "large_account_retries_total",
				Help:      "Total number of partial-detail retries for large accounts",
			},
			[]string{"chain"},
		),
		SkippedNeighborsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "neighbor",
				Name:      "skipped_total",
				Help:      "Total number of neighbors dropped by the blocklist or for having no inbound transfers",
			},
			[]string{"chain", "reason"},
		),
		FetchDurationSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "neighbor",
				Name:      "fetch_duration_seconds",
				Help:      "Duration of one address lookup",
				Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"chain"},
		),
		CrawlsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "crawl",
				Name:      "requests_total",
				Help:      "Total number of trust crawl requests by chain and status",
			},
			[]string{"chain", "status"},
		),
		CrawlDurationSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "crawl",
				Name:      "duration_seconds",
				Help:      "Duration of the crawl phase",
				Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
			},
			[]string{"chain"},
		),
		StepDurationSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "pipeline",
				Name:      "step_duration_seconds",
				Help:      "Duration of one pipeline step by chain, step and status",
				Buckets:   []float64{0.001, 0.01, 0.1, 0.5, 1, 5, 30, 120},
			},
			[]string{"chain", "step", "status"},
		),
		CrawlAddresses: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "crawl",
				Name:      "addresses",
				Help:      "Number of distinct addresses in a crawled graph",
				Buckets:   prometheus.ExponentialBuckets(1, 4, 8),
			},
			[]string{"chain"},
		),
		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Total number of HTTP requests by route, method and code",
			},
			[]string{"route", "method", "code"},
		),
		HTTPRequestDurationSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "Duration of HTTP requests",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"route"},
		),
		BlocklistSize: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "blocklist",
				Name:      "addresses",
				Help:      "Number of blocklisted addresses in effect",
			},
		),
	}
}

// Registry returns the registry the collectors are registered on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveOutcome records one crawl task. It implements crawler.Observer.
func (m *Metrics) ObserveOutcome(chain string, o crawler.Outcome) {
	status := statusOK
	if o.Err != nil {
		status = statusError
	}
	m.FetchesTotal.WithLabelValues(chain, status).Inc()
	if o.Retried {
		m.RetriesTotal.WithLabelValues(chain).Inc()
	}
	if o.Blocked > 0 {
		m.SkippedNeighborsTotal.WithLabelValues(chain, reasonBlocked).Add(float64(o.Blocked))
	}
	if o.ZeroTransfers > 0 {
		m.SkippedNeighborsTotal.WithLabelValues(chain, reasonZeroTransfers).Add(float64(o.ZeroTransfers))
	}
	if o.Elapsed > 0 {
		m.FetchDurationSeconds.WithLabelValues(chain).Observe(o.Elapsed.Seconds())
	}
}

// ObserveReport records a finished request.
func (m *Metrics) ObserveReport(r *model.TrustReport) {
	status := statusOK
	if r.Failed() {
		status = statusError
	}
	m.CrawlsTotal.WithLabelValues(r.Chain, status).Inc()
	if r.Stats.Duration > 0 {
		m.CrawlDurationSeconds.WithLabelValues(r.Chain).Observe(r.Stats.Duration.Seconds())
	}
	m.CrawlAddresses.WithLabelValues(r.Chain).Observe(float64(r.Stats.Addresses))
}

// ObserveStep records one pipeline step. It implements pipeline.StepObserver.
func (m *Metrics) ObserveStep(chain, step string, elapsed time.Duration, err error) {
	status := statusOK
	if err != nil {
		status = statusError
	}
	m.StepDurationSeconds.WithLabelValues(chain, step, status).Observe(elapsed.Seconds())
}

// ObserveHTTP records one served request.
func (m *Metrics) ObserveHTTP(route, method string, code int, elapsed time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(route, method, strconv.Itoa(code)).Inc()
	m.HTTPRequestDurationSeconds.WithLabelValues(route).Observe(elapsed.Seconds())
}

// SetBlocklistSize records the size of the blocklist in effect.
func (m *Metrics) SetBlocklistSize(n int) {
	m.BlocklistSize.Set(float64(n))
}
