// internal/metrics/collector.go
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Исходы свопа для метки outcome
const (
	OutcomeConfirmed = "confirmed"
	OutcomeFailed    = "failed"
	OutcomeDuplicate = "duplicate"
)

// Collector owns the engine's prometheus collectors. A nil *Collector records nothing.
type Collector struct {
	gatherer prometheus.Gatherer

	swaps        *prometheus.CounterVec
	swapDuration *prometheus.HistogramVec
	listingFetch *prometheus.CounterVec
	newAssets    prometheus.Counter
	dispatches   *prometheus.CounterVec
	loopRestarts *prometheus.CounterVec
}

// NewCollector registers the collectors in reg. Pass prometheus.NewRegistry() in tests.
func NewCollector(reg *prometheus.Registry) *Collector {
	c := &Collector{
		gatherer: reg,
		swaps: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sniper_swaps_total",
				Help: "Swap executions by invocation source and outcome",
			},
			[]string{"source", "outcome"},
		),
		swapDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sniper_swap_duration_seconds",
				Help:    "Duration of accepted swap executions",
				Buckets: prometheus.ExponentialBuckets(0.25, 2, 10),
			},
			[]string{"source"},
		),
		listingFetch: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sniper_listing_fetch_total",
				Help: "Listing feed fetches by status",
			},
			[]string{"status"},
		),
		newAssets: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sniper_new_assets_total",
			Help: "Assets observed for the first time by the listing poller",
		}),
		dispatches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sniper_dispatches_total",
				Help: "Swap dispatches issued by the background loops",
			},
			[]string{"loop"},
		),
		loopRestarts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sniper_loop_restarts_total",
				Help: "Supervised loop restarts after a failure",
			},
			[]string{"loop"},
		),
	}
	reg.MustRegister(c.swaps, c.swapDuration, c.listingFetch, c.newAssets, c.dispatches, c.loopRestarts)
	return c
}

func (c *Collector) RecordSwap(source, outcome string, duration time.Duration) {
	if c == nil {
		return
	}
	c.swaps.WithLabelValues(source, outcome).Inc()
	if outcome != OutcomeDuplicate {
		c.swapDuration.WithLabelValues(source).Observe(duration.Seconds())
	}
}

func (c *Collector) RecordListingFetch(success bool) {
	if c == nil {
		return
	}
	status := "success"
	if !success {
		status = "failed"
	}
	c.listingFetch.WithLabelValues(status).Inc()
}

func (c *Collector) AddNewAssets(n int) {
	if c == nil || n <= 0 {
		return
	}
	c.newAssets.Add(float64(n))
}

func (c *Collector) RecordDispatch(loop string) {
	if c == nil {
		return
	}
	c.dispatches.WithLabelValues(loop).Inc()
}

func (c *Collector) RecordLoopRestart(loop string) {
	if c == nil {
		return
	}
	c.loopRestarts.WithLabelValues(loop).Inc()
}

// Handler отдаёт метрики в формате prometheus.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.gatherer, promhttp.HandlerOpts{})
}
