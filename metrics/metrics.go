// Package metrics exposes Prometheus instrumentation for the gateway.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels for backend attempts.
const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
)

// Noop discards every observation.
type Noop struct{}

func (Noop) ObserveAttempt(string, string, string, float64) {}
func (Noop) IncCacheHit()                                   {}
func (Noop) IncOrder(string)                                {}

// Prom records gateway and anchoring activity in Prometheus collectors.
type Prom struct {
	attempts  *prometheus.CounterVec
	latency   *prometheus.HistogramVec
	cacheHits prometheus.Counter
	orders    *prometheus.CounterVec
	once      sync.Once
}

// NewProm builds the collectors under namespace and registers them with reg.
// A nil reg registers with the default Prometheus registerer.
func NewProm(namespace string, reg prometheus.Registerer) *Prom {
	p := &Prom{
		attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "backend_attempts_total",
			Help:      "Backend attempts by operation, backend and outcome",
		}, []string{"op", "backend", "outcome"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "backend_attempt_seconds",
			Help:      "Backend attempt latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op", "backend"}),
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_hits_total",
			Help:      "Retrievals served from the in-memory cache",
		}),
		orders: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "anchor_orders_total",
			Help:      "Storage order revisions by status",
		}, []string{"status"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	p.register(reg)
	return p
}

func (p *Prom) register(reg prometheus.Registerer) {
	p.once.Do(func() {
		reg.MustRegister(p.attempts, p.latency, p.cacheHits, p.orders)
	})
}

// ObserveAttempt records one backend attempt.
func (p *Prom) ObserveAttempt(op, backend, outcome string, seconds float64) {
	p.attempts.WithLabelValues(op, backend, outcome).Inc()
	p.latency.WithLabelValues(op, backend).Observe(seconds)
}

func (p *Prom) IncCacheHit() {
	p.cacheHits.Inc()
}

func (p *Prom) IncOrder(status string) {
	p.orders.WithLabelValues(status).Inc()
}

// HandlerFor returns an HTTP handler for /metrics backed by g.
func HandlerFor(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
