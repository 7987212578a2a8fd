// Package metrics holds the Prometheus collectors for cart synchronization
// and the development store.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "cartsync"

const (
	OutcomeSuccess   = "success"
	OutcomeFailure   = "failure"
	OutcomeRejected  = "rejected"
	OutcomeDiscarded = "discarded"
)

type Metrics struct {
	Intents       *prometheus.CounterVec
	RemoteLatency *prometheus.HistogramVec
	HTTPRequests  *prometheus.CounterVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Intents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "intents_total",
			Help:      "Cart intents by operation and outcome.",
		}, []string{"op", "outcome"}),
		RemoteLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "remote_call_duration_seconds",
			Help:      "Duration of remote cart calls.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op"}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "devstore",
			Name:      "http_requests_total",
			Help:      "Development store HTTP requests by route and status.",
		}, []string{"route", "status"}),
	}

	reg.MustRegister(m.Intents, m.RemoteLatency, m.HTTPRequests)
	return m
}

// Intent is safe to call on a nil *Metrics.
func (m *Metrics) Intent(op, outcome string) {
	if m == nil {
		return
	}
	m.Intents.WithLabelValues(op, outcome).Inc()
}

func (m *Metrics) ObserveRemote(op string, started time.Time) {
	if m == nil {
		return
	}
	m.RemoteLatency.WithLabelValues(op).Observe(time.Since(started).Seconds())
}

func (m *Metrics) HTTPRequest(route, status string) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(route, status).Inc()
}
