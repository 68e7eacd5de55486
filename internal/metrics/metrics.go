package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Refresh outcomes.
const (
	OutcomeSuccess   = "success"
	OutcomeRejected  = "rejected"
	OutcomeNetwork   = "network"
	OutcomeCoalesced = "coalesced" // Caller joined an exchange started by another request
	OutcomeReused    = "reused"    // Store already held a newer pair, no exchange needed
)

// Metrics is the session layer's instrumentation. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	RefreshTotal    *prometheus.CounterVec
	RefreshDuration prometheus.Histogram
	RetriesTotal    prometheus.Counter
	TeardownsTotal  prometheus.Counter
}

// New creates the collectors and registers them with reg when it is not nil.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RefreshTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bookstore",
			Subsystem: "session",
			Name:      "refresh_total",
			Help:      "Token refresh attempts by outcome.",
		}, []string{"outcome"}),
		RefreshDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "bookstore",
			Subsystem: "session",
			Name:      "refresh_duration_seconds",
			Help:      "Duration of refresh exchanges with the auth gateway.",
			Buckets:   prometheus.DefBuckets,
		}),
		RetriesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "bookstore",
			Subsystem: "session",
			Name:      "request_retries_total",
			Help:      "Requests resent after a successful refresh.",
		}),
		TeardownsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "bookstore",
			Subsystem: "session",
			Name:      "teardowns_total",
			Help:      "Sessions ended because the refresh token was rejected.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.RefreshTotal, m.RefreshDuration, m.RetriesTotal, m.TeardownsTotal)
	}
	return m
}

func (m *Metrics) ObserveRefresh(outcome string) {
	if m == nil {
		return
	}
	m.RefreshTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveExchange(started time.Time) {
	if m == nil {
		return
	}
	m.RefreshDuration.Observe(time.Since(started).Seconds())
}

func (m *Metrics) ObserveRetry() {
	if m == nil {
		return
	}
	m.RetriesTotal.Inc()
}

func (m *Metrics) ObserveTeardown() {
	if m == nil {
		return
	}
	m.TeardownsTotal.Inc()
}
