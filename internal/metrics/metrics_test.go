package metrics_test

import (
	"testing"
	"time"

	"github.com/jrsteele09/bookstore-session/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Register(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	m.ObserveRefresh(metrics.OutcomeSuccess)
	m.ObserveRefresh(metrics.OutcomeSuccess)
	m.ObserveRefresh(metrics.OutcomeRejected)
	m.ObserveRetry()
	m.ObserveTeardown()
	m.ObserveExchange(time.Now())

	require.Equal(t, 2.0, testutil.ToFloat64(m.RefreshTotal.WithLabelValues(metrics.OutcomeSuccess)))
	require.Equal(t, 1.0, testutil.ToFloat64(m.RefreshTotal.WithLabelValues(metrics.OutcomeRejected)))
	require.Equal(t, 1.0, testutil.ToFloat64(m.RetriesTotal))
	require.Equal(t, 1.0, testutil.ToFloat64(m.TeardownsTotal))

	count, err := testutil.GatherAndCount(reg, "bookstore_session_refresh_duration_seconds")
	require.NoError(t, err)
	require.Equal(t, 1, count)
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *metrics.Metrics
	m.ObserveRefresh(metrics.OutcomeNetwork)
	m.ObserveRetry()
	m.ObserveTeardown()
	m.ObserveExchange(time.Now())
}
