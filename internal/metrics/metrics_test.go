package metrics_test

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/vertexdb/vertexdb/internal/metrics"
)

// A single metrics.New() call is shared by every test function in this
// file: promauto registers each collector against the global Prometheus
// registry, so a second New() in the same test binary would panic with
// a duplicate registration error.
var m = metrics.New()

func TestMetrics_RequestsTotal_IncrementsPerLabelCombination(t *testing.T) {
	before := testutil.ToFloat64(m.RequestsTotal.WithLabelValues("/vertexdb.GraphService/GetObject", "OK"))

	m.RequestsTotal.WithLabelValues("/vertexdb.GraphService/GetObject", "OK").Inc()

	after := testutil.ToFloat64(m.RequestsTotal.WithLabelValues("/vertexdb.GraphService/GetObject", "OK"))
	assert.Equal(t, before+1, after)
}

func TestMetrics_ActiveTxns_GaugeTracksIncDec(t *testing.T) {
	m.ActiveTxns.Set(0)
	m.ActiveTxns.Inc()
	m.ActiveTxns.Inc()
	m.ActiveTxns.Dec()

	assert.Equal(t, float64(1), testutil.ToFloat64(m.ActiveTxns))
}

func TestMetrics_SchemaCacheCounters(t *testing.T) {
	hitsBefore := testutil.ToFloat64(m.SchemaCacheHits)
	missBefore := testutil.ToFloat64(m.SchemaCacheMiss)

	m.SchemaCacheHits.Inc()
	m.SchemaCacheMiss.Inc()
	m.SchemaCacheMiss.Inc()

	assert.Equal(t, hitsBefore+1, testutil.ToFloat64(m.SchemaCacheHits))
	assert.Equal(t, missBefore+2, testutil.ToFloat64(m.SchemaCacheMiss))
}

func TestMetrics_CycleCheckDuration_ObservesWithoutPanic(t *testing.T) {
	m.CycleCheckDuration.Observe(0.002)
}

func TestMetrics_RateLimitAndResourceExhaustedCounters(t *testing.T) {
	rateBefore := testutil.ToFloat64(m.RateLimitRejections)
	exhaustedBefore := testutil.ToFloat64(m.ResourceExhausted)

	m.RateLimitRejections.Inc()
	m.ResourceExhausted.Inc()

	assert.Equal(t, rateBefore+1, testutil.ToFloat64(m.RateLimitRejections))
	assert.Equal(t, exhaustedBefore+1, testutil.ToFloat64(m.ResourceExhausted))
}
