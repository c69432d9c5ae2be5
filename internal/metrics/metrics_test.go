package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Counters(t *testing.T) {
	m := New()

	m.LeadCreated("selling")
	m.LeadCreated("selling")
	m.LeadCreated("discovery")
	m.SyncTick("synced")
	m.RateLimited()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.leadsCreated.WithLabelValues("selling")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.leadsCreated.WithLabelValues("discovery")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.syncAttempts.WithLabelValues("synced")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.rateLimited))
}

func TestMetrics_SetLeadCountsResets(t *testing.T) {
	m := New()

	m.SetLeadCounts(map[string]int{"pending": 3, "failed": 1})
	m.SetLeadCounts(map[string]int{"pending": 2})

	assert.Equal(t, 2.0, testutil.ToFloat64(m.leadsByStatus.WithLabelValues("pending")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.leadsByStatus))
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.ObserveHTTP("POST", "/leads", 201, 15*time.Millisecond)
	m.ObserveForward(200 * time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, string(body), `heatos_http_requests_total{method="POST",route="/leads",status="201"} 1`)
	assert.Contains(t, string(body), "heatos_crm_sync_duration_seconds_count 1")
	assert.Contains(t, string(body), "go_goroutines")
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.LeadCreated("selling")
		m.SyncTick("idle")
		m.ObserveForward(time.Second)
		m.SetLeadCounts(map[string]int{"pending": 1})
		m.ObserveHTTP("GET", "/health", 200, time.Millisecond)
		m.InFlight(1)
		m.RateLimited()
	})
	assert.Nil(t, m.Registry())
	assert.NotNil(t, m.Handler())
}
