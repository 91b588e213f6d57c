package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.IncIngested("http")
		m.IncRejected("validation")
		m.IncPersistFailure()
		m.ObserveVerdict("Safe", time.Millisecond)
		m.SetSubscribers("admin", 2)
		m.IncDeliveryFailure("worker")
		m.IncNotification("email", "sent")
	})
	assert.Nil(t, m.Registry())

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMetrics_Counters(t *testing.T) {
	m := New()

	m.IncIngested("http")
	m.IncIngested("http")
	m.IncIngested("mqtt")
	m.ObserveVerdict("Unsafe", 2*time.Millisecond)
	m.SetSubscribers("admin", 3)

	body := scrape(t, m)
	assert.Contains(t, body, `smart_industry_samples_ingested_total{transport="http"} 2`)
	assert.Contains(t, body, `smart_industry_samples_ingested_total{transport="mqtt"} 1`)
	assert.Contains(t, body, `smart_industry_verdicts_total{final="Unsafe"} 1`)
	assert.Contains(t, body, `smart_industry_broadcast_subscribers{role="admin"} 3`)
	assert.Contains(t, body, `smart_industry_evaluation_seconds_count 1`)
}

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	return rec.Body.String()
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.IncNotification("sms", "failed")

	assert.True(t, strings.Contains(scrape(t, m), `smart_industry_notifications_total{channel="sms",status="failed"} 1`))
}
