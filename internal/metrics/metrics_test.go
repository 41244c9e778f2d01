package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Counters(t *testing.T) {
	m := New()

	m.ObserveFlow("login", "ok")
	m.ObserveFlow("login", "ok")
	m.ObserveFlow("login", "unauthorized")
	m.ObserveMail("password_reset", nil)
	m.ObserveMail("password_reset", errors.New("smtp down"))
	m.ObserveCleanup("sessions", 3)
	m.ObserveCleanup("codes", 0)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.flows.WithLabelValues("login", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.flows.WithLabelValues("login", "unauthorized")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.mail.WithLabelValues("password_reset", "error")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.cleanup.WithLabelValues("sessions")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.cleanup))
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveFlow("login", "ok")
		m.ObserveMail("verify_email", nil)
		m.ObserveCleanup("codes", 1)
		m.ObserveRequest("GET", "/health", 200, time.Millisecond)
	})
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.ObserveRequest(http.MethodGet, "/health", http.StatusOK, 5*time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `authd_http_request_duration_seconds_count{method="GET",route="/health",status="200"} 1`)
}
