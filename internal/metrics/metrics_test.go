package metrics

import (
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

	m.DoseTaken()
	m.DoseTaken()
	m.DosesMissed(3)
	m.Purchase("success")
	m.Purchase("insufficient_funds")
	m.Purchase("insufficient_funds")
	m.SessionOpened()
	m.SessionOpened()
	m.SessionClosed()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.dosesTaken))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.dosesMissed))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.purchases.WithLabelValues("insufficient_funds")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.activeSessions))
}

func TestMetrics_HandlerExposesRequests(t *testing.T) {
	m := New()
	m.ObserveRequest(http.MethodGet, "/api/v1/rewards", "200", 12*time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `arogyasahay_http_requests_total{method="GET",path="/api/v1/rewards",status="200"} 1`)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}
