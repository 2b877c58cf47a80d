package metrics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/ohsms/internal/domain/entity"
)

func TestMetrics_ObserveAction(t *testing.T) {
	m := New()
	m.ObserveAction("RECEIVE", "applied")
	m.ObserveAction("RECEIVE", "applied")
	m.ObserveAction("ASSIGN", "rejected")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.actionsTotal.WithLabelValues("RECEIVE", "applied")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.actionsTotal.WithLabelValues("ASSIGN", "rejected")))
}

func TestMetrics_RequestLifecycle(t *testing.T) {
	m := New()
	done := m.RequestStarted()
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requestsInFlight))

	done(http.MethodGet, "/api/reports/:id", http.StatusOK)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.requestsInFlight))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.httpRequests.WithLabelValues("GET", "/api/reports/:id", "200")))
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.ObserveEvent("report.submitted")

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil).WithContext(context.Background())
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `ohsms_events_total{type="report.submitted"} 1`)
}

func TestMetrics_SetBacklog(t *testing.T) {
	m := New()
	m.SetBacklog(&entity.ReportSummary{
		Open:      3,
		Closed:    1,
		Escalated: 2,
		ByStage:   map[string]int{"Submitted": 3, "Closed": 1},
	})

	assert.Equal(t, 3.0, testutil.ToFloat64(m.reports.WithLabelValues("open")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.reports.WithLabelValues("escalated")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.reportsByStage.WithLabelValues("Closed")))

	m.SetBacklog(&entity.ReportSummary{ByStage: map[string]int{"Submitted": 0}})
	assert.Equal(t, 0.0, testutil.ToFloat64(m.reports.WithLabelValues("open")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.reportsByStage.WithLabelValues("Submitted")))
}
