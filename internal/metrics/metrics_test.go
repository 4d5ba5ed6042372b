package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gwsandbox/gwsandbox-ctl/internal/errors"
)

func TestObserveOperation(t *testing.T) {
	m := New()

	m.ObserveOperation("start", nil, 2*time.Second)
	m.ObserveOperation("start", errors.Busy("abc"), time.Millisecond)
	m.ObserveOperation("start", errors.Busy("abc"), time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.operations.WithLabelValues("start", OutcomeOK)))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.operations.WithLabelValues("start", string(errors.KindBusy))))
}

func TestSetEnvironments(t *testing.T) {
	m := New()

	statuses := []string{"created", "running", "stopped"}
	m.SetEnvironments(statuses, map[string]int{"running": 2, "stopped": 1})
	assert.Equal(t, 2.0, testutil.ToFloat64(m.environments.WithLabelValues("running")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.environments.WithLabelValues("created")))

	m.SetEnvironments(statuses, map[string]int{"stopped": 3})
	assert.Equal(t, 0.0, testutil.ToFloat64(m.environments.WithLabelValues("running")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.environments.WithLabelValues("stopped")))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveOperation("stop", nil, time.Second)
	m.SetEnvironments([]string{"running"}, nil)
	m.LogLineDropped("abc")
	m.ObserveRequest("GET", "/environments", 200, time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New()
	m.ObserveRequest(http.MethodGet, "/environments", http.StatusOK, 5*time.Millisecond)
	m.LogLineDropped("abc")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.True(t, strings.Contains(body, "gwsandbox_api_http_requests_total"), "missing request counter")
	assert.True(t, strings.Contains(body, "gwsandbox_logs_dropped_lines_total"), "missing drop counter")
}

func TestOutcome(t *testing.T) {
	assert.Equal(t, OutcomeOK, Outcome(nil))
	assert.Equal(t, string(errors.KindNotFound), Outcome(errors.NotFound("x")))
}
