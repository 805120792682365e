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

func TestCounters(t *testing.T) {
	m := New()
	m.IncOutcome("sent")
	m.IncOutcome("sent")
	m.IncOutcome("skipped")
	m.ObserveEvent("command", time.Now())
	m.IncQueueReplaced()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.AutoReplyOutcomes.WithLabelValues("sent")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AutoReplyOutcomes.WithLabelValues("skipped")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.EventsTotal.WithLabelValues("command")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.QueueReplacedTotal))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.IncOutcome("sent")
		m.IncError("hh")
		m.ObserveEvent("text", time.Now())
		m.ObserveExternal("hh", "search", time.Now())
		m.IncQueueReplaced()
	})
}

func TestHandlerExposesRegistry(t *testing.T) {
	m := New()
	m.IncError("hh")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `hhbot_errors_total{component="hh"} 1`)
}
