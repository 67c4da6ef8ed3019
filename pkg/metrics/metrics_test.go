package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Counters(t *testing.T) {
	m := New()

	m.ObserveBackendCall(CallGenerate, 150*time.Millisecond, nil)
	m.ObserveBackendCall(CallGenerate, time.Second, errors.New("rate limited"))
	m.ObserveBackendCall(CallRepair, 200*time.Millisecond, nil)
	m.ObserveAttempt("easy", "accepted")
	m.ObserveAttempt("easy", "transient")
	m.ObserveSlot("easy", true)
	m.ObserveSlot("hard", false)
	m.ObserveCacheLookup(true)
	m.ObserveCacheLookup(false)
	m.ObserveCacheLookup(false)
	m.ObserveRepair(true)
	m.ObserveValidation(false)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.backendCalls.WithLabelValues(CallGenerate, "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.backendCalls.WithLabelValues(CallGenerate, "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.backendCalls.WithLabelValues(CallRepair, "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.attempts.WithLabelValues("easy", "transient")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.slots.WithLabelValues("hard", "failed")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.cacheLookups.WithLabelValues("miss")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.repairs.WithLabelValues("fixed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.validations.WithLabelValues("invalid")))
	assert.Equal(t, 2, testutil.CollectAndCount(m.backendDuration))
}

func TestMetrics_ActiveWorkers(t *testing.T) {
	m := New()

	m.WorkerStarted()
	m.WorkerStarted()
	m.WorkerFinished()

	assert.Equal(t, 1.0, testutil.ToFloat64(m.activeWorkers))
}

func TestMetrics_NilIsSafe(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.ObserveBackendCall(CallAnswer, time.Second, nil)
		m.ObserveAttempt("easy", "accepted")
		m.ObserveSlot("easy", true)
		m.ObserveCacheLookup(true)
		m.ObserveRepair(false)
		m.ObserveValidation(true)
		m.ObserveRun(time.Minute)
		m.WorkerStarted()
		m.WorkerFinished()
	})
	assert.Nil(t, m.Registry())
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.ObserveSlot("medium", true)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `datagen_slots_total{difficulty="medium",status="accepted"} 1`), body)
	assert.Contains(t, body, "go_goroutines")
}
