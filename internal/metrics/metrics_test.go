package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimerDuration(t *testing.T) {
	timer := NewTimer()
	time.Sleep(20 * time.Millisecond)

	assert.GreaterOrEqual(t, timer.Duration(), 20*time.Millisecond)
}

func TestTimerObserveDuration(t *testing.T) {
	histogram := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "test_duration_seconds",
		Help:    "Test duration histogram",
		Buckets: prometheus.DefBuckets,
	})

	NewTimer().ObserveDuration(histogram)

	assert.Equal(t, 1, testutil.CollectAndCount(histogram))
}

func TestTimerObserveOperation(t *testing.T) {
	successBefore := testutil.ToFloat64(EngineOperationsTotal.WithLabelValues(OpCleanup, resultSuccess))
	errorBefore := testutil.ToFloat64(EngineOperationsTotal.WithLabelValues(OpCleanup, resultError))

	NewTimer().ObserveOperation(OpCleanup, nil)
	NewTimer().ObserveOperation(OpCleanup, errors.New("boom"))
	NewTimer().ObserveOperation(OpCleanup, errors.New("boom"))

	assert.Equal(t, successBefore+1, testutil.ToFloat64(EngineOperationsTotal.WithLabelValues(OpCleanup, resultSuccess)))
	assert.Equal(t, errorBefore+2, testutil.ToFloat64(EngineOperationsTotal.WithLabelValues(OpCleanup, resultError)))
}

func TestHandlerExposesMetrics(t *testing.T) {
	LogLinesForwarded.Add(3)

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "podrunner_log_lines_forwarded_total"))
}
