package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Timer measures one operation.
type Timer struct {
	start time.Time
}

func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}

// ObserveDuration records the elapsed time on the given observer.
func (t *Timer) ObserveDuration(observer prometheus.Observer) {
	observer.Observe(t.Duration().Seconds())
}

// ObserveOperation records the duration and outcome of an engine operation.
func (t *Timer) ObserveOperation(operation string, err error) {
	t.ObserveDuration(EngineOperationDuration.WithLabelValues(operation))
	EngineOperationsTotal.WithLabelValues(operation, result(err)).Inc()
}
