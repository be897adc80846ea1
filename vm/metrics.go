package vm

import (
	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "counter_vm"

// failure reasons reported on instructions_failed_total
const (
	reasonProgramNotFound = "program_not_found"
	reasonAccountNotFound = "account_not_found"
	reasonInvalid         = "invalid_instruction"
	reasonProgram         = "program_error"
	reasonRuntime         = "runtime_violation"
	reasonConflict        = "commit_conflict"
	reasonStore           = "store_error"
	reasonCanceled        = "canceled"
)

// metrics holds the engine's prometheus collectors
type metrics struct {
	executed  prometheus.Counter
	failed    *prometheus.CounterVec
	conflicts prometheus.Counter
	leaseWait prometheus.Histogram
}

func newMetrics(r prometheus.Registerer) (*metrics, error) {
	m := &metrics{
		executed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "instructions_executed_total",
			Help:      "number of instructions that completed successfully",
		}),
		failed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "instructions_failed_total",
			Help:      "number of instructions that failed, by reason",
		}, []string{"reason"}),
		conflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "commit_conflicts_total",
			Help:      "number of instruction reruns caused by another writer changing an account",
		}),
		leaseWait: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "lease_wait_seconds",
			Help:      "time spent waiting for exclusive account access",
			Buckets:   prometheus.ExponentialBuckets(0.00001, 4, 10),
		}),
	}
	for _, c := range []prometheus.Collector{m.executed, m.failed, m.conflicts, m.leaseWait} {
		if err := r.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *metrics) recordExecuted() {
	m.executed.Inc()
}

// recordFailed counts a failed instruction under one of the reason constants
func (m *metrics) recordFailed(reason string) {
	m.failed.WithLabelValues(reason).Inc()
}

func (m *metrics) recordConflict() {
	m.conflicts.Inc()
}

func (m *metrics) recordLeaseWait(seconds float64) {
	m.leaseWait.Observe(seconds)
}
