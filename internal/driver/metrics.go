package driver

import "sync/atomic"

// Metrics accumulates counters across every tool execution the driver
// performs.
type Metrics struct {
	executions int64
	retries    int64
	failures   int64
	timeouts   int64
}

// MetricsSnapshot is a point-in-time copy of Metrics' counters.
type MetricsSnapshot struct {
	Executions int64
	Retries    int64
	Failures   int64
	Timeouts   int64
}

func (m *Metrics) recordExecution() { atomic.AddInt64(&m.executions, 1) }
func (m *Metrics) recordRetry()     { atomic.AddInt64(&m.retries, 1) }
func (m *Metrics) recordFailure()   { atomic.AddInt64(&m.failures, 1) }
func (m *Metrics) recordTimeout()   { atomic.AddInt64(&m.timeouts, 1) }

// Snapshot returns the current counter values.
func (m *Metrics) Snapshot() MetricsSnapshot {
	return MetricsSnapshot{
		Executions: atomic.LoadInt64(&m.executions),
		Retries:    atomic.LoadInt64(&m.retries),
		Failures:   atomic.LoadInt64(&m.failures),
		Timeouts:   atomic.LoadInt64(&m.timeouts),
	}
}
