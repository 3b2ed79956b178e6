// Package metrics provides lightweight, lock-free gateway counters using
// atomic operations so they impose minimal overhead on hot paths.
package metrics

import (
	"sync/atomic"
	"time"
)

// Metrics tracks aggregate statistics for the gateway.
//
// All counters are accessed exclusively through atomic operations, so the
// struct may be shared by every handler and background sweep without
// additional synchronisation.
type Metrics struct {
	// Assignments counts server assignments delivered over the control
	// plane (new and sticky).
	Assignments uint64

	// ProxiedRequests counts HTTP requests forwarded to an origin.
	ProxiedRequests uint64

	// ProxyErrors counts origin fetches that failed (502 responses).
	ProxyErrors uint64

	// DroppedFrames counts control-plane sends abandoned after the
	// backpressure retry budget was exhausted.
	DroppedFrames uint64

	// startTime records when the metrics instance was created so that
	// per-second rates can be computed.
	startTime time.Time
}

// NewMetrics creates a Metrics instance with the start time set to now.
func NewMetrics() *Metrics {
	return &Metrics{startTime: time.Now()}
}

// IncrementAssignments atomically increments the assignment counter.
func (m *Metrics) IncrementAssignments() {
	atomic.AddUint64(&m.Assignments, 1)
}

// IncrementProxied atomically increments the proxied-request counter.
func (m *Metrics) IncrementProxied() {
	atomic.AddUint64(&m.ProxiedRequests, 1)
}

// IncrementProxyErrors atomically increments the origin-failure counter.
func (m *Metrics) IncrementProxyErrors() {
	atomic.AddUint64(&m.ProxyErrors, 1)
}

// IncrementDroppedFrames atomically increments the dropped-frame counter.
func (m *Metrics) IncrementDroppedFrames() {
	atomic.AddUint64(&m.DroppedFrames, 1)
}

// ProxiedPerSecond returns the average proxied-request rate since the
// instance was created. Returns 0 in the same wall-clock instant as
// creation to avoid division by zero.
func (m *Metrics) ProxiedPerSecond() float64 {
	elapsed := time.Since(m.startTime).Seconds()
	if elapsed == 0 {
		return 0
	}
	return float64(atomic.LoadUint64(&m.ProxiedRequests)) / elapsed
}

// Snapshot returns a point-in-time copy of the counters. The four loads
// are not taken under a single lock, which is acceptable for monitoring.
func (m *Metrics) Snapshot() (assignments, proxied, proxyErrors, dropped uint64) {
	return atomic.LoadUint64(&m.Assignments),
		atomic.LoadUint64(&m.ProxiedRequests),
		atomic.LoadUint64(&m.ProxyErrors),
		atomic.LoadUint64(&m.DroppedFrames)
}
