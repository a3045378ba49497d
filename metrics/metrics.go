// Package metrics collects the operational counters and gauges callers
// (e.g. cmd/ubloxctl) use to monitor a running driver. Plain atomic fields,
// no external metrics client — grounded on ehrlich-b-go-ublk's Metrics
// struct, which tracks a block-device driver's I/O counters the same way.
package metrics

import "sync/atomic"

// Metrics tracks Ingress and Runner activity.
type Metrics struct {
	BytesRead      atomic.Uint64
	FramesDigested atomic.Uint64
	ResponsesFilled atomic.Uint64
	ResponsesDropped atomic.Uint64
	URCsPublished  atomic.Uint64
	URCsDropped    atomic.Uint64
	BufferOccupancy atomic.Uint32
	HardResets     atomic.Uint64
	StateTransitions atomic.Uint64
}

// New creates a zeroed Metrics.
func New() *Metrics {
	return &Metrics{}
}
