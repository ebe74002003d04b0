// Package observability aggregates runtime counters for the reporter worker.
package observability

import "sync/atomic"

// Stats holds process-wide counters. All fields are atomic; share one
// instance across components.
type Stats struct {
	ConnectionsOpened  atomic.Uint64
	ConnectionsClosed  atomic.Uint64
	FramesDropped      atomic.Uint64 // malformed or pre-auth inbound frames
	EnvelopesPublished atomic.Uint64
	DeliveriesDropped  atomic.Uint64 // outbound buffer overflows
	LogAppendFailures  atomic.Uint64
	IndexFailures      atomic.Uint64
}

func NewStats() *Stats {
	return &Stats{}
}

// Snapshot is a point-in-time copy suitable for logging or JSON.
type Snapshot struct {
	ConnectionsOpened  uint64 `json:"connections_opened"`
	ConnectionsClosed  uint64 `json:"connections_closed"`
	FramesDropped      uint64 `json:"frames_dropped"`
	EnvelopesPublished uint64 `json:"envelopes_published"`
	DeliveriesDropped  uint64 `json:"deliveries_dropped"`
	LogAppendFailures  uint64 `json:"log_append_failures"`
	IndexFailures      uint64 `json:"index_failures"`
}

func (s *Stats) Snapshot() Snapshot {
	return Snapshot{
		ConnectionsOpened:  s.ConnectionsOpened.Load(),
		ConnectionsClosed:  s.ConnectionsClosed.Load(),
		FramesDropped:      s.FramesDropped.Load(),
		EnvelopesPublished: s.EnvelopesPublished.Load(),
		DeliveriesDropped:  s.DeliveriesDropped.Load(),
		LogAppendFailures:  s.LogAppendFailures.Load(),
		IndexFailures:      s.IndexFailures.Load(),
	}
}
