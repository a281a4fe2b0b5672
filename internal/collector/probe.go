// Package collector defines the Probe interface and implements a probe per
// telemetry source: kernel counters, SMART reports, container stats, UPS
// readings. Each probe owns a timestamped snapshot of its last successful
// collection; scraping renders whatever snapshots currently exist, so one
// slow or failing source never blocks the others.
package collector

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
)

// Probe is one pluggable telemetry source and its exported metrics. Refresh
// replaces the probe's snapshot; Describe and Collect render the snapshot in
// registry order. Refresh and Collect are safe to call concurrently: the
// snapshot swap is the only shared state and it is locked.
type Probe interface {
	prometheus.Collector

	// Name identifies the probe in logs.
	Name() string

	// Enabled reports whether configuration turned this probe on. A
	// disabled probe is replaced by a NoOp at registration, so nothing
	// downstream ever checks this again.
	Enabled() bool

	// Supported probes the environment for the backing source, e.g.
	// whether the kstat directory exists. It may block on I/O.
	Supported(ctx context.Context) bool

	// Refresh performs one collection cycle against the probe's sources.
	// An error leaves the previous snapshot in place.
	Refresh(ctx context.Context) error
}

// NoOp stands in for a disabled probe. It refreshes successfully and emits
// nothing, so the refresh fan-out needs no enablement branches.
type NoOp struct {
	name string
}

// NewNoOp creates a NoOp carrying the replaced probe's name.
func NewNoOp(name string) *NoOp {
	return &NoOp{name: name}
}

// Name returns the replaced probe's name.
func (n *NoOp) Name() string { return n.name }

// Enabled always reports true; the replacement decision was already made.
func (n *NoOp) Enabled() bool { return true }

// Supported always reports true.
func (n *NoOp) Supported(context.Context) bool { return true }

// Refresh does nothing.
func (n *NoOp) Refresh(context.Context) error { return nil }

// Describe emits no descriptors.
func (n *NoOp) Describe(chan<- *prometheus.Desc) {}

// Collect emits no samples.
func (n *NoOp) Collect(chan<- prometheus.Metric) {}
