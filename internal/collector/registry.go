package collector

import (
	"context"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// Registry owns the set of probes and the prometheus registry their
// descriptors live in. Probes are registered at startup; every scrape asks
// the registry to refresh them concurrently.
type Registry struct {
	logger *zap.Logger
	reg    *prometheus.Registry
	probes []Probe
}

// NewRegistry creates an empty registry with the given logger. The
// prometheus registry is private to this instance — nothing is shared
// process-wide.
func NewRegistry(logger *zap.Logger) *Registry {
	return &Registry{
		logger: logger,
		reg:    prometheus.NewRegistry(),
	}
}

// Register wires a probe in. Disabled probes are swapped for a NoOp so the
// refresh fan-out has no enablement branches; probes whose backing source is
// missing on this host are logged and skipped entirely.
func (r *Registry) Register(ctx context.Context, p Probe) error {
	if !p.Enabled() {
		r.probes = append(r.probes, NewNoOp(p.Name()))
		r.logger.Info("Probe disabled", zap.String("probe", p.Name()))
		return nil
	}

	if !p.Supported(ctx) {
		r.logger.Warn("Probe not supported on this host, skipping", zap.String("probe", p.Name()))
		return nil
	}

	if err := r.reg.Register(p); err != nil {
		return fmt.Errorf("registering %s metrics: %w", p.Name(), err)
	}
	r.probes = append(r.probes, p)
	r.logger.Info("Registered probe", zap.String("probe", p.Name()))
	return nil
}

// RefreshAll runs every probe's Refresh concurrently and waits for all of
// them. Failures are logged with the probe's name and contained — the other
// probes' refreshes proceed, and the failed probe keeps serving its previous
// snapshot.
func (r *Registry) RefreshAll(ctx context.Context) {
	var wg sync.WaitGroup

	for _, p := range r.probes {
		wg.Add(1)
		go func(p Probe) {
			defer wg.Done()
			if err := p.Refresh(ctx); err != nil {
				r.logger.Error("Probe refresh failed",
					zap.String("probe", p.Name()),
					zap.Error(err))
			}
		}(p)
	}

	wg.Wait()
}

// Gatherer exposes the prometheus registry for rendering.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.reg
}

// Probes returns a copy of the registered probes.
func (r *Registry) Probes() []Probe {
	probes := make([]Probe, len(r.probes))
	copy(probes, r.probes)
	return probes
}
