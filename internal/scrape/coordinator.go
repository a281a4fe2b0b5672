// Package scrape gates probe refreshes behind a TTL and renders the metric
// registry into the text exposition format.
package scrape

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
)

// DefaultTTL is how long a refresh stays fresh when the config does not say
// otherwise.
const DefaultTTL = time.Second

// Refresher fans one collection cycle out to the probes.
type Refresher interface {
	RefreshAll(ctx context.Context)
}

// Coordinator decides, per scrape, whether the probes need refreshing.
// Scrapes inside the TTL window render existing snapshots; so does any
// scrape that arrives while another one is deciding — nothing ever queues
// behind an in-flight refresh.
type Coordinator struct {
	probes   Refresher
	gatherer prometheus.Gatherer
	ttl      time.Duration
	now      func() time.Time

	mu          sync.Mutex
	lastRefresh time.Time
}

// NewCoordinator creates a coordinator over the given probe set and
// registry.
func NewCoordinator(probes Refresher, gatherer prometheus.Gatherer, ttl time.Duration) *Coordinator {
	return &Coordinator{
		probes:   probes,
		gatherer: gatherer,
		ttl:      ttl,
		now:      time.Now,
	}
}

// Render produces one text exposition of the registry, refreshing the
// probes first when the last refresh is older than the TTL. Probe failures
// never fail a render — the failed probe keeps serving its previous
// snapshot. The only error paths are gathering and encoding.
func (c *Coordinator) Render(ctx context.Context) ([]byte, error) {
	c.refreshIfStale(ctx)

	families, err := c.gatherer.Gather()
	if err != nil {
		return nil, fmt.Errorf("gathering metrics: %w", err)
	}

	var buf bytes.Buffer
	enc := expfmt.NewEncoder(&buf, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, mf := range families {
		if err := enc.Encode(mf); err != nil {
			return nil, fmt.Errorf("encoding %s: %w", mf.GetName(), err)
		}
	}
	return buf.Bytes(), nil
}

// refreshIfStale runs one refresh cycle when the snapshots have gone stale.
// The timestamp is advanced before the fan-out and the lock released, so
// concurrent scrapes inside the new window skip the refresh instead of
// stacking duplicates behind it.
func (c *Coordinator) refreshIfStale(ctx context.Context) {
	if !c.mu.TryLock() {
		return
	}
	stale := c.now().Sub(c.lastRefresh) > c.ttl
	if stale {
		c.lastRefresh = c.now()
	}
	c.mu.Unlock()

	if stale {
		c.probes.RefreshAll(ctx)
	}
}
