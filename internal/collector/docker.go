// Docker probe — per-container CPU, memory and network usage.
package collector

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/ironhearth/anvil/internal/config"
	"github.com/ironhearth/anvil/internal/datasource"
)

// cpuCounters is one cycle's cumulative CPU reading for a container.
type cpuCounters struct {
	total  uint64
	system uint64
}

// containerReading is the per-container snapshot exported by the probe.
// Fields are nil when the daemon did not report them.
type containerReading struct {
	Name        string
	CPUUsage    *float64
	MemoryBytes *uint64
	RxBytes     *uint64
	TxBytes     *uint64
}

// DockerProbe exports container stats. CPU usage is a delta against the
// previous cycle, so it is absent on the first sighting of a container and
// after a restart.
type DockerProbe struct {
	cfg    config.DockerConfig
	client datasource.ContainerClient
	logger *zap.Logger
	store  Store[[]containerReading]

	mu      sync.Mutex
	prevCPU map[string]cpuCounters

	cpuUsage *prometheus.Desc
	memUsage *prometheus.Desc
	netRx    *prometheus.Desc
	netTx    *prometheus.Desc
}

// NewDockerProbe creates the container probe.
func NewDockerProbe(cfg config.DockerConfig, client datasource.ContainerClient, logger *zap.Logger) *DockerProbe {
	labels := []string{"container"}

	return &DockerProbe{
		cfg:     cfg,
		client:  client,
		logger:  logger,
		prevCPU: make(map[string]cpuCounters),

		cpuUsage: prometheus.NewDesc(
			"docker_cpu_usage_percent",
			"CPU usage percentage",
			labels, nil),
		memUsage: prometheus.NewDesc(
			"docker_memory_usage_bytes",
			"Memory usage in bytes",
			labels, nil),
		netRx: prometheus.NewDesc(
			"docker_network_receive_bytes_total",
			"Total bytes received",
			labels, nil),
		netTx: prometheus.NewDesc(
			"docker_network_transmit_bytes_total",
			"Total bytes transmitted",
			labels, nil),
	}
}

// Name implements Probe.
func (p *DockerProbe) Name() string { return "docker" }

// Enabled implements Probe.
func (p *DockerProbe) Enabled() bool { return p.cfg.Enabled }

// Supported always reports true: the daemon may not be running yet, and a
// cycle against a stopped daemon is an ordinary refresh error.
func (p *DockerProbe) Supported(context.Context) bool { return true }

// Refresh implements Probe.
func (p *DockerProbe) Refresh(ctx context.Context) error {
	containers, err := p.client.List(ctx)
	if err != nil {
		return fmt.Errorf("listing containers: %w", err)
	}

	// All daemon I/O happens before the lock; p.mu only guards the
	// previous-counters map.
	type containerStats struct {
		name  string
		usage datasource.ContainerUsage
	}
	fetched := make([]containerStats, 0, len(containers))
	for _, c := range containers {
		usage, err := p.client.Stats(ctx, c.ID)
		if err != nil {
			p.logger.Debug("Skipping container stats because of an error",
				zap.String("container", c.Name), zap.Error(err))
			continue
		}
		fetched = append(fetched, containerStats{name: c.Name, usage: usage})
	}

	readings := make([]containerReading, 0, len(fetched))
	currCPU := make(map[string]cpuCounters, len(fetched))

	p.mu.Lock()
	for _, s := range fetched {
		reading := containerReading{
			Name:        s.name,
			MemoryBytes: s.usage.MemoryBytes,
			RxBytes:     s.usage.RxBytes,
			TxBytes:     s.usage.TxBytes,
		}
		if curr, ok := cpuCountersFrom(s.usage); ok {
			reading.CPUUsage = p.cpuUsageRatio(s.name, curr, s.usage.OnlineCPUs)
			currCPU[s.name] = curr
		}
		readings = append(readings, reading)
	}
	p.prevCPU = currCPU
	p.mu.Unlock()

	p.store.Replace(time.Now(), readings)
	return nil
}

// cpuCountersFrom extracts the cumulative counters from a stats response.
// A zero system counter means the daemon reported no CPU stats at all.
func cpuCountersFrom(u datasource.ContainerUsage) (cpuCounters, bool) {
	if u.SystemTotal == 0 {
		return cpuCounters{}, false
	}
	return cpuCounters{total: u.CPUTotal, system: u.SystemTotal}, true
}

// cpuUsageRatio computes CPU usage in cores against the previous cycle.
// Returns nil when there is nothing to compare against, when the counters
// went backwards (container restart), or when the result is implausible.
func (p *DockerProbe) cpuUsageRatio(name string, curr cpuCounters, onlineCPUs uint32) *float64 {
	prev, ok := p.prevCPU[name]
	if !ok {
		return nil
	}
	if curr.total <= prev.total || curr.system <= prev.system {
		return nil
	}

	cpus := float64(onlineCPUs)
	if cpus == 0 {
		cpus = 1
	}
	usage := float64(curr.total-prev.total) / float64(curr.system-prev.system) * cpus
	if usage > cpus {
		return nil
	}
	return &usage
}

// Describe implements prometheus.Collector.
func (p *DockerProbe) Describe(ch chan<- *prometheus.Desc) {
	ch <- p.cpuUsage
	ch <- p.memUsage
	ch <- p.netRx
	ch <- p.netTx
}

// Collect implements prometheus.Collector.
func (p *DockerProbe) Collect(ch chan<- prometheus.Metric) {
	readings, ok := p.store.Load()
	if !ok {
		return
	}
	for _, c := range readings {
		emitGauge(ch, p.cpuUsage, c.CPUUsage, c.Name)
		emitGauge(ch, p.memUsage, c.MemoryBytes, c.Name)
		emitCounter(ch, p.netRx, c.RxBytes, c.Name)
		emitCounter(ch, p.netTx, c.TxBytes, c.Name)
	}
}
