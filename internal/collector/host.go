// Host probe — uptime, boot time, load averages and CPU count.
// Uses gopsutil for cross-platform host metrics.
package collector

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/load"

	"github.com/ironhearth/anvil/internal/config"
)

// hostSnapshot is one cycle's host-level reading. Load is nil on platforms
// without load averages.
type hostSnapshot struct {
	Uptime   uint64
	BootTime uint64
	Load     *load.AvgStat
	CPUs     int
}

// HostProbe exports basic host facts.
type HostProbe struct {
	cfg   config.HostConfig
	store Store[hostSnapshot]

	uptime   *prometheus.Desc
	bootTime *prometheus.Desc
	load1    *prometheus.Desc
	load5    *prometheus.Desc
	load15   *prometheus.Desc
	cpus     *prometheus.Desc
}

// NewHostProbe creates the host probe.
func NewHostProbe(cfg config.HostConfig) *HostProbe {
	return &HostProbe{
		cfg: cfg,

		uptime: prometheus.NewDesc(
			"system_host_uptime_seconds",
			"Seconds since last boot",
			nil, nil),
		bootTime: prometheus.NewDesc(
			"system_host_boot_time_seconds",
			"Unix timestamp of last boot",
			nil, nil),
		load1: prometheus.NewDesc(
			"system_host_load1",
			"1 minute load average",
			nil, nil),
		load5: prometheus.NewDesc(
			"system_host_load5",
			"5 minute load average",
			nil, nil),
		load15: prometheus.NewDesc(
			"system_host_load15",
			"15 minute load average",
			nil, nil),
		cpus: prometheus.NewDesc(
			"system_host_cpus",
			"Number of logical CPUs",
			nil, nil),
	}
}

// Name implements Probe.
func (p *HostProbe) Name() string { return "host" }

// Enabled implements Probe.
func (p *HostProbe) Enabled() bool { return p.cfg.Enabled }

// Supported implements Probe.
func (p *HostProbe) Supported(context.Context) bool { return true }

// Refresh implements Probe.
func (p *HostProbe) Refresh(ctx context.Context) error {
	uptime, err := host.UptimeWithContext(ctx)
	if err != nil {
		return fmt.Errorf("reading uptime: %w", err)
	}
	boot, err := host.BootTimeWithContext(ctx)
	if err != nil {
		return fmt.Errorf("reading boot time: %w", err)
	}
	cpus, err := cpu.CountsWithContext(ctx, true)
	if err != nil {
		return fmt.Errorf("counting cpus: %w", err)
	}

	snap := hostSnapshot{Uptime: uptime, BootTime: boot, CPUs: cpus}
	// Load averages do not exist everywhere; leave them out rather than
	// failing the cycle.
	if avg, err := load.AvgWithContext(ctx); err == nil {
		snap.Load = avg
	}

	p.store.Replace(time.Now(), snap)
	return nil
}

// Describe implements prometheus.Collector.
func (p *HostProbe) Describe(ch chan<- *prometheus.Desc) {
	ch <- p.uptime
	ch <- p.bootTime
	ch <- p.load1
	ch <- p.load5
	ch <- p.load15
	ch <- p.cpus
}

// Collect implements prometheus.Collector.
func (p *HostProbe) Collect(ch chan<- prometheus.Metric) {
	snap, ok := p.store.Load()
	if !ok {
		return
	}

	ch <- prometheus.MustNewConstMetric(p.uptime, prometheus.GaugeValue, float64(snap.Uptime))
	ch <- prometheus.MustNewConstMetric(p.bootTime, prometheus.GaugeValue, float64(snap.BootTime))
	ch <- prometheus.MustNewConstMetric(p.cpus, prometheus.GaugeValue, float64(snap.CPUs))

	if snap.Load != nil {
		ch <- prometheus.MustNewConstMetric(p.load1, prometheus.GaugeValue, snap.Load.Load1)
		ch <- prometheus.MustNewConstMetric(p.load5, prometheus.GaugeValue, snap.Load.Load5)
		ch <- prometheus.MustNewConstMetric(p.load15, prometheus.GaugeValue, snap.Load.Load15)
	}
}
