// CPU usage probe — overall and per-core utilization ratios computed from
// two /proc/stat readings, plus per-core frequencies from sysfs.
package collector

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ironhearth/anvil/internal/config"
	"github.com/ironhearth/anvil/internal/datasource"
	"github.com/ironhearth/anvil/internal/rate"
)

// tickTypeNames are the label values for the time-type breakdown, in
// /proc/stat column order.
var tickTypeNames = [...]string{
	"user", "nice", "system", "idle", "iowait",
	"irq", "softirq", "steal", "guest", "guest_nice",
}

// tickRatios is one breakdown of elapsed time by type, each in [0, 1].
type tickRatios [len(tickTypeNames)]float64

type coreUsage struct {
	Usage     float64
	Breakdown tickRatios
}

type cpuSnapshot struct {
	Usage     float64
	Breakdown tickRatios
	Cores     []coreUsage
	Freqs     []uint64
}

// CPUProbe samples CPU tick counters over a bounded interval and exports
// usage ratios.
type CPUProbe struct {
	cfg     config.CPUConfig
	stat    *datasource.ProcStat
	freq    *datasource.CPUFreq
	sampler *rate.Sampler[datasource.CPUStat]
	store   Store[cpuSnapshot]

	usage         *prometheus.Desc
	breakdown     *prometheus.Desc
	coreUsage     *prometheus.Desc
	coreBreakdown *prometheus.Desc
	coreFreq      *prometheus.Desc
}

// NewCPUProbe creates the CPU probe. sampleGap is the minimum spacing
// between the two tick readings of one refresh.
func NewCPUProbe(cfg config.CPUConfig, stat *datasource.ProcStat, freq *datasource.CPUFreq, sampleGap time.Duration) *CPUProbe {
	return &CPUProbe{
		cfg:     cfg,
		stat:    stat,
		freq:    freq,
		sampler: rate.New[datasource.CPUStat](sampleGap),

		usage: prometheus.NewDesc(
			"system_cpu_usage_ratio",
			"Overall CPU usage ratio",
			nil, nil),
		breakdown: prometheus.NewDesc(
			"system_cpu_time_type_ratio",
			"Overall CPU time breakdown by type",
			[]string{"type"}, nil),
		coreUsage: prometheus.NewDesc(
			"system_cpu_core_usage_ratio",
			"Per-core CPU usage ratio",
			[]string{"core"}, nil),
		coreBreakdown: prometheus.NewDesc(
			"system_cpu_core_time_type_ratio",
			"Per-core CPU time breakdown by type",
			[]string{"core", "type"}, nil),
		coreFreq: prometheus.NewDesc(
			"system_cpu_core_frequency_hertz",
			"Current frequency of the CPU core in Hertz",
			[]string{"core"}, nil),
	}
}

// Name implements Probe.
func (p *CPUProbe) Name() string { return "cpu" }

// Enabled implements Probe.
func (p *CPUProbe) Enabled() bool { return p.cfg.Enabled }

// Supported implements Probe.
func (p *CPUProbe) Supported(context.Context) bool { return true }

// Refresh takes a pair of tick readings and replaces the snapshot with the
// usage ratios over that interval. A core-count change between the readings
// fails the cycle; the baseline has already advanced, so the next cycle
// measures against the new topology.
func (p *CPUProbe) Refresh(ctx context.Context) error {
	prev, curr, err := p.sampler.Pair(ctx, p.stat.Read)
	if err != nil {
		return err
	}

	if len(prev.Counters.Cores) != len(curr.Counters.Cores) {
		return fmt.Errorf("core count changed between readings: %d -> %d",
			len(prev.Counters.Cores), len(curr.Counters.Cores))
	}

	usage, breakdown := tickUsage(curr.Counters.Total, prev.Counters.Total)

	cores := make([]coreUsage, len(curr.Counters.Cores))
	for i := range curr.Counters.Cores {
		coreBusy, coreBreakdown := tickUsage(curr.Counters.Cores[i], prev.Counters.Cores[i])
		cores[i] = coreUsage{Usage: coreBusy, Breakdown: coreBreakdown}
	}

	freqs, err := p.freq.Read(ctx)
	if err != nil {
		return err
	}

	p.store.Replace(curr.At, cpuSnapshot{
		Usage:     usage,
		Breakdown: breakdown,
		Cores:     cores,
		Freqs:     freqs,
	})
	return nil
}

// Describe implements prometheus.Collector.
func (p *CPUProbe) Describe(ch chan<- *prometheus.Desc) {
	ch <- p.usage
	ch <- p.breakdown
	ch <- p.coreUsage
	ch <- p.coreBreakdown
	ch <- p.coreFreq
}

// Collect implements prometheus.Collector.
func (p *CPUProbe) Collect(ch chan<- prometheus.Metric) {
	snap, ok := p.store.Load()
	if !ok {
		return
	}

	ch <- prometheus.MustNewConstMetric(p.usage, prometheus.GaugeValue, snap.Usage)
	for i, name := range tickTypeNames {
		ch <- prometheus.MustNewConstMetric(p.breakdown, prometheus.GaugeValue, snap.Breakdown[i], name)
	}

	for core, stats := range snap.Cores {
		label := strconv.Itoa(core)
		ch <- prometheus.MustNewConstMetric(p.coreUsage, prometheus.GaugeValue, stats.Usage, label)
		for i, name := range tickTypeNames {
			ch <- prometheus.MustNewConstMetric(p.coreBreakdown, prometheus.GaugeValue, stats.Breakdown[i], label, name)
		}
	}

	for core, hz := range snap.Freqs {
		ch <- prometheus.MustNewConstMetric(p.coreFreq, prometheus.GaugeValue, float64(hz), strconv.Itoa(core))
	}
}

// tickUsage turns two tick readings into a busy ratio and a per-type
// breakdown. A zero elapsed total (counters unchanged or regressed) yields
// all zeros rather than dividing by zero.
func tickUsage(curr, prev datasource.CPUTicks) (float64, tickRatios) {
	delta := curr.Delta(prev)
	total := delta.TotalTicks()
	if total == 0 {
		return 0, tickRatios{}
	}

	elapsed := float64(total)
	var ratios tickRatios
	for i := range delta {
		ratios[i] = float64(delta[i]) / elapsed
	}

	busy := 1 - ratios[datasource.TickIdle] - ratios[datasource.TickIOWait]
	if busy < 0 {
		busy = 0
	}
	return busy, ratios
}
