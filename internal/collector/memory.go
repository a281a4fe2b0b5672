// Memory probe — RAM counters from /proc/meminfo, optionally swap.
package collector

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ironhearth/anvil/internal/config"
	"github.com/ironhearth/anvil/internal/datasource"
)

// MemoryProbe exports physical memory usage. Swap series exist only when
// swap reporting is configured on; hosts without swap would otherwise export
// a misleading flat zero.
type MemoryProbe struct {
	cfg    config.MemoryConfig
	source *datasource.MemInfo
	store  Store[datasource.MemoryInfo]

	total     *prometheus.Desc
	used      *prometheus.Desc
	free      *prometheus.Desc
	available *prometheus.Desc
	buffers   *prometheus.Desc
	cache     *prometheus.Desc

	swapTotal *prometheus.Desc
	swapFree  *prometheus.Desc
	swapUsed  *prometheus.Desc
}

// NewMemoryProbe creates the memory probe.
func NewMemoryProbe(cfg config.MemoryConfig, source *datasource.MemInfo) *MemoryProbe {
	return &MemoryProbe{
		cfg:    cfg,
		source: source,

		total: prometheus.NewDesc(
			"system_memory_total_bytes",
			"Total physical RAM installed on the system",
			nil, nil),
		used: prometheus.NewDesc(
			"system_memory_used_bytes",
			"Amount of memory currently used by programs (Non-reclaimable)",
			nil, nil),
		free: prometheus.NewDesc(
			"system_memory_free_bytes",
			"Amount of memory that is completely unused (does not include cache/buffers)",
			nil, nil),
		available: prometheus.NewDesc(
			"system_memory_available_bytes",
			"Estimate of how much memory is available for starting new applications without swapping",
			nil, nil),
		buffers: prometheus.NewDesc(
			"system_memory_buffers_bytes",
			"Memory used by kernel buffers (metadata/raw block storage)",
			nil, nil),
		cache: prometheus.NewDesc(
			"system_memory_cache_bytes",
			"Memory used by the page cache and reclaimable slab objects",
			nil, nil),

		swapTotal: prometheus.NewDesc(
			"system_swap_total_bytes",
			"Total amount of swap space available",
			nil, nil),
		swapFree: prometheus.NewDesc(
			"system_swap_free_bytes",
			"Amount of swap space currently unused",
			nil, nil),
		swapUsed: prometheus.NewDesc(
			"system_swap_used_bytes",
			"Amount of swap space currently in use",
			nil, nil),
	}
}

// Name implements Probe.
func (p *MemoryProbe) Name() string { return "memory" }

// Enabled implements Probe.
func (p *MemoryProbe) Enabled() bool { return p.cfg.Enabled }

// Supported implements Probe.
func (p *MemoryProbe) Supported(context.Context) bool { return true }

// Refresh implements Probe.
func (p *MemoryProbe) Refresh(ctx context.Context) error {
	info, err := p.source.Read(ctx)
	if err != nil {
		return err
	}
	p.store.Replace(time.Now(), info)
	return nil
}

// Describe implements prometheus.Collector.
func (p *MemoryProbe) Describe(ch chan<- *prometheus.Desc) {
	ch <- p.total
	ch <- p.used
	ch <- p.free
	ch <- p.available
	ch <- p.buffers
	ch <- p.cache

	if p.cfg.ReportSwap {
		ch <- p.swapTotal
		ch <- p.swapFree
		ch <- p.swapUsed
	}
}

// Collect implements prometheus.Collector.
func (p *MemoryProbe) Collect(ch chan<- prometheus.Metric) {
	info, ok := p.store.Load()
	if !ok {
		return
	}

	ch <- prometheus.MustNewConstMetric(p.total, prometheus.GaugeValue, float64(info.RAM.Total))
	ch <- prometheus.MustNewConstMetric(p.used, prometheus.GaugeValue, float64(info.RAM.Used))
	ch <- prometheus.MustNewConstMetric(p.free, prometheus.GaugeValue, float64(info.RAM.Free))
	ch <- prometheus.MustNewConstMetric(p.available, prometheus.GaugeValue, float64(info.RAM.Available))
	ch <- prometheus.MustNewConstMetric(p.buffers, prometheus.GaugeValue, float64(info.RAM.Buffers))
	ch <- prometheus.MustNewConstMetric(p.cache, prometheus.GaugeValue, float64(info.RAM.Cache))

	if p.cfg.ReportSwap {
		ch <- prometheus.MustNewConstMetric(p.swapTotal, prometheus.GaugeValue, float64(info.Swap.Total))
		ch <- prometheus.MustNewConstMetric(p.swapFree, prometheus.GaugeValue, float64(info.Swap.Free))
		ch <- prometheus.MustNewConstMetric(p.swapUsed, prometheus.GaugeValue, float64(info.Swap.Used))
	}
}
