// ZFS probe — ARC counters and per-dataset I/O from kstat.
package collector

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ironhearth/anvil/internal/config"
	"github.com/ironhearth/anvil/internal/datasource"
)

// ZFSProbe exports ARC cache counters and per-dataset I/O totals. Hosts
// without the ZFS kstat tree are reported unsupported and never registered.
type ZFSProbe struct {
	cfg    config.ZFSConfig
	source *datasource.ZFS

	arc      Store[datasource.ARCStats]
	datasets Store[[]datasource.DatasetIOStats]

	arcHits       *prometheus.Desc
	arcMisses     *prometheus.Desc
	arcSize       *prometheus.Desc
	arcTargetSize *prometheus.Desc
	arcMaxSize    *prometheus.Desc

	dsReads        *prometheus.Desc
	dsWrites       *prometheus.Desc
	dsBytesRead    *prometheus.Desc
	dsBytesWritten *prometheus.Desc
}

// NewZFSProbe creates the ZFS probe.
func NewZFSProbe(cfg config.ZFSConfig, source *datasource.ZFS) *ZFSProbe {
	labels := []string{"pool", "dataset"}

	return &ZFSProbe{
		cfg:    cfg,
		source: source,

		arcHits: prometheus.NewDesc(
			"zfs_arc_hits_total",
			"Total ARC hits",
			nil, nil),
		arcMisses: prometheus.NewDesc(
			"zfs_arc_misses_total",
			"Total ARC misses",
			nil, nil),
		arcSize: prometheus.NewDesc(
			"zfs_arc_size_bytes",
			"Current size of ARC",
			nil, nil),
		arcTargetSize: prometheus.NewDesc(
			"zfs_arc_target_size_bytes",
			"Target size of ARC",
			nil, nil),
		arcMaxSize: prometheus.NewDesc(
			"zfs_arc_max_size_bytes",
			"Maximum size of ARC",
			nil, nil),

		dsReads: prometheus.NewDesc(
			"zfs_dataset_reads_total",
			"Total read operations",
			labels, nil),
		dsWrites: prometheus.NewDesc(
			"zfs_dataset_writes_total",
			"Total write operations",
			labels, nil),
		dsBytesRead: prometheus.NewDesc(
			"zfs_dataset_read_bytes_total",
			"Total bytes read",
			labels, nil),
		dsBytesWritten: prometheus.NewDesc(
			"zfs_dataset_written_bytes_total",
			"Total bytes written",
			labels, nil),
	}
}

// Name implements Probe.
func (p *ZFSProbe) Name() string { return "zfs" }

// Enabled implements Probe.
func (p *ZFSProbe) Enabled() bool { return p.cfg.Enabled }

// Supported reports whether the ZFS kstat tree exists on this host.
func (p *ZFSProbe) Supported(context.Context) bool { return p.source.Available() }

// Refresh implements Probe.
func (p *ZFSProbe) Refresh(ctx context.Context) error {
	arc, err := p.source.ARC(ctx)
	if err != nil {
		return fmt.Errorf("reading arcstats: %w", err)
	}
	datasets, err := p.source.Datasets(ctx)
	if err != nil {
		return fmt.Errorf("reading dataset kstats: %w", err)
	}

	now := time.Now()
	p.arc.Replace(now, arc)
	p.datasets.Replace(now, datasets)
	return nil
}

// Describe implements prometheus.Collector.
func (p *ZFSProbe) Describe(ch chan<- *prometheus.Desc) {
	ch <- p.arcHits
	ch <- p.arcMisses
	ch <- p.arcSize
	ch <- p.arcTargetSize
	ch <- p.arcMaxSize
	ch <- p.dsReads
	ch <- p.dsWrites
	ch <- p.dsBytesRead
	ch <- p.dsBytesWritten
}

// Collect implements prometheus.Collector.
func (p *ZFSProbe) Collect(ch chan<- prometheus.Metric) {
	if arc, ok := p.arc.Load(); ok {
		ch <- prometheus.MustNewConstMetric(p.arcHits, prometheus.CounterValue, float64(arc.Hits))
		ch <- prometheus.MustNewConstMetric(p.arcMisses, prometheus.CounterValue, float64(arc.Misses))
		ch <- prometheus.MustNewConstMetric(p.arcSize, prometheus.GaugeValue, float64(arc.Size))
		ch <- prometheus.MustNewConstMetric(p.arcTargetSize, prometheus.GaugeValue, float64(arc.TargetSize))
		ch <- prometheus.MustNewConstMetric(p.arcMaxSize, prometheus.GaugeValue, float64(arc.MaxSize))
	}

	if datasets, ok := p.datasets.Load(); ok {
		for _, ds := range datasets {
			ch <- prometheus.MustNewConstMetric(p.dsReads, prometheus.CounterValue, float64(ds.Reads), ds.Pool, ds.Dataset)
			ch <- prometheus.MustNewConstMetric(p.dsWrites, prometheus.CounterValue, float64(ds.Writes), ds.Pool, ds.Dataset)
			ch <- prometheus.MustNewConstMetric(p.dsBytesRead, prometheus.CounterValue, float64(ds.BytesRead), ds.Pool, ds.Dataset)
			ch <- prometheus.MustNewConstMetric(p.dsBytesWritten, prometheus.CounterValue, float64(ds.BytesWritten), ds.Pool, ds.Dataset)
		}
	}
}
