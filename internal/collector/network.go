// Network probe — per-interface traffic counters from /proc/net/dev.
package collector

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ironhearth/anvil/internal/config"
	"github.com/ironhearth/anvil/internal/datasource"
)

// NetworkProbe exports cumulative byte and packet counters per interface.
// A non-empty watch list restricts the export to exactly those interfaces;
// otherwise the ignore list filters interfaces out.
type NetworkProbe struct {
	cfg    config.NetworkConfig
	source *datasource.NetDev
	store  Store[[]datasource.InterfaceStats]

	txBytes   *prometheus.Desc
	rxBytes   *prometheus.Desc
	txPackets *prometheus.Desc
	rxPackets *prometheus.Desc
}

// NewNetworkProbe creates the network probe.
func NewNetworkProbe(cfg config.NetworkConfig, source *datasource.NetDev) *NetworkProbe {
	return &NetworkProbe{
		cfg:    cfg,
		source: source,

		txBytes: prometheus.NewDesc(
			"system_network_transmit_bytes_total",
			"Total bytes sent",
			[]string{"device"}, nil),
		rxBytes: prometheus.NewDesc(
			"system_network_receive_bytes_total",
			"Total bytes received",
			[]string{"device"}, nil),
		txPackets: prometheus.NewDesc(
			"system_network_transmit_packets_total",
			"Total packets sent",
			[]string{"device"}, nil),
		rxPackets: prometheus.NewDesc(
			"system_network_receive_packets_total",
			"Total packets received",
			[]string{"device"}, nil),
	}
}

// Name implements Probe.
func (p *NetworkProbe) Name() string { return "network" }

// Enabled implements Probe.
func (p *NetworkProbe) Enabled() bool { return p.cfg.Enabled }

// Supported implements Probe.
func (p *NetworkProbe) Supported(context.Context) bool { return true }

// Refresh implements Probe.
func (p *NetworkProbe) Refresh(ctx context.Context) error {
	all, err := p.source.Read(ctx)
	if err != nil {
		return err
	}

	kept := make([]datasource.InterfaceStats, 0, len(all))
	for _, ifc := range all {
		if p.shouldCollect(ifc.Name) {
			kept = append(kept, ifc)
		}
	}
	p.store.Replace(time.Now(), kept)
	return nil
}

// shouldCollect applies the interface filter. The watch list, when set,
// takes precedence over the ignore list.
func (p *NetworkProbe) shouldCollect(name string) bool {
	if len(p.cfg.Watch) > 0 {
		for _, want := range p.cfg.Watch {
			if name == want {
				return true
			}
		}
		return false
	}
	for _, skip := range p.cfg.Ignore {
		if name == skip {
			return false
		}
	}
	return true
}

// Describe implements prometheus.Collector.
func (p *NetworkProbe) Describe(ch chan<- *prometheus.Desc) {
	ch <- p.txBytes
	ch <- p.rxBytes
	ch <- p.txPackets
	ch <- p.rxPackets
}

// Collect implements prometheus.Collector.
func (p *NetworkProbe) Collect(ch chan<- prometheus.Metric) {
	interfaces, ok := p.store.Load()
	if !ok {
		return
	}
	for _, ifc := range interfaces {
		ch <- prometheus.MustNewConstMetric(p.txBytes, prometheus.CounterValue, float64(ifc.BytesSent), ifc.Name)
		ch <- prometheus.MustNewConstMetric(p.rxBytes, prometheus.CounterValue, float64(ifc.BytesReceived), ifc.Name)
		ch <- prometheus.MustNewConstMetric(p.txPackets, prometheus.CounterValue, float64(ifc.PacketsSent), ifc.Name)
		ch <- prometheus.MustNewConstMetric(p.rxPackets, prometheus.CounterValue, float64(ifc.PacketsReceived), ifc.Name)
	}
}
