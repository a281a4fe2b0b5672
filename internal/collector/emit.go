package collector

import "github.com/prometheus/client_golang/prometheus"

// number covers the value types sensors report.
type number interface {
	~int | ~int64 | ~uint32 | ~uint64 | ~float64
}

// emitGauge sends one gauge sample when the field is present. Hardware is
// heterogeneous — not every disk reports wear, not every UPS reports input
// voltage — and a fabricated zero would be indistinguishable from a measured
// zero, so an absent field produces no series at all.
func emitGauge[N number](ch chan<- prometheus.Metric, desc *prometheus.Desc, v *N, labels ...string) {
	if v == nil {
		return
	}
	ch <- prometheus.MustNewConstMetric(desc, prometheus.GaugeValue, float64(*v), labels...)
}

// emitCounter is emitGauge for cumulative values.
func emitCounter[N number](ch chan<- prometheus.Metric, desc *prometheus.Desc, v *N, labels ...string) {
	if v == nil {
		return
	}
	ch <- prometheus.MustNewConstMetric(desc, prometheus.CounterValue, float64(*v), labels...)
}
