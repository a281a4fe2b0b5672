package collector

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// wearEntity is a device that may or may not carry a wear sensor.
type wearEntity struct {
	device string
	wear   *float64
}

type wearCollector struct {
	desc     *prometheus.Desc
	entities []wearEntity
}

func (c *wearCollector) Describe(ch chan<- *prometheus.Desc) { ch <- c.desc }

func (c *wearCollector) Collect(ch chan<- prometheus.Metric) {
	for _, e := range c.entities {
		emitGauge(ch, c.desc, e.wear, e.device)
	}
}

// One entity reports the field, one does not: the gathered family must hold
// exactly one series, carrying the reporting entity's label set.
func TestEmitGaugeSparseFamilies(t *testing.T) {
	desc := prometheus.NewDesc(
		"test_wear_level_ratio",
		"Wear reading",
		[]string{"device"}, nil)

	reg := prometheus.NewRegistry()
	reg.MustRegister(&wearCollector{desc: desc, entities: []wearEntity{
		{device: "sda", wear: fptr(0.93)},
		{device: "sdb"},
	}})

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}
	if len(families) != 1 {
		t.Fatalf("families = %d, want 1", len(families))
	}

	fam := families[0]
	if fam.GetName() != "test_wear_level_ratio" {
		t.Errorf("family name = %q, want test_wear_level_ratio", fam.GetName())
	}
	if fam.GetType() != dto.MetricType_GAUGE {
		t.Errorf("family type = %v, want GAUGE", fam.GetType())
	}

	metrics := fam.GetMetric()
	if len(metrics) != 1 {
		t.Fatalf("series = %d, want 1 (the absent field emits nothing)", len(metrics))
	}

	m := metrics[0]
	labels := m.GetLabel()
	if len(labels) != 1 || labels[0].GetName() != "device" || labels[0].GetValue() != "sda" {
		t.Errorf("labels = %v, want device=sda", labels)
	}
	if got := m.GetGauge().GetValue(); got != 0.93 {
		t.Errorf("value = %v, want 0.93", got)
	}
}
