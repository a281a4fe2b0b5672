// UPS probe — battery and power figures from a NUT server.
package collector

import (
	"context"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ironhearth/anvil/internal/config"
	"github.com/ironhearth/anvil/internal/nut"
)

// upsSource lists UPS devices and their raw variables.
type upsSource interface {
	Devices(ctx context.Context) ([]nut.Device, error)
}

// upsReading is the projected per-device snapshot. Fields are nil when the
// device reports no usable variable for them.
type upsReading struct {
	Name                 string
	Runtime              *float64
	BatteryLevel         *float64
	InputVoltage         *float64
	OutputVoltage        *float64
	Load                 *float64
	RealPower            *float64
	ApparentPower        *float64
	NominalRealPower     *float64
	NominalApparentPower *float64
}

// UPSProbe exports UPS readings from a network UPS tools server.
type UPSProbe struct {
	cfg    config.UPSConfig
	source upsSource
	store  Store[[]upsReading]

	runtime              *prometheus.Desc
	batteryLevel         *prometheus.Desc
	inputVoltage         *prometheus.Desc
	outputVoltage        *prometheus.Desc
	load                 *prometheus.Desc
	realPower            *prometheus.Desc
	apparentPower        *prometheus.Desc
	nominalRealPower     *prometheus.Desc
	nominalApparentPower *prometheus.Desc
}

// NewUPSProbe creates the UPS probe.
func NewUPSProbe(cfg config.UPSConfig, source upsSource) *UPSProbe {
	labels := []string{"ups"}

	return &UPSProbe{
		cfg:    cfg,
		source: source,

		runtime: prometheus.NewDesc(
			"system_ups_runtime_seconds",
			"Estimated battery runtime",
			labels, nil),
		batteryLevel: prometheus.NewDesc(
			"system_ups_battery_level_ratio",
			"Battery charge level",
			labels, nil),
		inputVoltage: prometheus.NewDesc(
			"system_ups_input_voltage_volts",
			"Input line voltage",
			labels, nil),
		outputVoltage: prometheus.NewDesc(
			"system_ups_output_voltage_volts",
			"Output line voltage",
			labels, nil),
		load: prometheus.NewDesc(
			"system_ups_load_ratio",
			"UPS load as a fraction of capacity",
			labels, nil),
		realPower: prometheus.NewDesc(
			"system_ups_real_power_watts",
			"Real power draw",
			labels, nil),
		apparentPower: prometheus.NewDesc(
			"system_ups_apparent_power_voltamperes",
			"Apparent power draw",
			labels, nil),
		nominalRealPower: prometheus.NewDesc(
			"system_ups_nominal_real_power_watts",
			"Nominal real power",
			labels, nil),
		nominalApparentPower: prometheus.NewDesc(
			"system_ups_nominal_apparent_power_voltamperes",
			"Nominal apparent power",
			labels, nil),
	}
}

// Name implements Probe.
func (p *UPSProbe) Name() string { return "ups" }

// Enabled implements Probe.
func (p *UPSProbe) Enabled() bool { return p.cfg.Enabled }

// Supported implements Probe.
func (p *UPSProbe) Supported(context.Context) bool { return true }

// Refresh implements Probe.
func (p *UPSProbe) Refresh(ctx context.Context) error {
	devices, err := p.source.Devices(ctx)
	if err != nil {
		return err
	}

	readings := make([]upsReading, 0, len(devices))
	for _, dev := range devices {
		readings = append(readings, projectDevice(dev))
	}
	p.store.Replace(time.Now(), readings)
	return nil
}

// projectDevice maps raw NUT variables onto the exported fields. Devices
// disagree on variable names, so each field tries a chain of aliases and the
// first one that parses as a number wins.
func projectDevice(dev nut.Device) upsReading {
	find := func(keys ...string) *float64 {
		for _, key := range keys {
			raw, ok := dev.Parameters[key]
			if !ok {
				continue
			}
			v, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				continue
			}
			return &v
		}
		return nil
	}

	r := upsReading{Name: dev.Name}
	r.Runtime = find("battery.runtime", "battery.runtime.low")
	r.BatteryLevel = scale(find("battery.charge", "battery.level", "battery.charge.approx"), 0.01)
	r.Load = scale(find("ups.load", "output.load"), 0.01)
	r.InputVoltage = find("input.voltage")
	r.OutputVoltage = find("output.voltage")
	r.NominalApparentPower = find("ups.power.nominal", "output.power.nominal")
	r.NominalRealPower = find("ups.realpower.nominal", "output.realpower.nominal")

	r.RealPower = find("ups.realpower", "output.realpower")
	if r.RealPower == nil {
		r.RealPower = deratedPower(r.NominalRealPower, r.Load)
	}
	r.ApparentPower = find("ups.power", "output.power")
	if r.ApparentPower == nil {
		r.ApparentPower = deratedPower(r.NominalApparentPower, r.Load)
	}
	return r
}

// scale multiplies an optional value by a constant factor.
func scale(v *float64, factor float64) *float64 {
	if v == nil {
		return nil
	}
	scaled := *v * factor
	return &scaled
}

// deratedPower estimates power draw as nominal capacity times load, for
// devices that report capacity but not the measured draw.
func deratedPower(nominal, load *float64) *float64 {
	if nominal == nil || load == nil || *nominal <= 0 {
		return nil
	}
	p := *nominal * *load
	return &p
}

// Describe implements prometheus.Collector.
func (p *UPSProbe) Describe(ch chan<- *prometheus.Desc) {
	ch <- p.runtime
	ch <- p.batteryLevel
	ch <- p.inputVoltage
	ch <- p.outputVoltage
	ch <- p.load
	ch <- p.realPower
	ch <- p.apparentPower
	ch <- p.nominalRealPower
	ch <- p.nominalApparentPower
}

// Collect implements prometheus.Collector.
func (p *UPSProbe) Collect(ch chan<- prometheus.Metric) {
	readings, ok := p.store.Load()
	if !ok {
		return
	}
	for _, r := range readings {
		emitGauge(ch, p.runtime, r.Runtime, r.Name)
		emitGauge(ch, p.batteryLevel, r.BatteryLevel, r.Name)
		emitGauge(ch, p.inputVoltage, r.InputVoltage, r.Name)
		emitGauge(ch, p.outputVoltage, r.OutputVoltage, r.Name)
		emitGauge(ch, p.load, r.Load, r.Name)
		emitGauge(ch, p.realPower, r.RealPower, r.Name)
		emitGauge(ch, p.apparentPower, r.ApparentPower, r.Name)
		emitGauge(ch, p.nominalRealPower, r.NominalRealPower, r.Name)
		emitGauge(ch, p.nominalApparentPower, r.NominalApparentPower, r.Name)
	}
}
