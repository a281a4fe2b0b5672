// SMART probe — per-drive health via smartctl.
package collector

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/ironhearth/anvil/internal/config"
	"github.com/ironhearth/anvil/internal/datasource"
)

// smartSource discovers drives and queries their health.
type smartSource interface {
	Scan(ctx context.Context) ([]string, error)
	Query(ctx context.Context, device string) (datasource.SMARTReport, error)
}

// SMARTProbe exports drive health readings. A failed scan aborts the cycle;
// a failed query skips that drive, and drives in standby are left asleep.
type SMARTProbe struct {
	cfg    config.SMARTConfig
	source smartSource
	logger *zap.Logger
	store  Store[[]datasource.SMARTReport]

	sataTemp          *prometheus.Desc
	sataTempMin       *prometheus.Desc
	sataTempMax       *prometheus.Desc
	sataStartStop     *prometheus.Desc
	sataPowerOn       *prometheus.Desc
	sataPowerCycle    *prometheus.Desc
	sataLoadCycle     *prometheus.Desc
	sataReallocated   *prometheus.Desc
	sataPending       *prometheus.Desc
	sataUncorrectable *prometheus.Desc
	sataCRCErrors     *prometheus.Desc
	sataWearLevel     *prometheus.Desc

	nvmeTemp            *prometheus.Desc
	nvmeAvailableSpare  *prometheus.Desc
	nvmePercentUsed     *prometheus.Desc
	nvmeDataRead        *prometheus.Desc
	nvmeDataWritten     *prometheus.Desc
	nvmeHostReads       *prometheus.Desc
	nvmeHostWrites      *prometheus.Desc
	nvmePowerOn         *prometheus.Desc
	nvmeUnsafeShutdowns *prometheus.Desc
	nvmeMediaErrors     *prometheus.Desc
}

// NewSMARTProbe creates the SMART probe.
func NewSMARTProbe(cfg config.SMARTConfig, source smartSource, logger *zap.Logger) *SMARTProbe {
	labels := []string{"device", "model", "serial_number"}

	return &SMARTProbe{
		cfg:    cfg,
		source: source,
		logger: logger,

		sataTemp: prometheus.NewDesc(
			"system_smart_sata_temperature_celsius",
			"Current SATA disk temperature",
			labels, nil),
		sataTempMin: prometheus.NewDesc(
			"system_smart_sata_temperature_min_celsius",
			"Minimum temperature recorded by the SATA device",
			labels, nil),
		sataTempMax: prometheus.NewDesc(
			"system_smart_sata_temperature_max_celsius",
			"Maximum temperature recorded by the SATA device",
			labels, nil),
		sataStartStop: prometheus.NewDesc(
			"system_smart_sata_start_stop_count_total",
			"Total SATA start/stop cycles",
			labels, nil),
		sataPowerOn: prometheus.NewDesc(
			"system_smart_sata_power_on_hours_total",
			"Total SATA power on hours",
			labels, nil),
		sataPowerCycle: prometheus.NewDesc(
			"system_smart_sata_power_cycle_count_total",
			"Total SATA power cycles",
			labels, nil),
		sataLoadCycle: prometheus.NewDesc(
			"system_smart_sata_load_cycle_count_total",
			"Total SATA load/unload cycles",
			labels, nil),
		sataReallocated: prometheus.NewDesc(
			"system_smart_sata_reallocated_sectors_total",
			"Total SATA reallocated sectors count",
			labels, nil),
		sataPending: prometheus.NewDesc(
			"system_smart_sata_pending_sectors_total",
			"Total SATA pending sectors count",
			labels, nil),
		sataUncorrectable: prometheus.NewDesc(
			"system_smart_sata_uncorrectable_errors_total",
			"Total SATA uncorrectable errors count",
			labels, nil),
		sataCRCErrors: prometheus.NewDesc(
			"system_smart_sata_crc_errors_total",
			"Total SATA interface CRC errors (UDMA_CRC_Error_Count)",
			labels, nil),
		sataWearLevel: prometheus.NewDesc(
			"system_smart_sata_wear_level_ratio",
			"SATA SSD wear level (1.0 is new, 0.0 is end of life)",
			labels, nil),

		nvmeTemp: prometheus.NewDesc(
			"system_smart_nvme_temperature_celsius",
			"Current NVMe disk temperature",
			labels, nil),
		nvmeAvailableSpare: prometheus.NewDesc(
			"system_smart_nvme_available_spare_ratio",
			"NVMe remaining spare capacity ratio (0-1)",
			labels, nil),
		nvmePercentUsed: prometheus.NewDesc(
			"system_smart_nvme_percent_used_ratio",
			"NVMe life used ratio (0-1, can exceed 1)",
			labels, nil),
		nvmeDataRead: prometheus.NewDesc(
			"system_smart_nvme_data_units_read_total",
			"Total NVMe data units read (512 byte units)",
			labels, nil),
		nvmeDataWritten: prometheus.NewDesc(
			"system_smart_nvme_data_units_written_total",
			"Total NVMe data units written (512 byte units)",
			labels, nil),
		nvmeHostReads: prometheus.NewDesc(
			"system_smart_nvme_host_reads_total",
			"Total NVMe host read commands",
			labels, nil),
		nvmeHostWrites: prometheus.NewDesc(
			"system_smart_nvme_host_writes_total",
			"Total NVMe host write commands",
			labels, nil),
		nvmePowerOn: prometheus.NewDesc(
			"system_smart_nvme_power_on_hours_total",
			"Total NVMe power on hours",
			labels, nil),
		nvmeUnsafeShutdowns: prometheus.NewDesc(
			"system_smart_nvme_unsafe_shutdowns_total",
			"Total NVMe unsafe shutdowns",
			labels, nil),
		nvmeMediaErrors: prometheus.NewDesc(
			"system_smart_nvme_media_errors_total",
			"Total NVMe media and data integrity errors",
			labels, nil),
	}
}

// Name implements Probe.
func (p *SMARTProbe) Name() string { return "smart" }

// Enabled implements Probe.
func (p *SMARTProbe) Enabled() bool { return p.cfg.Enabled }

// Supported reports whether the smartctl binary is on PATH.
func (p *SMARTProbe) Supported(context.Context) bool {
	_, err := exec.LookPath(p.cfg.Binary)
	return err == nil
}

// Refresh implements Probe.
func (p *SMARTProbe) Refresh(ctx context.Context) error {
	devices, err := p.source.Scan(ctx)
	if err != nil {
		return fmt.Errorf("scanning for devices: %w", err)
	}

	reports := make([]datasource.SMARTReport, 0, len(devices))
	for _, dev := range devices {
		report, err := p.source.Query(ctx, dev)
		if err != nil {
			if errors.Is(err, datasource.ErrDeviceStandby) {
				p.logger.Debug("Device in standby, skipping", zap.String("device", dev))
				continue
			}
			p.logger.Warn("SMART query failed", zap.String("device", dev), zap.Error(err))
			continue
		}
		reports = append(reports, report)
	}
	p.store.Replace(time.Now(), reports)
	return nil
}

// Describe implements prometheus.Collector.
func (p *SMARTProbe) Describe(ch chan<- *prometheus.Desc) {
	ch <- p.sataTemp
	ch <- p.sataTempMin
	ch <- p.sataTempMax
	ch <- p.sataStartStop
	ch <- p.sataPowerOn
	ch <- p.sataPowerCycle
	ch <- p.sataLoadCycle
	ch <- p.sataReallocated
	ch <- p.sataPending
	ch <- p.sataUncorrectable
	ch <- p.sataCRCErrors
	ch <- p.sataWearLevel

	ch <- p.nvmeTemp
	ch <- p.nvmeAvailableSpare
	ch <- p.nvmePercentUsed
	ch <- p.nvmeDataRead
	ch <- p.nvmeDataWritten
	ch <- p.nvmeHostReads
	ch <- p.nvmeHostWrites
	ch <- p.nvmePowerOn
	ch <- p.nvmeUnsafeShutdowns
	ch <- p.nvmeMediaErrors
}

// Collect implements prometheus.Collector.
func (p *SMARTProbe) Collect(ch chan<- prometheus.Metric) {
	reports, ok := p.store.Load()
	if !ok {
		return
	}

	for _, r := range reports {
		labels := []string{r.Device, r.Model, r.Serial}

		if s := r.SATA; s != nil {
			emitGauge(ch, p.sataTemp, s.Temperature, labels...)
			emitGauge(ch, p.sataTempMin, s.TemperatureMin, labels...)
			emitGauge(ch, p.sataTempMax, s.TemperatureMax, labels...)
			emitGauge(ch, p.sataPending, s.PendingSectors, labels...)
			emitGauge(ch, p.sataReallocated, s.ReallocatedSectors, labels...)
			emitGauge(ch, p.sataWearLevel, s.WearLevel, labels...)
			emitCounter(ch, p.sataStartStop, s.StartStopCount, labels...)
			emitCounter(ch, p.sataPowerOn, s.PowerOnHours, labels...)
			emitCounter(ch, p.sataPowerCycle, s.PowerCycleCount, labels...)
			emitCounter(ch, p.sataLoadCycle, s.LoadCycleCount, labels...)
			emitCounter(ch, p.sataUncorrectable, s.UncorrectableErrors, labels...)
			emitCounter(ch, p.sataCRCErrors, s.CRCErrors, labels...)
		}

		if n := r.NVMe; n != nil {
			emitGauge(ch, p.nvmeTemp, n.Temperature, labels...)
			emitGauge(ch, p.nvmeAvailableSpare, n.AvailableSpare, labels...)
			emitGauge(ch, p.nvmePercentUsed, n.PercentUsed, labels...)
			emitCounter(ch, p.nvmeDataRead, n.DataUnitsRead, labels...)
			emitCounter(ch, p.nvmeDataWritten, n.DataUnitsWritten, labels...)
			emitCounter(ch, p.nvmeHostReads, n.HostReads, labels...)
			emitCounter(ch, p.nvmeHostWrites, n.HostWrites, labels...)
			emitCounter(ch, p.nvmePowerOn, n.PowerOnHours, labels...)
			emitCounter(ch, p.nvmeUnsafeShutdowns, n.UnsafeShutdowns, labels...)
			emitCounter(ch, p.nvmeMediaErrors, n.MediaErrors, labels...)
		}
	}
}
