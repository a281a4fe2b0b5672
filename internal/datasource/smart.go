// SMART health readings via the smartctl utility. smartctl is asked for JSON
// output; devices parked in a low-power state are recognized by exit code 2
// and reported as ErrDeviceStandby rather than a failure.
package datasource

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
)

// ErrDeviceStandby marks a device that smartctl skipped because waking it
// for a reading would spin it up.
var ErrDeviceStandby = errors.New("device in standby")

// smartctl exit status 2 means "device open failed or device is in a
// low-power mode" when --nocheck standby is in effect.
const smartctlStandbyExit = 2

// Runner executes an external diagnostic tool and captures stdout and the
// exit code. A non-zero exit is not an error at this level; callers decide
// what each code means.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (stdout []byte, exitCode int, err error)
}

// ExecRunner is the production Runner on os/exec.
type ExecRunner struct{}

// Run executes name with args and returns its stdout and exit code. Only
// failures to start or signal-deaths surface as errors.
func (ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, int, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout bytes.Buffer
	cmd.Stdout = &stdout

	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && exitErr.ExitCode() >= 0 {
			return stdout.Bytes(), exitErr.ExitCode(), nil
		}
		return nil, 0, fmt.Errorf("running %s: %w", name, err)
	}
	return stdout.Bytes(), 0, nil
}

// SATAHealth carries the SMART attributes harvested from an ATA attribute
// table. Every field is optional — drives disagree wildly on what they
// report.
type SATAHealth struct {
	Temperature         *float64
	TemperatureMin      *float64
	TemperatureMax      *float64
	StartStopCount      *uint64
	ReallocatedSectors  *uint64
	PowerOnHours        *uint64
	PowerCycleCount     *uint64
	LoadCycleCount      *uint64
	PendingSectors      *uint64
	UncorrectableErrors *uint64
	CRCErrors           *uint64
	WearLevel           *float64
}

// NVMeHealth carries the NVMe health log fields. Spare and wear arrive as
// percentages and are normalized to ratios.
type NVMeHealth struct {
	Temperature      *float64
	AvailableSpare   *float64
	PercentUsed      *float64
	DataUnitsRead    *uint64
	DataUnitsWritten *uint64
	HostReads        *uint64
	HostWrites       *uint64
	PowerOnHours     *uint64
	UnsafeShutdowns  *uint64
	MediaErrors      *uint64
}

// SMARTReport is one device's reading. Exactly one of SATA or NVMe is set.
type SMARTReport struct {
	Device string
	Model  string
	Serial string
	SATA   *SATAHealth
	NVMe   *NVMeHealth
}

// SmartCtl drives the smartctl binary through a Runner.
type SmartCtl struct {
	binary string
	runner Runner
}

// NewSmartCtl creates a smartctl source invoking the given binary.
func NewSmartCtl(binary string, runner Runner) *SmartCtl {
	return &SmartCtl{binary: binary, runner: runner}
}

// Scan lists the device paths smartctl can see.
func (s *SmartCtl) Scan(ctx context.Context) ([]string, error) {
	stdout, code, err := s.runner.Run(ctx, s.binary, "--scan", "--json")
	if err != nil {
		return nil, err
	}
	if code != 0 {
		return nil, fmt.Errorf("%s --scan exited with status %d", s.binary, code)
	}

	var out struct {
		Devices []struct {
			Name string `json:"name"`
		} `json:"devices"`
	}
	if err := json.Unmarshal(stdout, &out); err != nil {
		return nil, fmt.Errorf("decoding scan output: %w", err)
	}

	paths := make([]string, 0, len(out.Devices))
	for _, dev := range out.Devices {
		if dev.Name != "" {
			paths = append(paths, dev.Name)
		}
	}
	return paths, nil
}

// Query reads one device's SMART data. Returns ErrDeviceStandby when the
// device is in a low-power state.
func (s *SmartCtl) Query(ctx context.Context, device string) (SMARTReport, error) {
	stdout, code, err := s.runner.Run(ctx, s.binary, "-a", "--json", "--nocheck", "standby", device)
	if err != nil {
		return SMARTReport{}, err
	}
	if code == smartctlStandbyExit {
		return SMARTReport{}, fmt.Errorf("%s: %w", device, ErrDeviceStandby)
	}
	if code != 0 {
		return SMARTReport{}, fmt.Errorf("%s -a %s exited with status %d", s.binary, device, code)
	}

	var out smartctlOutput
	if err := json.Unmarshal(stdout, &out); err != nil {
		return SMARTReport{}, fmt.Errorf("decoding smart output for %s: %w", device, err)
	}

	report := SMARTReport{
		Device: device,
		Model:  out.ModelName,
		Serial: out.SerialNumber,
	}
	if report.Model == "" {
		report.Model = "Unknown"
	}
	if report.Serial == "" {
		report.Serial = "Unknown"
	}

	if out.Device.Type == "nvme" {
		report.NVMe = parseNVMeHealth(out.NVMeLog)
	} else {
		report.SATA = parseSATAAttributes(out.ATA)
	}
	return report, nil
}

type smartctlOutput struct {
	ModelName    string `json:"model_name"`
	SerialNumber string `json:"serial_number"`
	Device       struct {
		Type string `json:"type"`
	} `json:"device"`
	NVMeLog *nvmeHealthLog      `json:"nvme_smart_health_information_log"`
	ATA     *ataSmartAttributes `json:"ata_smart_attributes"`
}

type nvmeHealthLog struct {
	Temperature      *float64 `json:"temperature"`
	AvailableSpare   *float64 `json:"available_spare"`
	PercentageUsed   *float64 `json:"percentage_used"`
	DataUnitsRead    *uint64  `json:"data_units_read"`
	DataUnitsWritten *uint64  `json:"data_units_written"`
	HostReads        *uint64  `json:"host_reads"`
	HostWrites       *uint64  `json:"host_writes"`
	PowerOnHours     *uint64  `json:"power_on_hours"`
	UnsafeShutdowns  *uint64  `json:"unsafe_shutdowns"`
	MediaErrors      *uint64  `json:"media_errors"`
}

type ataSmartAttributes struct {
	Table []ataAttribute `json:"table"`
}

type ataAttribute struct {
	ID  uint64 `json:"id"`
	Raw struct {
		Value uint64 `json:"value"`
	} `json:"raw"`
}

func parseNVMeHealth(log *nvmeHealthLog) *NVMeHealth {
	health := &NVMeHealth{}
	if log == nil {
		return health
	}

	health.Temperature = log.Temperature
	health.AvailableSpare = scaleRatio(log.AvailableSpare)
	health.PercentUsed = scaleRatio(log.PercentageUsed)
	health.DataUnitsRead = log.DataUnitsRead
	health.DataUnitsWritten = log.DataUnitsWritten
	health.HostReads = log.HostReads
	health.HostWrites = log.HostWrites
	health.PowerOnHours = log.PowerOnHours
	health.UnsafeShutdowns = log.UnsafeShutdowns
	health.MediaErrors = log.MediaErrors
	return health
}

func parseSATAAttributes(attrs *ataSmartAttributes) *SATAHealth {
	health := &SATAHealth{}
	if attrs == nil {
		return health
	}

	for _, attr := range attrs.Table {
		raw := attr.Raw.Value

		switch attr.ID {
		case 194, 190:
			// 194 Temperature_Celsius / 190 Airflow_Temperature. The low
			// byte is the current reading; Seagate and WD pack min into
			// byte 2 and max into byte 4.
			temp := float64(raw & 0xFF)
			health.Temperature = &temp
			if raw > 0xFFFF {
				minT := float64((raw >> 16) & 0xFF)
				maxT := float64((raw >> 32) & 0xFF)
				health.TemperatureMin = &minT
				health.TemperatureMax = &maxT
			}
		case 4:
			health.StartStopCount = uintPtr(raw)
		case 5:
			health.ReallocatedSectors = uintPtr(raw)
		case 9:
			health.PowerOnHours = uintPtr(raw)
		case 12:
			health.PowerCycleCount = uintPtr(raw)
		case 193:
			health.LoadCycleCount = uintPtr(raw)
		case 197:
			health.PendingSectors = uintPtr(raw)
		case 198:
			health.UncorrectableErrors = uintPtr(raw)
		case 199:
			health.CRCErrors = uintPtr(raw)
		case 231, 233, 202:
			// SSD wear: 231 SSD Life Left, 233 Media Wearout Indicator,
			// 202 Percentage Lifetime Used.
			wear := float64(raw)
			health.WearLevel = &wear
		}
	}
	return health
}

func scaleRatio(percent *float64) *float64 {
	if percent == nil {
		return nil
	}
	ratio := *percent / 100.0
	return &ratio
}

func uintPtr(v uint64) *uint64 {
	return &v
}
