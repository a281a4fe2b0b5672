// Per-core CPU frequency from sysfs cpufreq. Core directories are dense, so
// the walk stops at the first missing index.
package datasource

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"strconv"
	"strings"
)

const cpuFreqPathFormat = "/sys/devices/system/cpu/cpu%d/cpufreq/scaling_cur_freq"

// maxCores bounds the sysfs walk on hosts with absurd topology reports.
const maxCores = 256

// CPUFreq reads per-core frequencies from sysfs.
type CPUFreq struct {
	reader Reader
}

// NewCPUFreq creates a sysfs cpufreq source on the given reader.
func NewCPUFreq(reader Reader) *CPUFreq {
	return &CPUFreq{reader: reader}
}

// Read returns the current frequency per core in hertz (the kernel reports
// kHz). A host without cpufreq support yields an empty slice and no error;
// any read failure other than not-found aborts.
func (s *CPUFreq) Read(ctx context.Context) ([]uint64, error) {
	var freqs []uint64

	for core := 0; core < maxCores; core++ {
		path := fmt.Sprintf(cpuFreqPathFormat, core)

		content, err := s.reader.ReadFile(ctx, path)
		if errors.Is(err, fs.ErrNotExist) {
			break // no more cores
		}
		if err != nil {
			return nil, fmt.Errorf("reading frequency for core %d: %w", core, err)
		}

		khz, err := strconv.ParseUint(strings.TrimSpace(content), 10, 64)
		if err != nil {
			khz = 0
		}
		freqs = append(freqs, khz*1000)
	}

	return freqs, nil
}
