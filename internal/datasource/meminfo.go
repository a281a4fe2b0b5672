// Memory counters from /proc/meminfo. Values carry a unit suffix (usually
// kB); lines that don't match the key:value-unit shape are skipped, never
// fatal.
package datasource

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

const meminfoPath = "/proc/meminfo"

// RAMStats is physical memory usage in bytes. Used excludes buffers and
// cache; Cache folds SReclaimable into Cached the way free(1) does.
type RAMStats struct {
	Total     uint64
	Used      uint64
	Free      uint64
	Available uint64
	Buffers   uint64
	Cache     uint64
}

// SwapStats is swap usage in bytes.
type SwapStats struct {
	Total uint64
	Used  uint64
	Free  uint64
}

// MemoryInfo is one /proc/meminfo reading.
type MemoryInfo struct {
	RAM  RAMStats
	Swap SwapStats
}

// MemInfo reads memory counters from /proc/meminfo.
type MemInfo struct {
	reader Reader
}

// NewMemInfo creates a /proc/meminfo source on the given reader.
func NewMemInfo(reader Reader) *MemInfo {
	return &MemInfo{reader: reader}
}

// Read parses the current memory counters. Keys the kernel doesn't report
// stay zero.
func (s *MemInfo) Read(ctx context.Context) (MemoryInfo, error) {
	content, err := s.reader.ReadFile(ctx, meminfoPath)
	if err != nil {
		return MemoryInfo{}, fmt.Errorf("reading %s: %w", meminfoPath, err)
	}
	return parseMemInfo(content), nil
}

func parseMemInfo(content string) MemoryInfo {
	var (
		total, free, available, buffers, cached, sreclaimable uint64
		swapTotal, swapFree                                   uint64
	)

	for _, line := range strings.Split(content, "\n") {
		key, value, ok := parseMemInfoLine(line)
		if !ok {
			continue
		}

		switch key {
		case "MemTotal":
			total = value
		case "MemFree":
			free = value
		case "MemAvailable":
			available = value
		case "Buffers":
			buffers = value
		case "Cached":
			cached = value
		case "SReclaimable":
			sreclaimable = value
		case "SwapTotal":
			swapTotal = value
		case "SwapFree":
			swapFree = value
		}
	}

	cache := cached + sreclaimable
	used := saturatingSub(saturatingSub(saturatingSub(total, free), buffers), cache)

	return MemoryInfo{
		RAM: RAMStats{
			Total:     total,
			Used:      used,
			Free:      free,
			Available: available,
			Buffers:   buffers,
			Cache:     cache,
		},
		Swap: SwapStats{
			Total: swapTotal,
			Used:  saturatingSub(swapTotal, swapFree),
			Free:  swapFree,
		},
	}
}

// parseMemInfoLine splits "MemTotal:       61489320 kB" into the key and the
// value converted to bytes. Unknown units reject the line.
func parseMemInfoLine(line string) (string, uint64, bool) {
	key, rest, found := strings.Cut(line, ":")
	if !found {
		return "", 0, false
	}

	fields := strings.Fields(rest)
	if len(fields) == 0 {
		return "", 0, false
	}

	value, err := strconv.ParseUint(fields[0], 10, 64)
	if err != nil {
		value = 0
	}

	if len(fields) > 1 {
		switch fields[1] {
		case "kB":
			value *= 1024
		case "mB":
			value *= 1024 * 1024
		default:
			return "", 0, false
		}
	}

	return key, value, true
}

func saturatingSub(a, b uint64) uint64 {
	if a < b {
		return 0
	}
	return a - b
}
