// CPU tick counters from /proc/stat. Each cpu line carries ten cumulative
// jiffy columns; the aggregate line comes first, one line per core after it.
package datasource

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

const procStatPath = "/proc/stat"

// Indices into a CPUTicks row.
const (
	TickUser = iota
	TickNice
	TickSystem
	TickIdle
	TickIOWait
	TickIRQ
	TickSoftIRQ
	TickSteal
	TickGuest
	TickGuestNice
	tickColumns
)

// tickTotalColumns is how many leading columns make up the elapsed total.
// The kernel already accounts guest and guest_nice inside user and nice, so
// summing all ten would count guest time twice.
const tickTotalColumns = 8

// CPUTicks is one cpu line from /proc/stat:
// [user nice system idle iowait irq softirq steal guest guest_nice].
type CPUTicks [tickColumns]uint64

// TotalTicks sums the columns that advance elapsed time (user through steal).
func (t CPUTicks) TotalTicks() uint64 {
	var total uint64
	for _, v := range t[:tickTotalColumns] {
		total += v
	}
	return total
}

// Delta returns t minus prev per column, clamped at zero so counter
// wraparound or a subsystem reset never underflows.
func (t CPUTicks) Delta(prev CPUTicks) CPUTicks {
	var d CPUTicks
	for i := range t {
		if t[i] > prev[i] {
			d[i] = t[i] - prev[i]
		}
	}
	return d
}

// CPUStat is one full /proc/stat reading.
type CPUStat struct {
	Total CPUTicks   // the aggregate "cpu" line
	Cores []CPUTicks // "cpu0".."cpuN", in order
}

// ProcStat reads CPU tick counters from /proc/stat.
type ProcStat struct {
	reader Reader
}

// NewProcStat creates a /proc/stat source on the given reader.
func NewProcStat(reader Reader) *ProcStat {
	return &ProcStat{reader: reader}
}

// Read parses the current tick counters. Missing or malformed columns parse
// as zero; a file without an aggregate cpu line is an error.
func (s *ProcStat) Read(ctx context.Context) (CPUStat, error) {
	content, err := s.reader.ReadFile(ctx, procStatPath)
	if err != nil {
		return CPUStat{}, fmt.Errorf("reading %s: %w", procStatPath, err)
	}
	return parseProcStat(content)
}

func parseProcStat(content string) (CPUStat, error) {
	var stat CPUStat
	seenTotal := false

	for _, line := range strings.Split(content, "\n") {
		if !strings.HasPrefix(line, "cpu") {
			continue
		}

		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}

		var ticks CPUTicks
		for i, field := range fields[1:] {
			if i >= tickColumns {
				break
			}
			v, err := strconv.ParseUint(field, 10, 64)
			if err != nil {
				v = 0
			}
			ticks[i] = v
		}

		if fields[0] == "cpu" {
			stat.Total = ticks
			seenTotal = true
		} else {
			stat.Cores = append(stat.Cores, ticks)
		}
	}

	if !seenTotal {
		return CPUStat{}, fmt.Errorf("no aggregate cpu line in %s", procStatPath)
	}
	return stat, nil
}
