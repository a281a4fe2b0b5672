// Per-interface traffic counters from /proc/net/dev. The file opens with two
// header lines, then one "iface: <16 columns>" line per interface.
package datasource

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

const netDevPath = "/proc/net/dev"

// InterfaceStats is one interface's cumulative traffic counters.
type InterfaceStats struct {
	Name            string
	BytesReceived   uint64
	PacketsReceived uint64
	BytesSent       uint64
	PacketsSent     uint64
}

// NetDev reads interface counters from /proc/net/dev.
type NetDev struct {
	reader Reader
}

// NewNetDev creates a /proc/net/dev source on the given reader.
func NewNetDev(reader Reader) *NetDev {
	return &NetDev{reader: reader}
}

// Read parses the current counters for every interface, in file order.
// Lines that don't split on ':' are skipped.
func (s *NetDev) Read(ctx context.Context) ([]InterfaceStats, error) {
	content, err := s.reader.ReadFile(ctx, netDevPath)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", netDevPath, err)
	}
	return parseNetDev(content), nil
}

func parseNetDev(content string) []InterfaceStats {
	lines := strings.Split(content, "\n")
	if len(lines) <= 2 {
		return nil
	}

	var interfaces []InterfaceStats
	for _, line := range lines[2:] {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		name, rest, found := strings.Cut(line, ":")
		if !found {
			continue
		}

		// Receive: bytes packets errs drop fifo frame compressed multicast,
		// then the same eight columns for transmit.
		fields := strings.Fields(rest)
		column := func(i int) uint64 {
			if i >= len(fields) {
				return 0
			}
			v, err := strconv.ParseUint(fields[i], 10, 64)
			if err != nil {
				return 0
			}
			return v
		}

		interfaces = append(interfaces, InterfaceStats{
			Name:            strings.TrimSpace(name),
			BytesReceived:   column(0),
			PacketsReceived: column(1),
			BytesSent:       column(8),
			PacketsSent:     column(9),
		})
	}

	return interfaces
}
