package collector

import (
	"context"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/ironhearth/anvil/internal/config"
	"github.com/ironhearth/anvil/internal/datasource"
)

const meminfoFixture = `MemTotal:       1000 kB
MemFree:         200 kB
MemAvailable:    600 kB
Buffers:          50 kB
Cached:          250 kB
SwapCached:        0 kB
SReclaimable:     50 kB
SwapTotal:       512 kB
SwapFree:        256 kB
`

func TestMemoryProbeCollect(t *testing.T) {
	reader := newScriptedReader()
	reader.add("/proc/meminfo", meminfoFixture)

	probe := NewMemoryProbe(config.MemoryConfig{Enabled: true}, datasource.NewMemInfo(reader))

	if err := probe.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}

	expected := `
# HELP system_memory_total_bytes Total physical RAM installed on the system
# TYPE system_memory_total_bytes gauge
system_memory_total_bytes 1024000
# HELP system_memory_used_bytes Amount of memory currently used by programs (Non-reclaimable)
# TYPE system_memory_used_bytes gauge
system_memory_used_bytes 460800
# HELP system_memory_free_bytes Amount of memory that is completely unused (does not include cache/buffers)
# TYPE system_memory_free_bytes gauge
system_memory_free_bytes 204800
# HELP system_memory_available_bytes Estimate of how much memory is available for starting new applications without swapping
# TYPE system_memory_available_bytes gauge
system_memory_available_bytes 614400
# HELP system_memory_buffers_bytes Memory used by kernel buffers (metadata/raw block storage)
# TYPE system_memory_buffers_bytes gauge
system_memory_buffers_bytes 51200
# HELP system_memory_cache_bytes Memory used by the page cache and reclaimable slab objects
# TYPE system_memory_cache_bytes gauge
system_memory_cache_bytes 307200
`
	if err := testutil.CollectAndCompare(probe, strings.NewReader(expected)); err != nil {
		t.Error(err)
	}
}

func TestMemoryProbeSwapGate(t *testing.T) {
	reader := newScriptedReader()
	reader.add("/proc/meminfo", meminfoFixture, meminfoFixture)

	// Swap off: no swap series at all.
	off := NewMemoryProbe(config.MemoryConfig{Enabled: true}, datasource.NewMemInfo(reader))
	if err := off.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if got := testutil.CollectAndCount(off, "system_swap_total_bytes", "system_swap_free_bytes", "system_swap_used_bytes"); got != 0 {
		t.Errorf("swap samples with report_swap off = %d, want 0", got)
	}

	on := NewMemoryProbe(config.MemoryConfig{Enabled: true, ReportSwap: true}, datasource.NewMemInfo(reader))
	if err := on.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}

	expected := `
# HELP system_swap_total_bytes Total amount of swap space available
# TYPE system_swap_total_bytes gauge
system_swap_total_bytes 524288
# HELP system_swap_free_bytes Amount of swap space currently unused
# TYPE system_swap_free_bytes gauge
system_swap_free_bytes 262144
# HELP system_swap_used_bytes Amount of swap space currently in use
# TYPE system_swap_used_bytes gauge
system_swap_used_bytes 262144
`
	err := testutil.CollectAndCompare(on, strings.NewReader(expected),
		"system_swap_total_bytes", "system_swap_free_bytes", "system_swap_used_bytes")
	if err != nil {
		t.Error(err)
	}
}
