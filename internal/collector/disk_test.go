package collector

import (
	"context"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/ironhearth/anvil/internal/config"
	"github.com/ironhearth/anvil/internal/datasource"
)

func TestDiskIOProbeCollect(t *testing.T) {
	reader := newScriptedReader()
	reader.add("/proc/diskstats",
		" 259       0 nvme0n1 1000 0 2000 10 500 0 4000 20 0 30 40\n"+
			"   7       0 loop0 10 0 20 1 5 0 40 2 0 3 4\n"+
			" 252       0 zram0 10 0 20 1 5 0 40 2 0 3 4\n")

	probe := NewDiskIOProbe(config.DiskIOConfig{Enabled: true}, datasource.NewDiskStats(reader))

	if err := probe.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}

	// loop and zram devices are filtered; only the NVMe drive remains.
	expected := `
# HELP system_disk_read_bytes_total Total bytes read
# TYPE system_disk_read_bytes_total counter
system_disk_read_bytes_total{device="nvme0n1"} 1024000
# HELP system_disk_written_bytes_total Total bytes written
# TYPE system_disk_written_bytes_total counter
system_disk_written_bytes_total{device="nvme0n1"} 2048000
# HELP system_disk_read_ops_total Total read ops
# TYPE system_disk_read_ops_total counter
system_disk_read_ops_total{device="nvme0n1"} 1000
# HELP system_disk_write_ops_total Total write ops
# TYPE system_disk_write_ops_total counter
system_disk_write_ops_total{device="nvme0n1"} 500
`
	if err := testutil.CollectAndCompare(probe, strings.NewReader(expected)); err != nil {
		t.Error(err)
	}
}
