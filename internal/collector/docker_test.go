package collector

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"

	"github.com/ironhearth/anvil/internal/config"
	"github.com/ironhearth/anvil/internal/datasource"
)

type fakeContainerClient struct {
	containers []datasource.ContainerInfo
	stats      map[string]datasource.ContainerUsage
	statsErr   map[string]error
	listErr    error
}

func (f *fakeContainerClient) List(context.Context) ([]datasource.ContainerInfo, error) {
	return f.containers, f.listErr
}

func (f *fakeContainerClient) Stats(_ context.Context, id string) (datasource.ContainerUsage, error) {
	if err := f.statsErr[id]; err != nil {
		return datasource.ContainerUsage{}, err
	}
	return f.stats[id], nil
}

func (f *fakeContainerClient) Close() error { return nil }

func uptr(v uint64) *uint64 { return &v }

func TestDockerCPUUsageRatio(t *testing.T) {
	tests := []struct {
		name       string
		prev       map[string]cpuCounters
		curr       cpuCounters
		onlineCPUs uint32
		want       float64
		wantAbsent bool
	}{
		{
			name:       "usage from deltas",
			prev:       map[string]cpuCounters{"web": {total: 100, system: 1000}},
			curr:       cpuCounters{total: 300, system: 2000},
			onlineCPUs: 2,
			want:       0.4,
		},
		{
			name:       "no previous cycle",
			prev:       map[string]cpuCounters{},
			curr:       cpuCounters{total: 300, system: 2000},
			onlineCPUs: 2,
			wantAbsent: true,
		},
		{
			name:       "total went backwards",
			prev:       map[string]cpuCounters{"web": {total: 300, system: 1000}},
			curr:       cpuCounters{total: 100, system: 2000},
			onlineCPUs: 2,
			wantAbsent: true,
		},
		{
			name:       "system stalled",
			prev:       map[string]cpuCounters{"web": {total: 100, system: 2000}},
			curr:       cpuCounters{total: 300, system: 2000},
			onlineCPUs: 2,
			wantAbsent: true,
		},
		{
			name:       "implausible usage dropped",
			prev:       map[string]cpuCounters{"web": {total: 100, system: 1000}},
			curr:       cpuCounters{total: 5000, system: 1100},
			onlineCPUs: 1,
			wantAbsent: true,
		},
		{
			name:       "zero online cpus defaults to one",
			prev:       map[string]cpuCounters{"web": {total: 100, system: 1000}},
			curr:       cpuCounters{total: 200, system: 2000},
			onlineCPUs: 0,
			want:       0.1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			probe := &DockerProbe{prevCPU: tt.prev}
			got := probe.cpuUsageRatio("web", tt.curr, tt.onlineCPUs)
			if tt.wantAbsent {
				if got != nil {
					t.Errorf("cpuUsageRatio() = %v, want nil", *got)
				}
				return
			}
			if got == nil {
				t.Fatalf("cpuUsageRatio() = nil, want %v", tt.want)
			}
			if math.Abs(*got-tt.want) > 1e-9 {
				t.Errorf("cpuUsageRatio() = %v, want %v", *got, tt.want)
			}
		})
	}
}

func TestDockerProbeTwoCycles(t *testing.T) {
	client := &fakeContainerClient{
		containers: []datasource.ContainerInfo{{ID: "abc123", Name: "web"}},
		stats: map[string]datasource.ContainerUsage{
			"abc123": {
				CPUTotal:    100,
				SystemTotal: 1000,
				OnlineCPUs:  2,
				MemoryBytes: uptr(2048),
				RxBytes:     uptr(10),
				TxBytes:     uptr(20),
			},
		},
	}
	probe := NewDockerProbe(config.DockerConfig{Enabled: true}, client, zap.NewNop())

	// First cycle has nothing to diff against: CPU absent, the rest present.
	if err := probe.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if got := testutil.CollectAndCount(probe, "docker_cpu_usage_percent"); got != 0 {
		t.Errorf("cpu samples after first cycle = %d, want 0", got)
	}
	if got := testutil.CollectAndCount(probe, "docker_memory_usage_bytes"); got != 1 {
		t.Errorf("memory samples after first cycle = %d, want 1", got)
	}

	client.stats["abc123"] = datasource.ContainerUsage{
		CPUTotal:    300,
		SystemTotal: 2000,
		OnlineCPUs:  2,
		MemoryBytes: uptr(4096),
		RxBytes:     uptr(30),
		TxBytes:     uptr(60),
	}
	if err := probe.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}

	expected := `
# HELP docker_cpu_usage_percent CPU usage percentage
# TYPE docker_cpu_usage_percent gauge
docker_cpu_usage_percent{container="web"} 0.4
# HELP docker_memory_usage_bytes Memory usage in bytes
# TYPE docker_memory_usage_bytes gauge
docker_memory_usage_bytes{container="web"} 4096
# HELP docker_network_receive_bytes_total Total bytes received
# TYPE docker_network_receive_bytes_total counter
docker_network_receive_bytes_total{container="web"} 30
# HELP docker_network_transmit_bytes_total Total bytes transmitted
# TYPE docker_network_transmit_bytes_total counter
docker_network_transmit_bytes_total{container="web"} 60
`
	if err := testutil.CollectAndCompare(probe, strings.NewReader(expected)); err != nil {
		t.Error(err)
	}
}

func TestDockerProbeRestartSuppressesCPU(t *testing.T) {
	client := &fakeContainerClient{
		containers: []datasource.ContainerInfo{{ID: "abc123", Name: "web"}},
		stats: map[string]datasource.ContainerUsage{
			"abc123": {CPUTotal: 500, SystemTotal: 5000, OnlineCPUs: 2},
		},
	}
	probe := NewDockerProbe(config.DockerConfig{Enabled: true}, client, zap.NewNop())

	if err := probe.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}

	// Counters reset below the stored baseline: the container restarted.
	client.stats["abc123"] = datasource.ContainerUsage{
		CPUTotal: 50, SystemTotal: 6000, OnlineCPUs: 2,
	}
	if err := probe.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if got := testutil.CollectAndCount(probe, "docker_cpu_usage_percent"); got != 0 {
		t.Errorf("cpu samples after restart = %d, want 0", got)
	}

	// The baseline advanced to the reset counters, so the next cycle
	// measures normally again.
	client.stats["abc123"] = datasource.ContainerUsage{
		CPUTotal: 150, SystemTotal: 7000, OnlineCPUs: 2,
	}
	if err := probe.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if got := testutil.CollectAndCount(probe, "docker_cpu_usage_percent"); got != 1 {
		t.Errorf("cpu samples after recovery = %d, want 1", got)
	}
}

func TestDockerProbeSkipsFailingContainer(t *testing.T) {
	client := &fakeContainerClient{
		containers: []datasource.ContainerInfo{
			{ID: "good", Name: "web"},
			{ID: "bad", Name: "db"},
		},
		stats: map[string]datasource.ContainerUsage{
			"good": {MemoryBytes: uptr(1024)},
		},
		statsErr: map[string]error{
			"bad": errors.New("container exited"),
		},
	}
	probe := NewDockerProbe(config.DockerConfig{Enabled: true}, client, zap.NewNop())

	if err := probe.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}

	if got := testutil.CollectAndCount(probe, "docker_memory_usage_bytes"); got != 1 {
		t.Errorf("memory series = %d, want 1 (failing container skipped)", got)
	}
}

func TestDockerProbeListErrorFailsCycle(t *testing.T) {
	client := &fakeContainerClient{listErr: errors.New("daemon not running")}
	probe := NewDockerProbe(config.DockerConfig{Enabled: true}, client, zap.NewNop())

	if err := probe.Refresh(context.Background()); err == nil {
		t.Fatal("Refresh() with failing list returned nil error")
	}
	if got := testutil.CollectAndCount(probe); got != 0 {
		t.Errorf("samples after failed cycle = %d, want 0", got)
	}
}

// statsLockObserver reports whether the probe's counter lock is held while
// the runtime client is being called. Stats is probe I/O, so the lock must
// be free for the whole call.
type statsLockObserver struct {
	fakeContainerClient
	probe      *DockerProbe
	heldDuring bool
}

func (o *statsLockObserver) Stats(ctx context.Context, id string) (datasource.ContainerUsage, error) {
	if o.probe.mu.TryLock() {
		o.probe.mu.Unlock()
	} else {
		o.heldDuring = true
	}
	return o.fakeContainerClient.Stats(ctx, id)
}

func TestDockerRefreshLockFreeDuringStats(t *testing.T) {
	observer := &statsLockObserver{
		fakeContainerClient: fakeContainerClient{
			containers: []datasource.ContainerInfo{{ID: "abc123", Name: "web"}},
			stats: map[string]datasource.ContainerUsage{
				"abc123": {CPUTotal: 100, SystemTotal: 1000, OnlineCPUs: 2},
			},
		},
	}
	probe := NewDockerProbe(config.DockerConfig{Enabled: true}, observer, zap.NewNop())
	observer.probe = probe

	if err := probe.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if observer.heldDuring {
		t.Error("counter lock was held during a Stats call")
	}
}
