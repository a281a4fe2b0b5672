package datasource

import (
	"context"
	"testing"
)

const memInfoFixture = `MemTotal:       61489320 kB
MemFree:        44422752 kB
MemAvailable:   54097832 kB
Buffers:            1112 kB
Cached:          9113108 kB
SwapCached:            0 kB
Active:          8537148 kB
Inactive:        7160620 kB
Unevictable:        5764 kB
Mlocked:            5764 kB
SwapTotal:       8388604 kB
SwapFree:        2097152 kB
Dirty:              2004 kB
Writeback:             0 kB
AnonPages:       6438384 kB
Mapped:          1520572 kB
Shmem:             58640 kB
KReclaimable:     266068 kB
Slab:             539688 kB
SReclaimable:     266068 kB
SUnreclaim:       273620 kB
KernelStack:       26048 kB
VmallocTotal:   34359738367 kB
HugePages_Total:       0
HugePages_Free:        0
Hugepagesize:       2048 kB
DirectMap4k:      537384 kB
`

func TestMemInfoRAM(t *testing.T) {
	reader := newFakeReader()
	reader.add(meminfoPath, memInfoFixture)

	info, err := NewMemInfo(reader).Read(context.Background())
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}

	ram := info.RAM
	if ram.Total != 62965063680 {
		t.Errorf("Total = %d, want 62965063680", ram.Total)
	}
	if ram.Free != 45488898048 {
		t.Errorf("Free = %d, want 45488898048", ram.Free)
	}
	if ram.Available != 55396179968 {
		t.Errorf("Available = %d, want 55396179968", ram.Available)
	}
	if ram.Buffers != 1138688 {
		t.Errorf("Buffers = %d, want 1138688", ram.Buffers)
	}
	// Cache folds SReclaimable into Cached.
	if ram.Cache != 9604276224 {
		t.Errorf("Cache = %d, want 9604276224", ram.Cache)
	}
	if ram.Used != 7870750720 {
		t.Errorf("Used = %d, want 7870750720", ram.Used)
	}
}

func TestMemInfoSwap(t *testing.T) {
	reader := newFakeReader()
	reader.add(meminfoPath, memInfoFixture)

	info, err := NewMemInfo(reader).Read(context.Background())
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}

	swap := info.Swap
	if swap.Total != 8589930496 {
		t.Errorf("Total = %d, want 8589930496", swap.Total)
	}
	if swap.Free != 2147483648 {
		t.Errorf("Free = %d, want 2147483648", swap.Free)
	}
	if swap.Used != 6442446848 {
		t.Errorf("Used = %d, want 6442446848", swap.Used)
	}
}

func TestMemInfoUsedNeverUnderflows(t *testing.T) {
	reader := newFakeReader()
	reader.add(meminfoPath, "MemTotal: 100 kB\nMemFree: 90 kB\nCached: 50 kB\n")

	info, err := NewMemInfo(reader).Read(context.Background())
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if info.RAM.Used != 0 {
		t.Errorf("Used = %d, want 0", info.RAM.Used)
	}
}

func TestParseMemInfoLine(t *testing.T) {
	tests := []struct {
		name      string
		line      string
		wantKey   string
		wantValue uint64
		wantOK    bool
	}{
		{"kilobytes", "MemTotal:       61489320 kB", "MemTotal", 61489320 * 1024, true},
		{"megabytes", "Weird:          4 mB", "Weird", 4 * 1024 * 1024, true},
		{"unitless", "HugePages_Total:       2", "HugePages_Total", 2, true},
		{"unknown unit", "MemTotal:       100 XB", "", 0, false},
		{"no colon", "not a meminfo line", "", 0, false},
		{"empty value", "MemTotal:", "", 0, false},
		{"garbage value", "MemTotal:       junk kB", "MemTotal", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key, value, ok := parseMemInfoLine(tt.line)
			if ok != tt.wantOK {
				t.Fatalf("parseMemInfoLine(%q) ok = %v, want %v", tt.line, ok, tt.wantOK)
			}
			if !ok {
				return
			}
			if key != tt.wantKey || value != tt.wantValue {
				t.Errorf("parseMemInfoLine(%q) = (%q, %d), want (%q, %d)",
					tt.line, key, value, tt.wantKey, tt.wantValue)
			}
		})
	}
}
