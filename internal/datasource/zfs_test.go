package datasource

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func arcStatsBody(hits, misses, size uint64) string {
	return fmt.Sprintf(`250 1 0x01 1 1
name type value
hits 4 %d
misses 4 %d
size 4 %d
c 4 2000
c_max 4 4000
`, hits, misses, size)
}

func objsetBody(name string, reads, writes uint64) string {
	return fmt.Sprintf(`250 1 0x01 1 1
name type value
dataset_name string %s
reads u64 %d
writes u64 %d
nread u64 %d
nwritten u64 %d
`, name, reads, writes, reads*1024, writes*1024)
}

func writeKstat(t *testing.T, root string, parts ...string) {
	t.Helper()
	path := filepath.Join(append([]string{root}, parts[:len(parts)-1]...)...)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("creating kstat dir: %v", err)
	}
	if err := os.WriteFile(path, []byte(parts[len(parts)-1]), 0o644); err != nil {
		t.Fatalf("writing kstat file: %v", err)
	}
}

func TestZFSARC(t *testing.T) {
	root := t.TempDir()
	writeKstat(t, root, "arcstats", arcStatsBody(500, 100, 1024))

	stats, err := NewZFS(root, OSReader{}).ARC(context.Background())
	if err != nil {
		t.Fatalf("ARC() error = %v", err)
	}

	want := ARCStats{Hits: 500, Misses: 100, Size: 1024, TargetSize: 2000, MaxSize: 4000}
	if stats != want {
		t.Errorf("ARC() = %+v, want %+v", stats, want)
	}
}

func TestZFSARCMalformedValues(t *testing.T) {
	root := t.TempDir()
	writeKstat(t, root, "arcstats", "header\nheader\nhits 4 NOT_A_NUMBER\nmisses 4 50\n")

	stats, err := NewZFS(root, OSReader{}).ARC(context.Background())
	if err != nil {
		t.Fatalf("ARC() error = %v", err)
	}
	if stats.Hits != 0 {
		t.Errorf("Hits = %d, want 0", stats.Hits)
	}
	if stats.Misses != 50 {
		t.Errorf("Misses = %d, want 50", stats.Misses)
	}
}

func TestZFSARCMissingFile(t *testing.T) {
	if _, err := NewZFS(t.TempDir(), OSReader{}).ARC(context.Background()); err == nil {
		t.Error("ARC() expected error when arcstats is missing")
	}
}

func TestZFSDatasets(t *testing.T) {
	root := t.TempDir()
	writeKstat(t, root, "arcstats", arcStatsBody(1, 1, 1))
	writeKstat(t, root, "tank", "objset-0x1", objsetBody("tank/home", 100, 50))
	writeKstat(t, root, "tank", "objset-0x2", objsetBody("tank/home@snap1", 10, 10))
	writeKstat(t, root, "tank", "objset-0x3", "header\nheader\nreads u64 100\n")
	writeKstat(t, root, "tank", "state", "ONLINE\n")
	writeKstat(t, root, "backup", "objset-0x1", objsetBody("backup", 5, 5))

	datasets, err := NewZFS(root, OSReader{}).Datasets(context.Background())
	if err != nil {
		t.Fatalf("Datasets() error = %v", err)
	}

	// Pool directories come back in lexical order; snapshots and nameless
	// objsets are dropped.
	want := []DatasetIOStats{
		{Pool: "backup", Dataset: "backup", Reads: 5, Writes: 5, BytesRead: 5120, BytesWritten: 5120},
		{Pool: "tank", Dataset: "tank/home", Reads: 100, Writes: 50, BytesRead: 102400, BytesWritten: 51200},
	}
	if !reflect.DeepEqual(datasets, want) {
		t.Errorf("Datasets() = %+v, want %+v", datasets, want)
	}
}

func TestParseObjsetIgnoresExtraRows(t *testing.T) {
	content := objsetBody("tank/test", 5, 5) + "random_stat u64 12345\nanother_one string hello\n"

	ds, ok := parseObjset("tank", content)
	if !ok {
		t.Fatal("parseObjset() ok = false, want true")
	}
	if ds.Dataset != "tank/test" || ds.Reads != 5 {
		t.Errorf("parseObjset() = %+v, want tank/test with 5 reads", ds)
	}
}

func TestZFSAvailable(t *testing.T) {
	root := t.TempDir()
	if !NewZFS(root, OSReader{}).Available() {
		t.Error("Available() = false for existing directory")
	}
	if NewZFS(filepath.Join(root, "missing"), OSReader{}).Available() {
		t.Error("Available() = true for missing directory")
	}
}
