// ZFS kstat readers: the global ARC counters and per-dataset I/O from the
// objset files under each pool's kstat directory. Both files share the kstat
// layout — two header lines, then "name type value" rows.
package datasource

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// DefaultZFSKstatDir is where ZFS on Linux exposes its kstats.
const DefaultZFSKstatDir = "/proc/spl/kstat/zfs"

const arcStatsFile = "arcstats"

// ARCStats is one reading of the global ARC counters.
type ARCStats struct {
	Hits       uint64
	Misses     uint64
	Size       uint64
	TargetSize uint64
	MaxSize    uint64
}

// DatasetIOStats is one dataset's cumulative I/O counters.
type DatasetIOStats struct {
	Pool         string
	Dataset      string
	Reads        uint64
	Writes       uint64
	BytesRead    uint64
	BytesWritten uint64
}

// ZFS reads ARC and dataset kstats. The kstat root is a parameter so tests
// can point it at a fixture tree.
type ZFS struct {
	root   string
	reader Reader
}

// NewZFS creates a ZFS kstat source rooted at dir (normally
// DefaultZFSKstatDir) on the given reader.
func NewZFS(dir string, reader Reader) *ZFS {
	return &ZFS{root: dir, reader: reader}
}

// Available reports whether the kstat root exists, i.e. whether the ZFS
// module is loaded at all.
func (s *ZFS) Available() bool {
	info, err := os.Stat(s.root)
	return err == nil && info.IsDir()
}

// ARC parses the current ARC counters.
func (s *ZFS) ARC(ctx context.Context) (ARCStats, error) {
	path := filepath.Join(s.root, arcStatsFile)
	content, err := s.reader.ReadFile(ctx, path)
	if err != nil {
		return ARCStats{}, fmt.Errorf("reading %s: %w", path, err)
	}

	var stats ARCStats
	for name, value := range kstatRows(content) {
		switch name {
		case "hits":
			stats.Hits = value
		case "misses":
			stats.Misses = value
		case "size":
			stats.Size = value
		case "c":
			stats.TargetSize = value
		case "c_max":
			stats.MaxSize = value
		}
	}
	return stats, nil
}

// Datasets walks every pool directory and parses its objset-* files.
// Snapshot datasets (name contains '@') and objsets without a name are
// skipped.
func (s *ZFS) Datasets(ctx context.Context) ([]DatasetIOStats, error) {
	pools, err := os.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", s.root, err)
	}

	var datasets []DatasetIOStats
	for _, pool := range pools {
		if !pool.IsDir() {
			continue
		}

		poolDir := filepath.Join(s.root, pool.Name())
		entries, err := os.ReadDir(poolDir)
		if err != nil {
			return nil, fmt.Errorf("listing %s: %w", poolDir, err)
		}

		for _, entry := range entries {
			if !strings.HasPrefix(entry.Name(), "objset-") {
				continue
			}

			content, err := s.reader.ReadFile(ctx, filepath.Join(poolDir, entry.Name()))
			if err != nil {
				return nil, fmt.Errorf("reading %s: %w", entry.Name(), err)
			}

			if ds, ok := parseObjset(pool.Name(), content); ok {
				datasets = append(datasets, ds)
			}
		}
	}

	return datasets, nil
}

func parseObjset(pool, content string) (DatasetIOStats, bool) {
	ds := DatasetIOStats{Pool: pool}

	// dataset_name is a string row, so it can't go through kstatRows.
	for _, line := range kstatLines(content) {
		fields := strings.Fields(line)
		if len(fields) < 3 {
			continue
		}
		name, value := fields[0], fields[2]

		switch name {
		case "dataset_name":
			ds.Dataset = value
		case "reads":
			ds.Reads = parseKstatUint(value)
		case "writes":
			ds.Writes = parseKstatUint(value)
		case "nread":
			ds.BytesRead = parseKstatUint(value)
		case "nwritten":
			ds.BytesWritten = parseKstatUint(value)
		}
	}

	if ds.Dataset == "" || strings.Contains(ds.Dataset, "@") {
		return DatasetIOStats{}, false
	}
	return ds, true
}

// kstatLines returns the data rows of a kstat file, skipping the two header
// lines.
func kstatLines(content string) []string {
	lines := strings.Split(content, "\n")
	if len(lines) <= 2 {
		return nil
	}
	return lines[2:]
}

// kstatRows parses "name type value" rows with numeric values into a map.
func kstatRows(content string) map[string]uint64 {
	rows := make(map[string]uint64)
	for _, line := range kstatLines(content) {
		fields := strings.Fields(line)
		if len(fields) < 3 {
			continue
		}
		value, err := strconv.ParseUint(fields[2], 10, 64)
		if err != nil {
			continue
		}
		rows[fields[0]] = value
	}
	return rows
}

func parseKstatUint(s string) uint64 {
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0
	}
	return v
}
