// Package datasource extracts raw counters from the places the kernel and
// external tools expose them: pseudo-files under /proc and /sys, subprocess
// output, and the container runtime API. Every source takes its external
// collaborator (file reader, process runner, runtime client) by interface so
// tests can script exact inputs.
package datasource

import (
	"context"
	"os"
)

// Reader reads a whole pseudo-file into memory. /proc and /sys files are
// small and must be consumed in a single read to get a consistent view.
type Reader interface {
	ReadFile(ctx context.Context, path string) (string, error)
}

// OSReader is the production Reader backed by the local filesystem.
type OSReader struct{}

// ReadFile reads the file at path. Not-found errors pass through unwrapped so
// callers can probe for optional files with errors.Is(err, fs.ErrNotExist).
func (OSReader) ReadFile(_ context.Context, path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
