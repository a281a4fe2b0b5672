package collector

import (
	"testing"
	"time"
)

func TestStoreLoadEmpty(t *testing.T) {
	var s Store[string]

	if v, ok := s.Load(); ok {
		t.Errorf("Load() on empty store = %q, %v, want ok=false", v, ok)
	}
}

func TestStoreReplaceKeepsNewest(t *testing.T) {
	var s Store[string]
	base := time.Unix(1000, 0)

	s.Replace(base, "first")
	s.Replace(base.Add(time.Second), "second")

	if v, ok := s.Load(); !ok || v != "second" {
		t.Fatalf("Load() = %q, %v, want %q", v, ok, "second")
	}

	// A slow cycle finishing after a faster, later one must not win.
	s.Replace(base.Add(500*time.Millisecond), "stale")

	if v, _ := s.Load(); v != "second" {
		t.Errorf("Load() after stale Replace = %q, want %q", v, "second")
	}
}

func TestStoreReplaceEqualTimestamp(t *testing.T) {
	var s Store[int]
	at := time.Unix(1000, 0)

	s.Replace(at, 1)
	s.Replace(at, 2)

	if v, _ := s.Load(); v != 2 {
		t.Errorf("Load() = %d, want 2", v)
	}
}
