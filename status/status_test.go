package status

import (
	"sync"
	"testing"
)

// TestCounterStablePointer verifies repeated lookups share one counter
func TestCounterStablePointer(t *testing.T) {
	r := NewRegistry()
	a := r.Counter(RaysAsync)
	b := r.Counter(RaysAsync)
	if a != b {
		t.Fatal("Counter returned different pointers for one key")
	}
	a.Add(3)
	if b.Load() != 3 {
		t.Errorf("shared counter = %d, want 3", b.Load())
	}
}

// TestNamesSorted verifies registration order does not leak into Names
func TestNamesSorted(t *testing.T) {
	r := NewRegistry()
	for _, k := range []string{"c", "a", "b", "a"} {
		r.Counter(k)
	}

	names := r.Names()
	want := []string{"a", "b", "c"}
	if len(names) != len(want) {
		t.Fatalf("got %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("names[%d] = %s, want %s", i, names[i], want[i])
		}
	}
}

// TestFloat64ConcurrentAdd verifies the CAS loop loses no updates
func TestFloat64ConcurrentAdd(t *testing.T) {
	var f Float64
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				f.Add(1)
			}
		}()
	}
	wg.Wait()

	if got := f.Load(); got != 8000 {
		t.Errorf("sum = %f, want 8000", got)
	}
	if prev := f.Swap(2); prev != 8000 || f.Load() != 2 {
		t.Errorf("swap returned %f, value %f", prev, f.Load())
	}
	if f.CompareAndSwap(3, 4) || !f.CompareAndSwap(2, 4) || f.Load() != 4 {
		t.Error("CompareAndSwap mismatch")
	}
}

// TestSnapshotSkipsGauges verifies only counters are copied
func TestSnapshotSkipsGauges(t *testing.T) {
	r := NewRegistry()
	r.Counter(RaysAsync).Add(5)
	r.Counter(BatchesIssued).Add(1)
	r.Gauge("load").Store(0.5)

	snap := r.Snapshot()
	if len(snap) != 2 || snap[RaysAsync] != 5 || snap[BatchesIssued] != 1 {
		t.Errorf("unexpected snapshot %v", snap)
	}
	if r.Len() != 3 {
		t.Errorf("len = %d, want 3", r.Len())
	}
	if r.Gauge("load").Load() != 0.5 {
		t.Error("gauge lost its value")
	}
}
