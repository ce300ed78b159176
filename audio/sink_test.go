package audio

import (
	"sync"
	"testing"
)

// TestPropagationTable verifies set, lookup and forget
func TestPropagationTable(t *testing.T) {
	tbl := NewPropagationTable()

	if _, _, ok := tbl.Lookup(1); ok {
		t.Fatal("empty table returned a value")
	}

	tbl.SetObstructionOcclusion(1, 0.25, 0.5)
	obs, occ, ok := tbl.Lookup(1)
	if !ok || obs != 0.25 || occ != 0.5 {
		t.Errorf("lookup = (%f, %f, %v), want (0.25, 0.5, true)", obs, occ, ok)
	}

	v := tbl.Values(1)
	tbl.SetObstructionOcclusion(1, 0.75, 0)
	if v.Obstruction.Load() != 0.75 {
		t.Error("Values pointer not shared with later writes")
	}

	tbl.Forget(1)
	if tbl.Len() != 0 {
		t.Errorf("len after forget = %d", tbl.Len())
	}
}

// TestPropagationTableConcurrent exercises writers and readers together
func TestPropagationTableConcurrent(t *testing.T) {
	tbl := NewPropagationTable()
	var wg sync.WaitGroup

	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(id uint64) {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				tbl.SetObstructionOcclusion(id, float64(i)/500, 0.1)
				tbl.Lookup(id)
			}
		}(uint64(w))
	}
	wg.Wait()

	if tbl.Len() != 4 {
		t.Errorf("len = %d, want 4", tbl.Len())
	}
}
