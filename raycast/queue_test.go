package raycast

import (
	"sync"
	"testing"

	"github.com/lixenwraith/soundprop/parameter"
)

// TestResultQueueFIFO verifies results come back in push order
func TestResultQueueFIFO(t *testing.T) {
	q := NewResultQueue()
	for i := 0; i < 10; i++ {
		if !q.Push(Result{Tag: Tag{Ray: i}}) {
			t.Fatalf("push %d refused", i)
		}
	}
	if q.Len() != 10 {
		t.Errorf("len = %d, want 10", q.Len())
	}

	out := q.Consume()
	if len(out) != 10 {
		t.Fatalf("consumed %d, want 10", len(out))
	}
	for i, r := range out {
		if r.Tag.Ray != i {
			t.Errorf("out[%d].Ray = %d", i, r.Tag.Ray)
		}
	}
	if q.Consume() != nil {
		t.Error("second consume should be empty")
	}
}

// TestResultQueueRefusesWhenFull verifies no result is overwritten
func TestResultQueueRefusesWhenFull(t *testing.T) {
	q := NewResultQueue()
	for i := 0; i < parameter.RayResultQueueSize; i++ {
		if !q.Push(Result{Tag: Tag{Ray: i}}) {
			t.Fatalf("push %d refused before full", i)
		}
	}
	if q.Push(Result{Tag: Tag{Ray: -1}}) {
		t.Fatal("push accepted on full queue")
	}

	out := q.Consume()
	if len(out) != parameter.RayResultQueueSize {
		t.Fatalf("consumed %d", len(out))
	}
	if out[0].Tag.Ray != 0 {
		t.Errorf("oldest result lost, first = %d", out[0].Tag.Ray)
	}

	// Space is reusable after draining
	if !q.Push(Result{}) {
		t.Error("push refused after drain")
	}
}

// TestResultQueueConcurrentProducers verifies every push is delivered once
func TestResultQueueConcurrentProducers(t *testing.T) {
	q := NewResultQueue()
	const producers = 4
	const perProducer = 200

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				for !q.Push(Result{Tag: Tag{Object: uint64(p), Ray: i}}) {
				}
			}
		}(p)
	}
	wg.Wait()

	seen := make(map[Tag]bool)
	for _, r := range q.Consume() {
		if seen[r.Tag] {
			t.Fatalf("duplicate %+v", r.Tag)
		}
		seen[r.Tag] = true
	}
	if len(seen) != producers*perProducer {
		t.Errorf("got %d results, want %d", len(seen), producers*perProducer)
	}
}
