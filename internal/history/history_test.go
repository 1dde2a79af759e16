package history

import (
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestAddNewestFirst(t *testing.T) {
	l := NewLedger()
	clock := time.UnixMilli(1_700_000_000_000)
	l.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}

	first := l.Add(TypePredict, "a.png", "r1")
	second := l.Add(TypeBatchInfer, "slides.zip", "r2")

	recs := l.List()
	if len(recs) != 2 {
		t.Fatalf("got %d records, want 2", len(recs))
	}
	if recs[0].ID != second.ID || recs[1].ID != first.ID {
		t.Error("records are not newest-first")
	}
	if recs[0].Timestamp != 1_700_000_002_000 {
		t.Errorf("timestamp = %d, want epoch ms", recs[0].Timestamp)
	}
	if _, err := uuid.Parse(first.ID); err != nil {
		t.Errorf("ID %q is not a UUID: %v", first.ID, err)
	}
	if first.ID == second.ID {
		t.Error("IDs must be unique")
	}
}

func TestListReturnsCopy(t *testing.T) {
	l := NewLedger()
	l.Add(TypeGradCAM, "a.png", nil)

	recs := l.List()
	recs[0].Filename = "mutated"
	if l.List()[0].Filename != "a.png" {
		t.Error("List exposed internal storage")
	}
}

func TestClear(t *testing.T) {
	l := NewLedger()
	l.Add(TypePredict, "a.png", nil)
	l.Add(TypeFullInference, "b.png", nil)
	l.Clear()
	if l.Len() != 0 || len(l.List()) != 0 {
		t.Error("Clear left records behind")
	}
}

func TestConcurrentAdd(t *testing.T) {
	l := NewLedger()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l.Add(TypePredict, "x.png", nil)
		}()
	}
	wg.Wait()
	if l.Len() != 50 {
		t.Errorf("Len = %d, want 50", l.Len())
	}
}
