// Package history keeps an in-memory, newest-first log of completed runs.
// Records are never edited or removed individually; the log is only cleared
// as a whole.
package history

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Type identifies which pipeline produced a record.
type Type string

const (
	TypePredict       Type = "predict"
	TypeGradCAM       Type = "gradcam"
	TypeFullInference Type = "full_inference"
	TypeBatchInfer    Type = "batch_infer"
)

// Record is one completed run. Result holds the pipeline's output value:
// a prediction set, a Grad-CAM result, a full inference result, or a batch
// ledger.
type Record struct {
	ID        string `json:"id"`
	Timestamp int64  `json:"timestamp"`
	Type      Type   `json:"type"`
	Filename  string `json:"filename"`
	Result    any    `json:"result"`
}

// Ledger is safe for concurrent use.
type Ledger struct {
	mu      sync.Mutex
	records []Record
	now     func() time.Time
}

// NewLedger returns an empty Ledger.
func NewLedger() *Ledger {
	return &Ledger{now: time.Now}
}

// Add prepends a record and returns it.
func (l *Ledger) Add(typ Type, filename string, result any) Record {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now
	if l.now != nil {
		now = l.now
	}
	rec := Record{
		ID:        uuid.NewString(),
		Timestamp: now().UnixMilli(),
		Type:      typ,
		Filename:  filename,
		Result:    result,
	}
	l.records = append([]Record{rec}, l.records...)

	log.Debug().
		Str("id", rec.ID).
		Str("type", string(typ)).
		Str("file", filename).
		Int("records", len(l.records)).
		Msg("History record added")
	return rec
}

// List returns a copy of all records, newest first.
func (l *Ledger) List() []Record {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Record, len(l.records))
	copy(out, l.records)
	return out
}

// Len returns the number of records.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.records)
}

// Clear removes every record.
func (l *Ledger) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := len(l.records)
	l.records = nil
	log.Info().Int("removed", n).Msg("History cleared")
}
