// Package jobs tracks asynchronous batch runs started over HTTP. Jobs live in
// memory for the life of the process.
package jobs

import (
	"errors"
	"sync"
	"time"

	"github.com/fpang/fedpath/internal/batch"
	"github.com/rs/zerolog/log"
)

// Job statuses.
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusComplete   = "complete"
	StatusError      = "error"
)

// ErrNotFound is returned for unknown job IDs.
var ErrNotFound = errors.New("job not found")

// BatchJob is one batch run. Mutate it only through its methods.
type BatchJob struct {
	mu       sync.Mutex
	id       string
	filename string
	status   string
	progress int
	results  []batch.Result
	errMsg   string
	created  time.Time
}

// View is a point-in-time copy of a BatchJob for rendering.
type View struct {
	ID       string         `json:"id"`
	Filename string         `json:"filename"`
	Status   string         `json:"status"`
	Progress int            `json:"progress"`
	Results  []batch.Result `json:"results"`
	Summary  *batch.Summary `json:"summary,omitempty"`
	Error    string         `json:"error,omitempty"`
}

// ID returns the job ID.
func (j *BatchJob) ID() string {
	return j.id
}

// Start marks the job as processing.
func (j *BatchJob) Start() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.status = StatusProcessing
}

// SetProgress records the completed percentage. Progress never decreases.
func (j *BatchJob) SetProgress(pct int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if pct > j.progress {
		j.progress = pct
	}
}

// Complete stores the ledger and marks the job complete.
func (j *BatchJob) Complete(results []batch.Result) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.results = results
	j.progress = 100
	j.status = StatusComplete
	log.Info().Str("job", j.id).Int("results", len(results)).Dur("elapsed", time.Since(j.created)).Msg("Batch job complete")
}

// Fail marks the job as errored with err's message.
func (j *BatchJob) Fail(err error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.status = StatusError
	j.errMsg = err.Error()
	log.Error().Str("job", j.id).Str("error", j.errMsg).Msg("Batch job failed")
}

// Results returns the ledger and whether the job has completed.
func (j *BatchJob) Results() ([]batch.Result, bool) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.results, j.status == StatusComplete
}

// View returns a copy of the job state. The summary is included once complete.
func (j *BatchJob) View() View {
	j.mu.Lock()
	defer j.mu.Unlock()
	v := View{
		ID:       j.id,
		Filename: j.filename,
		Status:   j.status,
		Progress: j.progress,
		Results:  append([]batch.Result(nil), j.results...),
		Error:    j.errMsg,
	}
	if j.status == StatusComplete {
		sum := batch.Summarize(j.results)
		v.Summary = &sum
	}
	return v
}

// Store holds batch jobs by ID. It is safe for concurrent use.
type Store struct {
	mu   sync.Mutex
	jobs map[string]*BatchJob
}

// NewStore returns an empty Store.
func NewStore() *Store {
	return &Store{jobs: make(map[string]*BatchJob)}
}

// New registers a pending job for filename.
func (s *Store) New(filename string) *BatchJob {
	s.mu.Lock()
	defer s.mu.Unlock()
	j := &BatchJob{
		id:       GenerateID(BatchIDPrefix),
		filename: filename,
		status:   StatusPending,
		created:  time.Now(),
	}
	s.jobs[j.id] = j
	return j
}

// Get returns the job with id, accepting IDs without the batch prefix.
func (s *Store) Get(id string) (*BatchJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[NormalizeID(id, BatchIDPrefix)]
	if !ok {
		return nil, ErrNotFound
	}
	return j, nil
}
