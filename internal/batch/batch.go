// Package batch classifies every slide in an uploaded archive, one at a
// time, and records a per-file ledger.
//
// Items run strictly sequentially in archive order with a fixed pause
// between remote calls. A failure on one item is recorded in the ledger and
// never aborts the batch; only archive-level errors are fatal.
package batch

import (
	"context"
	"math"
	"time"

	"github.com/fpang/fedpath/internal/archive"
	"github.com/fpang/fedpath/internal/chat"
	"github.com/fpang/fedpath/internal/consensus"
	"github.com/fpang/fedpath/internal/imaging"
	"github.com/fpang/fedpath/internal/metrics"
	"github.com/fpang/fedpath/internal/prediction"
	"github.com/fpang/fedpath/internal/settings"
	"github.com/rs/zerolog/log"
)

// DefaultPacing is the pause before every remote call except the first.
const DefaultPacing = 500 * time.Millisecond

// Status is the outcome of one batch item.
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

// Result is one ledger row. Failed items carry an empty prediction set.
type Result struct {
	Filename    string         `json:"filename"`
	Predictions prediction.Set `json:"predictions"`
	Status      Status         `json:"status"`
}

// ProgressFunc receives the completed percentage (0-100) after each item.
type ProgressFunc func(percent int)

// Pipeline runs batches against a Predictor.
type Pipeline struct {
	Predictor chat.Predictor
	Pacing    time.Duration

	// Sleep waits between items. Nil uses a context-aware timer.
	Sleep func(ctx context.Context, d time.Duration) error
}

// NewPipeline creates a Pipeline with DefaultPacing.
func NewPipeline(p chat.Predictor) *Pipeline {
	return &Pipeline{Predictor: p, Pacing: DefaultPacing}
}

// Run decodes blob, classifies each image entry in order, and returns the
// ledger. Archive decode failures and archives without images are returned
// before any item runs. A cancelled ctx stops the batch between items.
func (p *Pipeline) Run(ctx context.Context, blob []byte, s settings.Settings, progress ProgressFunc) ([]Result, error) {
	entries, err := archive.DecodeImages(blob)
	if err != nil {
		log.Error().Err(err).Int("archive_bytes", len(blob)).Msg("Batch archive rejected")
		return nil, err
	}

	s = s.Snapshot()
	sleep := p.Sleep
	if sleep == nil {
		sleep = sleepContext
	}

	total := len(entries)
	start := time.Now()
	log.Info().
		Int("images", total).
		Strs("nodes", s.ActiveNames()).
		Dur("pacing", p.Pacing).
		Msg("Starting batch")

	results := make([]Result, 0, total)
	var failed int
	for i, entry := range entries {
		if i > 0 && p.Pacing > 0 {
			if err := sleep(ctx, p.Pacing); err != nil {
				log.Warn().Err(err).Int("completed", i).Int("total", total).Msg("Batch interrupted")
				return nil, err
			}
		}

		res := p.runItem(ctx, entry, s)
		if res.Status == StatusFailed {
			failed++
		}
		metrics.ObserveBatchItem(string(res.Status))
		results = append(results, res)

		if progress != nil {
			progress(Percent(i+1, total))
		}
	}

	elapsed := time.Since(start)
	metrics.New(metrics.Namespace).
		Dimension("Operation", "batch").
		Duration("BatchDurationMs", elapsed).
		Metric("BatchItems", float64(total), metrics.UnitCount).
		Metric("BatchFailedItems", float64(failed), metrics.UnitCount).
		Flush()

	log.Info().
		Int("images", total).
		Int("failed", failed).
		Dur("duration", elapsed).
		Msg("Batch complete")

	return results, nil
}

func (p *Pipeline) runItem(ctx context.Context, entry archive.Entry, s settings.Settings) Result {
	failed := Result{Filename: entry.Name, Predictions: prediction.NewSet(), Status: StatusFailed}

	data, err := entry.Read()
	if err != nil {
		log.Warn().Err(err).Str("file", entry.Name).Msg("Failed to read archive entry")
		return failed
	}
	img, err := imaging.NewImage(entry.Name, data)
	if err != nil {
		log.Warn().Err(err).Str("file", entry.Name).Msg("Archive entry is not a usable image")
		return failed
	}

	set, err := p.Predictor.Predict(ctx, img, s)
	if err != nil {
		log.Warn().Err(err).Str("file", entry.Name).Msg("Prediction failed for batch item")
		return failed
	}

	log.Debug().Str("file", entry.Name).Int("nodes", set.Len()).Msg("Batch item classified")
	return Result{Filename: entry.Name, Predictions: set, Status: StatusSuccess}
}

// Percent returns round(100 * done / total). A zero total reports 100.
func Percent(done, total int) int {
	if total <= 0 {
		return 100
	}
	return int(math.Round(100 * float64(done) / float64(total)))
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Summary holds the dashboard counts for a ledger.
type Summary struct {
	Total    int `json:"total"`
	Positive int `json:"positive"`
	Benign   int `json:"benign"`
	Failed   int `json:"failed"`
}

// Summarize counts positives using only the first node of each entry, as a
// quick heuristic; full multi-node consensus is used in exports instead.
// Benign is Total minus Positive, so failed entries count as benign.
func Summarize(results []Result) Summary {
	sum := Summary{Total: len(results)}
	for _, r := range results {
		if r.Status == StatusFailed {
			sum.Failed++
		}
		names := r.Predictions.Names()
		if len(names) == 0 {
			continue
		}
		preds, _ := r.Predictions.Get(names[0])
		if call, ok := consensus.Reduce(preds); ok && call.IsPositive {
			sum.Positive++
		}
	}
	sum.Benign = sum.Total - sum.Positive
	return sum
}
