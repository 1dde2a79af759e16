// Package report renders exportable documents: a JSON report for a single
// run and a CSV table for a batch ledger.
package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/fpang/fedpath/internal/batch"
	"github.com/fpang/fedpath/internal/consensus"
	"github.com/fpang/fedpath/internal/prediction"
)

// NoConsensus is the summary used when no node contributed a prediction.
const NoConsensus = "No consensus available"

// Content types for the two export formats.
const (
	ContentTypeJSON = "application/json"
	ContentTypeCSV  = "text/csv"
)

// BatchCSVHeader is the header row of the batch export.
var BatchCSVHeader = []string{"Filename", "Status", "Consensus Label", "Confidence"}

// RunReport is the single-run export document.
type RunReport struct {
	Timestamp   string             `json:"timestamp"`
	Filename    string             `json:"filename"`
	Summary     string             `json:"summary"`
	Consensus   *consensus.Verdict `json:"consensus"`
	Predictions prediction.Set     `json:"predictions"`
}

// BuildRunReport derives the consensus for set and assembles the report.
func BuildRunReport(filename string, set prediction.Set, now time.Time) RunReport {
	verdict := consensus.Compute(set)
	summary := NoConsensus
	if verdict != nil {
		summary = verdict.Label
	}
	return RunReport{
		Timestamp:   now.UTC().Format(time.RFC3339),
		Filename:    filename,
		Summary:     summary,
		Consensus:   verdict,
		Predictions: set,
	}
}

// WriteRunJSON writes r as indented JSON.
func WriteRunJSON(w io.Writer, r RunReport) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(r); err != nil {
		return fmt.Errorf("failed to write run report: %w", err)
	}
	return nil
}

// WriteBatchCSV writes one row per ledger entry in ledger order. Each row's
// label and confidence come from the full consensus over that entry's
// predictions; entries without consensus show "N/A" and "0.00".
func WriteBatchCSV(w io.Writer, results []batch.Result) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(BatchCSVHeader); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}
	for _, r := range results {
		label, confidence := "N/A", "0.00"
		if v := consensus.Compute(r.Predictions); v != nil {
			label = v.Label
			confidence = fmt.Sprintf("%.2f", v.Confidence)
		}
		if err := cw.Write([]string{r.Filename, string(r.Status), label, confidence}); err != nil {
			return fmt.Errorf("failed to write CSV row for %s: %w", r.Filename, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// RunReportName is the download filename for a run report.
func RunReportName(t time.Time) string {
	return fmt.Sprintf("fedpath-report-%d.json", t.UnixMilli())
}

// BatchCSVName is the download filename for a batch export.
func BatchCSVName(t time.Time) string {
	return fmt.Sprintf("fedpath-batch-%d.csv", t.UnixMilli())
}
