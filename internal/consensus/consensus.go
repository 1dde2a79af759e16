// Package consensus reduces per-node prediction lists to a top call and
// aggregates those calls into a single majority verdict.
//
// Positivity is decided by a lexical heuristic over the top label (see
// IsPositiveLabel). It is not a clinical ontology: any label that mentions one
// of a handful of malignancy keywords counts as positive, everything else is
// treated as benign/normal.
package consensus

import (
	"strings"

	"github.com/fpang/fedpath/internal/prediction"
	"github.com/rs/zerolog/log"
)

// Verdict labels.
const (
	LabelPositive = "Positive for Malignancy"
	LabelBenign   = "Benign / Normal Tissue"
)

// positiveKeywords are matched case-insensitively as substrings of a label.
var positiveKeywords = []string{"cancer", "carcinoma", "positive", "malignant"}

// TopCall is one node's reduced view: its highest-scoring label and whether
// that label reads as malignant.
type TopCall struct {
	Label      string  `json:"label"`
	Score      float64 `json:"score"`
	IsPositive bool    `json:"isPositive"`
}

// Verdict is the consensus across every contributing node of one image.
type Verdict struct {
	Label      string  `json:"label"`
	IsPositive bool    `json:"isPositive"`
	Confidence float64 `json:"confidence"`
	Agreement  float64 `json:"agreement"`
	Count      int     `json:"count"`
}

// IsPositiveLabel reports whether label contains any malignancy keyword,
// ignoring case.
func IsPositiveLabel(label string) bool {
	lower := strings.ToLower(label)
	for _, kw := range positiveKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// Reduce picks the top prediction from one node's list. The maximum score
// wins; on ties the earliest entry in list order wins. ok is false for an
// empty list, meaning the node made no contribution.
func Reduce(preds []prediction.ModelPrediction) (call TopCall, ok bool) {
	if len(preds) == 0 {
		return TopCall{}, false
	}

	top := preds[0]
	for _, p := range preds[1:] {
		if p.Score > top.Score {
			top = p
		}
	}

	return TopCall{
		Label:      top.Label,
		Score:      top.Score,
		IsPositive: IsPositiveLabel(top.Label),
	}, true
}

// ReduceAll returns the top call of every contributing node in set order.
// Nodes with empty lists are omitted.
func ReduceAll(set prediction.Set) map[string]TopCall {
	out := make(map[string]TopCall, set.Len())
	for _, name := range set.Names() {
		preds, _ := set.Get(name)
		if call, ok := Reduce(preds); ok {
			out[name] = call
		}
	}
	return out
}

// Compute derives the consensus verdict for set. It returns nil when no node
// contributed a prediction.
//
// The winning side is positive only on a strict majority; an exact tie goes to
// benign. Agreement is the winning side's share of votes. Confidence is the
// mean of every contributing node's top score, whichever side it voted for.
func Compute(set prediction.Set) *Verdict {
	var cancerCount, benignCount int
	var totalScore float64

	for _, name := range set.Names() {
		preds, _ := set.Get(name)
		call, ok := Reduce(preds)
		if !ok {
			continue
		}
		if call.IsPositive {
			cancerCount++
		} else {
			benignCount++
		}
		totalScore += call.Score
	}

	total := cancerCount + benignCount
	if total == 0 {
		log.Debug().Int("nodes", set.Len()).Msg("No contributing nodes, consensus unavailable")
		return nil
	}

	isPositive := cancerCount > benignCount
	winning := benignCount
	label := LabelBenign
	if isPositive {
		winning = cancerCount
		label = LabelPositive
	}

	v := &Verdict{
		Label:      label,
		IsPositive: isPositive,
		Confidence: totalScore / float64(total),
		Agreement:  float64(winning) / float64(total),
		Count:      total,
	}

	log.Debug().
		Int("positive_votes", cancerCount).
		Int("benign_votes", benignCount).
		Float64("confidence", v.Confidence).
		Float64("agreement", v.Agreement).
		Msg("Consensus computed")

	return v
}
