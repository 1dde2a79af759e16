package consensus

import (
	"math"
	"testing"

	"github.com/fpang/fedpath/internal/prediction"
)

const epsilon = 1e-9

func approx(a, b float64) bool {
	return math.Abs(a-b) < epsilon
}

func setOf(pairs ...any) prediction.Set {
	s := prediction.NewSet()
	for i := 0; i < len(pairs); i += 2 {
		s.Put(pairs[i].(string), pairs[i+1].([]prediction.ModelPrediction))
	}
	return s
}

func TestIsPositiveLabel(t *testing.T) {
	tests := []struct {
		label string
		want  bool
	}{
		{"Invasive Ductal Carcinoma", true},
		{"POSITIVE", true},
		{"malignant lesion", true},
		{"Breast Cancer", true},
		{"Normal Tissue", false},
		{"Benign Fibroadenoma", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			if got := IsPositiveLabel(tt.label); got != tt.want {
				t.Errorf("IsPositiveLabel(%q) = %v, want %v", tt.label, got, tt.want)
			}
		})
	}
}

func TestReduceEmpty(t *testing.T) {
	if _, ok := Reduce(nil); ok {
		t.Error("Reduce(nil) should report no contribution")
	}
	if _, ok := Reduce([]prediction.ModelPrediction{}); ok {
		t.Error("Reduce(empty) should report no contribution")
	}
}

func TestReduceTopScore(t *testing.T) {
	tests := []struct {
		name      string
		preds     []prediction.ModelPrediction
		wantLabel string
		wantScore float64
		wantPos   bool
	}{
		{
			name: "max not first",
			preds: []prediction.ModelPrediction{
				{Label: "Normal Tissue", Score: 0.2},
				{Label: "Invasive Carcinoma", Score: 0.7},
				{Label: "Benign", Score: 0.1},
			},
			wantLabel: "Invasive Carcinoma",
			wantScore: 0.7,
			wantPos:   true,
		},
		{
			name: "tie keeps first encountered",
			preds: []prediction.ModelPrediction{
				{Label: "Benign Fibroadenoma", Score: 0.5},
				{Label: "Malignant", Score: 0.5},
			},
			wantLabel: "Benign Fibroadenoma",
			wantScore: 0.5,
			wantPos:   false,
		},
		{
			name:      "single entry",
			preds:     []prediction.ModelPrediction{{Label: "cancer", Score: 0.01}},
			wantLabel: "cancer",
			wantScore: 0.01,
			wantPos:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			call, ok := Reduce(tt.preds)
			if !ok {
				t.Fatal("expected contribution")
			}
			if call.Label != tt.wantLabel || call.Score != tt.wantScore || call.IsPositive != tt.wantPos {
				t.Errorf("Reduce() = %+v, want {%s %v %v}", call, tt.wantLabel, tt.wantScore, tt.wantPos)
			}
		})
	}
}

func TestComputeNoContributors(t *testing.T) {
	tests := []struct {
		name string
		set  prediction.Set
	}{
		{"zero value", prediction.Set{}},
		{"all empty", setOf("a", []prediction.ModelPrediction{}, "b", []prediction.ModelPrediction(nil))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if v := Compute(tt.set); v != nil {
				t.Errorf("Compute() = %+v, want nil", v)
			}
		})
	}
}

func TestComputeTieFavorsBenign(t *testing.T) {
	set := setOf(
		"hospital_a", []prediction.ModelPrediction{{Label: "Invasive Carcinoma", Score: 0.9}},
		"hospital_b", []prediction.ModelPrediction{{Label: "Normal Tissue", Score: 0.8}},
	)

	v := Compute(set)
	if v == nil {
		t.Fatal("expected verdict")
	}
	if v.IsPositive {
		t.Error("tie should resolve to benign")
	}
	if v.Label != LabelBenign {
		t.Errorf("Label = %q, want %q", v.Label, LabelBenign)
	}
	if !approx(v.Agreement, 0.5) {
		t.Errorf("Agreement = %v, want 0.5", v.Agreement)
	}
	if !approx(v.Confidence, 0.85) {
		t.Errorf("Confidence = %v, want 0.85", v.Confidence)
	}
	if v.Count != 2 {
		t.Errorf("Count = %d, want 2", v.Count)
	}
}

func TestComputeConfidenceIsUnfilteredMean(t *testing.T) {
	set := setOf(
		"a", []prediction.ModelPrediction{{Label: "Carcinoma", Score: 0.9}},
		"b", []prediction.ModelPrediction{{Label: "Normal", Score: 0.6}},
		"c", []prediction.ModelPrediction{{Label: "Benign", Score: 0.6}},
		"d", []prediction.ModelPrediction{},
	)

	v := Compute(set)
	if v == nil {
		t.Fatal("expected verdict")
	}
	if v.IsPositive {
		t.Error("expected benign majority")
	}
	if !approx(v.Confidence, 0.7) {
		t.Errorf("Confidence = %v, want 0.7", v.Confidence)
	}
	if !approx(v.Agreement, 2.0/3.0) {
		t.Errorf("Agreement = %v, want 2/3", v.Agreement)
	}
	if v.Count != 3 {
		t.Errorf("Count = %d, want 3 (empty node excluded)", v.Count)
	}
}

func TestComputePositiveMajority(t *testing.T) {
	set := setOf(
		"a", []prediction.ModelPrediction{{Label: "Malignant", Score: 0.8}, {Label: "Normal", Score: 0.1}},
		"b", []prediction.ModelPrediction{{Label: "Normal", Score: 0.2}, {Label: "Ductal carcinoma", Score: 0.95}},
		"c", []prediction.ModelPrediction{{Label: "Normal", Score: 0.5}},
	)

	v := Compute(set)
	if v == nil || !v.IsPositive {
		t.Fatalf("expected positive verdict, got %+v", v)
	}
	if v.Label != LabelPositive {
		t.Errorf("Label = %q", v.Label)
	}
	if !approx(v.Agreement, 2.0/3.0) {
		t.Errorf("Agreement = %v", v.Agreement)
	}
	if !approx(v.Confidence, (0.8+0.95+0.5)/3) {
		t.Errorf("Confidence = %v", v.Confidence)
	}
}

func TestComputeAgreementBounds(t *testing.T) {
	labels := []string{"Carcinoma", "Normal"}
	for n := 1; n <= 6; n++ {
		for mask := 0; mask < 1<<n; mask++ {
			s := prediction.NewSet()
			for i := 0; i < n; i++ {
				label := labels[(mask>>i)&1]
				s.Put(string(rune('a'+i)), []prediction.ModelPrediction{{Label: label, Score: 0.5}})
			}
			v := Compute(s)
			if v == nil {
				t.Fatalf("n=%d mask=%b: nil verdict", n, mask)
			}
			if v.Agreement < 0.5 || v.Agreement > 1.0 {
				t.Errorf("n=%d mask=%b: agreement %v out of range", n, mask, v.Agreement)
			}
			if approx(v.Agreement, 0.5) && v.IsPositive {
				t.Errorf("n=%d mask=%b: agreement 0.5 must not be positive", n, mask)
			}
		}
	}
}

func TestComputeIgnoresKeyOrder(t *testing.T) {
	a := setOf(
		"x", []prediction.ModelPrediction{{Label: "Carcinoma", Score: 0.9}},
		"y", []prediction.ModelPrediction{{Label: "Normal", Score: 0.3}},
		"z", []prediction.ModelPrediction{{Label: "Cancer", Score: 0.6}},
	)
	b := setOf(
		"z", []prediction.ModelPrediction{{Label: "Cancer", Score: 0.6}},
		"x", []prediction.ModelPrediction{{Label: "Carcinoma", Score: 0.9}},
		"y", []prediction.ModelPrediction{{Label: "Normal", Score: 0.3}},
	)

	va, vb := Compute(a), Compute(b)
	if va.IsPositive != vb.IsPositive || !approx(va.Confidence, vb.Confidence) || !approx(va.Agreement, vb.Agreement) {
		t.Errorf("order changed result: %+v vs %+v", va, vb)
	}
}

func TestReduceAllSkipsEmpty(t *testing.T) {
	set := setOf(
		"a", []prediction.ModelPrediction{{Label: "Normal", Score: 0.4}},
		"b", []prediction.ModelPrediction{},
	)
	calls := ReduceAll(set)
	if len(calls) != 1 {
		t.Fatalf("ReduceAll() returned %d calls, want 1", len(calls))
	}
	if _, ok := calls["b"]; ok {
		t.Error("empty node should be omitted")
	}
}
