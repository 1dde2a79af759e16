package jobs

import (
	"errors"
	"strings"
	"testing"

	"github.com/fpang/fedpath/internal/batch"
	"github.com/fpang/fedpath/internal/prediction"
)

func TestGenerateID(t *testing.T) {
	a, b := GenerateID(BatchIDPrefix), GenerateID(BatchIDPrefix)
	if !strings.HasPrefix(a, BatchIDPrefix) {
		t.Errorf("ID %q missing prefix", a)
	}
	if a == b {
		t.Error("IDs must be unique")
	}
}

func TestNormalizeID(t *testing.T) {
	if got := NormalizeID("abc", "batch-"); got != "batch-abc" {
		t.Errorf("got %q", got)
	}
	if got := NormalizeID("batch-abc", "batch-"); got != "batch-abc" {
		t.Errorf("got %q", got)
	}
}

func TestStoreLifecycle(t *testing.T) {
	s := NewStore()
	j := s.New("slides.zip")

	got, err := s.Get(strings.TrimPrefix(j.ID(), BatchIDPrefix))
	if err != nil || got != j {
		t.Fatalf("Get without prefix = %v, %v", got, err)
	}
	if v := j.View(); v.Status != StatusPending || v.Summary != nil {
		t.Errorf("new job view = %+v", v)
	}

	j.Start()
	j.SetProgress(50)
	j.SetProgress(25)
	if v := j.View(); v.Status != StatusProcessing || v.Progress != 50 {
		t.Errorf("progress regressed or status wrong: %+v", v)
	}
	if _, done := j.Results(); done {
		t.Error("Results reported done while processing")
	}

	set := prediction.NewSet()
	set.Put("hospital_a", []prediction.ModelPrediction{{Label: "Carcinoma", Score: 0.9}})
	j.Complete([]batch.Result{{Filename: "a.png", Predictions: set, Status: batch.StatusSuccess}})

	v := j.View()
	if v.Status != StatusComplete || v.Progress != 100 {
		t.Errorf("complete view = %+v", v)
	}
	if v.Summary == nil || v.Summary.Positive != 1 {
		t.Errorf("summary = %+v", v.Summary)
	}
}

func TestStoreFailAndMissing(t *testing.T) {
	s := NewStore()
	j := s.New("bad.zip")
	j.Fail(errors.New("invalid archive: zip: not a valid zip file"))

	if v := j.View(); v.Status != StatusError || !strings.Contains(v.Error, "invalid archive") {
		t.Errorf("failed view = %+v", v)
	}
	if _, err := s.Get("nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
