package batch

import (
	"bytes"
	"context"
	"errors"
	"io"
	"slices"
	"testing"
	"time"

	"github.com/fpang/fedpath/internal/archive"
	"github.com/fpang/fedpath/internal/imaging"
	"github.com/fpang/fedpath/internal/metrics"
	"github.com/fpang/fedpath/internal/prediction"
	"github.com/fpang/fedpath/internal/settings"
	"github.com/klauspost/compress/zip"
)

func init() {
	metrics.Output = io.Discard
}

func buildZip(t *testing.T, names ...string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, name := range names {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("create %s: %v", name, err)
		}
		if len(name) > 0 && name[len(name)-1] != '/' {
			if _, err := w.Write([]byte("data:" + name)); err != nil {
				t.Fatal(err)
			}
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

// scriptedPredictor returns a canned answer per filename, failing for any
// name listed in fail.
type scriptedPredictor struct {
	answers map[string]prediction.Set
	fail    map[string]bool
	calls   []string
}

func (p *scriptedPredictor) Predict(_ context.Context, img imaging.Image, _ settings.Settings) (prediction.Set, error) {
	p.calls = append(p.calls, img.Name)
	if p.fail[img.Name] {
		return prediction.Set{}, errors.New("remote failure")
	}
	if set, ok := p.answers[img.Name]; ok {
		return set, nil
	}
	set := prediction.NewSet()
	set.Put("hospital_a", []prediction.ModelPrediction{{Label: "Normal", Score: 0.9}})
	return set, nil
}

func single(node, label string, score float64) prediction.Set {
	set := prediction.NewSet()
	set.Put(node, []prediction.ModelPrediction{{Label: label, Score: score}})
	return set
}

func noSleep(sleeps *[]time.Duration) func(context.Context, time.Duration) error {
	return func(_ context.Context, d time.Duration) error {
		*sleeps = append(*sleeps, d)
		return nil
	}
}

func TestRunOrderFilterAndProgress(t *testing.T) {
	blob := buildZip(t, "slides/", "slides/a.png", "notes.txt", "slides/b.TIFF", "c.webp", "d.gif")
	pred := &scriptedPredictor{}
	var sleeps []time.Duration
	p := &Pipeline{Predictor: pred, Pacing: DefaultPacing, Sleep: noSleep(&sleeps)}

	var progress []int
	results, err := p.Run(context.Background(), blob, settings.Default(), func(pct int) {
		progress = append(progress, pct)
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	want := []string{"slides/a.png", "slides/b.TIFF", "c.webp"}
	if len(results) != len(want) {
		t.Fatalf("got %d results, want %d", len(results), len(want))
	}
	for i, name := range want {
		if results[i].Filename != name {
			t.Errorf("results[%d] = %s, want %s", i, results[i].Filename, name)
		}
		if pred.calls[i] != name {
			t.Errorf("call %d = %s, want %s", i, pred.calls[i], name)
		}
	}

	if got := []int{33, 67, 100}; !slices.Equal(progress, got) {
		t.Errorf("progress = %v, want %v", progress, got)
	}
	if len(sleeps) != 2 || sleeps[0] != DefaultPacing {
		t.Errorf("sleeps = %v, want 2 x %v", sleeps, DefaultPacing)
	}
}

func TestRunIsolatesItemFailure(t *testing.T) {
	blob := buildZip(t, "1.png", "2.png", "3.png")
	pred := &scriptedPredictor{fail: map[string]bool{"2.png": true}}
	var sleeps []time.Duration
	p := &Pipeline{Predictor: pred, Pacing: time.Millisecond, Sleep: noSleep(&sleeps)}

	var progress []int
	results, err := p.Run(context.Background(), blob, settings.Default(), func(pct int) {
		progress = append(progress, pct)
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("got %d results, want 3", len(results))
	}

	statuses := []Status{results[0].Status, results[1].Status, results[2].Status}
	if statuses[0] != StatusSuccess || statuses[1] != StatusFailed || statuses[2] != StatusSuccess {
		t.Errorf("statuses = %v", statuses)
	}
	if !results[1].Predictions.IsEmpty() {
		t.Error("failed item should carry an empty prediction set")
	}
	if progress[len(progress)-1] != 100 {
		t.Errorf("final progress = %d, want 100", progress[len(progress)-1])
	}
}

func TestRunFatalArchiveErrors(t *testing.T) {
	pred := &scriptedPredictor{}
	p := &Pipeline{Predictor: pred}

	_, err := p.Run(context.Background(), []byte("not a zip"), settings.Default(), nil)
	var archErr *archive.Error
	if !errors.As(err, &archErr) {
		t.Errorf("corrupt archive: expected *archive.Error, got %v", err)
	}

	_, err = p.Run(context.Background(), buildZip(t, "readme.md", "dir/"), settings.Default(), nil)
	if !errors.Is(err, archive.ErrNoImages) {
		t.Errorf("no images: expected ErrNoImages, got %v", err)
	}

	if len(pred.calls) != 0 {
		t.Errorf("predictor called %d times on fatal archive", len(pred.calls))
	}
}

func TestRunStopsWhenContextCancelled(t *testing.T) {
	blob := buildZip(t, "1.png", "2.png")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	pred := &scriptedPredictor{}
	p := &Pipeline{Predictor: pred, Pacing: time.Hour}
	if _, err := p.Run(ctx, blob, settings.Default(), nil); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if len(pred.calls) != 1 {
		t.Errorf("expected exactly one call before pacing, got %d", len(pred.calls))
	}
}

func TestPercent(t *testing.T) {
	tests := []struct{ done, total, want int }{
		{1, 3, 33},
		{2, 3, 67},
		{3, 3, 100},
		{1, 8, 13},
		{0, 0, 100},
	}
	for _, tt := range tests {
		if got := Percent(tt.done, tt.total); got != tt.want {
			t.Errorf("Percent(%d, %d) = %d, want %d", tt.done, tt.total, got, tt.want)
		}
	}
}

func TestSummarizeUsesFirstNode(t *testing.T) {
	mixed := prediction.NewSet()
	mixed.Put("hospital_a", []prediction.ModelPrediction{{Label: "Normal", Score: 0.9}})
	mixed.Put("hospital_b", []prediction.ModelPrediction{{Label: "Carcinoma", Score: 0.9}})
	mixed.Put("global_model", []prediction.ModelPrediction{{Label: "Carcinoma", Score: 0.9}})

	results := []Result{
		{Filename: "a.png", Status: StatusSuccess, Predictions: single("hospital_a", "Invasive Carcinoma", 0.8)},
		{Filename: "b.png", Status: StatusSuccess, Predictions: mixed},
		{Filename: "c.png", Status: StatusFailed, Predictions: prediction.NewSet()},
	}

	got := Summarize(results)
	want := Summary{Total: 3, Positive: 1, Benign: 2, Failed: 1}
	if got != want {
		t.Errorf("Summarize = %+v, want %+v", got, want)
	}
}
