// Package inference runs the single-image pipelines: prediction only, the
// simulated Grad-CAM overlay, and the two combined with a consensus verdict.
package inference

import (
	"context"
	"fmt"

	"github.com/fpang/fedpath/internal/chat"
	"github.com/fpang/fedpath/internal/consensus"
	"github.com/fpang/fedpath/internal/imaging"
	"github.com/fpang/fedpath/internal/prediction"
	"github.com/fpang/fedpath/internal/settings"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// GradCAMResult pairs the original image with its simulated attention overlay.
// Both are data URLs.
type GradCAMResult struct {
	Original string `json:"original"`
	Heatmap  string `json:"heatmap"`
}

// FullResult is the combined output of prediction, consensus and heatmap.
// Consensus is nil when no node produced a prediction.
type FullResult struct {
	Predictions prediction.Set     `json:"predictions"`
	Consensus   *consensus.Verdict `json:"consensus"`
	Original    string             `json:"original"`
	Heatmap     string             `json:"heatmap"`
}

// Runner executes single-image pipelines against a Predictor.
type Runner struct {
	Predictor chat.Predictor
}

// NewRunner creates a Runner.
func NewRunner(p chat.Predictor) *Runner {
	return &Runner{Predictor: p}
}

// Predict returns per-node predictions for img under a snapshot of s.
func (r *Runner) Predict(ctx context.Context, img imaging.Image, s settings.Settings) (prediction.Set, error) {
	return r.Predictor.Predict(ctx, img, s.Snapshot())
}

// GradCAM renders img and its heatmap concurrently.
func (r *Runner) GradCAM(ctx context.Context, img imaging.Image) (GradCAMResult, error) {
	var res GradCAMResult
	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error {
		res.Original = imaging.ToEncodedBytes(img)
		return nil
	})
	g.Go(func() error {
		heatmap, err := imaging.HeatmapSimulation(img)
		if err != nil {
			return fmt.Errorf("heatmap for %s: %w", img.Name, err)
		}
		res.Heatmap = heatmap
		return nil
	})
	if err := g.Wait(); err != nil {
		return GradCAMResult{}, err
	}

	log.Debug().Str("file", img.Name).Int("heatmap_length", len(res.Heatmap)).Msg("Grad-CAM overlay rendered")
	return res, nil
}

// FullInference runs prediction and heatmap rendering in parallel, then
// computes the consensus verdict. Both branches must succeed.
func (r *Runner) FullInference(ctx context.Context, img imaging.Image, s settings.Settings) (FullResult, error) {
	s = s.Snapshot()

	var (
		set prediction.Set
		cam GradCAMResult
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		set, err = r.Predictor.Predict(gctx, img, s)
		return err
	})
	g.Go(func() error {
		var err error
		cam, err = r.GradCAM(gctx, img)
		return err
	})
	if err := g.Wait(); err != nil {
		return FullResult{}, err
	}

	verdict := consensus.Compute(set)
	evt := log.Info().Str("file", img.Name).Int("nodes", set.Len())
	if verdict != nil {
		evt = evt.Str("label", verdict.Label).Float64("confidence", verdict.Confidence)
	}
	evt.Msg("Full inference complete")

	return FullResult{
		Predictions: set,
		Consensus:   verdict,
		Original:    cam.Original,
		Heatmap:     cam.Heatmap,
	}, nil
}
