package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fpang/fedpath/internal/cli"
	"github.com/fpang/fedpath/internal/consensus"
	"github.com/fpang/fedpath/internal/imaging"
	"github.com/fpang/fedpath/internal/inference"
	"github.com/fpang/fedpath/internal/prediction"
	"github.com/fpang/fedpath/internal/report"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	reportFlag  string
	heatmapFlag string
)

var predictCmd = &cobra.Command{
	Use:   "predict <image>",
	Short: "Run node predictions on one slide and print the consensus",
	Args:  cobra.ExactArgs(1),
	Run:   runPredict,
}

var gradcamCmd = &cobra.Command{
	Use:   "gradcam <image>",
	Short: "Render the simulated attention heatmap for one slide",
	Args:  cobra.ExactArgs(1),
	Run:   runGradCAM,
}

var inferCmd = &cobra.Command{
	Use:   "infer <image>",
	Short: "Run predictions and the heatmap together",
	Args:  cobra.ExactArgs(1),
	Run:   runInfer,
}

func init() {
	predictCmd.Flags().StringVar(&reportFlag, "report", "", "Write a JSON run report to this path")
	inferCmd.Flags().StringVar(&reportFlag, "report", "", "Write a JSON run report to this path")
	gradcamCmd.Flags().StringVar(&heatmapFlag, "out", "", "Write the heatmap data URL to this path instead of stdout")
	inferCmd.Flags().StringVar(&heatmapFlag, "heatmap", "", "Write the heatmap data URL to this path")
	rootCmd.AddCommand(predictCmd, gradcamCmd, inferCmd)
}

func loadImage(path string) imaging.Image {
	img, err := imaging.Load(cli.ValidateAndResolveFile(path))
	if err != nil {
		log.Fatal().Err(err).Str("path", path).Msg("Failed to load image")
	}
	return img
}

func runPredict(cmd *cobra.Command, args []string) {
	ctx := context.Background()
	img := loadImage(args[0])
	st := mustSetup(ctx)

	start := time.Now()
	set, err := inference.NewRunner(st.predictor).Predict(ctx, img, st.settings)
	if err != nil {
		log.Fatal().Err(err).Str("file", img.Name).Msg("Prediction failed")
	}
	printPredictions(img.Name, set, time.Since(start))
	writeReport(img.Name, set)
}

func runGradCAM(cmd *cobra.Command, args []string) {
	img := loadImage(args[0])

	res, err := inference.NewRunner(nil).GradCAM(context.Background(), img)
	if err != nil {
		log.Fatal().Err(err).Str("file", img.Name).Msg("Heatmap rendering failed")
	}
	if heatmapFlag == "" {
		fmt.Println(res.Heatmap)
		return
	}
	writeFile(heatmapFlag, []byte(res.Heatmap))
}

func runInfer(cmd *cobra.Command, args []string) {
	ctx := context.Background()
	img := loadImage(args[0])
	st := mustSetup(ctx)

	start := time.Now()
	res, err := inference.NewRunner(st.predictor).FullInference(ctx, img, st.settings)
	if err != nil {
		log.Fatal().Err(err).Str("file", img.Name).Msg("Inference failed")
	}
	printPredictions(img.Name, res.Predictions, time.Since(start))
	if heatmapFlag != "" {
		writeFile(heatmapFlag, []byte(res.Heatmap))
	}
	writeReport(img.Name, res.Predictions)
}

func printPredictions(name string, set prediction.Set, elapsed time.Duration) {
	fmt.Printf("\n%s (%s)\n", name, cli.FormatDurationShort(elapsed))
	fmt.Println(strings.Repeat("-", 60))
	for _, node := range set.Names() {
		preds, _ := set.Get(node)
		call, ok := consensus.Reduce(preds)
		if !ok {
			fmt.Printf("  %-16s (no prediction)\n", node)
			continue
		}
		fmt.Printf("  %-16s %-32s %.2f\n", node, call.Label, call.Score)
	}
	fmt.Println(strings.Repeat("-", 60))

	verdict := consensus.Compute(set)
	if verdict == nil {
		fmt.Println("  " + report.NoConsensus)
		return
	}
	fmt.Printf("  %s  confidence %.2f  agreement %.0f%% of %d nodes\n\n",
		verdict.Label, verdict.Confidence, 100*verdict.Agreement, verdict.Count)
}

func writeReport(name string, set prediction.Set) {
	if reportFlag == "" {
		return
	}
	f, err := os.Create(reportFlag)
	if err != nil {
		log.Fatal().Err(err).Str("path", reportFlag).Msg("Failed to create report file")
	}
	defer f.Close()
	if err := report.WriteRunJSON(f, report.BuildRunReport(name, set, time.Now())); err != nil {
		log.Fatal().Err(err).Msg("Failed to write report")
	}
	log.Info().Str("path", reportFlag).Msg("Run report written")
}

func writeFile(path string, data []byte) {
	if err := os.WriteFile(path, data, 0o644); err != nil {
		log.Fatal().Err(err).Str("path", path).Msg("Failed to write file")
	}
	log.Info().Str("path", path).Msg("File written")
}
