package main

import (
	"context"
	"os"

	"github.com/fpang/fedpath/internal/chat"
	"github.com/fpang/fedpath/internal/cli"
	"github.com/fpang/fedpath/internal/config"
	"github.com/fpang/fedpath/internal/logging"
	"github.com/fpang/fedpath/internal/settings"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// Global flags
var (
	modelFlag    string
	settingsFlag string
	noValidate   bool
)

var rootCmd = &cobra.Command{
	Use:   "fedpath",
	Short: "Multi-node consensus for pathology slide classification",
	Long: `Fedpath asks a vision model to answer as several independent hospital
nodes, then reduces their predictions to a single benign/malignant verdict.

Examples:
  fedpath predict slide.png
  fedpath infer slide.tiff --settings nodes.yaml
  fedpath batch slides.zip --out results.csv
  fedpath batch s3://bucket/slides.zip --s3-bucket reports-bucket
  fedpath serve --port 9090`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logging.Init()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&modelFlag, "model", "m", "", "Gemini model to use (default: $GEMINI_MODEL or "+chat.DefaultModelName+")")
	rootCmd.PersistentFlags().StringVarP(&settingsFlag, "settings", "s", "", "YAML settings file (default: $FEDPATH_SETTINGS_FILE)")
	rootCmd.PersistentFlags().BoolVar(&noValidate, "no-validate", false, "Skip API key validation at startup")
	rootCmd.Version = commitHash + " (" + buildTime + ")"
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// setup is shared by every subcommand: configuration, logger level, run
// settings and the Gemini predictor.
type setup struct {
	cfg       *config.Config
	settings  settings.Settings
	predictor *chat.GeminiPredictor
}

func mustSetup(ctx context.Context) setup {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}
	logging.Configure(cfg.Server.LogLevel, cfg.Server.LogJSON, os.Stderr)

	path := settingsFlag
	if path == "" {
		path = cfg.Server.SettingsFile
	}
	s, err := settings.Load(path)
	if err != nil {
		log.Fatal().Err(err).Str("path", path).Msg("Failed to load settings")
	}

	model := modelFlag
	if model == "" {
		model = cfg.Gemini.Model
	}
	if model == "" {
		model = chat.GetModelName()
	}

	predictor := cli.InitPredictor(ctx, cfg.Gemini.APIKey, model, cfg.Server.ValidateKey && !noValidate)
	return setup{cfg: cfg, settings: s, predictor: predictor}
}
