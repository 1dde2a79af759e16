// Package main is the Lambda entry point for the fedpath HTTP API. It serves
// the same routes as "fedpath serve" behind API Gateway.
//
// Batch jobs run in a goroutine after the 202 response. Lambda may freeze the
// execution environment between invocations, so long batches are better run
// from the CLI.
package main

import (
	"context"
	"os"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/awslabs/aws-lambda-go-api-proxy/httpadapter"
	"github.com/rs/zerolog/log"

	"github.com/fpang/fedpath/internal/auth"
	"github.com/fpang/fedpath/internal/chat"
	"github.com/fpang/fedpath/internal/cli"
	"github.com/fpang/fedpath/internal/config"
	"github.com/fpang/fedpath/internal/lambdaboot"
	"github.com/fpang/fedpath/internal/logging"
	"github.com/fpang/fedpath/internal/settings"
	"github.com/fpang/fedpath/internal/web"
)

var commitHash = "dev"

func main() {
	initStart := time.Now()
	logging.Init()

	clients := lambdaboot.InitAWS()
	lambdaboot.LoadGeminiKey(clients.SSM)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	s, err := settings.Load(cfg.Server.SettingsFile)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load settings")
	}

	model := cfg.Gemini.Model
	if model == "" {
		model = chat.GetModelName()
	}
	// The key was validated when it was stored in SSM.
	predictor := cli.InitPredictor(context.Background(), os.Getenv(auth.APIKeyEnv), model, false)

	api := web.New(web.Options{
		Predictor:      predictor,
		Settings:       s,
		BatchPacing:    cfg.Server.BatchPacing,
		MaxUploadBytes: cfg.Server.MaxUploadBytes,
		Model:          predictor.Model(),
	})

	lambdaboot.StartupLog("fedpath-lambda", initStart).
		CommitHash(commitHash).
		SSMParam("api_key", lambdaboot.APIKeyParam()).
		Nodes(s.ActiveNames()).
		Config("model", predictor.Model()).
		Log()

	adapter := httpadapter.NewV2(api.Handler())
	lambda.Start(adapter.ProxyWithContext)
}
