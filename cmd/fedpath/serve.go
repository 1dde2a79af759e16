package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fpang/fedpath/internal/logging"
	"github.com/fpang/fedpath/internal/web"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var portFlag int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long: `Serve starts a local HTTP server exposing prediction, heatmap, batch,
report, history and settings endpoints, plus Prometheus metrics at /metrics.

Examples:
  fedpath serve
  fedpath serve --port 9090`,
	Run: runServe,
}

func init() {
	serveCmd.Flags().IntVar(&portFlag, "port", 0, "Port to listen on (default: $FEDPATH_PORT)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) {
	initStart := time.Now()
	st := mustSetup(context.Background())

	port := st.cfg.Server.Port
	if portFlag > 0 {
		port = portFlag
	}

	reg := prometheus.NewRegistry()
	api := web.New(web.Options{
		Predictor:      st.predictor,
		Settings:       st.settings,
		BatchPacing:    st.cfg.Server.BatchPacing,
		MaxUploadBytes: st.cfg.Server.MaxUploadBytes,
		Model:          st.predictor.Model(),
		Registry:       reg,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      api.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info().Msg("Shutting down...")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			log.Warn().Err(err).Msg("Graceful shutdown failed")
		}
	}()

	logging.NewStartupLogger("fedpath-serve").
		CommitHash(commitHash).
		Nodes(st.settings.ActiveNames()).
		Config("model", st.predictor.Model()).
		Config("port", fmt.Sprint(port)).
		Config("batch_pacing", st.cfg.Server.BatchPacing.String()).
		InitDuration(time.Since(initStart)).
		Log()
	fmt.Printf("\n  Fedpath API: http://localhost:%d/api/health\n\n", port)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("Server failed")
	}
}
