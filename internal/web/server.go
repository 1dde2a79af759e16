// Package web serves the JSON API used by the browser client and the Lambda
// deployment.
package web

import (
	"net/http"
	"sync"
	"time"

	"github.com/fpang/fedpath/internal/batch"
	"github.com/fpang/fedpath/internal/chat"
	"github.com/fpang/fedpath/internal/history"
	"github.com/fpang/fedpath/internal/inference"
	"github.com/fpang/fedpath/internal/jobs"
	"github.com/fpang/fedpath/internal/metrics"
	"github.com/fpang/fedpath/internal/settings"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

// DefaultMaxUploadBytes caps multipart request bodies.
const DefaultMaxUploadBytes = 64 << 20

// Options configures a Server.
type Options struct {
	Predictor      chat.Predictor
	Settings       settings.Settings
	BatchPacing    time.Duration // zero uses batch.DefaultPacing
	MaxUploadBytes int64
	Model          string

	// Registry receives the Prometheus collectors. Nil uses a fresh registry.
	Registry *prometheus.Registry
}

// Server holds the shared state behind the API: the current settings, the
// history ledger, and in-flight batch jobs.
type Server struct {
	runner    *inference.Runner
	pipeline  *batch.Pipeline
	history   *history.Ledger
	jobs      *jobs.Store
	maxUpload int64
	model     string
	registry  *prometheus.Registry

	settingsMu sync.RWMutex
	settings   settings.Settings
}

// New creates a Server.
func New(opts Options) *Server {
	pipeline := batch.NewPipeline(opts.Predictor)
	if opts.BatchPacing > 0 {
		pipeline.Pacing = opts.BatchPacing
	}
	maxUpload := opts.MaxUploadBytes
	if maxUpload <= 0 {
		maxUpload = DefaultMaxUploadBytes
	}
	reg := opts.Registry
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	if err := metrics.Register(reg); err != nil {
		log.Warn().Err(err).Msg("Failed to register Prometheus collectors")
	}

	return &Server{
		runner:    inference.NewRunner(opts.Predictor),
		pipeline:  pipeline,
		history:   history.NewLedger(),
		jobs:      jobs.NewStore(),
		maxUpload: maxUpload,
		model:     opts.Model,
		registry:  reg,
		settings:  opts.Settings.Snapshot(),
	}
}

// Handler returns the API routes wrapped with logging and CORS.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/health", s.handleHealth)
	mux.HandleFunc("/api/settings", s.handleSettings)
	mux.HandleFunc("/api/predict", s.handlePredict)
	mux.HandleFunc("/api/gradcam", s.handleGradCAM)
	mux.HandleFunc("/api/infer", s.handleInfer)
	mux.HandleFunc("/api/report", s.handleReport)
	mux.HandleFunc("/api/batch", s.handleBatchStart)
	mux.HandleFunc("/api/batch/", s.handleBatchRoutes)
	mux.HandleFunc("/api/history", s.handleHistory)
	mux.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))

	return withLogging(withCORS(mux))
}

// currentSettings returns a snapshot safe to hand to a pipeline.
func (s *Server) currentSettings() settings.Settings {
	s.settingsMu.RLock()
	defer s.settingsMu.RUnlock()
	return s.settings.Snapshot()
}
