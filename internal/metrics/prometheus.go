package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	// OutcomeSuccess labels operations that produced a result.
	OutcomeSuccess = "success"
	// OutcomeError labels operations that failed.
	OutcomeError = "error"
)

var (
	predictionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fedpath",
			Name:      "predictions_total",
			Help:      "Prediction calls to the remote model, partitioned by outcome.",
		},
		[]string{"outcome"},
	)

	predictionDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "fedpath",
			Name:      "prediction_seconds",
			Help:      "Remote prediction latency in seconds.",
			Buckets:   []float64{0.25, 0.5, 1, 2, 4, 8, 16, 32},
		},
	)

	batchItemsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fedpath",
			Name:      "batch_items_total",
			Help:      "Batch images processed, partitioned by item status.",
		},
		[]string{"status"},
	)

	consensusTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fedpath",
			Name:      "consensus_total",
			Help:      "Consensus verdicts computed, partitioned by label.",
		},
		[]string{"label"},
	)
)

// Register attaches fedpath collectors to the supplied Prometheus registerer.
// Collectors that are already registered are skipped.
func Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		predictionsTotal,
		predictionDurationSeconds,
		batchItemsTotal,
		consensusTotal,
	}

	for _, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
			return err
		}
	}
	return nil
}

// ObservePrediction records a remote prediction duration and outcome label.
func ObservePrediction(duration time.Duration, outcome string) {
	label := outcome
	if label != OutcomeError {
		label = OutcomeSuccess
	}
	predictionsTotal.WithLabelValues(label).Inc()
	if duration < 0 {
		duration = 0
	}
	predictionDurationSeconds.Observe(duration.Seconds())
}

// ObserveBatchItem counts one processed batch image by status.
func ObserveBatchItem(status string) {
	batchItemsTotal.WithLabelValues(status).Inc()
}

// ObserveConsensus counts one consensus verdict by label.
func ObserveConsensus(label string) {
	consensusTotal.WithLabelValues(label).Inc()
}
