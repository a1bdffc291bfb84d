// Package metrics exposes Prometheus collectors for the analysis stream.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	// OutcomeSuccess labels analyses that ended with a result.
	OutcomeSuccess = "success"
	// OutcomeError labels analyses that ended with an error.
	OutcomeError = "error"
	// OutcomeTimeout labels analyses ended by the watchdog.
	OutcomeTimeout = "timeout"
)

var (
	framesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "logsense",
			Name:      "frames_total",
			Help:      "Inbound analysis-stream frames, partitioned by frame type.",
		},
		[]string{"type"},
	)

	decodeFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "logsense",
			Name:      "frame_decode_failures_total",
			Help:      "Inbound frames rejected by the codec.",
		},
	)

	reconnectsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "logsense",
			Name:      "reconnects_total",
			Help:      "Reconnect attempts scheduled after an abnormal close.",
		},
	)

	analysesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "logsense",
			Name:      "analyses_total",
			Help:      "Completed analysis sessions, partitioned by outcome.",
		},
		[]string{"outcome"},
	)

	analysisDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "logsense",
			Name:      "analysis_seconds",
			Help:      "Wall-clock analysis duration from start to terminal event.",
			Buckets:   []float64{1, 2, 5, 10, 20, 30, 60, 120, 300},
		},
	)
)

// Register attaches all collectors to the supplied registerer.
func Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		framesTotal,
		decodeFailuresTotal,
		reconnectsTotal,
		analysesTotal,
		analysisDurationSeconds,
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

// ObserveFrame records one decoded inbound frame.
func ObserveFrame(frameType string) {
	framesTotal.WithLabelValues(frameType).Inc()
}

// ObserveDecodeFailure records one frame the codec rejected.
func ObserveDecodeFailure() {
	decodeFailuresTotal.Inc()
}

// ObserveReconnect records one scheduled reconnect attempt.
func ObserveReconnect() {
	reconnectsTotal.Inc()
}

// ObserveAnalysis records a finished analysis and its duration.
func ObserveAnalysis(duration time.Duration, outcome string) {
	analysesTotal.WithLabelValues(outcome).Inc()
	if duration < 0 {
		duration = 0
	}
	analysisDurationSeconds.Observe(duration.Seconds())
}
