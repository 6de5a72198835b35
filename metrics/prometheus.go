// Package metrics exposes Prometheus counters for recognition sessions.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the recognizer
type Metrics struct {
	Registry *prometheus.Registry

	// Session metrics
	ActiveSessions  prometheus.Gauge
	ChunksReceived  prometheus.Counter
	SamplesBuffered prometheus.Counter

	// Decoder metrics
	WindowsDecoded  prometheus.Counter
	Utterances      prometheus.Counter
	TextsRecognized prometheus.Counter
	DecodeDuration  prometheus.Histogram

	// Recording metrics
	RecordingsSaved prometheus.Counter

	// Failures by kind
	Errors *prometheus.CounterVec
}

// NewMetrics creates all metrics on a private registry
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		Registry: registry,

		ActiveSessions: factory.NewGauge(prometheus.GaugeOpts{
			Name: "speech_active_sessions",
			Help: "Current number of recognition sessions",
		}),
		ChunksReceived: factory.NewCounter(prometheus.CounterOpts{
			Name: "speech_chunks_received_total",
			Help: "Total number of audio chunks processed",
		}),
		SamplesBuffered: factory.NewCounter(prometheus.CounterOpts{
			Name: "speech_samples_buffered_total",
			Help: "Total number of samples appended to session buffers",
		}),
		WindowsDecoded: factory.NewCounter(prometheus.CounterOpts{
			Name: "speech_windows_decoded_total",
			Help: "Total number of windows handed to the decoder",
		}),
		Utterances: factory.NewCounter(prometheus.CounterOpts{
			Name: "speech_utterances_total",
			Help: "Total number of utterance boundaries reported by the decoder",
		}),
		TextsRecognized: factory.NewCounter(prometheus.CounterOpts{
			Name: "speech_texts_recognized_total",
			Help: "Total number of non-empty recognitions",
		}),
		DecodeDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "speech_decode_duration_seconds",
			Help:    "Time spent decoding one window",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~2.5s
		}),
		RecordingsSaved: factory.NewCounter(prometheus.CounterOpts{
			Name: "speech_recordings_saved_total",
			Help: "Total number of debug recordings written",
		}),
		Errors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "speech_errors_total",
			Help: "Total number of session errors by kind",
		}, []string{"kind"}),
	}
}
