package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder ships the domain metrics to Prometheus.
type Recorder struct {
	analysesTotal *prometheus.CounterVec
	alertsSent    *prometheus.CounterVec
	errorsTotal   *prometheus.CounterVec
	lastPrice     *prometheus.GaugeVec
	latency       *prometheus.HistogramVec
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		analysesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sigpulse_analyses_total",
				Help: "Symbol analyses by resulting signal type",
			},
			[]string{"symbol", "signal"},
		),
		alertsSent: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sigpulse_alerts_sent_total",
				Help: "Alerts delivered per channel",
			},
			[]string{"channel", "symbol"},
		),
		errorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sigpulse_errors_total",
				Help: "Errors by kind",
			},
			[]string{"type"},
		),
		lastPrice: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "sigpulse_last_price",
				Help: "Most recent close seen per symbol",
			},
			[]string{"symbol"},
		),
		latency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sigpulse_operation_duration_seconds",
				Help:    "Operation latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

// RecordAnalysis counts one completed symbol analysis.
func (r *Recorder) RecordAnalysis(symbol, signal string) {
	r.analysesTotal.WithLabelValues(symbol, signal).Inc()
}

// RecordAlert counts an alert delivered through a channel.
func (r *Recorder) RecordAlert(channel, symbol string) {
	r.alertsSent.WithLabelValues(channel, symbol).Inc()
}

// RecordError counts one error of the given kind.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLastPrice tracks the latest close per symbol.
func (r *Recorder) RecordLastPrice(symbol string, price float64) {
	r.lastPrice.WithLabelValues(symbol).Set(price)
}

// RecordLatency observes one operation duration.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}
