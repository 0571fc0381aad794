package metrics

import (
	"fmt"
	"time"

	"github.com/mchmarny/walletscore/pkg/score"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "walletscore"

// Recorder collects the metrics of a single scoring run on its own registry.
type Recorder struct {
	registry *prometheus.Registry

	records  *prometheus.CounterVec
	skipped  *prometheus.CounterVec
	wallets  prometheus.Counter
	category *prometheus.GaugeVec
	scores   prometheus.Histogram
	duration *prometheus.HistogramVec
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	return &Recorder{
		registry: reg,
		records: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "records_total",
				Help:      "Input records by load status",
			},
			[]string{"status"},
		),
		skipped: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "records_skipped_total",
				Help:      "Skipped input records by reason",
			},
			[]string{"reason"},
		),
		wallets: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "wallets_scored_total",
				Help:      "Number of wallets scored",
			},
		),
		category: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "wallets_by_category",
				Help:      "Number of scored wallets in each risk category",
			},
			[]string{"category"},
		),
		scores: f.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "credit_score",
				Help:      "Distribution of final credit scores",
				Buckets:   prometheus.LinearBuckets(100, 100, 10),
			},
		),
		duration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "stage_duration_seconds",
				Help:      "Duration of pipeline stages in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"stage"},
		),
	}
}

// RecordLoad records loaded and skipped input records.
func (r *Recorder) RecordLoad(loaded, skipped int, reasons map[string]int) {
	r.records.WithLabelValues("loaded").Add(float64(loaded))
	r.records.WithLabelValues("skipped").Add(float64(skipped))
	for reason, n := range reasons {
		r.skipped.WithLabelValues(reason).Add(float64(n))
	}
}

// RecordScores records the size and distribution of the scored population.
func (r *Recorder) RecordScores(list []*score.WalletScore) {
	for _, b := range score.Bands {
		r.category.WithLabelValues(string(b.Category)).Set(0)
	}
	for _, ws := range list {
		if ws == nil {
			continue
		}
		r.wallets.Inc()
		r.category.WithLabelValues(string(ws.Category)).Inc()
		r.scores.Observe(ws.Score)
	}
}

// RecordDuration records how long a pipeline stage took.
func (r *Recorder) RecordDuration(stage string, d time.Duration) {
	r.duration.WithLabelValues(stage).Observe(d.Seconds())
}

// WriteTextfile writes all metrics in the Prometheus text format, for
// pickup by the node exporter textfile collector.
func (r *Recorder) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("error writing metrics to %s: %w", path, err)
	}
	return nil
}
