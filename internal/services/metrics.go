package services

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "recommender"

// Metrics holds the pipeline collectors. A nil *Metrics records nothing.
type Metrics struct {
	requestsTotal *prometheus.CounterVec
	stageDuration *prometheus.HistogramVec
	degradedTotal *prometheus.CounterVec
	similarity    prometheus.Histogram
	finalListSize prometheus.Histogram
	indexedTotal  prometheus.Counter
	zeroVectors   prometheus.Counter
}

// NewMetrics registers the collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		requestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "requests_total",
				Help:      "Recommendation requests by terminal stage",
			},
			[]string{"stage"},
		),
		stageDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Name:      "stage_duration_seconds",
				Help:      "Duration of pipeline stages in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"stage"},
		),
		degradedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "degraded_total",
				Help:      "Degraded-continue events by kind",
			},
			[]string{"kind"},
		),
		similarity: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Name:      "retrieved_similarity",
				Help:      "Similarity scores of retrieved candidates",
				Buckets:   []float64{0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1},
			},
		),
		finalListSize: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Name:      "final_list_size",
				Help:      "Number of assessments in the final list",
				Buckets:   []float64{0, 1, 2, 3, 5, 8, 10, 15},
			},
		),
		indexedTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "indexed_items_total",
				Help:      "Catalog items written to the index",
			},
		),
		zeroVectors: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "zero_vector_items_total",
				Help:      "Catalog items skipped because their embedding failed",
			},
		),
	}
}

func (m *Metrics) ObserveStage(stage string, started time.Time) {
	if m == nil {
		return
	}
	m.stageDuration.WithLabelValues(stage).Observe(time.Since(started).Seconds())
}

func (m *Metrics) RecordRequest(stage string) {
	if m == nil {
		return
	}
	m.requestsTotal.WithLabelValues(stage).Inc()
}

func (m *Metrics) RecordDegraded(kind string) {
	if m == nil {
		return
	}
	m.degradedTotal.WithLabelValues(kind).Inc()
}

func (m *Metrics) ObserveSimilarity(score float64) {
	if m == nil {
		return
	}
	m.similarity.Observe(score)
}

func (m *Metrics) ObserveFinalSize(n int) {
	if m == nil {
		return
	}
	m.finalListSize.Observe(float64(n))
}

func (m *Metrics) RecordIndexed(written, zeroVectors int) {
	if m == nil {
		return
	}
	m.indexedTotal.Add(float64(written))
	m.zeroVectors.Add(float64(zeroVectors))
}
