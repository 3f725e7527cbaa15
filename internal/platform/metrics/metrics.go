// Package metrics holds the run's Prometheus collectors. Everything is
// registered on Registry rather than the global default registry.
package metrics

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var Registry = prometheus.NewRegistry()

var (
	admissionsTotal = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "medbench_admissions_total",
			Help: "Admissions processed, by final status",
		},
		[]string{"status"},
	)

	sectionRowsSeen = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "medbench_section_rows_seen_total",
			Help: "Rows returned for each packet section before truncation",
		},
		[]string{"section"},
	)

	sectionRowsRetained = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "medbench_section_rows_retained_total",
			Help: "Rows kept in each packet section after truncation",
		},
		[]string{"section"},
	)

	linkageOutcomes = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "medbench_linkage_outcomes_total",
			Help: "Linkage policy outcomes, by category and outcome",
		},
		[]string{"category", "outcome"},
	)

	modelAttempts = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "medbench_model_attempts_total",
			Help: "Model call attempts, by provider and status",
		},
		[]string{"provider", "status"},
	)

	modelLatency = promauto.With(Registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "medbench_model_latency_seconds",
			Help:    "Latency of model call attempts",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 20, 40, 80, 160, 320},
		},
		[]string{"provider"},
	)

	modelTokens = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "medbench_model_tokens_total",
			Help: "Tokens reported by the model provider, by direction",
		},
		[]string{"provider", "direction"},
	)

	validationFailures = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "medbench_validation_failures_total",
			Help: "Model responses rejected by validation, by kind",
		},
		[]string{"kind"},
	)
)

// RecordAdmission counts one finished admission.
func RecordAdmission(status string) {
	admissionsTotal.WithLabelValues(status).Inc()
}

func RecordSection(section string, seen, retained int) {
	sectionRowsSeen.WithLabelValues(section).Add(float64(seen))
	sectionRowsRetained.WithLabelValues(section).Add(float64(retained))
}

func RecordLinkage(category, outcome string, n int) {
	if n <= 0 {
		return
	}
	linkageOutcomes.WithLabelValues(category, outcome).Add(float64(n))
}

// RecordModelAttempt counts one transport attempt. Cached responses are
// counted under status "cached" and do not contribute latency.
func RecordModelAttempt(provider, status string, latency time.Duration, inputTokens, outputTokens *int) {
	modelAttempts.WithLabelValues(provider, status).Inc()
	if status != "cached" {
		modelLatency.WithLabelValues(provider).Observe(latency.Seconds())
	}
	if inputTokens != nil {
		modelTokens.WithLabelValues(provider, "input").Add(float64(*inputTokens))
	}
	if outputTokens != nil {
		modelTokens.WithLabelValues(provider, "output").Add(float64(*outputTokens))
	}
}

func RecordValidationFailure(kind string) {
	validationFailures.WithLabelValues(kind).Inc()
}

// Handler serves Registry in the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// WriteTextfile writes Registry for the node_exporter textfile collector.
func WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, Registry); err != nil {
		return fmt.Errorf("write metrics textfile %s: %w", path, err)
	}
	return nil
}
