// Package prompush implements a Prometheus Pushgateway backend for the
// metrics package.
//
// This package adapts the generic metrics.Backend interface to Prometheus by:
//
//   - Using client_golang CounterVec and SummaryVec collectors.
//   - Mapping the pipeline labels (resource, stage, status, kind) onto
//     Prometheus labels.
//   - Pushing collected metrics to a Pushgateway instead of exposing a scrape
//     endpoint; a batch job that exits after one run has nothing to scrape.
//
// The package intentionally contains all Prometheus-specific dependencies so
// the rest of the project stays decoupled from Prometheus and can swap to
// alternative backends without changes to the core pipeline.
package prompush

import (
	"fmt"

	"idaetl/internal/metrics"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Backend is a Prometheus Pushgateway metrics backend.
type Backend struct {
	gatewayURL string // e.g. http://pushgateway:9091
	jobName    string // Pushgateway "job" group
	reg        *prometheus.Registry

	stageCounter  *prometheus.CounterVec // "ida_stage_total"
	stageDuration *prometheus.SummaryVec // "ida_stage_duration_seconds"
	recordCounter *prometheus.CounterVec // "ida_records_total"
	batchCounter  *prometheus.CounterVec // "ida_batches_total"
}

// NewBackend constructs a Pushgateway backend. jobName is the Pushgateway
// grouping key; gatewayURL the base URL of the Pushgateway server.
func NewBackend(jobName, gatewayURL string) (*Backend, error) {
	if gatewayURL == "" {
		return nil, fmt.Errorf("prompush: gateway URL is required")
	}
	if jobName == "" {
		jobName = "idaetl"
	}

	reg := prometheus.NewRegistry()

	stageCounter := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ida_stage_total",
			Help: "Pipeline stage executions, partitioned by resource, stage, and status.",
		},
		[]string{"resource", "stage", "status"},
	)
	stageDuration := prometheus.NewSummaryVec(
		prometheus.SummaryOpts{
			Name:       "ida_stage_duration_seconds",
			Help:       "Pipeline stage durations in seconds, partitioned by resource, stage, and status.",
			Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
		},
		[]string{"resource", "stage", "status"},
	)
	recordCounter := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ida_records_total",
			Help: "Record-level counts per resource and kind (extracted, loaded, skipped, ...).",
		},
		[]string{"resource", "kind"},
	)
	batchCounter := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ida_batches_total",
			Help: "Fact batches flushed per resource.",
		},
		[]string{"resource"},
	)

	for name, c := range map[string]prometheus.Collector{
		"stage counter":  stageCounter,
		"stage summary":  stageDuration,
		"record counter": recordCounter,
		"batch counter":  batchCounter,
	} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("prompush: register %s: %w", name, err)
		}
	}

	return &Backend{
		gatewayURL:    gatewayURL,
		jobName:       jobName,
		reg:           reg,
		stageCounter:  stageCounter,
		stageDuration: stageDuration,
		recordCounter: recordCounter,
		batchCounter:  batchCounter,
	}, nil
}

func (b *Backend) IncCounter(name string, delta float64, labels metrics.Labels) {
	switch name {
	case "ida_stage_total":
		b.stageCounter.WithLabelValues(labels["resource"], labels["stage"], labels["status"]).Add(delta)
	case "ida_records_total":
		b.recordCounter.WithLabelValues(labels["resource"], labels["kind"]).Add(delta)
	case "ida_batches_total":
		b.batchCounter.WithLabelValues(labels["resource"]).Add(delta)
	default:
		// unknown metric name: ignore
	}
}

func (b *Backend) ObserveHistogram(name string, value float64, labels metrics.Labels) {
	if name != "ida_stage_duration_seconds" {
		return
	}
	b.stageDuration.WithLabelValues(labels["resource"], labels["stage"], labels["status"]).Observe(value)
}

// Flush pushes the current registry to the Pushgateway.
func (b *Backend) Flush() error {
	return push.New(b.gatewayURL, b.jobName).
		Gatherer(b.reg).
		Push()
}
