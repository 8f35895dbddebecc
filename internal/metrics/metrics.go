// Package metrics exposes prometheus counters for pipeline stage outcomes.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TasksCreated counts tasks registered by the create stage.
	TasksCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stylize_tasks_created_total",
		Help: "Number of tasks created.",
	})

	// ValidationOutcomes counts validation results by outcome
	// (accepted, rejected, skipped).
	ValidationOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stylize_validations_total",
		Help: "Number of upload validations by outcome.",
	}, []string{"outcome"})

	// TransformOutcomes counts transform results by outcome
	// (done, failed, duplicate, retried).
	TransformOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stylize_transforms_total",
		Help: "Number of transform attempts by outcome.",
	}, []string{"outcome"})

	// StatusReads counts status queries.
	StatusReads = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stylize_status_reads_total",
		Help: "Number of task status queries.",
	})
)
