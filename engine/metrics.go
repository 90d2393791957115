package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// testsGenerated counts raw test cases per technique, before
	// multi-modal filtering.
	testsGenerated = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "edcheck",
		Subsystem: "engine",
		Name:      "tests_generated_total",
		Help:      "Test cases produced per generation technique",
	}, []string{"technique"})

	// testsDiscarded counts cases the multi-modal verifier rejected.
	testsDiscarded = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "edcheck",
		Subsystem: "engine",
		Name:      "tests_discarded_total",
		Help:      "Test cases discarded by multi-modal verification",
	})

	// techniqueFailures counts tasks whose technique errored or panicked.
	techniqueFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "edcheck",
		Subsystem: "engine",
		Name:      "technique_failures_total",
		Help:      "Generation tasks that failed, by technique",
	}, []string{"technique"})

	// taskDuration measures one (rule, technique) task end to end.
	taskDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "edcheck",
		Subsystem: "engine",
		Name:      "task_duration_seconds",
		Help:      "Duration of one (rule, technique) generation task",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
	}, []string{"technique"})
)
