package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// submissionsTotal counts submission decisions.
	// Labels: decision (ADMITTED, REJECTED), reason
	submissionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "factgate",
		Name:      "submissions_total",
		Help:      "Total producer submissions by decision",
	}, []string{"decision", "reason"})

	// commitCyclesTotal counts resolved commit cycles.
	// Labels: state (COMMITTED, ROLLED_BACK), reason
	commitCyclesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "factgate",
		Name:      "commit_cycles_total",
		Help:      "Total commit cycles by final state",
	}, []string{"state", "reason"})

	// inferenceIterations tracks derivation passes per run.
	// Labels: operation (submit, commit)
	inferenceIterations = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "factgate",
		Name:      "inference_iterations",
		Help:      "Derivation passes needed to reach a fixpoint",
		Buckets:   []float64{1, 2, 3, 4, 5, 6, 8, 10, 15, 20},
	}, []string{"operation"})

	// admissionDuration measures end-to-end decision latency.
	// Labels: operation (submit, commit)
	admissionDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "factgate",
		Name:      "admission_duration_seconds",
		Help:      "Time to decide a submission or resolve a commit cycle",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
	}, []string{"operation"})

	quarantinedFactsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "factgate",
		Name:      "quarantined_facts_total",
		Help:      "Derived facts withheld from main because they contradict other facts",
	})

	eventsDroppedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "factgate",
		Name:      "events_dropped_total",
		Help:      "Commit events not delivered to a slow subscriber",
	})

	// provenanceWritesTotal counts ledger appends.
	// Labels: event (submission, commit), result (ok, error)
	provenanceWritesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "factgate",
		Name:      "provenance_writes_total",
		Help:      "Provenance ledger appends by decision kind and result",
	}, []string{"event", "result"})
)
