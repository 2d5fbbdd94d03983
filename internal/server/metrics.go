package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics instruments optimization jobs.
type Metrics struct {
	JobsStarted  *prometheus.CounterVec
	JobsFinished *prometheus.CounterVec
	JobsRunning  prometheus.Gauge
	Generations  *prometheus.CounterVec
	Evaluations  *prometheus.CounterVec
	Merged       *prometheus.CounterVec
	Diversity    *prometheus.HistogramVec
	JobDuration  *prometheus.HistogramVec
}

// NewMetrics registers the job metrics with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		JobsStarted: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "diffevo",
			Name:      "jobs_started_total",
			Help:      "Optimization jobs accepted.",
		}, []string{"strategy"}),
		JobsFinished: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "diffevo",
			Name:      "jobs_finished_total",
			Help:      "Optimization jobs that reached a terminal status.",
		}, []string{"strategy", "status"}),
		JobsRunning: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "diffevo",
			Name:      "jobs_running",
			Help:      "Optimization jobs currently holding a worker.",
		}),
		Generations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "diffevo",
			Name:      "generations_total",
			Help:      "Generations produced across all jobs.",
		}, []string{"strategy"}),
		Evaluations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "diffevo",
			Name:      "objective_evaluations_total",
			Help:      "Objective function calls across all jobs.",
		}, []string{"strategy"}),
		Merged: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "diffevo",
			Name:      "merged_individuals_total",
			Help:      "Individuals resampled by merge-pruning.",
		}, []string{"strategy"}),
		Diversity: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "diffevo",
			Name:      "population_diversity",
			Help:      "Normalized population diversity after each generation.",
			Buckets:   prometheus.ExponentialBuckets(1e-5, 4, 10),
		}, []string{"strategy"}),
		JobDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "diffevo",
			Name:      "job_duration_seconds",
			Help:      "Wall time from a job acquiring a worker to its end.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"strategy", "status"}),
	}
}
