package la

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	solveDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "dfem_solve_seconds",
		Help:    "Linear solve duration",
		Buckets: prometheus.ExponentialBuckets(0.0001, 4, 10),
	})

	solveIterations = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "dfem_solver_iterations",
		Help:    "Krylov iterations per linear solve",
		Buckets: []float64{1, 5, 10, 50, 100, 500, 1000, 5000},
	})
)
