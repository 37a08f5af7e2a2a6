package assembly

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	assemblyDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "dfem_assembly_seconds",
		Help:    "Duration of a full system assembly on the root rank",
		Buckets: prometheus.ExponentialBuckets(0.0001, 4, 10),
	})

	assembledCells = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dfem_assembled_cells_total",
		Help: "Cells integrated, by rank",
	}, []string{"rank"})
)
