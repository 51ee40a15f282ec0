package batch

import "github.com/prometheus/client_golang/prometheus"

var (
	dispatchesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "inferd",
			Subsystem: "batch",
			Name:      "dispatches_total",
			Help:      "Total batches dispatched",
		},
	)

	batchSize = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "inferd",
			Subsystem: "batch",
			Name:      "size",
			Help:      "Number of requests per dispatched batch",
			Buckets:   []float64{1, 2, 4, 8, 16, 32},
		},
	)
)

func init() {
	prometheus.MustRegister(dispatchesTotal, batchSize)
}
