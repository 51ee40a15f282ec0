package store

import "github.com/prometheus/client_golang/prometheus"

var (
	evictionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "inferd",
			Subsystem: "store",
			Name:      "evictions_total",
			Help:      "Total model records evicted to satisfy the disk quota",
		},
	)
)

func init() {
	prometheus.MustRegister(evictionsTotal)
}
