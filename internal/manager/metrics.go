package manager

import "github.com/prometheus/client_golang/prometheus"

var (
	loadsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "inferd",
			Subsystem: "manager",
			Name:      "loads_total",
			Help:      "Total physical model loads",
		},
	)

	cacheHitsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "inferd",
			Subsystem: "manager",
			Name:      "cache_hits_total",
			Help:      "AcquireReady calls served from the in-memory cache",
		},
	)

	sharedWaitsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "inferd",
			Subsystem: "manager",
			Name:      "singleflight_shared_total",
			Help:      "AcquireReady calls that awaited another caller's load",
		},
	)
)

func init() {
	prometheus.MustRegister(loadsTotal, cacheHitsTotal, sharedWaitsTotal)
}
