package mib

import "github.com/prometheus/client_golang/prometheus"

// Prometheus table metrics.
var (
	refreshTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mibagent_refresh_total",
			Help: "Table refresh cycles by result.",
		},
		[]string{"table", "result"},
	)
	refreshDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mibagent_refresh_duration_seconds",
			Help:    "Table refresh duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"table"},
	)
	snapshotRows = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "mibagent_snapshot_rows",
			Help: "Rows in the published table snapshot.",
		},
		[]string{"table"},
	)
	missingCounters = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mibagent_missing_counters_total",
			Help: "Counter fields that were absent or unparsable when a row was resolved.",
		},
		[]string{"table"},
	)
	queriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mibagent_queries_total",
			Help: "Get and get-next queries answered by a table.",
		},
		[]string{"table", "op"},
	)
)

func init() {
	prometheus.MustRegister(refreshTotal)
	prometheus.MustRegister(refreshDuration)
	prometheus.MustRegister(snapshotRows)
	prometheus.MustRegister(missingCounters)
	prometheus.MustRegister(queriesTotal)
}
