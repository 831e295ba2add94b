package repository

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	metricInsertTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "homelab_metrics",
			Subsystem: "insert",
			Name:      "total",
			Help:      "total number of inserted samples",
		},
	)
	metricInsertSecondsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "homelab_metrics",
			Subsystem: "insert",
			Name:      "seconds_total",
			Help:      "total number of seconds spent on inserts",
		},
	)
	metricThrottledTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "homelab_metrics",
			Subsystem: "record",
			Name:      "throttled_total",
			Help:      "total number of record calls dropped by the per-node throttle",
		},
	)

	metricSelectTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "homelab_metrics",
			Subsystem: "select",
			Name:      "total",
			Help:      "total number of range selects",
		},
	)
	metricSelectSecondsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "homelab_metrics",
			Subsystem: "select",
			Name:      "seconds_total",
			Help:      "total number of seconds spent on range selects",
		},
	)

	metricDeleteTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "homelab_metrics",
			Subsystem: "delete",
			Name:      "total",
			Help:      "total number of retention sweeps",
		},
	)
	metricDeleteSecondsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "homelab_metrics",
			Subsystem: "delete",
			Name:      "seconds_total",
			Help:      "total number of seconds spent on retention sweeps",
		},
	)
	metricCleanupFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "homelab_metrics",
			Subsystem: "cleanup",
			Name:      "failures_total",
			Help:      "total number of failed retention sweeps",
		},
	)
)

func init() {
	prometheus.MustRegister(
		metricInsertTotal,
		metricInsertSecondsTotal,
		metricThrottledTotal,
		metricSelectTotal,
		metricSelectSecondsTotal,
		metricDeleteTotal,
		metricDeleteSecondsTotal,
		metricCleanupFailuresTotal,
	)
}

func recordInsert(tookSeconds float64) {
	metricInsertTotal.Inc()
	metricInsertSecondsTotal.Add(tookSeconds)
}

func recordThrottled() {
	metricThrottledTotal.Inc()
}

func recordSelect(tookSeconds float64) {
	metricSelectTotal.Inc()
	metricSelectSecondsTotal.Add(tookSeconds)
}

func recordDelete(tookSeconds float64) {
	metricDeleteTotal.Inc()
	metricDeleteSecondsTotal.Add(tookSeconds)
}

func recordCleanupFailure() {
	metricCleanupFailuresTotal.Inc()
}
