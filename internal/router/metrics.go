package router

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	metricRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "homelab_metrics",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "total number of handled http requests",
		},
		[]string{"method", "route", "code"},
	)
	metricRequestSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "homelab_metrics",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "latency of handled http requests",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
		},
		[]string{"method", "route"},
	)
)

func init() {
	prometheus.MustRegister(metricRequestsTotal, metricRequestSeconds)
}

func observeRequest(method, route string, code int, took time.Duration) {
	metricRequestsTotal.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
	metricRequestSeconds.WithLabelValues(method, route).Observe(took.Seconds())
}
