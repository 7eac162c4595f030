package api

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// APIMetrics holds Prometheus metrics for the HTTP API
type APIMetrics struct {
	Requests     *prometheus.CounterVec
	Latency      *prometheus.HistogramVec
	TxSubmitted  *prometheus.CounterVec
	FaucetGrants prometheus.Counter
}

var (
	apiMetricsOnce sync.Once
	apiMetrics     *APIMetrics
)

// NewAPIMetrics creates and registers API metrics (singleton pattern)
func NewAPIMetrics() *APIMetrics {
	apiMetricsOnce.Do(func() {
		apiMetrics = &APIMetrics{
			Requests: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: "oblivion",
					Subsystem: "api",
					Name:      "requests_total",
					Help:      "HTTP requests by method, route and status",
				},
				[]string{"method", "route", "status"},
			),
			Latency: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Namespace: "oblivion",
					Subsystem: "api",
					Name:      "request_duration_seconds",
					Help:      "HTTP request latency",
					Buckets:   prometheus.DefBuckets,
				},
				[]string{"method", "route"},
			),
			TxSubmitted: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: "oblivion",
					Subsystem: "api",
					Name:      "tx_submitted_total",
					Help:      "Transactions submitted by type and result",
				},
				[]string{"type", "result"},
			),
			FaucetGrants: promauto.NewCounter(
				prometheus.CounterOpts{
					Namespace: "oblivion",
					Subsystem: "api",
					Name:      "faucet_grants_total",
					Help:      "Faucet grants served",
				},
			),
		}
	})
	return apiMetrics
}
