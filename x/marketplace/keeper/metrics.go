package keeper

import (
	"math/big"
	"sync"

	"cosmossdk.io/math"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MarketplaceMetrics holds all Prometheus metrics for the marketplace module
type MarketplaceMetrics struct {
	// Job metrics
	JobsCreated    *prometheus.CounterVec
	JobTransitions *prometheus.CounterVec

	// Staking metrics
	WorkersRegistered prometheus.Counter
	StakeLocked       prometheus.Gauge
	StakeForfeited    prometheus.Counter
	RewardsPaid       prometheus.Counter

	// Proof metrics
	ProofVerifications    *prometheus.CounterVec
	ProofVerificationTime prometheus.Histogram

	// Message metrics
	MsgProcessed *prometheus.CounterVec
	MsgDuration  *prometheus.HistogramVec

	// Security metrics
	ReentrancyRejections *prometheus.CounterVec
	PanicRecoveries      prometheus.Counter
	InvariantBreaks      *prometheus.CounterVec
}

var (
	marketplaceMetricsOnce sync.Once
	marketplaceMetrics     *MarketplaceMetrics
)

// NewMarketplaceMetrics creates and registers marketplace metrics (singleton pattern)
func NewMarketplaceMetrics() *MarketplaceMetrics {
	marketplaceMetricsOnce.Do(func() {
		marketplaceMetrics = &MarketplaceMetrics{
			JobsCreated: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: "oblivion",
					Subsystem: "marketplace",
					Name:      "jobs_created_total",
					Help:      "Total jobs created",
				},
				[]string{"job_type"},
			),
			JobTransitions: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: "oblivion",
					Subsystem: "marketplace",
					Name:      "job_transitions_total",
					Help:      "Job status transitions by target status",
				},
				[]string{"status"},
			),
			WorkersRegistered: promauto.NewCounter(
				prometheus.CounterOpts{
					Namespace: "oblivion",
					Subsystem: "marketplace",
					Name:      "workers_registered_total",
					Help:      "Total worker registrations, including reactivations",
				},
			),
			StakeLocked: promauto.NewGauge(
				prometheus.GaugeOpts{
					Namespace: "oblivion",
					Subsystem: "marketplace",
					Name:      "stake_locked",
					Help:      "Stake currently locked in processing jobs (base units)",
				},
			),
			StakeForfeited: promauto.NewCounter(
				prometheus.CounterOpts{
					Namespace: "oblivion",
					Subsystem: "marketplace",
					Name:      "stake_forfeited_total",
					Help:      "Stake forfeited to the treasury (base units)",
				},
			),
			RewardsPaid: promauto.NewCounter(
				prometheus.CounterOpts{
					Namespace: "oblivion",
					Subsystem: "marketplace",
					Name:      "rewards_paid_total",
					Help:      "Reward plus returned stake paid to workers (base units)",
				},
			),
			ProofVerifications: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: "oblivion",
					Subsystem: "marketplace",
					Name:      "proof_verifications_total",
					Help:      "Result proof verifications by outcome",
				},
				[]string{"result"},
			),
			ProofVerificationTime: promauto.NewHistogram(
				prometheus.HistogramOpts{
					Namespace: "oblivion",
					Subsystem: "marketplace",
					Name:      "proof_verification_seconds",
					Help:      "Time spent verifying result proofs",
					Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 12),
				},
			),
			MsgProcessed: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: "oblivion",
					Subsystem: "marketplace",
					Name:      "msgs_processed_total",
					Help:      "Messages processed by type and outcome",
				},
				[]string{"msg_type", "result"},
			),
			MsgDuration: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Namespace: "oblivion",
					Subsystem: "marketplace",
					Name:      "msg_duration_seconds",
					Help:      "Message handling latency",
					Buckets:   prometheus.DefBuckets,
				},
				[]string{"msg_type"},
			),
			ReentrancyRejections: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: "oblivion",
					Subsystem: "marketplace",
					Name:      "reentrancy_rejections_total",
					Help:      "Entry points rejected because the guard was held",
				},
				[]string{"operation"},
			),
			PanicRecoveries: promauto.NewCounter(
				prometheus.CounterOpts{
					Namespace: "oblivion",
					Subsystem: "marketplace",
					Name:      "panic_recoveries_total",
					Help:      "Panics recovered inside entry points",
				},
			),
			InvariantBreaks: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: "oblivion",
					Subsystem: "marketplace",
					Name:      "invariant_breaks_total",
					Help:      "Broken invariants by route",
				},
				[]string{"route"},
			),
		}
	})
	return marketplaceMetrics
}

// toFloat converts an amount for metric reporting; precision loss is acceptable there.
func toFloat(amount math.Int) float64 {
	if amount.IsNil() {
		return 0
	}
	f, _ := new(big.Float).SetInt(amount.BigInt()).Float64()
	return f
}
