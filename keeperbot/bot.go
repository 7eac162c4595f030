// Package keeperbot expires timed-out job claims. Expiry is never automatic on
// chain; anyone may call ExpireJob once a claim has outlived its timeout, and
// the bot does so on a fixed interval.
package keeperbot

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"cosmossdk.io/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/oblivion-chain/oblivion/client"
	"github.com/oblivion-chain/oblivion/x/marketplace/types"
)

// Chain is the read side the bot needs.
type Chain interface {
	JobsByStatus(ctx context.Context, status types.JobStatus) ([]types.Job, error)
	IsJobExpired(ctx context.Context, id uint64) (bool, error)
}

// Expirer submits ExpireJob transactions.
type Expirer interface {
	ExpireJob(ctx context.Context, jobID uint64) error
}

// Config tunes the scan loop.
type Config struct {
	Interval time.Duration `mapstructure:"interval"`
	// MaxPerScan bounds the expiries submitted per scan; zero means no bound.
	MaxPerScan int `mapstructure:"max_per_scan"`
}

// DefaultConfig returns the default bot configuration.
func DefaultConfig() Config {
	return Config{
		Interval:   30 * time.Second,
		MaxPerScan: 100,
	}
}

// Metrics tracks bot activity.
type Metrics struct {
	Scans      prometheus.Counter
	Expired    prometheus.Counter
	Errors     *prometheus.CounterVec
	Processing prometheus.Gauge
	LastScan   prometheus.Gauge
}

var (
	metrics     *Metrics
	metricsOnce sync.Once
)

// NewMetrics returns the process-wide bot metrics.
func NewMetrics() *Metrics {
	metricsOnce.Do(func() {
		metrics = &Metrics{
			Scans: promauto.NewCounter(prometheus.CounterOpts{
				Namespace: "oblivion",
				Subsystem: "keeperbot",
				Name:      "scans_total",
				Help:      "Completed scans of processing jobs",
			}),
			Expired: promauto.NewCounter(prometheus.CounterOpts{
				Namespace: "oblivion",
				Subsystem: "keeperbot",
				Name:      "expired_total",
				Help:      "Jobs expired by the bot",
			}),
			Errors: promauto.NewCounterVec(prometheus.CounterOpts{
				Namespace: "oblivion",
				Subsystem: "keeperbot",
				Name:      "errors_total",
				Help:      "Bot errors by stage",
			}, []string{"stage"}),
			Processing: promauto.NewGauge(prometheus.GaugeOpts{
				Namespace: "oblivion",
				Subsystem: "keeperbot",
				Name:      "processing_jobs",
				Help:      "Processing jobs seen in the last scan",
			}),
			LastScan: promauto.NewGauge(prometheus.GaugeOpts{
				Namespace: "oblivion",
				Subsystem: "keeperbot",
				Name:      "last_scan_timestamp_seconds",
				Help:      "Unix time of the last completed scan",
			}),
		}
	})
	return metrics
}

// Bot polls processing jobs and expires the timed-out ones.
type Bot struct {
	logger  log.Logger
	chain   Chain
	expirer Expirer
	config  Config
	metrics *Metrics
}

// New returns a bot. It does not start polling until Run.
func New(logger log.Logger, chain Chain, expirer Expirer, config Config) (*Bot, error) {
	if chain == nil || expirer == nil {
		return nil, errors.New("keeperbot: chain and expirer are required")
	}
	if config.Interval <= 0 {
		return nil, fmt.Errorf("keeperbot: interval must be positive, got %s", config.Interval)
	}
	if config.MaxPerScan < 0 {
		return nil, fmt.Errorf("keeperbot: max per scan cannot be negative")
	}
	return &Bot{
		logger:  logger.With("module", "keeperbot"),
		chain:   chain,
		expirer: expirer,
		config:  config,
		metrics: NewMetrics(),
	}, nil
}

// Run scans immediately and then every interval until ctx is cancelled.
func (b *Bot) Run(ctx context.Context) error {
	b.logger.Info("keeper bot started", "interval", b.config.Interval)

	ticker := time.NewTicker(b.config.Interval)
	defer ticker.Stop()

	for {
		if _, err := b.Scan(ctx); err != nil && ctx.Err() == nil {
			b.logger.Error("scan failed", "err", err)
		}
		select {
		case <-ctx.Done():
			b.logger.Info("keeper bot stopped")
			return nil
		case <-ticker.C:
		}
	}
}

// Scan expires every processing job whose claim has timed out and returns the
// number expired. A job another caller expired first is skipped.
func (b *Bot) Scan(ctx context.Context) (int, error) {
	jobs, err := b.chain.JobsByStatus(ctx, types.JobStatusProcessing)
	if err != nil {
		b.metrics.Errors.WithLabelValues("list").Inc()
		return 0, fmt.Errorf("failed to list processing jobs: %w", err)
	}
	b.metrics.Processing.Set(float64(len(jobs)))

	expired := 0
	for _, job := range jobs {
		if ctx.Err() != nil {
			return expired, ctx.Err()
		}
		if b.config.MaxPerScan > 0 && expired >= b.config.MaxPerScan {
			b.logger.Info("scan limit reached", "limit", b.config.MaxPerScan)
			break
		}

		ok, err := b.chain.IsJobExpired(ctx, job.ID)
		if err != nil {
			b.metrics.Errors.WithLabelValues("check").Inc()
			b.logger.Error("failed to check job", "job_id", job.ID, "err", err)
			continue
		}
		if !ok {
			continue
		}

		if err := b.expirer.ExpireJob(ctx, job.ID); err != nil {
			if lostRace(err) {
				b.logger.Debug("job already settled", "job_id", job.ID)
				continue
			}
			b.metrics.Errors.WithLabelValues("expire").Inc()
			b.logger.Error("failed to expire job", "job_id", job.ID, "err", err)
			continue
		}

		expired++
		b.metrics.Expired.Inc()
		b.logger.Info("job expired", "job_id", job.ID, "worker", job.Worker)
	}

	b.metrics.Scans.Inc()
	b.metrics.LastScan.SetToCurrentTime()
	return expired, nil
}

// lostRace reports whether the job left Processing before our transaction.
func lostRace(err error) bool {
	var receiptErr *client.ReceiptError
	if !errors.As(err, &receiptErr) {
		return false
	}
	r := receiptErr.Receipt
	return r.Codespace == types.ModuleName &&
		(r.Code == types.ErrInvalidJobStatus.ABCICode() || r.Code == types.ErrJobNotExpired.ABCICode())
}
