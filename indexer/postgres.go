package indexer

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"sync"
	"time"

	"cosmossdk.io/log"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/oblivion-chain/oblivion/app/tx"
)

//go:embed schema.sql
var schemaFile embed.FS

// ErrQueueFull is returned by Publish when the write queue is saturated.
var ErrQueueFull = errors.New("indexer queue is full")

// Config holds database configuration
type Config struct {
	URL            string        `mapstructure:"url"`
	MaxConnections int           `mapstructure:"max_connections"`
	MaxIdle        int           `mapstructure:"max_idle"`
	ConnMaxLife    time.Duration `mapstructure:"conn_max_life"`
	QueueSize      int           `mapstructure:"queue_size"`
}

// DefaultConfig returns a configuration with indexing disabled (empty URL).
func DefaultConfig() Config {
	return Config{
		MaxConnections: 10,
		MaxIdle:        5,
		ConnMaxLife:    time.Hour,
		QueueSize:      1024,
	}
}

// Metrics tracks indexer throughput.
type Metrics struct {
	Indexed prometheus.Counter
	Dropped prometheus.Counter
	Failed  prometheus.Counter
}

var (
	metrics     *Metrics
	metricsOnce sync.Once
)

// NewMetrics returns the process-wide indexer metrics.
func NewMetrics() *Metrics {
	metricsOnce.Do(func() {
		metrics = &Metrics{
			Indexed: promauto.NewCounter(prometheus.CounterOpts{
				Namespace: "oblivion",
				Subsystem: "indexer",
				Name:      "receipts_indexed_total",
				Help:      "Receipts written to postgres",
			}),
			Dropped: promauto.NewCounter(prometheus.CounterOpts{
				Namespace: "oblivion",
				Subsystem: "indexer",
				Name:      "receipts_dropped_total",
				Help:      "Receipts dropped because the queue was full",
			}),
			Failed: promauto.NewCounter(prometheus.CounterOpts{
				Namespace: "oblivion",
				Subsystem: "indexer",
				Name:      "receipts_failed_total",
				Help:      "Receipts that could not be written",
			}),
		}
	})
	return metrics
}

// PostgresSink writes receipts to postgres from a background goroutine so that
// block commits never wait on the database.
type PostgresSink struct {
	db      *sql.DB
	logger  log.Logger
	metrics *Metrics

	queue chan *tx.Receipt
	done  chan struct{}
	once  sync.Once
}

var _ Sink = (*PostgresSink)(nil)

// NewPostgresSink connects, applies the schema and starts the writer.
func NewPostgresSink(ctx context.Context, logger log.Logger, cfg Config) (*PostgresSink, error) {
	if cfg.URL == "" {
		return nil, errors.New("indexer database url is empty")
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultConfig().QueueSize
	}

	db, err := sql.Open("postgres", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxConnections)
	db.SetMaxIdleConns(cfg.MaxIdle)
	db.SetConnMaxLifetime(cfg.ConnMaxLife)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &PostgresSink{
		db:      db,
		logger:  logger.With("module", "indexer"),
		metrics: NewMetrics(),
		queue:   make(chan *tx.Receipt, cfg.QueueSize),
		done:    make(chan struct{}),
	}
	if err := s.InitSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	go s.run()

	s.logger.Info("connected to indexer database")
	return s, nil
}

// InitSchema creates the tables if they do not exist.
func (s *PostgresSink) InitSchema(ctx context.Context) error {
	schema, err := schemaFile.ReadFile("schema.sql")
	if err != nil {
		return fmt.Errorf("failed to read schema file: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, string(schema)); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}
	return nil
}

// Publish queues a receipt for writing.
func (s *PostgresSink) Publish(_ context.Context, receipt *tx.Receipt) error {
	select {
	case s.queue <- receipt:
		return nil
	default:
		s.metrics.Dropped.Inc()
		return ErrQueueFull
	}
}

func (s *PostgresSink) run() {
	defer close(s.done)
	for receipt := range s.queue {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err := s.Write(ctx, receipt)
		cancel()
		if err != nil {
			s.metrics.Failed.Inc()
			s.logger.Error("failed to index receipt", "hash", receipt.TxHash, "err", err)
			continue
		}
		s.metrics.Indexed.Inc()
	}
}

// Write stores one receipt in a single database transaction.
func (s *PostgresSink) Write(ctx context.Context, receipt *tx.Receipt) error {
	row, events, err := Rows(receipt)
	if err != nil {
		return err
	}

	dbTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer dbTx.Rollback() //nolint:errcheck

	var result any
	if row.Result != nil {
		result = string(row.Result)
	}
	if _, err := dbTx.ExecContext(ctx, `
		INSERT INTO transactions (hash, height, time, type, signer, code, codespace, log, result)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (hash) DO NOTHING
	`, row.Hash, row.Height, row.Time, row.Type, row.Signer, row.Code, row.Codespace, row.Log, result); err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}

	for _, ev := range events {
		var jobID any
		if ev.JobID != nil {
			jobID = int64(*ev.JobID)
		}
		if _, err := dbTx.ExecContext(ctx, `
			INSERT INTO events (tx_hash, height, event_index, event_type, job_id, attributes)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (tx_hash, event_index) DO NOTHING
		`, ev.TxHash, ev.Height, ev.Index, ev.Type, jobID, string(ev.Attributes)); err != nil {
			return fmt.Errorf("insert event: %w", err)
		}
	}

	if row.Signer != "" {
		if _, err := dbTx.ExecContext(ctx, `
			INSERT INTO accounts (address, tx_count, first_seen_height, last_seen_height, updated_at)
			VALUES ($1, 1, $2, $2, NOW())
			ON CONFLICT (address) DO UPDATE SET
				tx_count = accounts.tx_count + 1,
				last_seen_height = GREATEST(accounts.last_seen_height, $2),
				updated_at = NOW()
		`, row.Signer, row.Height); err != nil {
			return fmt.Errorf("upsert account: %w", err)
		}
	}

	if _, err := dbTx.ExecContext(ctx, `
		INSERT INTO indexer_state (key, value, updated_at) VALUES ('last_indexed_height', $1, NOW())
		ON CONFLICT (key) DO UPDATE SET value = GREATEST(indexer_state.value, $1), updated_at = NOW()
	`, row.Height); err != nil {
		return fmt.Errorf("update indexer state: %w", err)
	}

	return dbTx.Commit()
}

// LastIndexedHeight returns the highest indexed block height, zero if none.
func (s *PostgresSink) LastIndexedHeight(ctx context.Context) (int64, error) {
	var height int64
	err := s.db.QueryRowContext(ctx, "SELECT value FROM indexer_state WHERE key = 'last_indexed_height'").Scan(&height)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	return height, err
}

// JobEvents returns the event types recorded for a job, oldest first.
func (s *PostgresSink) JobEvents(ctx context.Context, jobID uint64) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT event_type FROM events WHERE job_id = $1 ORDER BY height, event_index", int64(jobID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var eventType string
		if err := rows.Scan(&eventType); err != nil {
			return nil, err
		}
		out = append(out, eventType)
	}
	return out, rows.Err()
}

// Ping checks the database connection. It serves as a health probe.
func (s *PostgresSink) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close drains the queue and closes the database.
func (s *PostgresSink) Close() error {
	s.once.Do(func() { close(s.queue) })
	<-s.done
	return s.db.Close()
}
