package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// TxMetrics records transaction execution through OTel instruments.
type TxMetrics struct {
	txCounter   metric.Int64Counter
	txDuration  metric.Float64Histogram
	blockHeight metric.Int64Gauge
}

// NewTxMetrics creates the transaction instruments on meter.
func NewTxMetrics(meter metric.Meter) (*TxMetrics, error) {
	txCounter, err := meter.Int64Counter(
		"oblivion.tx.total",
		metric.WithDescription("Total number of transactions"),
		metric.WithUnit("{transaction}"),
	)
	if err != nil {
		return nil, err
	}

	txDuration, err := meter.Float64Histogram(
		"oblivion.tx.processing_time",
		metric.WithDescription("Transaction processing time"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	blockHeight, err := meter.Int64Gauge(
		"oblivion.block.height",
		metric.WithDescription("Current block height"),
		metric.WithUnit("{block}"),
	)
	if err != nil {
		return nil, err
	}

	return &TxMetrics{
		txCounter:   txCounter,
		txDuration:  txDuration,
		blockHeight: blockHeight,
	}, nil
}

// RecordTransaction records a delivered transaction.
func (tm *TxMetrics) RecordTransaction(ctx context.Context, txType string, duration time.Duration, success bool) {
	status := "success"
	if !success {
		status = "failed"
	}

	attrs := metric.WithAttributes(
		attribute.String("tx.type", txType),
		attribute.String("tx.status", status),
	)
	tm.txCounter.Add(ctx, 1, attrs)
	tm.txDuration.Record(ctx, float64(duration.Microseconds())/1000, attrs)
}

// RecordBlockHeight records the latest committed height.
func (tm *TxMetrics) RecordBlockHeight(ctx context.Context, height int64) {
	tm.blockHeight.Record(ctx, height)
}
