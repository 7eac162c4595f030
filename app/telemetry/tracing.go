// Package telemetry wires OpenTelemetry into the node: marketplace transactions
// become spans exported over OTLP/HTTP, and OTel instruments are exposed on the
// Prometheus registry next to the client_golang collectors.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	metricsdk "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	tracesdk "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/oblivion-chain/oblivion"

// ServiceName identifies the node in exported telemetry.
const ServiceName = "oblivd"

// Config holds the telemetry section of config.toml.
type Config struct {
	Enabled bool `mapstructure:"enabled"`
	// OTLPEndpoint is the collector base URL; an http:// scheme disables TLS.
	OTLPEndpoint string  `mapstructure:"otlp_endpoint"`
	SampleRate   float64 `mapstructure:"sample_rate"`
	Environment  string  `mapstructure:"environment"`
	ChainID      string  `mapstructure:"chain_id"`

	PrometheusEnabled bool `mapstructure:"prometheus_enabled"`
}

// DefaultConfig returns tracing disabled and a local collector endpoint.
func DefaultConfig() Config {
	return Config{
		OTLPEndpoint:      "http://localhost:4318",
		SampleRate:        1.0,
		Environment:       "devnet",
		PrometheusEnabled: true,
	}
}

// Validate checks the endpoint and sample rate of an enabled config.
func (c Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	if _, err := c.endpoint(); err != nil {
		return err
	}
	if c.SampleRate < 0 || c.SampleRate > 1 {
		return fmt.Errorf("telemetry sample rate %v outside [0, 1]", c.SampleRate)
	}
	return nil
}

func (c Config) endpoint() (*url.URL, error) {
	if c.OTLPEndpoint == "" {
		return nil, errors.New("telemetry otlp_endpoint is required")
	}
	u, err := url.Parse(c.OTLPEndpoint)
	if err != nil {
		return nil, fmt.Errorf("telemetry otlp_endpoint: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("telemetry otlp_endpoint %q: scheme must be http or https", c.OTLPEndpoint)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("telemetry otlp_endpoint %q has no host", c.OTLPEndpoint)
	}
	return u, nil
}

// Provider owns the tracer and meter providers of a running node.
type Provider struct {
	config Config
	traces *tracesdk.TracerProvider
	meters *metricsdk.MeterProvider
}

// NewProvider installs the global tracer and meter providers. A disabled config
// returns a Provider backed by the otel no-op globals.
func NewProvider(cfg Config) (*Provider, error) {
	p := &Provider{config: cfg}
	if !cfg.Enabled {
		return p, nil
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	res, err := resource.New(context.Background(),
		resource.WithAttributes(
			semconv.ServiceName(ServiceName),
			attribute.String("deployment.environment", cfg.Environment),
			attribute.String("chain.id", cfg.ChainID),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("telemetry resource: %w", err)
	}

	if err := p.startTracing(res); err != nil {
		return nil, err
	}
	if cfg.PrometheusEnabled {
		if err := p.startMetrics(res); err != nil {
			return nil, errors.Join(err, p.traces.Shutdown(context.Background()))
		}
	}
	return p, nil
}

func (p *Provider) startTracing(res *resource.Resource) error {
	u, err := p.config.endpoint()
	if err != nil {
		return err
	}
	opts := []otlptracehttp.Option{
		otlptracehttp.WithEndpoint(u.Host),
		otlptracehttp.WithURLPath(path.Join("/", u.Path, "v1", "traces")),
	}
	if u.Scheme == "http" {
		opts = append(opts, otlptracehttp.WithInsecure())
	}

	exporter, err := otlptrace.New(context.Background(), otlptracehttp.NewClient(opts...))
	if err != nil {
		return fmt.Errorf("otlp exporter: %w", err)
	}

	p.traces = tracesdk.NewTracerProvider(
		tracesdk.WithBatcher(exporter, tracesdk.WithBatchTimeout(5*time.Second)),
		tracesdk.WithResource(res),
		tracesdk.WithSampler(tracesdk.ParentBased(tracesdk.TraceIDRatioBased(p.config.SampleRate))),
	)
	otel.SetTracerProvider(p.traces)
	return nil
}

// startMetrics exposes OTel instruments on the default Prometheus registry,
// which the metrics listener already serves.
func (p *Provider) startMetrics(res *resource.Resource) error {
	exporter, err := prometheus.New()
	if err != nil {
		return fmt.Errorf("prometheus exporter: %w", err)
	}
	p.meters = metricsdk.NewMeterProvider(
		metricsdk.WithResource(res),
		metricsdk.WithReader(exporter),
	)
	otel.SetMeterProvider(p.meters)
	return nil
}

// Shutdown flushes pending spans and stops both providers.
func (p *Provider) Shutdown(ctx context.Context) error {
	var errs []error
	if p.traces != nil {
		errs = append(errs, p.traces.Shutdown(ctx))
	}
	if p.meters != nil {
		errs = append(errs, p.meters.Shutdown(ctx))
	}
	return errors.Join(errs...)
}

// Tracer returns the node tracer.
func (p *Provider) Tracer() trace.Tracer {
	return otel.Tracer(instrumentationName)
}

// Meter returns the node meter.
func (p *Provider) Meter() metric.Meter {
	return otel.Meter(instrumentationName)
}

// HealthCheck reports whether an enabled provider finished setting up.
func (p *Provider) HealthCheck() error {
	if !p.config.Enabled {
		return nil
	}
	if p.traces == nil {
		return errors.New("tracer provider not running")
	}
	if p.config.PrometheusEnabled && p.meters == nil {
		return errors.New("meter provider not running")
	}
	return nil
}

// StartTxSpan opens the span covering one delivered transaction.
func StartTxSpan(ctx context.Context, msgType, signer string, height int64) (context.Context, trace.Span) {
	return otel.Tracer(instrumentationName).Start(ctx, "marketplace."+msgType,
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(
			attribute.Int64("block.height", height),
			attribute.String("tx.type", msgType),
			attribute.String("tx.signer", signer),
		),
	)
}

// RecordError marks span as failed with err.
func RecordError(span trace.Span, err error) {
	if span == nil || err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// FinishTxSpan records the receipt outcome on span. A zero code is success.
func FinishTxSpan(span trace.Span, codespace string, code uint32, log string) {
	if span == nil {
		return
	}
	span.SetAttributes(
		attribute.String("tx.codespace", codespace),
		attribute.Int64("tx.code", int64(code)),
	)
	if code == 0 {
		span.SetStatus(codes.Ok, "")
		return
	}
	span.SetStatus(codes.Error, log)
}
