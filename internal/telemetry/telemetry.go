// Package telemetry sets up OpenTelemetry tracing and metrics for the bot.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"gitlab.com/yelinaung/tgbot/internal/config"
	"gitlab.com/yelinaung/tgbot/internal/logger"
)

// Config selects the exporters. OTLP exporters read their endpoint from
// the standard OTEL_EXPORTER_OTLP_* variables.
type Config struct {
	ServiceName     string
	ServiceVersion  string
	TraceExporter   string
	MetricsExporter string
	// Writer receives the output of stdout exporters. Defaults to os.Stdout.
	Writer io.Writer
}

// Providers holds the providers installed by Setup.
type Providers struct {
	TracerProvider trace.TracerProvider
	MeterProvider  metric.MeterProvider

	shutdown []func(context.Context) error
}

// Setup creates the tracer and meter providers and installs them as the
// global OpenTelemetry providers.
func Setup(ctx context.Context, cfg Config) (*Providers, error) {
	if cfg.Writer == nil {
		cfg.Writer = os.Stdout
	}
	res, err := resource.New(ctx, resource.WithAttributes(
		attribute.String("service.name", cfg.ServiceName),
		attribute.String("service.version", cfg.ServiceVersion),
	))
	if err != nil {
		return nil, fmt.Errorf("failed to create telemetry resource: %w", err)
	}

	p := &Providers{}
	if err := p.setupTracing(ctx, cfg, res); err != nil {
		return nil, err
	}
	if err := p.setupMetrics(ctx, cfg, res); err != nil {
		return nil, errors.Join(err, p.Shutdown(ctx))
	}

	otel.SetTracerProvider(p.TracerProvider)
	otel.SetMeterProvider(p.MeterProvider)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	logger.Log.Info().
		Str("traces", cfg.TraceExporter).
		Str("metrics", cfg.MetricsExporter).
		Msg("Telemetry initialized")
	return p, nil
}

func (p *Providers) setupTracing(ctx context.Context, cfg Config, res *resource.Resource) error {
	var (
		exp sdktrace.SpanExporter
		err error
	)
	switch cfg.TraceExporter {
	case "", config.ExporterNone:
		p.TracerProvider = tracenoop.NewTracerProvider()
		return nil
	case config.ExporterStdout:
		exp, err = stdouttrace.New(stdouttrace.WithWriter(cfg.Writer))
	case config.ExporterOTLPHTTP:
		exp, err = otlptracehttp.New(ctx)
	case config.ExporterOTLPGRPC:
		exp, err = otlptracegrpc.New(ctx)
	default:
		return fmt.Errorf("unknown trace exporter %q", cfg.TraceExporter)
	}
	if err != nil {
		return fmt.Errorf("failed to create trace exporter: %w", err)
	}
	tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exp), sdktrace.WithResource(res))
	p.TracerProvider = tp
	p.shutdown = append(p.shutdown, tp.Shutdown)
	return nil
}

func (p *Providers) setupMetrics(ctx context.Context, cfg Config, res *resource.Resource) error {
	var (
		exp sdkmetric.Exporter
		err error
	)
	switch cfg.MetricsExporter {
	case "", config.ExporterNone:
		p.MeterProvider = metricnoop.NewMeterProvider()
		return nil
	case config.ExporterStdout:
		exp, err = stdoutmetric.New(stdoutmetric.WithWriter(cfg.Writer))
	case config.ExporterOTLPHTTP:
		exp, err = otlpmetrichttp.New(ctx)
	case config.ExporterOTLPGRPC:
		exp, err = otlpmetricgrpc.New(ctx)
	default:
		return fmt.Errorf("unknown metrics exporter %q", cfg.MetricsExporter)
	}
	if err != nil {
		return fmt.Errorf("failed to create metrics exporter: %w", err)
	}
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exp)),
		sdkmetric.WithResource(res),
	)
	p.MeterProvider = mp
	p.shutdown = append(p.shutdown, mp.Shutdown)
	return nil
}

// Shutdown flushes and stops the exporters.
func (p *Providers) Shutdown(ctx context.Context) error {
	var errs []error
	for _, fn := range p.shutdown {
		errs = append(errs, fn(ctx))
	}
	p.shutdown = nil
	return errors.Join(errs...)
}
