package telemetry

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"gitlab.com/yelinaung/tgbot/internal/config"
)

func TestSetup(t *testing.T) {
	ctx := context.Background()

	t.Run("none installs noop providers", func(t *testing.T) {
		p, err := Setup(ctx, Config{ServiceName: "pollbot"})
		require.NoError(t, err)
		require.IsType(t, tracenoop.TracerProvider{}, p.TracerProvider)
		require.IsType(t, metricnoop.MeterProvider{}, p.MeterProvider)
		require.NoError(t, p.Shutdown(ctx))
	})

	t.Run("stdout exporters write on shutdown", func(t *testing.T) {
		var buf bytes.Buffer
		p, err := Setup(ctx, Config{
			ServiceName:     "pollbot",
			ServiceVersion:  "test",
			TraceExporter:   config.ExporterStdout,
			MetricsExporter: config.ExporterStdout,
			Writer:          &buf,
		})
		require.NoError(t, err)

		_, span := otel.Tracer("telemetry-test").Start(ctx, "send-poll")
		span.End()
		counter, err := otel.Meter("telemetry-test").Int64Counter("polls.created")
		require.NoError(t, err)
		counter.Add(ctx, 3)

		require.NoError(t, p.Shutdown(ctx))
		require.Contains(t, buf.String(), "send-poll")
		require.Contains(t, buf.String(), "polls.created")
		require.Contains(t, buf.String(), "pollbot")
	})

	t.Run("rejects unknown exporters", func(t *testing.T) {
		_, err := Setup(ctx, Config{TraceExporter: "jaeger"})
		require.ErrorContains(t, err, "unknown trace exporter")

		_, err = Setup(ctx, Config{TraceExporter: config.ExporterStdout, MetricsExporter: "statsd", Writer: &bytes.Buffer{}})
		require.ErrorContains(t, err, "unknown metrics exporter")
	})
}
