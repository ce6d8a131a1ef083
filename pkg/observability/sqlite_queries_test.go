package observability_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/infracore/eventcore/pkg/observability"
)

func TestQuerySpansFindsExportedSpan(t *testing.T) {
	db := openTestDB(t)
	cfg := observability.DefaultSQLiteExporterConfig(db)

	traceExporter, err := observability.NewSQLiteTraceExporter(cfg)
	require.NoError(t, err)

	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(traceExporter))
	_, span := tp.Tracer("test").Start(context.Background(), "projector.handle")
	span.End()
	require.NoError(t, tp.Shutdown(context.Background()))

	queries := observability.NewSQLiteObservabilityQueries(db, cfg)
	spans, err := queries.QuerySpans(observability.TraceQuery{Name: "projector.handle"})
	require.NoError(t, err)
	require.Len(t, spans, 1)
	assert.Equal(t, "projector.handle", spans[0].Name)
}

func TestQueryMetricsAndSummaryFindExportedMetric(t *testing.T) {
	db := openTestDB(t)
	cfg := observability.DefaultSQLiteExporterConfig(db)

	metricExporter, err := observability.NewSQLiteMetricExporter(cfg)
	require.NoError(t, err)

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	counter, err := mp.Meter("test").Int64Counter("eventcore.test.counter")
	require.NoError(t, err)
	counter.Add(context.Background(), 3)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	require.NoError(t, metricExporter.Export(context.Background(), &rm))

	queries := observability.NewSQLiteObservabilityQueries(db, cfg)

	points, err := queries.QueryMetrics(observability.MetricQuery{Name: "eventcore.test.counter"})
	require.NoError(t, err)
	require.Len(t, points, 1)

	summary, err := queries.GetMetricSummary("eventcore.test.counter", time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, "eventcore.test.counter", summary["name"])
}

func TestQueryProjectionLagFiltersByProjectionName(t *testing.T) {
	db := openTestDB(t)
	cfg := observability.DefaultSQLiteExporterConfig(db)

	metricExporter, err := observability.NewSQLiteMetricExporter(cfg)
	require.NoError(t, err)

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	metrics, err := observability.NewMetrics(mp.Meter("test"))
	require.NoError(t, err)

	ctx := context.Background()
	metrics.RecordProjectionLag(ctx, "compute_view", 1.5)
	metrics.RecordProjectionLag(ctx, "other_view", 9.0)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))
	require.NoError(t, metricExporter.Export(ctx, &rm))

	queries := observability.NewSQLiteObservabilityQueries(db, cfg)

	all, err := queries.QueryProjectionLag("", 10)
	require.NoError(t, err)
	require.Len(t, all, 2)

	computeView, err := queries.QueryProjectionLag("compute_view", 10)
	require.NoError(t, err)
	require.Len(t, computeView, 1)
	assert.Equal(t, 1.5, computeView[0].LagSeconds)
}
