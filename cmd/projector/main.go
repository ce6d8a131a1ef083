// Command projector runs the compute-resource read-model projector: it
// connects to a NATS JetStream broker, opens the durable event log, and
// feeds every infrastructure.compute.> event through the compute-view
// projection into a SQLite-backed read model.
//
// Configuration is read entirely from the environment (EVENTCORE_BROKER_URL,
// EVENTCORE_STREAM, EVENTCORE_CONSUMER, EVENTCORE_CREDENTIALS_URL,
// EVENTCORE_PROJECTION_DSN, EVENTCORE_ENVIRONMENT) so the binary runs the
// same way under a process manager as it does by hand. The process exits
// 0 on a clean shutdown (SIGINT/SIGTERM) and non-zero if anything fails to
// initialize.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/nats-io/nats.go"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	_ "modernc.org/sqlite"

	"github.com/infracore/eventcore/pkg/eventlog/jetstream"
	"github.com/infracore/eventcore/pkg/observability"
	"github.com/infracore/eventcore/pkg/projection/executor"
	"github.com/infracore/eventcore/pkg/pubsub"
	pubsubjetstream "github.com/infracore/eventcore/pkg/pubsub/jetstream"
	"github.com/infracore/eventcore/pkg/runner"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("projector: fatal", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	ctx := context.Background()
	cfg := loadConfig()

	db, err := sql.Open("sqlite", cfg.projectionDSN)
	if err != nil {
		return fmt.Errorf("open projection database: %w", err)
	}
	defer db.Close()
	if err := ensureComputeViewSchema(ctx, db); err != nil {
		return fmt.Errorf("migrate projection schema: %w", err)
	}

	tel, err := initTelemetry(ctx, cfg, db, logger)
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer tel.Shutdown(ctx)

	natsOpts, err := brokerOptions(ctx, cfg)
	if err != nil {
		return fmt.Errorf("resolve broker credentials: %w", err)
	}
	natsOpts = append(natsOpts, nats.Name("eventcore-projector"), nats.MaxReconnects(-1))

	nc, err := nats.Connect(cfg.brokerURL, natsOpts...)
	if err != nil {
		return fmt.Errorf("connect to broker %s: %w", cfg.brokerURL, err)
	}
	// store.Close/bus.Close below both close nc; neither is redundant to
	// call since the connection close is idempotent, but there's no need
	// for a third defer here.

	jsCfg := jetstream.DefaultConfig()
	jsCfg.Stream = cfg.stream
	store, err := jetstream.Open(nc, jsCfg)
	if err != nil {
		return fmt.Errorf("open event log: %w", err)
	}
	defer store.Close()

	bus, err := pubsubjetstream.NewBus(nc, pubsubjetstream.Config{
		Stream:         cfg.stream,
		StreamSubjects: []string{"infrastructure.>"},
	})
	if err != nil {
		return fmt.Errorf("open pub/sub bus: %w", err)
	}
	defer bus.Close()

	consumer, err := bus.NewPullConsumer(pubsub.PullConsumerConfig{
		Durable:   cfg.consumer,
		Subject:   cfg.subjectFilter,
		BatchSize: 100,
		MaxWait:   fetchTimeout,
	})
	if err != nil {
		return fmt.Errorf("open pull consumer: %w", err)
	}

	tracer := tel.TracerProvider.Tracer("eventcore.projector")
	exec := executor.Logging{Logger: logger, Next: executor.SQL{DB: db, KeyColumn: "aggregate_id"}}
	view := newComputeViewConsumer(consumer, exec, logger, tracer)

	logger.Info("projector: replaying history into read model")
	if err := bootstrap(ctx, store, exec, view, logger); err != nil {
		return fmt.Errorf("bootstrap replay: %w", err)
	}

	svc := runner.NewConsumerService("compute-view-projector", view)
	svcRunner := runner.New(
		[]runner.Service{svc},
		runner.WithLogger(runner.NewSlogLogger(logger)),
		runner.WithMetrics(tel.Metrics),
		runner.WithShutdownTimeout(30*time.Second),
		runner.WithStartupTimeout(time.Minute),
	)

	logger.Info("projector: consuming", "stream", cfg.stream, "consumer", cfg.consumer, "subject", cfg.subjectFilter)
	return svcRunner.Run(ctx)
}

// ensureComputeViewSchema creates the read-model table executor.SQL writes
// into if it doesn't already exist. Column names match computeview.View.row().
func ensureComputeViewSchema(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS compute_view (
	aggregate_id    TEXT PRIMARY KEY,
	hostname        TEXT NOT NULL,
	resource_type   TEXT NOT NULL,
	status          TEXT NOT NULL,
	organization_id TEXT,
	owner_id        TEXT,
	policy_count    INTEGER NOT NULL DEFAULT 0
)`)
	return err
}

// initTelemetry wires the compute-view database as the backing store for
// trace/metric export too, so a single EVENTCORE_PROJECTION_DSN gives both
// the read model and its observability tables.
func initTelemetry(ctx context.Context, cfg config, db *sql.DB, logger *slog.Logger) (*observability.Telemetry, error) {
	traceExporter, err := observability.NewSQLiteTraceExporter(observability.DefaultSQLiteExporterConfig(db))
	if err != nil {
		return nil, fmt.Errorf("create trace exporter: %w", err)
	}
	metricExporter, err := observability.NewSQLiteMetricExporter(observability.DefaultSQLiteExporterConfig(db))
	if err != nil {
		return nil, fmt.Errorf("create metric exporter: %w", err)
	}

	return observability.Init(ctx, observability.Config{
		ServiceName:     "eventcore-projector",
		ServiceVersion:  "0.1.0",
		Environment:     cfg.environment,
		TraceExporter:   traceExporter,
		MetricReader:    sdkmetric.NewPeriodicReader(metricExporter),
		TraceSampleRate: 1.0,
		Logger:          logger,
	})
}
