package observability_test

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	_ "modernc.org/sqlite"

	"github.com/infracore/eventcore/pkg/observability"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", "file::memory:?cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestSQLiteTraceExporterPersistsSpans(t *testing.T) {
	db := openTestDB(t)

	exporter, err := observability.NewSQLiteTraceExporter(observability.DefaultSQLiteExporterConfig(db))
	require.NoError(t, err)

	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	tracer := tp.Tracer("test")

	_, span := tracer.Start(context.Background(), "projector.handle")
	span.End()
	require.NoError(t, tp.Shutdown(context.Background()))

	var count int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM eventcore_spans").Scan(&count))
	assert.Equal(t, 1, count)
}

func TestNewSQLiteTraceExporterRequiresConfig(t *testing.T) {
	_, err := observability.NewSQLiteTraceExporter(nil)
	assert.Error(t, err)
}

func TestNewSQLiteTraceExporterRequiresDB(t *testing.T) {
	_, err := observability.NewSQLiteTraceExporter(&observability.SQLiteExporterConfig{})
	assert.Error(t, err)
}
