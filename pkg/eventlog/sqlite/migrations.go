package sqlite

import "database/sql"

// schema is applied once at startup. modernc.org/sqlite ships no migration
// tooling of its own, so this is a single idempotent DDL script guarded
// by IF NOT EXISTS, run inside one transaction.
const schema = `
CREATE TABLE IF NOT EXISTS events (
	event_id       TEXT PRIMARY KEY,
	aggregate_id   TEXT NOT NULL,
	sequence       INTEGER NOT NULL,
	correlation_id TEXT NOT NULL,
	causation_id   TEXT NOT NULL,
	event_type     TEXT NOT NULL,
	event_version  INTEGER NOT NULL,
	timestamp_utc  TEXT NOT NULL,
	data           BLOB NOT NULL,
	metadata       TEXT NOT NULL DEFAULT '{}',
	UNIQUE (aggregate_id, sequence)
);

CREATE INDEX IF NOT EXISTS idx_events_correlation ON events (correlation_id);
CREATE INDEX IF NOT EXISTS idx_events_aggregate_time ON events (aggregate_id, timestamp_utc);

CREATE TABLE IF NOT EXISTS aggregate_versions (
	aggregate_id TEXT PRIMARY KEY,
	version      INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS processed_commands (
	command_id   TEXT PRIMARY KEY,
	aggregate_id TEXT NOT NULL,
	processed_at TEXT NOT NULL,
	expires_at   TEXT NOT NULL,
	event_ids    TEXT NOT NULL
);
`

func runMigrations(db *sql.DB) error {
	_, err := db.Exec(schema)
	return err
}
