// Package sqlite implements eventlog.Store on modernc.org/sqlite, a pure
// Go SQLite driver (no CGo). OCC runs the version check and the insert of
// every append inside one transaction, and appends never interleave: the
// Store serializes them with a mutex over a single database connection —
// the same atomic-fence idea the JetStream backend gets from its
// ExpectLastSequencePerSubject guard on the aggregate's log subject.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/infracore/eventcore/pkg/envelope"
	"github.com/infracore/eventcore/pkg/eventlog"
)

// Store is a SQLite-backed eventlog.Store.
type Store struct {
	db *sql.DB
	mu sync.Mutex // serializes appends so no two interleave their version check and insert
}

var _ eventlog.Store = (*Store)(nil)

type config struct {
	dsn          string
	maxOpenConns int
	walMode      bool
	autoMigrate  bool
}

func defaultConfig() config {
	return config{
		dsn:          "eventlog.db",
		maxOpenConns: 1, // SQLite writers serialize regardless; one conn avoids lock contention noise
		walMode:      true,
		autoMigrate:  true,
	}
}

// Option configures a Store.
type Option func(*config)

// WithDSN sets the database file path.
func WithDSN(dsn string) Option { return func(c *config) { c.dsn = dsn } }

// WithMemoryDatabase targets an in-process database, useful in tests.
func WithMemoryDatabase() Option { return func(c *config) { c.dsn = ":memory:" } }

// WithWALMode toggles write-ahead logging. Disabled automatically for
// :memory: databases regardless of this setting.
func WithWALMode(enabled bool) Option { return func(c *config) { c.walMode = enabled } }

// WithAutoMigrate toggles running the schema on Open.
func WithAutoMigrate(enabled bool) Option { return func(c *config) { c.autoMigrate = enabled } }

// Open creates or attaches to a SQLite-backed event log.
func Open(opts ...Option) (*Store, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	db, err := sql.Open("sqlite", cfg.dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %s: %w", cfg.dsn, err)
	}
	db.SetMaxOpenConns(1) // one logical writer; append serialization relies on a single connection

	if cfg.walMode && cfg.dsn != ":memory:" {
		if _, err := db.Exec(`PRAGMA journal_mode = WAL; PRAGMA synchronous = NORMAL; PRAGMA foreign_keys = ON;`); err != nil {
			db.Close()
			return nil, fmt.Errorf("sqlite: set WAL mode: %w", err)
		}
	} else {
		if _, err := db.Exec(`PRAGMA foreign_keys = ON;`); err != nil {
			db.Close()
			return nil, fmt.Errorf("sqlite: pragma foreign_keys: %w", err)
		}
	}

	if cfg.autoMigrate {
		if err := runMigrations(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("sqlite: run migrations: %w", err)
		}
	}

	return &Store{db: db}, nil
}

// beginImmediate opens the write transaction for an append. database/sql
// has no portable way to issue SQLite's own BEGIN IMMEDIATE through
// BeginTx, so the equivalent guarantee — no two appends interleave their
// version check and insert — comes from pairing a single connection
// (db.SetMaxOpenConns(1)) with s.mu: only one Append is ever in flight
// against the database at a time.
func (s *Store) beginImmediate(ctx context.Context) (*sql.Tx, error) {
	return s.db.BeginTx(ctx, nil)
}

// Append implements eventlog.Store.
func (s *Store) Append(ctx context.Context, aggregateID string, expectedVersion *uint64, events []envelope.StoredEvent) (uint64, error) {
	if len(events) == 0 {
		v, _, err := s.GetVersion(ctx, aggregateID)
		return v, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.beginImmediate(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: begin tx: %s", eventlog.ErrStoreUnavailable, err)
	}
	defer tx.Rollback()

	current, err := currentVersion(ctx, tx, aggregateID)
	if err != nil {
		return 0, fmt.Errorf("%w: read version: %s", eventlog.ErrStoreUnavailable, err)
	}

	if expectedVersion == nil {
		if current != 0 {
			return 0, &eventlog.ConcurrencyConflict{AggregateID: aggregateID, Expected: 0, Actual: current}
		}
	} else if *expectedVersion != current {
		return 0, &eventlog.ConcurrencyConflict{AggregateID: aggregateID, Expected: *expectedVersion, Actual: current}
	}

	newVersion := current
	for i, e := range events {
		e.Sequence = current + uint64(i) + 1
		if err := insertEvent(ctx, tx, e); err != nil {
			return 0, fmt.Errorf("sqlite: insert event: %w", err)
		}
		newVersion = e.Sequence
	}

	if err := setVersion(ctx, tx, aggregateID, newVersion); err != nil {
		return 0, fmt.Errorf("sqlite: update version: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("%w: commit: %s", eventlog.ErrStoreUnavailable, err)
	}

	return newVersion, nil
}

// AppendIdempotent records a command result under commandID inside the
// same transaction as the events it produced, so a retried command
// observes the prior outcome instead of double-appending.
func (s *Store) AppendIdempotent(ctx context.Context, aggregateID string, expectedVersion *uint64, events []envelope.StoredEvent, commandID string, ttl time.Duration) (uint64, bool, error) {
	if commandID == "" {
		return 0, false, errors.New("sqlite: commandID required for idempotent append")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if v, ok, err := s.commandVersion(ctx, commandID); err != nil {
		return 0, false, err
	} else if ok {
		return v, true, nil
	}

	tx, err := s.beginImmediate(ctx)
	if err != nil {
		return 0, false, fmt.Errorf("%w: begin tx: %s", eventlog.ErrStoreUnavailable, err)
	}
	defer tx.Rollback()

	var existing string
	err = tx.QueryRowContext(ctx, `SELECT command_id FROM processed_commands WHERE command_id = ?`, commandID).Scan(&existing)
	if err == nil {
		tx.Rollback()
		v, _, verr := s.GetVersion(ctx, aggregateID)
		return v, true, verr
	} else if !errors.Is(err, sql.ErrNoRows) {
		return 0, false, fmt.Errorf("sqlite: check processed command: %w", err)
	}

	current, err := currentVersion(ctx, tx, aggregateID)
	if err != nil {
		return 0, false, fmt.Errorf("%w: read version: %s", eventlog.ErrStoreUnavailable, err)
	}
	if expectedVersion == nil {
		if current != 0 {
			return 0, false, &eventlog.ConcurrencyConflict{AggregateID: aggregateID, Expected: 0, Actual: current}
		}
	} else if *expectedVersion != current {
		return 0, false, &eventlog.ConcurrencyConflict{AggregateID: aggregateID, Expected: *expectedVersion, Actual: current}
	}

	newVersion := current
	eventIDs := make([]string, len(events))
	for i, e := range events {
		e.Sequence = current + uint64(i) + 1
		if err := insertEvent(ctx, tx, e); err != nil {
			return 0, false, fmt.Errorf("sqlite: insert event: %w", err)
		}
		eventIDs[i] = e.EventID
		newVersion = e.Sequence
	}
	if err := setVersion(ctx, tx, aggregateID, newVersion); err != nil {
		return 0, false, fmt.Errorf("sqlite: update version: %w", err)
	}

	now := time.Now().UTC()
	eventIDsJSON, _ := json.Marshal(eventIDs)
	_, err = tx.ExecContext(ctx, `INSERT INTO processed_commands (command_id, aggregate_id, processed_at, expires_at, event_ids) VALUES (?, ?, ?, ?, ?)`,
		commandID, aggregateID, now.Format(time.RFC3339Nano), now.Add(ttl).Format(time.RFC3339Nano), string(eventIDsJSON))
	if err != nil {
		return 0, false, fmt.Errorf("sqlite: record processed command: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, false, fmt.Errorf("%w: commit: %s", eventlog.ErrStoreUnavailable, err)
	}
	return newVersion, false, nil
}

func (s *Store) commandVersion(ctx context.Context, commandID string) (uint64, bool, error) {
	var aggregateID string
	err := s.db.QueryRowContext(ctx, `SELECT aggregate_id FROM processed_commands WHERE command_id = ? AND expires_at > ?`,
		commandID, time.Now().UTC().Format(time.RFC3339Nano)).Scan(&aggregateID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("sqlite: check command: %w", err)
	}
	v, exists, err := s.GetVersion(ctx, aggregateID)
	if err != nil || !exists {
		return 0, false, err
	}
	return v, true, nil
}

func currentVersion(ctx context.Context, tx *sql.Tx, aggregateID string) (uint64, error) {
	var v uint64
	err := tx.QueryRowContext(ctx, `SELECT version FROM aggregate_versions WHERE aggregate_id = ?`, aggregateID).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	return v, err
}

func setVersion(ctx context.Context, tx *sql.Tx, aggregateID string, version uint64) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO aggregate_versions (aggregate_id, version) VALUES (?, ?)
		ON CONFLICT (aggregate_id) DO UPDATE SET version = excluded.version`,
		aggregateID, version)
	return err
}

func insertEvent(ctx context.Context, tx *sql.Tx, e envelope.StoredEvent) error {
	metadataJSON, err := json.Marshal(e.Metadata)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO events (event_id, aggregate_id, sequence, correlation_id, causation_id, event_type, event_version, timestamp_utc, data, metadata)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.EventID, e.AggregateID, e.Sequence, e.CorrelationID, e.CausationID, e.EventType, e.EventVersion,
		e.Timestamp.UTC().Format(time.RFC3339Nano), []byte(e.Payload), string(metadataJSON))
	return err
}

func scanEvents(rows *sql.Rows) ([]envelope.StoredEvent, error) {
	defer rows.Close()
	var out []envelope.StoredEvent
	for rows.Next() {
		var (
			e             envelope.StoredEvent
			timestampText string
			metadataJSON  string
			data          []byte
		)
		if err := rows.Scan(&e.EventID, &e.AggregateID, &e.Sequence, &e.CorrelationID, &e.CausationID,
			&e.EventType, &e.EventVersion, &timestampText, &data, &metadataJSON); err != nil {
			return nil, err
		}
		t, err := time.Parse(time.RFC3339Nano, timestampText)
		if err != nil {
			return nil, fmt.Errorf("sqlite: parse timestamp: %w", err)
		}
		e.Timestamp = t
		e.Payload = data
		if metadataJSON != "" {
			if err := json.Unmarshal([]byte(metadataJSON), &e.Metadata); err != nil {
				return nil, fmt.Errorf("sqlite: decode metadata: %w", err)
			}
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// ReadEvents implements eventlog.Store.
func (s *Store) ReadEvents(ctx context.Context, aggregateID string) ([]envelope.StoredEvent, error) {
	return s.ReadEventsFrom(ctx, aggregateID, 0)
}

// ReadEventsFrom implements eventlog.Store.
func (s *Store) ReadEventsFrom(ctx context.Context, aggregateID string, fromVersion uint64) ([]envelope.StoredEvent, error) {
	var out []envelope.StoredEvent
	offset := uint64(0)
	for {
		rows, err := s.db.QueryContext(ctx, `
			SELECT event_id, aggregate_id, sequence, correlation_id, causation_id, event_type, event_version, timestamp_utc, data, metadata
			FROM events WHERE aggregate_id = ? AND sequence >= ? ORDER BY sequence ASC LIMIT ? OFFSET ?`,
			aggregateID, fromVersion, eventlog.MaxReadBatch, offset)
		if err != nil {
			return nil, fmt.Errorf("%w: query events: %s", eventlog.ErrStoreUnavailable, err)
		}
		page, err := scanEvents(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, page...)
		if len(page) < eventlog.MaxReadBatch {
			break
		}
		offset += uint64(len(page))
	}
	return out, nil
}

// ReadByCorrelation implements eventlog.Store.
func (s *Store) ReadByCorrelation(ctx context.Context, correlationID string) ([]envelope.StoredEvent, error) {
	var out []envelope.StoredEvent
	offset := uint64(0)
	for {
		rows, err := s.db.QueryContext(ctx, `
			SELECT event_id, aggregate_id, sequence, correlation_id, causation_id, event_type, event_version, timestamp_utc, data, metadata
			FROM events WHERE correlation_id = ? ORDER BY timestamp_utc ASC, event_id ASC LIMIT ? OFFSET ?`,
			correlationID, eventlog.MaxReadBatch, offset)
		if err != nil {
			return nil, fmt.Errorf("%w: query events: %s", eventlog.ErrStoreUnavailable, err)
		}
		page, err := scanEvents(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, page...)
		if len(page) < eventlog.MaxReadBatch {
			break
		}
		offset += uint64(len(page))
	}
	return out, nil
}

// ReadEventsByTimeRange implements eventlog.Store.
func (s *Store) ReadEventsByTimeRange(ctx context.Context, aggregateID string, t0, t1 time.Time) ([]envelope.StoredEvent, error) {
	var events []envelope.StoredEvent
	offset := uint64(0)
	for {
		rows, err := s.db.QueryContext(ctx, `
			SELECT event_id, aggregate_id, sequence, correlation_id, causation_id, event_type, event_version, timestamp_utc, data, metadata
			FROM events WHERE aggregate_id = ? AND timestamp_utc >= ? AND timestamp_utc <= ? ORDER BY sequence ASC LIMIT ? OFFSET ?`,
			aggregateID, t0.UTC().Format(time.RFC3339Nano), t1.UTC().Format(time.RFC3339Nano), eventlog.MaxReadBatch, offset)
		if err != nil {
			return nil, fmt.Errorf("%w: query events: %s", eventlog.ErrStoreUnavailable, err)
		}
		page, err := scanEvents(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, page...)
		if len(page) < eventlog.MaxReadBatch {
			break
		}
		offset += uint64(len(page))
	}
	sort.Slice(events, func(i, j int) bool { return events[i].Sequence < events[j].Sequence })
	return events, nil
}

// GetVersion implements eventlog.Store.
func (s *Store) GetVersion(ctx context.Context, aggregateID string) (uint64, bool, error) {
	var v uint64
	err := s.db.QueryRowContext(ctx, `SELECT version FROM aggregate_versions WHERE aggregate_id = ?`, aggregateID).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("%w: read version: %s", eventlog.ErrStoreUnavailable, err)
	}
	return v, v > 0, nil
}

// AllAggregateIDs returns every distinct aggregate id in the log, used by
// full-log projection replay.
func (s *Store) AllAggregateIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT aggregate_id FROM aggregate_versions`)
	if err != nil {
		return nil, fmt.Errorf("%w: query aggregates: %s", eventlog.ErrStoreUnavailable, err)
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Close implements eventlog.Store.
func (s *Store) Close() error {
	return s.db.Close()
}
