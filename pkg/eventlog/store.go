// Package eventlog defines the append-only, per-aggregate ordered event log
// contract and its error taxonomy. Concrete backends live in subpackages
// (jetstream, sqlite, memory).
package eventlog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/infracore/eventcore/pkg/envelope"
)

// MaxReadBatch bounds every backend's per-fetch page size: implementers
// must read in bounded batches, never the whole stream in one fetch.
const MaxReadBatch = 10_000

// DefaultReadBatch is used when a caller doesn't specify a batch size.
const DefaultReadBatch = 1_000

// Store is the event log contract. Every method is safe for concurrent use.
type Store interface {
	// Append persists events to an aggregate's stream atomically.
	// expectedVersion, if non-nil, must equal the current version or
	// ErrConcurrencyConflict is returned. A nil expectedVersion is only
	// valid for the first append to a stream.
	Append(ctx context.Context, aggregateID string, expectedVersion *uint64, events []envelope.StoredEvent) (newVersion uint64, err error)

	// ReadEvents returns all events for an aggregate in sequence order.
	ReadEvents(ctx context.Context, aggregateID string) ([]envelope.StoredEvent, error)

	// ReadEventsFrom returns events with sequence >= fromVersion, ascending.
	ReadEventsFrom(ctx context.Context, aggregateID string, fromVersion uint64) ([]envelope.StoredEvent, error)

	// ReadByCorrelation returns every event sharing correlationID, sorted
	// by timestamp ascending, regardless of aggregate.
	ReadByCorrelation(ctx context.Context, correlationID string) ([]envelope.StoredEvent, error)

	// ReadEventsByTimeRange returns an aggregate's events with
	// t0 <= timestamp <= t1, in sequence order.
	ReadEventsByTimeRange(ctx context.Context, aggregateID string, t0, t1 time.Time) ([]envelope.StoredEvent, error)

	// GetVersion returns the current version of an aggregate, and false if
	// the aggregate has no events yet.
	GetVersion(ctx context.Context, aggregateID string) (version uint64, exists bool, err error)

	// Close releases resources held by the store.
	Close() error
}

// ConcurrencyConflict is returned when expectedVersion does not match the
// aggregate's actual current version.
type ConcurrencyConflict struct {
	AggregateID string
	Expected    uint64
	Actual      uint64
}

func (e *ConcurrencyConflict) Error() string {
	return fmt.Sprintf("concurrency conflict on aggregate %s: expected version %d, actual %d", e.AggregateID, e.Expected, e.Actual)
}

func (e *ConcurrencyConflict) Is(target error) bool {
	return target == ErrConcurrencyConflict
}

// ErrConcurrencyConflict is the sentinel every ConcurrencyConflict wraps,
// so callers can errors.Is(err, ErrConcurrencyConflict) without caring
// about the expected/actual values.
var ErrConcurrencyConflict = errors.New("eventlog: concurrency conflict")

// ErrAggregateNotFound names a missing aggregate stream. No Store in this
// module returns it: the ReadEvents-family calls of every backend return an
// empty result, not an error, for an aggregate with no events.
var ErrAggregateNotFound = errors.New("eventlog: aggregate not found")

// ErrStoreUnavailable wraps broker/transport failures. Retrying with
// backoff and cancelling after a deadline is the caller's responsibility,
// not the store's.
var ErrStoreUnavailable = errors.New("eventlog: store unavailable")
