// Package memory provides an in-process eventlog.Store used for unit tests
// and as a reference implementation of the OCC append contract.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/infracore/eventcore/pkg/envelope"
	"github.com/infracore/eventcore/pkg/eventlog"
)

// Store is a mutex-guarded in-memory eventlog.Store.
type Store struct {
	mu      sync.RWMutex
	streams map[string][]envelope.StoredEvent
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{streams: make(map[string][]envelope.StoredEvent)}
}

var _ eventlog.Store = (*Store)(nil)

// Append implements eventlog.Store.
func (s *Store) Append(_ context.Context, aggregateID string, expectedVersion *uint64, events []envelope.StoredEvent) (uint64, error) {
	if len(events) == 0 {
		s.mu.RLock()
		defer s.mu.RUnlock()
		return uint64(len(s.streams[aggregateID])), nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current := uint64(len(s.streams[aggregateID]))
	if expectedVersion == nil {
		if current != 0 {
			return 0, &eventlog.ConcurrencyConflict{AggregateID: aggregateID, Expected: 0, Actual: current}
		}
	} else if *expectedVersion != current {
		return 0, &eventlog.ConcurrencyConflict{AggregateID: aggregateID, Expected: *expectedVersion, Actual: current}
	}

	appended := make([]envelope.StoredEvent, len(events))
	copy(appended, events)
	for i := range appended {
		appended[i].Sequence = current + uint64(i) + 1
	}

	s.streams[aggregateID] = append(s.streams[aggregateID], appended...)
	return current + uint64(len(events)), nil
}

// ReadEvents implements eventlog.Store.
func (s *Store) ReadEvents(ctx context.Context, aggregateID string) ([]envelope.StoredEvent, error) {
	return s.ReadEventsFrom(ctx, aggregateID, 0)
}

// ReadEventsFrom implements eventlog.Store.
func (s *Store) ReadEventsFrom(_ context.Context, aggregateID string, fromVersion uint64) ([]envelope.StoredEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stream := s.streams[aggregateID]
	out := make([]envelope.StoredEvent, 0, len(stream))
	for _, e := range stream {
		if e.Sequence >= fromVersion {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Sequence < out[j].Sequence })
	return out, nil
}

// ReadByCorrelation implements eventlog.Store.
func (s *Store) ReadByCorrelation(_ context.Context, correlationID string) ([]envelope.StoredEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []envelope.StoredEvent
	for _, stream := range s.streams {
		for _, e := range stream {
			if e.CorrelationID == correlationID {
				out = append(out, e)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

// ReadEventsByTimeRange implements eventlog.Store.
func (s *Store) ReadEventsByTimeRange(_ context.Context, aggregateID string, t0, t1 time.Time) ([]envelope.StoredEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []envelope.StoredEvent
	for _, e := range s.streams[aggregateID] {
		if (e.Timestamp.Equal(t0) || e.Timestamp.After(t0)) && (e.Timestamp.Equal(t1) || e.Timestamp.Before(t1)) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Sequence < out[j].Sequence })
	return out, nil
}

// GetVersion implements eventlog.Store.
func (s *Store) GetVersion(_ context.Context, aggregateID string) (uint64, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stream, ok := s.streams[aggregateID]
	if !ok || len(stream) == 0 {
		return 0, false, nil
	}
	return uint64(len(stream)), true, nil
}

// Close implements eventlog.Store.
func (s *Store) Close() error { return nil }
