package aggregate

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/infracore/eventcore/pkg/envelope"
	"github.com/infracore/eventcore/pkg/eventlog"
)

// PendingEvent is a fact a command handler wants appended. It carries no
// identity or sequence yet — Repository.Save assigns those as it builds
// each envelope.StoredEvent.
type PendingEvent struct {
	EventType string
	Version   uint32
	Payload   json.RawMessage
	Metadata  map[string]string
}

// Fold applies one stored event to a state value, returning the updated
// state. Implementations must be pure: no I/O, no clock reads, no
// mutation of the input — aggregates fold deterministically.
type Fold[S any] func(state S, event envelope.StoredEvent) (S, error)

// Repository loads and saves one aggregate kind's state against an
// eventlog.Store as a pure (state, event) fold rather than a mutable
// object graph.
type Repository[S any] struct {
	store eventlog.Store
	zero  func() S
	fold  Fold[S]
}

// NewRepository builds a Repository for state type S. zero returns the
// pre-registration state (e.g. the zero value, or one with an
// uninitialized marker); fold is the pure event-application function.
func NewRepository[S any](store eventlog.Store, zero func() S, fold Fold[S]) *Repository[S] {
	return &Repository[S]{store: store, zero: zero, fold: fold}
}

// Loaded is an aggregate's reconstructed state plus the version it was
// reconstructed at, so callers can pass the right expectedVersion to Save.
type Loaded[S any] struct {
	State   S
	Version uint64
	Exists  bool
	// LastEventID is the event_id of the stream's most recent event, used
	// to thread causation_id for a freshly dispatched command against an
	// already-existing aggregate (the new event's direct cause is "the
	// state as last observed", i.e. the tip of the stream, not the
	// aggregate itself — aggregate_id is only the causation root for a
	// stream's very first event).
	LastEventID string
}

// Load replays an aggregate's full history and folds it into state.
func (r *Repository[S]) Load(ctx context.Context, aggregateID string) (Loaded[S], error) {
	events, err := r.store.ReadEvents(ctx, aggregateID)
	if err != nil {
		return Loaded[S]{}, fmt.Errorf("aggregate: load %s: %w", aggregateID, err)
	}

	state := r.zero()
	var version uint64
	var lastEventID string
	for _, e := range events {
		state, err = r.fold(state, e)
		if err != nil {
			return Loaded[S]{}, fmt.Errorf("aggregate: fold event %s (seq %d): %w", e.EventID, e.Sequence, err)
		}
		version = e.Sequence
		lastEventID = e.EventID
	}

	return Loaded[S]{State: state, Version: version, Exists: len(events) > 0, LastEventID: lastEventID}, nil
}

// Save appends pending events produced by a command handler, threading
// correlation/causation: the first event of a new stream causes from the
// aggregate id itself, every later event causes from the event (command
// or prior fact) that triggered it.
//
// expectedVersion must be the version Load returned (nil only for the
// very first append to a brand-new aggregate id).
func (r *Repository[S]) Save(
	ctx context.Context,
	aggregateID string,
	expectedVersion *uint64,
	correlationID string,
	causationID string,
	pending []PendingEvent,
	at time.Time,
) (uint64, []envelope.StoredEvent, error) {
	if len(pending) == 0 {
		v, _, err := r.store.GetVersion(ctx, aggregateID)
		return v, nil, err
	}

	stored := make([]envelope.StoredEvent, len(pending))
	if expectedVersion == nil {
		stored[0] = envelope.NewRoot(aggregateID, correlationID, pending[0].EventType, pending[0].Version, pending[0].Payload, pending[0].Metadata, at)
		for i := 1; i < len(pending); i++ {
			stored[i] = envelope.NewFollowing(aggregateID, 0, correlationID, stored[i-1].EventID, pending[i].EventType, pending[i].Version, pending[i].Payload, pending[i].Metadata, at)
		}
	} else {
		prevCausation := causationID
		for i, p := range pending {
			stored[i] = envelope.NewFollowing(aggregateID, 0, correlationID, prevCausation, p.EventType, p.Version, p.Payload, p.Metadata, at)
			prevCausation = stored[i].EventID
		}
	}

	newVersion, err := r.store.Append(ctx, aggregateID, expectedVersion, stored)
	if err != nil {
		return 0, nil, err
	}
	return newVersion, stored, nil
}
