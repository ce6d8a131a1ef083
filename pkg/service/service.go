// Package service is the transactional facade for command handling:
// load -> fold -> handle -> append (optimistic concurrency) -> publish.
// It's the only place that sequence is allowed to live — callers never
// touch aggregate.Repository or eventlog.Store directly.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/infracore/eventcore/pkg/aggregate"
	"github.com/infracore/eventcore/pkg/envelope"
	"github.com/infracore/eventcore/pkg/eventlog"
	"github.com/infracore/eventcore/pkg/pubsub"
)

// Clock supplies the timestamp command handling stamps onto new events.
// Injected so pure aggregate logic never calls time.Now itself and so
// tests can fix it.
type Clock func() time.Time

// Handle is a pure command handler: (State, Command) -> ([]PendingEvent, error).
type Handle[S, C any] func(state S, cmd C) ([]aggregate.PendingEvent, error)

// Service dispatches commands against one aggregate kind, handling load,
// append, and best-effort publish in one call. A lost optimistic
// concurrency race is surfaced to the caller as ErrConcurrencyConflict
// rather than retried internally: the caller re-drives Dispatch from a
// freshly loaded state, since only it knows whether the command is still
// valid to reapply.
type Service[S, C any] struct {
	repo    *aggregate.Repository[S]
	handle  Handle[S, C]
	publish pubsub.Publisher // optional; nil disables the publish step
	clock   Clock
	log     *slog.Logger
}

// New builds a Service. publish may be nil — eventlog backends that
// already publish on Append (pkg/eventlog/jetstream) make a distinct
// Service-level publish redundant; SQL-backed deployments typically
// supply one so downstream consumers still see a pub/sub feed.
func New[S, C any](repo *aggregate.Repository[S], handle Handle[S, C], publish pubsub.Publisher, clock Clock, log *slog.Logger) *Service[S, C] {
	if clock == nil {
		clock = time.Now
	}
	if log == nil {
		log = slog.Default()
	}
	return &Service[S, C]{repo: repo, handle: handle, publish: publish, clock: clock, log: log}
}

// Result reports what a successful Dispatch produced.
type Result struct {
	AggregateID   string
	Version       uint64
	Events        []envelope.StoredEvent
	CorrelationID string
}

// Dispatch runs one command through load -> fold -> handle -> append ->
// publish. correlationID should be supplied by the caller when
// continuing an existing request flow (e.g. a saga step); an empty
// string mints a fresh one, treating this as the start of a new flow.
func (s *Service[S, C]) Dispatch(ctx context.Context, aggregateID string, cmd C, correlationID string) (Result, error) {
	if correlationID == "" {
		correlationID = uuid.NewString()
	}

	loaded, err := s.repo.Load(ctx, aggregateID)
	if err != nil {
		return Result{}, fmt.Errorf("service: load %s: %w", aggregateID, err)
	}

	pending, err := s.handle(loaded.State, cmd)
	if err != nil {
		return Result{}, err
	}
	if len(pending) == 0 {
		return Result{AggregateID: aggregateID, Version: loaded.Version, CorrelationID: correlationID}, nil
	}

	var expected *uint64
	causationID := aggregateID
	if loaded.Exists {
		v := loaded.Version
		expected = &v
		causationID = loaded.LastEventID
	}

	newVersion, stored, err := s.repo.Save(ctx, aggregateID, expected, correlationID, causationID, pending, s.clock())
	if err != nil {
		if errors.Is(err, eventlog.ErrConcurrencyConflict) {
			s.log.Warn("service: optimistic concurrency conflict, surfacing to caller",
				slog.String("aggregate_id", aggregateID))
			return Result{}, err
		}
		return Result{}, fmt.Errorf("service: save %s: %w", aggregateID, err)
	}

	if s.publish != nil {
		if _, perr := s.publish.Publish(ctx, stored); perr != nil {
			s.log.Error("service: publish failed after durable append",
				slog.String("aggregate_id", aggregateID), slog.Any("error", perr))
		}
	}

	return Result{AggregateID: aggregateID, Version: newVersion, Events: stored, CorrelationID: correlationID}, nil
}
