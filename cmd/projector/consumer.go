package main

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/infracore/eventcore/pkg/envelope"
	"github.com/infracore/eventcore/pkg/projection"
	"github.com/infracore/eventcore/pkg/projection/computeview"
	"github.com/infracore/eventcore/pkg/projection/executor"
	"github.com/infracore/eventcore/pkg/pubsub"
)

// computeViewConsumer drains a durable pull consumer and folds every
// delivered event through computeview.Project, applying the resulting
// effects through exec and reporting disposition back to the broker.
type computeViewConsumer struct {
	consumer pubsub.PullConsumer
	exec     executor.SideEffectExecutor
	logger   *slog.Logger
	tracer   trace.Tracer

	mu    sync.Mutex
	views map[string]computeview.View
}

func newComputeViewConsumer(consumer pubsub.PullConsumer, exec executor.SideEffectExecutor, logger *slog.Logger, tracer trace.Tracer) *computeViewConsumer {
	return &computeViewConsumer{
		consumer: consumer,
		exec:     exec,
		logger:   logger,
		tracer:   tracer,
		views:    make(map[string]computeview.View),
	}
}

// seed primes the in-memory fold state from a prior bootstrap replay, so a
// live delivery that arrives right after startup folds onto the same state
// the replay already persisted instead of reinserting from Register.
func (c *computeViewConsumer) seed(aggregateID string, state computeview.View) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.views[aggregateID] = state
}

// Run implements runner.FetchLoop. It blocks until ctx is cancelled,
// treating pubsub.ErrNoMoreMessages as "caught up, keep polling" rather
// than end of stream (pkg/pubsub's PullConsumer doc comment: only bounded
// replay reads treat a fetch timeout as EOF).
func (c *computeViewConsumer) Run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return nil
		}

		deliveries, err := c.consumer.Fetch(ctx)
		if err != nil {
			if errors.Is(err, pubsub.ErrNoMoreMessages) {
				continue
			}
			if ctx.Err() != nil {
				return nil
			}
			c.logger.Error("projector: fetch failed", "error", err)
			continue
		}

		for _, d := range deliveries {
			c.handle(ctx, d)
		}
	}
}

func (c *computeViewConsumer) handle(ctx context.Context, d pubsub.Delivery) {
	spanCtx, span := c.tracer.Start(ctx, "projector.handle")
	span.SetAttributes(
		attribute.String("event.id", d.Event.EventID),
		attribute.String("event.type", d.Event.EventType),
		attribute.String("aggregate.id", d.Event.AggregateID),
	)
	defer span.End()

	c.mu.Lock()
	state, effects, err := computeview.Project(c.views[d.Event.AggregateID], d.Event)
	if err == nil {
		c.views[d.Event.AggregateID] = state
	}
	c.mu.Unlock()

	if err != nil {
		c.logger.Error("projector: fold failed", "error", err, "event_id", d.Event.EventID)
		if termErr := d.Term("fold error: " + err.Error()); termErr != nil {
			c.logger.Error("projector: term failed", "error", termErr)
		}
		return
	}

	if err := c.exec.Execute(spanCtx, effects); err != nil {
		c.logger.Error("projector: execute failed", "error", err, "event_id", d.Event.EventID)
		if nakErr := d.Nak(0); nakErr != nil {
			c.logger.Error("projector: nak failed", "error", nakErr)
		}
		return
	}

	if err := d.Ack(); err != nil {
		c.logger.Error("projector: ack failed", "error", err, "event_id", d.Event.EventID)
	}
}

// aggregateReader is the subset of eventlog/jetstream.Store bootstrap needs
// to replay history into the read model before live consumption starts.
type aggregateReader interface {
	AllAggregateIDs(ctx context.Context) ([]string, error)
	ReadEvents(ctx context.Context, aggregateID string) ([]envelope.StoredEvent, error)
}

// bootstrap replays every already-stored event through the projection
// before the live consumer starts, so a fresh read-model database catches
// up to history instead of only seeing events appended from this point
// forward.
func bootstrap(ctx context.Context, store aggregateReader, exec executor.SideEffectExecutor, consumer *computeViewConsumer, logger *slog.Logger) error {
	ids, err := store.AllAggregateIDs(ctx)
	if err != nil {
		return err
	}

	for _, id := range ids {
		events, err := store.ReadEvents(ctx, id)
		if err != nil {
			return err
		}
		if len(events) == 0 {
			continue
		}

		state, effects, err := projection.ReplayProjection(computeview.View{}, events, computeview.Project)
		if err != nil {
			logger.Error("projector: bootstrap fold failed", "aggregate_id", id, "error", err)
			continue
		}
		if err := exec.Execute(ctx, effects); err != nil {
			return err
		}
		consumer.seed(id, state)
	}
	return nil
}
