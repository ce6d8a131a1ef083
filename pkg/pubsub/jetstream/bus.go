// Package jetstream implements pkg/pubsub on top of NATS JetStream:
// Config/ensureStream/Publish/Subscribe around JSON envelope.StoredEvent
// payloads. The bus reads from the same stream pkg/eventlog/jetstream
// already writes into rather than owning a second one, so there is no
// separate publish hop after an append.
package jetstream

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel"

	"github.com/infracore/eventcore/pkg/envelope"
	"github.com/infracore/eventcore/pkg/observability"
	"github.com/infracore/eventcore/pkg/pubsub"
)

var tracer = otel.Tracer("eventcore/pubsub/jetstream")

// Config configures the bus. Stream/StreamSubjects should match the
// eventlog/jetstream.Config the same deployment uses, since this bus
// consumes (and can also publish to) that stream.
type Config struct {
	Stream         string
	StreamSubjects []string
}

// DefaultConfig matches eventlog/jetstream.DefaultConfig's stream naming.
func DefaultConfig() Config {
	return Config{
		Stream:         "EVENTCORE_EVENTS",
		StreamSubjects: []string{"infrastructure.>"},
	}
}

// Bus is a JetStream-backed pubsub.Publisher, pubsub.Subscriber, and
// pubsub.PullConsumer factory.
type Bus struct {
	nc  *nats.Conn
	js  nats.JetStreamContext
	cfg Config

	mu   sync.Mutex
	subs map[string]*nats.Subscription
}

var (
	_ pubsub.Publisher  = (*Bus)(nil)
	_ pubsub.Subscriber = (*Bus)(nil)
)

// NewBus connects to JetStream and ensures the stream described by cfg
// exists.
func NewBus(nc *nats.Conn, cfg Config) (*Bus, error) {
	js, err := nc.JetStream()
	if err != nil {
		return nil, fmt.Errorf("pubsub/jetstream: create context: %w", err)
	}
	b := &Bus{nc: nc, js: js, cfg: cfg, subs: make(map[string]*nats.Subscription)}
	if err := b.ensureStream(); err != nil {
		return nil, err
	}
	return b, nil
}

func (b *Bus) ensureStream() error {
	if _, err := b.js.StreamInfo(b.cfg.Stream); err == nil {
		return nil
	}
	_, err := b.js.AddStream(&nats.StreamConfig{
		Name:      b.cfg.Stream,
		Subjects:  b.cfg.StreamSubjects,
		Retention: nats.LimitsPolicy,
		MaxAge:    30 * 24 * time.Hour,
		MaxBytes:  10 * 1024 * 1024 * 1024,
		Storage:   nats.FileStorage,
		Replicas:  1,
	})
	if err != nil {
		return fmt.Errorf("pubsub/jetstream: ensure stream %s: %w", b.cfg.Stream, err)
	}
	return nil
}

// Publish implements pubsub.Publisher. Subject comes from each event's
// "_subject" metadata entry (see subjectFor) rather than a filter, since the caller
// (pkg/eventlog backends already publish on append) is expected to be
// the rare direct-republish path — most consumers read what eventlog
// already sent, they don't send it again.
func (b *Bus) Publish(ctx context.Context, events []envelope.StoredEvent) ([]uint64, error) {
	sequences := make([]uint64, 0, len(events))
	for i, e := range events {
		subj := subjectFor(e)
		spanCtx, span := observability.StartSpan(ctx, tracer, "pubsub.jetstream.publish",
			observability.WithAttributes(append(observability.EventAttrs(e.EventType, e.EventID), observability.SubjectAttrs("", subj)...)...))

		data, err := json.Marshal(e)
		if err != nil {
			err = fmt.Errorf("pubsub/jetstream: encode %s: %w", e.EventID, err)
			observability.EndSpan(span, err)
			return sequences, &pubsub.PublishError{Succeeded: i, Err: err}
		}
		ack, err := b.js.PublishMsg(&nats.Msg{Subject: subj, Data: data}, nats.Context(spanCtx), nats.MsgId(e.EventID))
		if err != nil {
			err = fmt.Errorf("pubsub/jetstream: publish %s: %w", e.EventID, err)
			observability.EndSpan(span, err)
			return sequences, &pubsub.PublishError{Succeeded: i, Err: err}
		}
		observability.EndSpan(span, nil)
		sequences = append(sequences, ack.Sequence)
	}
	return sequences, nil
}

// subjectFor derives a routing subject straight from the envelope's
// metadata, falling back to a type-only subject when no explicit one
// was attached (publishers that go through pkg/eventlog/jetstream
// already carry their own Subjecter; this is the fallback for direct
// callers of this package).
func subjectFor(e envelope.StoredEvent) string {
	if subj, ok := e.Metadata["_subject"]; ok && subj != "" {
		return subj
	}
	return "infrastructure.unknown." + e.EventType
}

// Subscribe implements pubsub.Subscriber: an ephemeral push subscription
// with no durable name, keyed directly off a caller-supplied subject
// pattern.
func (b *Bus) Subscribe(ctx context.Context, subject string, handler pubsub.Handler) (pubsub.PushSubscription, error) {
	sub, err := b.js.Subscribe(subject, func(msg *nats.Msg) {
		event, err := deserializeEvent(msg.Data)
		if err != nil {
			_ = msg.Term()
			return
		}
		if err := handler(ctx, event); err != nil {
			_ = msg.Nak()
			return
		}
		_ = msg.Ack()
	}, nats.AckExplicit())
	if err != nil {
		return nil, fmt.Errorf("pubsub/jetstream: subscribe %s: %w", subject, err)
	}

	b.mu.Lock()
	name := fmt.Sprintf("ephemeral-%d", len(b.subs)+1)
	b.subs[name] = sub
	b.mu.Unlock()

	return &subscription{bus: b, name: name, sub: sub}, nil
}

type subscription struct {
	bus  *Bus
	name string
	sub  *nats.Subscription
}

func (s *subscription) Unsubscribe() error {
	s.bus.mu.Lock()
	delete(s.bus.subs, s.name)
	s.bus.mu.Unlock()
	return s.sub.Unsubscribe()
}

// PullConsumer is a durable pull consumer over the bus's stream,
// implementing pubsub.PullConsumer with explicit ack/nak/term per
// delivery — the pull-mode sibling of Subscribe's push delivery, used
// for batch draining instead of one-at-a-time callbacks.
type PullConsumer struct {
	sub *nats.Subscription
	cfg pubsub.PullConsumerConfig
}

var _ pubsub.PullConsumer = (*PullConsumer)(nil)

// NewPullConsumer creates (or attaches to) a durable JetStream pull
// consumer bound to cfg.Subject.
func (b *Bus) NewPullConsumer(cfg pubsub.PullConsumerConfig) (*PullConsumer, error) {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.MaxWait <= 0 {
		cfg.MaxWait = 5 * time.Second
	}
	sub, err := b.js.PullSubscribe(cfg.Subject, cfg.Durable, nats.ManualAck(), nats.AckExplicit())
	if err != nil {
		return nil, fmt.Errorf("pubsub/jetstream: pull subscribe %s/%s: %w", cfg.Subject, cfg.Durable, err)
	}
	return &PullConsumer{sub: sub, cfg: cfg}, nil
}

// Fetch implements pubsub.PullConsumer.
func (c *PullConsumer) Fetch(ctx context.Context) ([]pubsub.Delivery, error) {
	msgs, err := c.sub.Fetch(c.cfg.BatchSize, nats.MaxWait(c.cfg.MaxWait), nats.Context(ctx))
	if err != nil {
		if err == nats.ErrTimeout || err == context.DeadlineExceeded {
			return nil, pubsub.ErrNoMoreMessages
		}
		return nil, fmt.Errorf("pubsub/jetstream: fetch: %w", err)
	}

	deliveries := make([]pubsub.Delivery, 0, len(msgs))
	for _, msg := range msgs {
		m := msg
		event, derr := deserializeEvent(m.Data)
		if derr != nil {
			_ = m.Term()
			continue
		}
		deliveries = append(deliveries, pubsub.Delivery{
			Event: event,
			Ack:   func() error { return m.Ack() },
			Nak:   func(delay time.Duration) error { return m.NakWithDelay(delay) },
			Term:  func(string) error { return m.Term() },
		})
	}
	return deliveries, nil
}

// Close implements pubsub.PullConsumer.
func (c *PullConsumer) Close() error {
	return c.sub.Unsubscribe()
}

func deserializeEvent(data []byte) (envelope.StoredEvent, error) {
	var e envelope.StoredEvent
	if err := json.Unmarshal(data, &e); err != nil {
		return envelope.StoredEvent{}, fmt.Errorf("pubsub/jetstream: decode event: %w", err)
	}
	return e, nil
}

// Close implements pubsub.Publisher. Unsubscribes every ephemeral
// subscription still open before closing the connection.
func (b *Bus) Close() error {
	b.mu.Lock()
	for name, sub := range b.subs {
		_ = sub.Unsubscribe()
		delete(b.subs, name)
	}
	b.mu.Unlock()
	b.nc.Close()
	return nil
}
