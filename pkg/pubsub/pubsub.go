// Package pubsub defines the delivery contract events are announced
// through after being appended to the log: a Publisher that waits for
// broker acknowledgement, a durable pull consumer with explicit
// ack/nak/term, and an ephemeral push subscription for fire-and-forget
// listeners. Concrete transports live in subpackages (jetstream).
package pubsub

import (
	"context"
	"errors"
	"time"

	"github.com/infracore/eventcore/pkg/envelope"
)

// Publisher announces events on their routed subject, blocking until the
// broker acknowledges durable receipt.
type Publisher interface {
	// Publish sends events in order, returning the broker-assigned
	// sequence number of each once every publish has been acknowledged.
	// A partial failure reports how many succeeded via PublishError.
	Publish(ctx context.Context, events []envelope.StoredEvent) (sequences []uint64, err error)
	Close() error
}

// PublishError reports a batch publish that failed partway through.
type PublishError struct {
	Succeeded int
	Err       error
}

func (e *PublishError) Error() string { return e.Err.Error() }
func (e *PublishError) Unwrap() error { return e.Err }

// Delivery is one delivered message and the disposition the consumer
// must report back to the broker.
type Delivery struct {
	Event envelope.StoredEvent
	Ack   func() error
	Nak   func(delay time.Duration) error
	Term  func(reason string) error
}

// PullConsumerConfig configures a durable pull consumer.
type PullConsumerConfig struct {
	Durable   string
	Subject   string // supports "*"/">" wildcards (pkg/subject.Matches semantics)
	BatchSize int
	MaxWait   time.Duration
}

// PullConsumer fetches bounded batches of deliveries on demand, each of
// which must be explicitly acked, nak'd, or terminated. Fetch returning
// ErrNoMoreMessages within MaxWait means the consumer has caught up, not
// that the stream ended — a fetch timeout on a durable subscription is
// never treated as end-of-stream; only a bounded replay read in
// pkg/eventlog/jetstream treats a fetch timeout as the end of the stored
// history.
type PullConsumer interface {
	Fetch(ctx context.Context) ([]Delivery, error)
	Close() error
}

// ErrNoMoreMessages is returned by PullConsumer.Fetch when MaxWait
// elapses with nothing delivered.
var ErrNoMoreMessages = errors.New("pubsub: no messages available within wait window")

// PushSubscription delivers events to handler as they arrive, with no
// durable cursor: a restart starts receiving only new events again. Used
// for ephemeral listeners (metrics counters, UI fan-out) that don't need
// replay.
type PushSubscription interface {
	Unsubscribe() error
}

// Handler processes one delivered event. Returning a non-nil error nak's
// the message for redelivery.
type Handler func(ctx context.Context, event envelope.StoredEvent) error

// Subscriber creates ephemeral push subscriptions.
type Subscriber interface {
	Subscribe(ctx context.Context, subject string, handler Handler) (PushSubscription, error)
}
