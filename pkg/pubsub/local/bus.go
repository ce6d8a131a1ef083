// Package local is an in-process, non-durable pubsub.Publisher/Subscriber
// for deployments that have no message broker — the modernc.org/sqlite
// eventlog backend, notably, which still needs a best-effort publish step
// after a successful append, since it cannot piggyback on a JetStream
// stream the way pkg/eventlog/jetstream does.
package local

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/infracore/eventcore/pkg/envelope"
	"github.com/infracore/eventcore/pkg/pubsub"
	"github.com/infracore/eventcore/pkg/subject"
)

// Bus fans out published events to in-process subscribers matching their
// subject pattern. There is no persistence: a subscriber that isn't
// listening when Publish runs never sees that event, and a process
// restart drops every subscription. This is a known, documented gap for
// this backend only — the jetstream backend has no such window, since
// its pub/sub reader reads back from the same stream the append wrote.
type Bus struct {
	mu     sync.RWMutex
	subs   map[int]*subscription
	nextID int
	closed bool
}

// New creates an empty Bus.
func New() *Bus {
	return &Bus{subs: make(map[int]*subscription)}
}

var _ pubsub.Publisher = (*Bus)(nil)
var _ pubsub.Subscriber = (*Bus)(nil)

// Publish implements pubsub.Publisher. Every matching subscriber's Handler
// runs synchronously, in subscription order, before Publish returns —
// there is no broker round trip to wait on instead. A handler error is
// logged nowhere (no logger is threaded through this package); callers
// that need error visibility should have their Handler itself log.
func (b *Bus) Publish(ctx context.Context, events []envelope.StoredEvent) ([]uint64, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, fmt.Errorf("pubsub/local: bus is closed")
	}

	sequences := make([]uint64, len(events))
	for i, e := range events {
		sequences[i] = e.Sequence
		subj := subjectFor(e)
		ids := make([]int, 0, len(b.subs))
		for id := range b.subs {
			ids = append(ids, id)
		}
		sort.Ints(ids)
		for _, id := range ids {
			sub := b.subs[id]
			if !subject.Matches(sub.pattern, subj) {
				continue
			}
			_ = sub.handler(ctx, e)
		}
	}
	return sequences, nil
}

// Close implements pubsub.Publisher. It drops every subscription. Publish
// runs its handlers synchronously while holding the read lock and Close
// takes the write lock, so Close waits for any in-flight Publish to return.
func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	b.subs = make(map[int]*subscription)
	return nil
}

// Subscribe implements pubsub.Subscriber.
func (b *Bus) Subscribe(_ context.Context, subjectPattern string, handler pubsub.Handler) (pubsub.PushSubscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, fmt.Errorf("pubsub/local: bus is closed")
	}

	id := b.nextID
	b.nextID++
	b.subs[id] = &subscription{pattern: subjectPattern, handler: handler}
	return &pushSub{bus: b, id: id}, nil
}

type subscription struct {
	pattern string
	handler pubsub.Handler
}

type pushSub struct {
	bus *Bus
	id  int
}

func (s *pushSub) Unsubscribe() error {
	s.bus.mu.Lock()
	defer s.bus.mu.Unlock()
	delete(s.bus.subs, s.id)
	return nil
}

// subjectFor mirrors pkg/pubsub/jetstream's fallback so the same event
// routes identically regardless of which backend is deployed.
func subjectFor(e envelope.StoredEvent) string {
	if subj, ok := e.Metadata["_subject"]; ok && subj != "" {
		return subj
	}
	return "infrastructure.unknown." + e.EventType
}
