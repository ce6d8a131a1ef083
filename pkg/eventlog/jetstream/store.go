// Package jetstream implements eventlog.Store directly on a NATS JetStream
// stream: every aggregate gets its own subject, and Append fences
// concurrent writers with the stream's native per-subject sequence check
// (nats.ExpectLastSequencePerSubject, wire header
// Nats-Expected-Last-Subject-Sequence) rather than a read-then-write
// window. Reads page through the stream with an ephemeral pull consumer
// in bounded batches, the same Fetch-loop idiom pkg/pubsub/jetstream uses
// for live delivery.
package jetstream

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/infracore/eventcore/pkg/envelope"
	"github.com/infracore/eventcore/pkg/eventlog"
)

// Subjecter derives the pub/sub routing subject for an event. Supplied by
// the caller because only the aggregate layer knows how to map an
// EventType to an operation name (see pkg/subject).
type Subjecter func(envelope.StoredEvent) string

// Config configures the JetStream-backed event log.
type Config struct {
	// Stream is the JetStream stream both the log-of-record subjects and
	// the routing subjects live on.
	Stream string
	// StreamSubjects are the wildcard subjects the stream accepts. Must
	// cover LogSubjectPrefix and CorrelationSubjectPrefix below in
	// addition to whatever routing subjects pkg/pubsub/jetstream reads.
	StreamSubjects []string
	// LogSubjectPrefix namespaces the per-aggregate log-of-record
	// subjects, e.g. "<prefix>.<escaped aggregate id>".
	LogSubjectPrefix string
	// CorrelationSubjectPrefix namespaces the per-correlation secondary
	// index subjects this store fans each event out to, e.g.
	// "<prefix>.<escaped correlation id>".
	CorrelationSubjectPrefix string
	// Subject derives the routing subject for a stored event, used for
	// the real-time notification copy published alongside the
	// log-of-record message.
	Subject Subjecter
	// IndexBucket holds the append-only directory of known aggregate IDs,
	// used for full-log replay (projection rebuilds).
	IndexBucket string
	// ReadBatch bounds how many messages a single Fetch call pulls while
	// paging through ReadEventsFrom/ReadByCorrelation.
	ReadBatch int
	// FetchWait bounds how long a single Fetch call waits for a batch.
	FetchWait time.Duration
}

// DefaultConfig returns sensible defaults for a single-node deployment.
func DefaultConfig() Config {
	return Config{
		Stream:                   "EVENTCORE_EVENTS",
		StreamSubjects:           []string{"infrastructure.>", "eventlog.>", "eventlog_corr.>"},
		LogSubjectPrefix:         "eventlog",
		CorrelationSubjectPrefix: "eventlog_corr",
		Subject:                  defaultSubject,
		IndexBucket:              "EVENTCORE_INDEX",
		ReadBatch:                eventlog.DefaultReadBatch,
		FetchWait:                5 * time.Second,
	}
}

// defaultSubject reads the routing subject the aggregate layer attached at
// command-handling time (pkg/aggregate/compute.EventSubject), falling back
// to a type-only subject for events that didn't set one — matching
// pkg/pubsub/jetstream's own fallback so a deployment that configures
// neither gets consistent routing from either path.
func defaultSubject(e envelope.StoredEvent) string {
	if subj, ok := e.Metadata["_subject"]; ok && subj != "" {
		return subj
	}
	return "infrastructure.unknown." + e.EventType
}

// Store is a JetStream-backed eventlog.Store.
type Store struct {
	nc    *nats.Conn
	js    nats.JetStreamContext
	index nats.KeyValue
	cfg   Config
}

var _ eventlog.Store = (*Store)(nil)

// Open connects (or attaches) to JetStream and ensures the stream and the
// aggregate-directory KV bucket described by cfg exist.
func Open(nc *nats.Conn, cfg Config) (*Store, error) {
	if cfg.ReadBatch <= 0 {
		cfg.ReadBatch = eventlog.DefaultReadBatch
	}
	if cfg.ReadBatch > eventlog.MaxReadBatch {
		cfg.ReadBatch = eventlog.MaxReadBatch
	}
	if cfg.FetchWait <= 0 {
		cfg.FetchWait = 5 * time.Second
	}

	js, err := nc.JetStream()
	if err != nil {
		return nil, fmt.Errorf("jetstream: create context: %w", err)
	}

	s := &Store{nc: nc, js: js, cfg: cfg}

	s.index, err = ensureKV(js, cfg.IndexBucket)
	if err != nil {
		return nil, err
	}

	if _, err := js.StreamInfo(cfg.Stream); err != nil {
		_, err = js.AddStream(&nats.StreamConfig{
			Name:      cfg.Stream,
			Subjects:  cfg.StreamSubjects,
			Retention: nats.LimitsPolicy,
			MaxAge:    30 * 24 * time.Hour,
			MaxBytes:  10 * 1024 * 1024 * 1024,
			Storage:   nats.FileStorage,
			Replicas:  1,
		})
		if err != nil {
			return nil, fmt.Errorf("jetstream: ensure stream %s: %w", cfg.Stream, err)
		}
	}

	return s, nil
}

func ensureKV(js nats.JetStreamContext, bucket string) (nats.KeyValue, error) {
	kv, err := js.KeyValue(bucket)
	if err == nil {
		return kv, nil
	}
	kv, err = js.CreateKeyValue(&nats.KeyValueConfig{
		Bucket:  bucket,
		History: 1,
		Storage: nats.FileStorage,
	})
	if err != nil {
		return nil, fmt.Errorf("jetstream: ensure bucket %s: %w", bucket, err)
	}
	return kv, nil
}

// logSubject is the per-aggregate log-of-record subject. Dots in the id
// would be interpreted as subject-hierarchy separators, so they're escaped.
func (s *Store) logSubject(aggregateID string) string {
	return s.cfg.LogSubjectPrefix + "." + strings.ReplaceAll(aggregateID, ".", "_")
}

func (s *Store) corrSubject(correlationID string) string {
	return s.cfg.CorrelationSubjectPrefix + "." + strings.ReplaceAll(correlationID, ".", "_")
}

// Append implements eventlog.Store. The current version is read with one
// GetLastMsg lookup on the aggregate's log subject; each event is then
// published individually to that subject with an ExpectLastSequencePerSubject
// guard chained from the lookup and then from the previous publish's ack, so
// the whole batch either lands in order or fails at the first conflicting
// write, with no window for an interleaved writer.
func (s *Store) Append(ctx context.Context, aggregateID string, expectedVersion *uint64, events []envelope.StoredEvent) (uint64, error) {
	if len(events) == 0 {
		v, _, err := s.GetVersion(ctx, aggregateID)
		return v, err
	}

	subj := s.logSubject(aggregateID)

	currentVersion, lastSubjSeq, err := s.lastLogged(subj)
	if err != nil {
		return 0, err
	}

	if expectedVersion == nil {
		if currentVersion != 0 {
			return 0, &eventlog.ConcurrencyConflict{AggregateID: aggregateID, Expected: 0, Actual: currentVersion}
		}
	} else if *expectedVersion != currentVersion {
		return 0, &eventlog.ConcurrencyConflict{AggregateID: aggregateID, Expected: *expectedVersion, Actual: currentVersion}
	}

	appended := make([]envelope.StoredEvent, len(events))
	copy(appended, events)

	for i := range appended {
		appended[i].Sequence = currentVersion + uint64(i) + 1

		data, err := json.Marshal(appended[i])
		if err != nil {
			return 0, fmt.Errorf("jetstream: encode event %s: %w", appended[i].EventID, err)
		}

		ack, err := s.js.PublishMsg(&nats.Msg{Subject: subj, Data: data}, nats.Context(ctx),
			nats.MsgId(appended[i].EventID), nats.ExpectLastSequencePerSubject(lastSubjSeq))
		if err != nil {
			if isConflict(err) {
				return 0, &eventlog.ConcurrencyConflict{AggregateID: aggregateID, Expected: currentVersion, Actual: currentVersion}
			}
			return 0, fmt.Errorf("%w: %s", eventlog.ErrStoreUnavailable, err)
		}
		lastSubjSeq = ack.Sequence
	}

	if currentVersion == 0 {
		s.rememberAggregate(aggregateID)
	}
	s.indexCorrelations(ctx, appended)
	s.publishBestEffort(ctx, appended)

	return currentVersion + uint64(len(events)), nil
}

// lastLogged returns the domain version (event count) and the JetStream
// stream sequence of the most recent message on an aggregate's log
// subject, or (0, 0, nil) if the subject has no messages yet.
func (s *Store) lastLogged(subj string) (version uint64, subjSeq uint64, err error) {
	msg, err := s.js.GetLastMsg(s.cfg.Stream, subj)
	if err != nil {
		if isNotFound(err) {
			return 0, 0, nil
		}
		return 0, 0, fmt.Errorf("%w: %s", eventlog.ErrStoreUnavailable, err)
	}
	var e envelope.StoredEvent
	if jerr := json.Unmarshal(msg.Data, &e); jerr != nil {
		return 0, 0, fmt.Errorf("jetstream: decode last log entry: %w", jerr)
	}
	return e.Sequence, msg.Sequence, nil
}

// rememberAggregate adds aggregateID to the replay directory. Best-effort
// CAS loop; a lost race just means a concurrent Append is also recording
// the same id, which is harmless (set semantics).
func (s *Store) rememberAggregate(aggregateID string) {
	const dirKey = "all"
	for attempt := 0; attempt < 5; attempt++ {
		entry, err := s.index.Get(dirKey)
		var ids []string
		var revision uint64
		if err == nil {
			_ = json.Unmarshal(entry.Value(), &ids)
			revision = entry.Revision()
		}
		for _, id := range ids {
			if id == aggregateID {
				return
			}
		}
		ids = append(ids, aggregateID)
		data, _ := json.Marshal(ids)
		if revision == 0 {
			if _, err := s.index.Create(dirKey, data); err == nil || isConflict(err) {
				if err == nil {
					return
				}
				continue
			}
			return
		}
		if _, err := s.index.Update(dirKey, data, revision); err == nil {
			return
		}
	}
}

// indexCorrelations fans each event out to its correlation's secondary
// subject so ReadByCorrelation can page through a dedicated stream subject
// the same way ReadEventsFrom pages through the aggregate's own. Best
// effort: a failure here never fails the Append itself, since the
// log-of-record publish already succeeded; it only degrades
// ReadByCorrelation.
func (s *Store) indexCorrelations(ctx context.Context, events []envelope.StoredEvent) {
	for _, e := range events {
		data, err := json.Marshal(e)
		if err != nil {
			continue
		}
		subj := s.corrSubject(e.CorrelationID)
		_, _ = s.js.PublishMsg(&nats.Msg{Subject: subj, Data: data}, nats.Context(ctx), nats.MsgId("corr-"+e.EventID))
	}
}

// publishBestEffort announces newly appended events on their routing
// subject for real-time pub/sub consumers (pkg/pubsub/jetstream reads the
// same stream). A failure here does not roll back the append: the log
// subject above remains the durable source of truth (open question #4).
// Consumers that need a strict guarantee rebuild from ReadEvents/
// ReadEventsFrom instead of relying solely on delivery.
func (s *Store) publishBestEffort(ctx context.Context, events []envelope.StoredEvent) {
	for _, e := range events {
		data, err := json.Marshal(e)
		if err != nil {
			continue
		}
		subj := s.cfg.Subject(e)
		_, _ = s.js.PublishMsg(&nats.Msg{Subject: subj, Data: data}, nats.Context(ctx), nats.MsgId("route-"+e.EventID))
	}
}

// ReadEvents implements eventlog.Store.
func (s *Store) ReadEvents(ctx context.Context, aggregateID string) ([]envelope.StoredEvent, error) {
	return s.ReadEventsFrom(ctx, aggregateID, 0)
}

// ReadEventsFrom implements eventlog.Store. It pages through the
// aggregate's log subject with an ephemeral pull consumer,
// fetching at most cfg.ReadBatch messages per round trip (capped at
// eventlog.MaxReadBatch) rather than loading the whole history in one
// call.
func (s *Store) ReadEventsFrom(ctx context.Context, aggregateID string, fromVersion uint64) ([]envelope.StoredEvent, error) {
	events, err := s.drainSubject(ctx, s.logSubject(aggregateID))
	if err != nil {
		return nil, err
	}
	out := events[:0:0]
	for _, e := range events {
		if e.Sequence >= fromVersion {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Sequence < out[j].Sequence })
	return out, nil
}

// ReadByCorrelation implements eventlog.Store, paging through the
// correlation's secondary subject the same bounded way ReadEventsFrom
// pages through an aggregate's.
func (s *Store) ReadByCorrelation(ctx context.Context, correlationID string) ([]envelope.StoredEvent, error) {
	events, err := s.drainSubject(ctx, s.corrSubject(correlationID))
	if err != nil {
		return nil, err
	}
	sort.Slice(events, func(i, j int) bool { return events[i].Timestamp.Before(events[j].Timestamp) })
	return events, nil
}

// drainSubject pulls every message currently on subj via a fresh ephemeral
// pull consumer, fetching in batches of at most cfg.ReadBatch messages and
// stopping the first time a Fetch call times out (end of the currently
// stored history). The consumer is unsubscribed before returning.
func (s *Store) drainSubject(ctx context.Context, subj string) ([]envelope.StoredEvent, error) {
	sub, err := s.js.PullSubscribe(subj, "", nats.AckNone())
	if err != nil {
		return nil, fmt.Errorf("%w: open ephemeral consumer on %s: %s", eventlog.ErrStoreUnavailable, subj, err)
	}
	defer func() { _ = sub.Unsubscribe() }()

	var out []envelope.StoredEvent
	for {
		msgs, err := sub.Fetch(s.cfg.ReadBatch, nats.MaxWait(s.cfg.FetchWait), nats.Context(ctx))
		if err != nil {
			if err == nats.ErrTimeout || err == context.DeadlineExceeded {
				break
			}
			return nil, fmt.Errorf("%w: fetch %s: %s", eventlog.ErrStoreUnavailable, subj, err)
		}
		if len(msgs) == 0 {
			break
		}
		for _, msg := range msgs {
			var e envelope.StoredEvent
			if err := json.Unmarshal(msg.Data, &e); err != nil {
				return nil, fmt.Errorf("jetstream: decode message on %s: %w", subj, err)
			}
			out = append(out, e)
		}
		if len(msgs) < s.cfg.ReadBatch {
			break
		}
	}
	return out, nil
}

// ReadEventsByTimeRange implements eventlog.Store.
func (s *Store) ReadEventsByTimeRange(ctx context.Context, aggregateID string, t0, t1 time.Time) ([]envelope.StoredEvent, error) {
	all, err := s.ReadEvents(ctx, aggregateID)
	if err != nil {
		return nil, err
	}
	out := all[:0:0]
	for _, e := range all {
		if (e.Timestamp.Equal(t0) || e.Timestamp.After(t0)) && (e.Timestamp.Equal(t1) || e.Timestamp.Before(t1)) {
			out = append(out, e)
		}
	}
	return out, nil
}

// GetVersion implements eventlog.Store.
func (s *Store) GetVersion(_ context.Context, aggregateID string) (uint64, bool, error) {
	version, _, err := s.lastLogged(s.logSubject(aggregateID))
	if err != nil {
		return 0, false, err
	}
	return version, version > 0, nil
}

// AllAggregateIDs returns every aggregate id known to the store, in the
// order they were first registered. Used by projection rebuilds that need
// to walk the entire log.
func (s *Store) AllAggregateIDs(_ context.Context) ([]string, error) {
	entry, err := s.index.Get("all")
	if isNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s", eventlog.ErrStoreUnavailable, err)
	}
	var ids []string
	if err := json.Unmarshal(entry.Value(), &ids); err != nil {
		return nil, fmt.Errorf("jetstream: decode index: %w", err)
	}
	return ids, nil
}

// Close implements eventlog.Store.
func (s *Store) Close() error {
	s.nc.Close()
	return nil
}

// isNotFound reports whether err indicates a missing KV key or a stream
// with no message matching a GetLastMsg/GetMsg lookup. Classic nats.go
// surfaces these in a few different ways depending on server version, so
// fall back to a substring check alongside the typed sentinels.
func isNotFound(err error) bool {
	if err == nil {
		return false
	}
	if err == nats.ErrKeyNotFound || err == nats.ErrMsgNotFound {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "key not found") || strings.Contains(msg, "no message found")
}

// isConflict reports whether err indicates a failed CAS (wrong last
// revision on a KV update) or a failed ExpectLastSequencePerSubject check
// on a stream publish (wrong last sequence, or a duplicate create race).
func isConflict(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "wrong last sequence") ||
		strings.Contains(msg, "key exists") ||
		strings.Contains(msg, "wrong last revision")
}
