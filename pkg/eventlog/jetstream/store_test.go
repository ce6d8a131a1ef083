package jetstream_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/infracore/eventcore/internal/natstest"
	"github.com/infracore/eventcore/pkg/envelope"
	"github.com/infracore/eventcore/pkg/eventlog"
	"github.com/infracore/eventcore/pkg/eventlog/jetstream"
)

func openTestStore(t *testing.T) *jetstream.Store {
	t.Helper()

	srv, err := natstest.Start()
	require.NoError(t, err)
	t.Cleanup(srv.Shutdown)

	nc, err := srv.Connect()
	require.NoError(t, err)
	t.Cleanup(nc.Close)

	cfg := jetstream.DefaultConfig()
	cfg.IndexBucket = "TEST_INDEX"
	cfg.Stream = "TEST_EVENTS"
	cfg.StreamSubjects = []string{"test.>", "eventlog.>", "eventlog_corr.>"}
	cfg.Subject = func(e envelope.StoredEvent) string { return "test." + e.EventType }

	store, err := jetstream.Open(nc, cfg)
	require.NoError(t, err)
	return store
}

// openTestStoreWithReadBatch is openTestStore with a small ReadBatch, used
// to exercise the multi-fetch pagination loop in ReadEventsFrom/
// ReadByCorrelation without appending thousands of events in a test.
func openTestStoreWithReadBatch(t *testing.T, batch int) *jetstream.Store {
	t.Helper()

	srv, err := natstest.Start()
	require.NoError(t, err)
	t.Cleanup(srv.Shutdown)

	nc, err := srv.Connect()
	require.NoError(t, err)
	t.Cleanup(nc.Close)

	cfg := jetstream.DefaultConfig()
	cfg.IndexBucket = "TEST_INDEX_BATCHED"
	cfg.Stream = "TEST_EVENTS_BATCHED"
	cfg.StreamSubjects = []string{"test.>", "eventlog.>", "eventlog_corr.>"}
	cfg.Subject = func(e envelope.StoredEvent) string { return "test." + e.EventType }
	cfg.ReadBatch = batch
	cfg.FetchWait = 200 * time.Millisecond

	store, err := jetstream.Open(nc, cfg)
	require.NoError(t, err)
	return store
}

func event(aggregateID, eventType string) envelope.StoredEvent {
	return envelope.NewRoot(aggregateID, "corr-1", eventType, 1, []byte(`{}`), nil, time.Now())
}

func TestJetStreamAppendAndReadRoundTrip(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	v, err := store.Append(ctx, "agg-1", nil, []envelope.StoredEvent{event("agg-1", "registered")})
	require.NoError(t, err)
	assert.Equal(t, uint64(1), v)

	events, err := store.ReadEvents(ctx, "agg-1")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, uint64(1), events[0].Sequence)
}

func TestJetStreamAppendRejectsConcurrencyConflict(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	_, err := store.Append(ctx, "agg-1", nil, []envelope.StoredEvent{event("agg-1", "registered")})
	require.NoError(t, err)

	stale := uint64(0)
	_, err = store.Append(ctx, "agg-1", &stale, []envelope.StoredEvent{event("agg-1", "updated")})
	require.Error(t, err)
	assert.ErrorIs(t, err, eventlog.ErrConcurrencyConflict)
}

func TestJetStreamAllAggregateIDsTracksEveryStream(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	_, err := store.Append(ctx, "agg-1", nil, []envelope.StoredEvent{event("agg-1", "registered")})
	require.NoError(t, err)
	_, err = store.Append(ctx, "agg-2", nil, []envelope.StoredEvent{event("agg-2", "registered")})
	require.NoError(t, err)

	ids, err := store.AllAggregateIDs(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"agg-1", "agg-2"}, ids)
}

func TestJetStreamReadByCorrelation(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	_, err := store.Append(ctx, "agg-1", nil, []envelope.StoredEvent{event("agg-1", "registered")})
	require.NoError(t, err)
	_, err = store.Append(ctx, "agg-2", nil, []envelope.StoredEvent{event("agg-2", "registered")})
	require.NoError(t, err)

	events, err := store.ReadByCorrelation(ctx, "corr-1")
	require.NoError(t, err)
	assert.Len(t, events, 2)
}

// TestJetStreamReadEventsFromPagesAcrossMultipleFetches appends more events
// than a single Fetch call's batch size, so ReadEventsFrom must drain the
// aggregate's subject across several round trips and still return every
// event in sequence order.
func TestJetStreamReadEventsFromPagesAcrossMultipleFetches(t *testing.T) {
	store := openTestStoreWithReadBatch(t, 4)
	ctx := context.Background()

	const total = 11
	var expected uint64
	for i := 0; i < total; i++ {
		v, err := store.Append(ctx, "agg-paged", &expected, []envelope.StoredEvent{event("agg-paged", "updated")})
		require.NoError(t, err)
		expected = v
	}

	events, err := store.ReadEventsFrom(ctx, "agg-paged", 0)
	require.NoError(t, err)
	require.Len(t, events, total)
	for i, e := range events {
		assert.Equal(t, uint64(i+1), e.Sequence)
	}

	fromHalfway, err := store.ReadEventsFrom(ctx, "agg-paged", 6)
	require.NoError(t, err)
	require.Len(t, fromHalfway, total-5)
	assert.Equal(t, uint64(6), fromHalfway[0].Sequence)
}
