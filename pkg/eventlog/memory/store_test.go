package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/infracore/eventcore/pkg/envelope"
	"github.com/infracore/eventcore/pkg/eventlog"
	"github.com/infracore/eventcore/pkg/eventlog/memory"
)

func event(aggregateID, eventType string) envelope.StoredEvent {
	return envelope.NewRoot(aggregateID, "corr-1", eventType, 1, []byte(`{}`), nil, time.Now())
}

func TestAppendAssignsSequenceAndGetVersion(t *testing.T) {
	store := memory.New()
	ctx := context.Background()

	v, err := store.Append(ctx, "agg-1", nil, []envelope.StoredEvent{event("agg-1", "registered")})
	require.NoError(t, err)
	assert.Equal(t, uint64(1), v)

	version, exists, err := store.GetVersion(ctx, "agg-1")
	require.NoError(t, err)
	assert.True(t, exists)
	assert.Equal(t, uint64(1), version)
}

func TestAppendRejectsStaleExpectedVersion(t *testing.T) {
	store := memory.New()
	ctx := context.Background()

	_, err := store.Append(ctx, "agg-1", nil, []envelope.StoredEvent{event("agg-1", "registered")})
	require.NoError(t, err)

	stale := uint64(0)
	_, err = store.Append(ctx, "agg-1", &stale, []envelope.StoredEvent{event("agg-1", "updated")})
	require.Error(t, err)
	assert.ErrorIs(t, err, eventlog.ErrConcurrencyConflict)
}

func TestAppendRejectsNilExpectedVersionOnExistingStream(t *testing.T) {
	store := memory.New()
	ctx := context.Background()

	_, err := store.Append(ctx, "agg-1", nil, []envelope.StoredEvent{event("agg-1", "registered")})
	require.NoError(t, err)

	_, err = store.Append(ctx, "agg-1", nil, []envelope.StoredEvent{event("agg-1", "registered")})
	require.Error(t, err)
	assert.ErrorIs(t, err, eventlog.ErrConcurrencyConflict)
}

func TestReadEventsFromFiltersBySequence(t *testing.T) {
	store := memory.New()
	ctx := context.Background()

	_, err := store.Append(ctx, "agg-1", nil, []envelope.StoredEvent{event("agg-1", "registered")})
	require.NoError(t, err)
	v := uint64(1)
	_, err = store.Append(ctx, "agg-1", &v, []envelope.StoredEvent{event("agg-1", "updated")})
	require.NoError(t, err)

	events, err := store.ReadEventsFrom(ctx, "agg-1", 2)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, uint64(2), events[0].Sequence)
}

func TestReadByCorrelationSpansAggregates(t *testing.T) {
	store := memory.New()
	ctx := context.Background()

	_, err := store.Append(ctx, "agg-1", nil, []envelope.StoredEvent{event("agg-1", "registered")})
	require.NoError(t, err)
	_, err = store.Append(ctx, "agg-2", nil, []envelope.StoredEvent{event("agg-2", "registered")})
	require.NoError(t, err)

	events, err := store.ReadByCorrelation(ctx, "corr-1")
	require.NoError(t, err)
	assert.Len(t, events, 2)
}
