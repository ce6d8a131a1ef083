package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/infracore/eventcore/pkg/aggregate"
	"github.com/infracore/eventcore/pkg/aggregate/compute"
	"github.com/infracore/eventcore/pkg/envelope"
	"github.com/infracore/eventcore/pkg/eventlog"
	"github.com/infracore/eventcore/pkg/eventlog/memory"
	"github.com/infracore/eventcore/pkg/service"
)

type recordingPublisher struct {
	published []envelope.StoredEvent
}

func (p *recordingPublisher) Publish(_ context.Context, events []envelope.StoredEvent) ([]uint64, error) {
	p.published = append(p.published, events...)
	seqs := make([]uint64, len(events))
	for i, e := range events {
		seqs[i] = e.Sequence
	}
	return seqs, nil
}

func (p *recordingPublisher) Close() error { return nil }

func newTestService(t *testing.T) (*service.Service[compute.State, compute.Command], *recordingPublisher) {
	t.Helper()
	store := memory.New()
	repo := aggregate.NewRepository(store, compute.Zero, compute.Fold)
	pub := &recordingPublisher{}
	fixedClock := func() time.Time { return time.Date(2026, 7, 30, 12, 0, 0, 0, time.UTC) }
	svc := service.New[compute.State, compute.Command](repo, compute.Handle, pub, fixedClock, nil)
	return svc, pub
}

func TestDispatchRegistersAndPublishes(t *testing.T) {
	svc, pub := newTestService(t)
	ctx := context.Background()

	result, err := svc.Dispatch(ctx, "agg-1", compute.RegisterResource{Hostname: "host-1.example.com", ResourceType: compute.ResourcePhysicalServer}, "")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), result.Version)
	require.Len(t, result.Events, 1)
	assert.Equal(t, compute.EventResourceRegistered, result.Events[0].EventType)
	assert.NotEmpty(t, result.CorrelationID)

	require.Len(t, pub.published, 1, "dispatch must publish the events it appended")
}

func TestDispatchThreadsCorrelationAcrossCommands(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	first, err := svc.Dispatch(ctx, "agg-1", compute.RegisterResource{Hostname: "host-1.example.com", ResourceType: compute.ResourcePhysicalServer}, "")
	require.NoError(t, err)

	second, err := svc.Dispatch(ctx, "agg-1", compute.AssignOrganization{OrganizationID: "org-1"}, first.CorrelationID)
	require.NoError(t, err)

	assert.Equal(t, first.CorrelationID, second.CorrelationID)
	assert.Equal(t, uint64(2), second.Version)
	assert.Equal(t, first.Events[0].EventID, second.Events[0].CausationID, "second event must cause from the first event, not a fresh id")
}

func TestDispatchRejectsCommandErrorWithoutRetrying(t *testing.T) {
	svc, pub := newTestService(t)
	ctx := context.Background()

	_, err := svc.Dispatch(ctx, "agg-1", compute.AssignOrganization{OrganizationID: "org-1"}, "")
	require.Error(t, err, "assigning an org before registration must fail")
	assert.Empty(t, pub.published)
}

// TestDispatchSurfacesConcurrencyConflictWithoutRetrying asserts Dispatch
// returns ErrConcurrencyConflict straight to the caller on a lost race
// rather than retrying the load/handle/append cycle itself: the caller owns
// deciding whether to re-drive Dispatch from fresh state.
//
// The race is simulated by appending a conflicting event from inside the
// command handler itself — the only point in Dispatch's single-threaded
// call graph that runs between its Load and its Save.
func TestDispatchSurfacesConcurrencyConflictWithoutRetrying(t *testing.T) {
	store := memory.New()
	repo := aggregate.NewRepository(store, compute.Zero, compute.Fold)
	ctx := context.Background()

	registerSvc := service.New[compute.State, compute.Command](repo, compute.Handle, nil, nil, nil)
	_, err := registerSvc.Dispatch(ctx, "agg-1", compute.RegisterResource{Hostname: "host-1.example.com", ResourceType: compute.ResourcePhysicalServer}, "")
	require.NoError(t, err)

	raceOnce := func(state compute.State, cmd compute.Command) ([]aggregate.PendingEvent, error) {
		_, appendErr := store.Append(ctx, "agg-1", uintPtrOf(1), []envelope.StoredEvent{
			envelope.NewFollowing("agg-1", 2, "corr-race", "cause-race", compute.EventOrganizationAssigned, 1, []byte(`{"organization_id":"org-racer"}`), nil, time.Now()),
		})
		require.NoError(t, appendErr)
		return compute.Handle(state, cmd)
	}
	racingSvc := service.New[compute.State, compute.Command](repo, raceOnce, nil, nil, nil)

	_, err = racingSvc.Dispatch(ctx, "agg-1", compute.AssignOrganization{OrganizationID: "org-1"}, "")
	require.Error(t, err)
	assert.ErrorIs(t, err, eventlog.ErrConcurrencyConflict, "a lost race must surface to the caller, not be retried internally")
}

func uintPtrOf(v uint64) *uint64 { return &v }
