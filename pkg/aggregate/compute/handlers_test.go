package compute

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/infracore/eventcore/pkg/aggregate"
	"github.com/infracore/eventcore/pkg/envelope"
)

func applyAll(t *testing.T, state State, events []aggregate.PendingEvent) State {
	t.Helper()
	for _, pe := range events {
		stored := envelope.StoredEvent{
			EventID:     "evt-test",
			AggregateID: "agg-1",
			Sequence:    1,
			EventType:   pe.EventType,
			Payload:     pe.Payload,
		}
		var err error
		state, err = Fold(state, stored)
		require.NoError(t, err)
	}
	return state
}

func TestHandleRegisterRejectsDoubleRegistration(t *testing.T) {
	state := Zero()
	events, err := Handle(state, RegisterResource{Hostname: "web-01.example.com", ResourceType: ResourcePhysicalServer})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, EventResourceRegistered, events[0].EventType)
	assert.Equal(t, "infrastructure.compute.registered", events[0].Metadata["_subject"])

	state = applyAll(t, state, events)
	assert.True(t, state.Initialized)

	_, err = Handle(state, RegisterResource{Hostname: "web-02.example.com", ResourceType: ResourcePhysicalServer})
	var cmdErr *aggregate.CommandError
	require.ErrorAs(t, err, &cmdErr)
	assert.Equal(t, aggregate.AlreadyInitialized, cmdErr.Kind)
}

func TestHandleRegisterRejectsInvalidHostname(t *testing.T) {
	_, err := Handle(Zero(), RegisterResource{Hostname: "not a hostname!!", ResourceType: ResourcePhysicalServer})
	require.Error(t, err)
}

func TestHandleAssignOrganizationRequiresInitialization(t *testing.T) {
	_, err := Handle(Zero(), AssignOrganization{OrganizationID: "org-1"})
	var cmdErr *aggregate.CommandError
	require.ErrorAs(t, err, &cmdErr)
	assert.Equal(t, aggregate.NotInitialized, cmdErr.Kind)
}

func TestHandleAddPolicyRejectsDuplicate(t *testing.T) {
	state := Zero()
	state = applyAll(t, state, mustHandle(t, state, RegisterResource{Hostname: "db-01.example.com", ResourceType: ResourceVirtualMachine}))

	events := mustHandle(t, state, AddPolicy{PolicyID: "policy-1"})
	assert.Equal(t, "infrastructure.compute.added", events[0].Metadata["_subject"])
	state = applyAll(t, state, events)
	assert.True(t, state.HasPolicy("policy-1"))

	_, err := Handle(state, AddPolicy{PolicyID: "policy-1"})
	var cmdErr *aggregate.CommandError
	require.ErrorAs(t, err, &cmdErr)
	assert.Equal(t, aggregate.DuplicateMember, cmdErr.Kind)
}

func TestHandleRemovePolicyRequiresExistingMember(t *testing.T) {
	state := Zero()
	state = applyAll(t, state, mustHandle(t, state, RegisterResource{Hostname: "db-02.example.com", ResourceType: ResourceVirtualMachine}))

	_, err := Handle(state, RemovePolicy{PolicyID: "missing"})
	var cmdErr *aggregate.CommandError
	require.ErrorAs(t, err, &cmdErr)
	assert.Equal(t, aggregate.MemberNotFound, cmdErr.Kind)
}

func TestHandleSetCapacityRejectsNegative(t *testing.T) {
	state := Zero()
	state = applyAll(t, state, mustHandle(t, state, RegisterResource{Hostname: "vm-01.example.com", ResourceType: ResourceVirtualMachine}))

	_, err := Handle(state, SetCapacity{CapacityUnits: decimal.NewFromInt(-1)})
	require.Error(t, err)

	events := mustHandle(t, state, SetCapacity{CapacityUnits: decimal.NewFromFloat(2.5)})
	assert.Equal(t, "infrastructure.compute.set", events[0].Metadata["_subject"])
	state = applyAll(t, state, events)
	assert.True(t, state.CapacityUnits.Equal(decimal.NewFromFloat(2.5)))
}

func TestHandleChangeStatusDelegatesToLifecycleFSM(t *testing.T) {
	state := Zero()
	state = applyAll(t, state, mustHandle(t, state, RegisterResource{Hostname: "rtr-01.example.com", ResourceType: ResourceRouter}))
	assert.Equal(t, StatusProvisioning, state.Status)

	events := mustHandle(t, state, ChangeStatus{Lifecycle: CmdActivate})
	assert.Equal(t, "infrastructure.compute.updated", events[0].Metadata["_subject"])
	state = applyAll(t, state, events)
	assert.Equal(t, StatusActive, state.Status)

	_, err := Handle(state, ChangeStatus{Lifecycle: CmdActivate})
	var cmdErr *aggregate.CommandError
	require.ErrorAs(t, err, &cmdErr)
	assert.Equal(t, aggregate.BusinessRuleViolation, cmdErr.Kind)
}

func mustHandle(t *testing.T, state State, cmd Command) []aggregate.PendingEvent {
	t.Helper()
	events, err := Handle(state, cmd)
	require.NoError(t, err)
	return events
}
