package compute

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/infracore/eventcore/pkg/aggregate"
)

func TestTransitionProvisioningToActive(t *testing.T) {
	next, out, err := Transition(StatusProvisioning, CmdActivate)
	require.NoError(t, err)
	assert.Equal(t, StatusActive, next)
	assert.False(t, out.Critical)
	assert.Empty(t, out.Warnings)
}

func TestTransitionFailedProvisionIsCritical(t *testing.T) {
	next, out, err := Transition(StatusProvisioning, CmdFailedProvision)
	require.NoError(t, err)
	assert.Equal(t, StatusDecommissioned, next)
	assert.True(t, out.Critical)
	assert.NotEmpty(t, out.Warnings)
}

func TestTransitionActiveToMaintenanceAndBack(t *testing.T) {
	next, _, err := Transition(StatusActive, CmdBeginMaintenance)
	require.NoError(t, err)
	assert.Equal(t, StatusMaintenance, next)

	next, _, err = Transition(StatusMaintenance, CmdEndMaintenance)
	require.NoError(t, err)
	assert.Equal(t, StatusActive, next)
}

func TestTransitionDecommissionedIsTerminal(t *testing.T) {
	_, _, err := Transition(StatusDecommissioned, CmdActivate)
	var cmdErr *aggregate.CommandError
	require.ErrorAs(t, err, &cmdErr)
	assert.Equal(t, aggregate.InvalidTransition, cmdErr.Kind)

	_, _, err = Transition(StatusDecommissioned, CmdBeginMaintenance)
	require.Error(t, err)
}

func TestTransitionInvalidProvisioningToMaintenance(t *testing.T) {
	_, _, err := Transition(StatusProvisioning, CmdBeginMaintenance)
	var cmdErr *aggregate.CommandError
	require.ErrorAs(t, err, &cmdErr)
	assert.Equal(t, aggregate.InvalidTransition, cmdErr.Kind)
}

func TestTransitionActiveActivateIsBusinessRuleViolation(t *testing.T) {
	_, _, err := Transition(StatusActive, CmdActivate)
	var cmdErr *aggregate.CommandError
	require.ErrorAs(t, err, &cmdErr)
	assert.Equal(t, aggregate.BusinessRuleViolation, cmdErr.Kind)
}

func TestTransitionUpdateIsIdempotentInEveryState(t *testing.T) {
	for _, s := range []Status{StatusProvisioning, StatusActive, StatusMaintenance, StatusDecommissioned} {
		next, out, err := Transition(s, CmdLifecycleUpdate)
		require.NoError(t, err)
		assert.Equal(t, s, next)
		assert.False(t, out.Critical)
	}
}

func TestValidInputsDecommissionedOnlyAllowsUpdate(t *testing.T) {
	assert.Equal(t, []LifecycleCommand{CmdLifecycleUpdate}, ValidInputs(StatusDecommissioned))
	assert.Greater(t, len(ValidInputs(StatusProvisioning)), 2)
}
