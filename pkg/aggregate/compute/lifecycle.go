package compute

import "github.com/infracore/eventcore/pkg/aggregate"

// LifecycleCommand is the FSM input. This is a Mealy machine: the output
// (warnings, criticality) depends on both the current state and the
// input, not the resulting state alone.
type LifecycleCommand string

const (
	CmdActivate         LifecycleCommand = "activate"
	CmdBeginMaintenance LifecycleCommand = "begin_maintenance"
	CmdEndMaintenance   LifecycleCommand = "end_maintenance"
	CmdDecommission     LifecycleCommand = "decommission"
	CmdFailedProvision  LifecycleCommand = "failed_provision"
	CmdLifecycleUpdate  LifecycleCommand = "update"
)

// TransitionOutput is the Mealy machine's output: side information about
// the transition that accompanies the new state.
type TransitionOutput struct {
	Warnings []string
	Critical bool
}

func ok() TransitionOutput                       { return TransitionOutput{} }
func withWarnings(w ...string) TransitionOutput   { return TransitionOutput{Warnings: w} }
func critical(w ...string) TransitionOutput       { return TransitionOutput{Warnings: w, Critical: true} }

// Transition applies a LifecycleCommand to the current status, returning
// the new status and its Mealy output, or a CommandError (InvalidTransition
// for an edge the table doesn't define at all, BusinessRuleViolation for
// an edge the table explicitly forbids as a domain rule).
func Transition(from Status, cmd LifecycleCommand) (Status, TransitionOutput, error) {
	switch from {
	case StatusProvisioning:
		switch cmd {
		case CmdActivate:
			return StatusActive, ok(), nil
		case CmdFailedProvision:
			return StatusDecommissioned, critical("Provisioning failed"), nil
		case CmdDecommission:
			return StatusDecommissioned, withWarnings("Decommissioning during provisioning"), nil
		case CmdLifecycleUpdate:
			return StatusProvisioning, ok(), nil
		case CmdBeginMaintenance:
			return from, TransitionOutput{}, aggregate.ErrInvalidTransition(string(StatusProvisioning), string(StatusMaintenance))
		case CmdEndMaintenance:
			return from, TransitionOutput{}, aggregate.ErrInvalidTransition(string(StatusProvisioning), "active (via end_maintenance)")
		}

	case StatusActive:
		switch cmd {
		case CmdBeginMaintenance:
			return StatusMaintenance, ok(), nil
		case CmdDecommission:
			return StatusDecommissioned, critical("Decommissioning active resource"), nil
		case CmdLifecycleUpdate:
			return StatusActive, ok(), nil
		case CmdActivate:
			return from, TransitionOutput{}, aggregate.ErrBusinessRuleViolation("already active")
		case CmdFailedProvision:
			return from, TransitionOutput{}, aggregate.ErrBusinessRuleViolation("cannot fail provision on active resource")
		case CmdEndMaintenance:
			return from, TransitionOutput{}, aggregate.ErrInvalidTransition(string(StatusActive), "active (via end_maintenance)")
		}

	case StatusMaintenance:
		switch cmd {
		case CmdEndMaintenance:
			return StatusActive, ok(), nil
		case CmdDecommission:
			return StatusDecommissioned, withWarnings("Decommissioning during maintenance"), nil
		case CmdLifecycleUpdate:
			return StatusMaintenance, ok(), nil
		case CmdActivate:
			return from, TransitionOutput{}, aggregate.ErrBusinessRuleViolation("already was activated")
		case CmdFailedProvision:
			return from, TransitionOutput{}, aggregate.ErrBusinessRuleViolation("cannot fail provision on resource in maintenance")
		case CmdBeginMaintenance:
			return from, TransitionOutput{}, aggregate.ErrBusinessRuleViolation("already in maintenance")
		}

	case StatusDecommissioned:
		if cmd == CmdLifecycleUpdate {
			return StatusDecommissioned, ok(), nil
		}
		return from, TransitionOutput{}, aggregate.ErrInvalidTransition(string(StatusDecommissioned), "any state")
	}

	return from, TransitionOutput{}, aggregate.ErrInvalidTransition(string(from), string(cmd))
}

// ValidInputs lists the LifecycleCommands that don't immediately fail
// from the given status, mirroring valid_inputs() in the Rust source.
func ValidInputs(from Status) []LifecycleCommand {
	switch from {
	case StatusProvisioning:
		return []LifecycleCommand{CmdActivate, CmdFailedProvision, CmdDecommission, CmdLifecycleUpdate}
	case StatusActive:
		return []LifecycleCommand{CmdBeginMaintenance, CmdDecommission, CmdLifecycleUpdate}
	case StatusMaintenance:
		return []LifecycleCommand{CmdEndMaintenance, CmdDecommission, CmdLifecycleUpdate}
	case StatusDecommissioned:
		return []LifecycleCommand{CmdLifecycleUpdate}
	default:
		return nil
	}
}
