package compute

import (
	"encoding/json"
	"fmt"

	"github.com/asaskevich/govalidator"

	"github.com/infracore/eventcore/pkg/aggregate"
)

// Handle is the pure command handler for ComputeResource:
// (State, Command) -> ([]PendingEvent, error). It never reads the clock
// or touches I/O; the caller supplies "at" from the application layer, so
// domain logic never calls time.Now() itself.
func Handle(state State, cmd Command) ([]aggregate.PendingEvent, error) {
	var (
		pending []aggregate.PendingEvent
		err     error
	)

	switch c := cmd.(type) {
	case RegisterResource:
		pending, err = handleRegister(state, c)
	case AssignOrganization:
		pending, err = handleAssignOrganization(state, c)
	case AssignLocation:
		pending, err = handleAssignLocation(state, c)
	case AssignOwner:
		pending, err = handleAssignOwner(state, c)
	case AddPolicy:
		pending, err = handleAddPolicy(state, c)
	case RemovePolicy:
		pending, err = handleRemovePolicy(state, c)
	case SetCapacity:
		pending, err = handleSetCapacity(state, c)
	case SetHardwareDetails:
		pending, err = handleSetHardwareDetails(state, c)
	case AssignAssetTag:
		pending, err = handleAssignAssetTag(state, c)
	case SetMetadata:
		pending, err = handleSetMetadata(state, c)
	case ChangeStatus:
		pending, err = handleChangeStatus(state, c)
	default:
		return nil, fmt.Errorf("compute: unrecognized command %T", cmd)
	}
	if err != nil {
		return nil, err
	}

	for i := range pending {
		pending[i].Metadata = map[string]string{"_subject": EventSubject(pending[i].EventType)}
	}
	return pending, nil
}

func encode(v any) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("compute: marshal event payload: %v", err))
	}
	return data
}

func handleRegister(state State, c RegisterResource) ([]aggregate.PendingEvent, error) {
	if state.Initialized {
		return nil, aggregate.ErrAlreadyInitialized()
	}
	if !govalidator.IsDNSName(c.Hostname) {
		return nil, aggregate.ErrBusinessRuleViolation(fmt.Sprintf("invalid hostname: %s", c.Hostname))
	}
	if c.ResourceType == "" {
		return nil, aggregate.ErrBusinessRuleViolation("resource type not specified")
	}

	return []aggregate.PendingEvent{{
		EventType: EventResourceRegistered,
		Version:   CurrentEventVersion,
		Payload:   encode(ResourceRegisteredPayload{Hostname: c.Hostname, ResourceType: c.ResourceType}),
	}}, nil
}

func handleAssignOrganization(state State, c AssignOrganization) ([]aggregate.PendingEvent, error) {
	if !state.Initialized {
		return nil, aggregate.ErrNotInitialized()
	}
	return []aggregate.PendingEvent{{
		EventType: EventOrganizationAssigned,
		Version:   CurrentEventVersion,
		Payload:   encode(OrganizationAssignedPayload{OrganizationID: c.OrganizationID}),
	}}, nil
}

func handleAssignLocation(state State, c AssignLocation) ([]aggregate.PendingEvent, error) {
	if !state.Initialized {
		return nil, aggregate.ErrNotInitialized()
	}
	return []aggregate.PendingEvent{{
		EventType: EventLocationAssigned,
		Version:   CurrentEventVersion,
		Payload:   encode(LocationAssignedPayload{LocationID: c.LocationID}),
	}}, nil
}

func handleAssignOwner(state State, c AssignOwner) ([]aggregate.PendingEvent, error) {
	if !state.Initialized {
		return nil, aggregate.ErrNotInitialized()
	}
	return []aggregate.PendingEvent{{
		EventType: EventOwnerAssigned,
		Version:   CurrentEventVersion,
		Payload:   encode(OwnerAssignedPayload{OwnerID: c.OwnerID}),
	}}, nil
}

func handleAddPolicy(state State, c AddPolicy) ([]aggregate.PendingEvent, error) {
	if !state.Initialized {
		return nil, aggregate.ErrNotInitialized()
	}
	if state.HasPolicy(c.PolicyID) {
		return nil, aggregate.ErrDuplicateMember(c.PolicyID)
	}
	return []aggregate.PendingEvent{{
		EventType: EventPolicyAdded,
		Version:   CurrentEventVersion,
		Payload:   encode(PolicyAddedPayload{PolicyID: c.PolicyID}),
	}}, nil
}

func handleRemovePolicy(state State, c RemovePolicy) ([]aggregate.PendingEvent, error) {
	if !state.Initialized {
		return nil, aggregate.ErrNotInitialized()
	}
	if !state.HasPolicy(c.PolicyID) {
		return nil, aggregate.ErrMemberNotFound(c.PolicyID)
	}
	return []aggregate.PendingEvent{{
		EventType: EventPolicyRemoved,
		Version:   CurrentEventVersion,
		Payload:   encode(PolicyRemovedPayload{PolicyID: c.PolicyID}),
	}}, nil
}

func handleSetCapacity(state State, c SetCapacity) ([]aggregate.PendingEvent, error) {
	if !state.Initialized {
		return nil, aggregate.ErrNotInitialized()
	}
	if c.CapacityUnits.IsNegative() {
		return nil, aggregate.ErrBusinessRuleViolation("capacity units cannot be negative")
	}
	return []aggregate.PendingEvent{{
		EventType: EventCapacitySet,
		Version:   CurrentEventVersion,
		Payload:   encode(CapacitySetPayload{CapacityUnits: c.CapacityUnits}),
	}}, nil
}

func handleSetHardwareDetails(state State, c SetHardwareDetails) ([]aggregate.PendingEvent, error) {
	if !state.Initialized {
		return nil, aggregate.ErrNotInitialized()
	}
	return []aggregate.PendingEvent{{
		EventType: EventHardwareDetailsSet,
		Version:   CurrentEventVersion,
		Payload: encode(HardwareDetailsSetPayload{
			Manufacturer: c.Manufacturer,
			Model:        c.Model,
			SerialNumber: c.SerialNumber,
		}),
	}}, nil
}

func handleAssignAssetTag(state State, c AssignAssetTag) ([]aggregate.PendingEvent, error) {
	if !state.Initialized {
		return nil, aggregate.ErrNotInitialized()
	}
	if c.AssetTag == "" {
		return nil, aggregate.ErrBusinessRuleViolation("asset tag must not be empty")
	}
	return []aggregate.PendingEvent{{
		EventType: EventAssetTagAssigned,
		Version:   CurrentEventVersion,
		Payload:   encode(AssetTagAssignedPayload{AssetTag: c.AssetTag}),
	}}, nil
}

func handleSetMetadata(state State, c SetMetadata) ([]aggregate.PendingEvent, error) {
	if !state.Initialized {
		return nil, aggregate.ErrNotInitialized()
	}
	if !govalidator.Matches(c.Key, `^[a-z][a-z0-9_.]*$`) {
		return nil, aggregate.ErrBusinessRuleViolation(fmt.Sprintf("invalid metadata key: %s", c.Key))
	}
	return []aggregate.PendingEvent{{
		EventType: EventMetadataUpdated,
		Version:   CurrentEventVersion,
		Payload:   encode(MetadataUpdatedPayload{Key: c.Key, Value: c.Value}),
	}}, nil
}

func handleChangeStatus(state State, c ChangeStatus) ([]aggregate.PendingEvent, error) {
	if !state.Initialized {
		return nil, aggregate.ErrNotInitialized()
	}
	newStatus, output, err := Transition(state.Status, c.Lifecycle)
	if err != nil {
		return nil, err
	}
	return []aggregate.PendingEvent{{
		EventType: EventStatusChanged,
		Version:   CurrentEventVersion,
		Payload: encode(StatusChangedPayload{
			From:     state.Status,
			To:       newStatus,
			Warnings: output.Warnings,
			Critical: output.Critical,
		}),
	}}, nil
}
