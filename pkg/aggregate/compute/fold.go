package compute

import (
	"encoding/json"
	"fmt"

	"github.com/infracore/eventcore/pkg/envelope"
)

// Fold applies one stored event to state, the pure (State, Event) -> State
// half of event sourcing. It's the Repository[State]'s fold callback
// (pkg/aggregate.Fold[State]).
func Fold(state State, e envelope.StoredEvent) (State, error) {
	switch e.EventType {
	case EventResourceRegistered:
		var p ResourceRegisteredPayload
		if err := decode(e, &p); err != nil {
			return state, err
		}
		state.ID = e.AggregateID
		state.Hostname = p.Hostname
		state.ResourceType = p.ResourceType
		state.Status = StatusProvisioning
		state.Initialized = true
		state.CreatedAt = e.Timestamp
		state.UpdatedAt = e.Timestamp
		return state, nil

	case EventOrganizationAssigned:
		var p OrganizationAssignedPayload
		if err := decode(e, &p); err != nil {
			return state, err
		}
		state.OrganizationID = p.OrganizationID

	case EventLocationAssigned:
		var p LocationAssignedPayload
		if err := decode(e, &p); err != nil {
			return state, err
		}
		state.LocationID = p.LocationID

	case EventOwnerAssigned:
		var p OwnerAssignedPayload
		if err := decode(e, &p); err != nil {
			return state, err
		}
		state.OwnerID = p.OwnerID

	case EventPolicyAdded:
		var p PolicyAddedPayload
		if err := decode(e, &p); err != nil {
			return state, err
		}
		state.PolicyIDs = append(append([]string{}, state.PolicyIDs...), p.PolicyID)

	case EventPolicyRemoved:
		var p PolicyRemovedPayload
		if err := decode(e, &p); err != nil {
			return state, err
		}
		filtered := make([]string, 0, len(state.PolicyIDs))
		for _, id := range state.PolicyIDs {
			if id != p.PolicyID {
				filtered = append(filtered, id)
			}
		}
		state.PolicyIDs = filtered

	case EventCapacitySet:
		var p CapacitySetPayload
		if err := decode(e, &p); err != nil {
			return state, err
		}
		state.CapacityUnits = p.CapacityUnits

	case EventHardwareDetailsSet:
		var p HardwareDetailsSetPayload
		if err := decode(e, &p); err != nil {
			return state, err
		}
		state.Manufacturer = p.Manufacturer
		state.Model = p.Model
		state.SerialNumber = p.SerialNumber

	case EventAssetTagAssigned:
		var p AssetTagAssignedPayload
		if err := decode(e, &p); err != nil {
			return state, err
		}
		state.AssetTag = p.AssetTag

	case EventMetadataUpdated:
		var p MetadataUpdatedPayload
		if err := decode(e, &p); err != nil {
			return state, err
		}
		next := make(map[string]string, len(state.Metadata)+1)
		for k, v := range state.Metadata {
			next[k] = v
		}
		next[p.Key] = p.Value
		state.Metadata = next

	case EventStatusChanged:
		var p StatusChangedPayload
		if err := decode(e, &p); err != nil {
			return state, err
		}
		state.Status = p.To

	default:
		return state, fmt.Errorf("compute: unknown event type %q at seq %d", e.EventType, e.Sequence)
	}

	state.UpdatedAt = e.Timestamp
	return state, nil
}

func decode(e envelope.StoredEvent, v any) error {
	if err := json.Unmarshal(e.Payload, v); err != nil {
		return fmt.Errorf("compute: decode %s payload: %w", e.EventType, err)
	}
	return nil
}

// Zero returns the uninitialized state every aggregate stream starts
// folding from.
func Zero() State { return zeroState() }
