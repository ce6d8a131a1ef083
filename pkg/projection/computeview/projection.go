// Package computeview is the read-model projection for ComputeResource
// aggregates: a pure (state, event) -> effects fold (pkg/projection) that
// never calls *sql.DB directly, so it can be executed, replayed, or
// dry-run through any SideEffectExecutor.
package computeview

import (
	"encoding/json"
	"fmt"

	"github.com/infracore/eventcore/pkg/aggregate/compute"
	"github.com/infracore/eventcore/pkg/envelope"
	"github.com/infracore/eventcore/pkg/projection"
)

// Table is the read-model table every effect this projection produces
// targets.
const Table = "compute_view"

// View is the denormalized row this projection maintains, and also the
// fold state Project carries between events.
type View struct {
	AggregateID    string            `json:"aggregate_id"`
	Hostname       string            `json:"hostname"`
	ResourceType   string            `json:"resource_type"`
	Status         string            `json:"status"`
	OrganizationID string            `json:"organization_id,omitempty"`
	OwnerID        string            `json:"owner_id,omitempty"`
	PolicyCount    int               `json:"policy_count"`
	Metadata       map[string]string `json:"metadata,omitempty"`
	exists         bool
}

func (v View) row() map[string]any {
	return map[string]any{
		"aggregate_id":    v.AggregateID,
		"hostname":        v.Hostname,
		"resource_type":   v.ResourceType,
		"status":          v.Status,
		"organization_id": v.OrganizationID,
		"owner_id":        v.OwnerID,
		"policy_count":    v.PolicyCount,
	}
}

// Project folds a single stored compute event into the view and the
// effects needed to persist the change.
func Project(state View, e envelope.StoredEvent) (View, []projection.Effect, error) {
	switch e.EventType {
	case compute.EventResourceRegistered:
		var p compute.ResourceRegisteredPayload
		if err := json.Unmarshal(e.Payload, &p); err != nil {
			return state, nil, fmt.Errorf("computeview: decode %s: %w", e.EventType, err)
		}
		state = View{
			AggregateID:  e.AggregateID,
			Hostname:     p.Hostname,
			ResourceType: string(p.ResourceType),
			Status:       string(compute.StatusProvisioning),
			exists:       true,
		}
		return state, []projection.Effect{projection.DatabaseWrite{Table: Table, Key: state.AggregateID, Row: state.row()}}, nil

	case compute.EventOrganizationAssigned:
		var p compute.OrganizationAssignedPayload
		if err := json.Unmarshal(e.Payload, &p); err != nil {
			return state, nil, fmt.Errorf("computeview: decode %s: %w", e.EventType, err)
		}
		state.OrganizationID = p.OrganizationID
		return state, update(state, map[string]any{"organization_id": p.OrganizationID}), nil

	case compute.EventOwnerAssigned:
		var p compute.OwnerAssignedPayload
		if err := json.Unmarshal(e.Payload, &p); err != nil {
			return state, nil, fmt.Errorf("computeview: decode %s: %w", e.EventType, err)
		}
		state.OwnerID = p.OwnerID
		return state, update(state, map[string]any{"owner_id": p.OwnerID}), nil

	case compute.EventPolicyAdded:
		state.PolicyCount++
		return state, update(state, map[string]any{"policy_count": state.PolicyCount}), nil

	case compute.EventPolicyRemoved:
		if state.PolicyCount > 0 {
			state.PolicyCount--
		}
		return state, update(state, map[string]any{"policy_count": state.PolicyCount}), nil

	case compute.EventMetadataUpdated:
		var p compute.MetadataUpdatedPayload
		if err := json.Unmarshal(e.Payload, &p); err != nil {
			return state, nil, fmt.Errorf("computeview: decode %s: %w", e.EventType, err)
		}
		if state.Metadata == nil {
			state.Metadata = map[string]string{}
		}
		state.Metadata[p.Key] = p.Value
		return state, nil, nil // metadata isn't surfaced in the flat view; no effect

	case compute.EventStatusChanged:
		var p compute.StatusChangedPayload
		if err := json.Unmarshal(e.Payload, &p); err != nil {
			return state, nil, fmt.Errorf("computeview: decode %s: %w", e.EventType, err)
		}
		state.Status = string(p.To)
		effects := update(state, map[string]any{"status": string(p.To)})
		if p.Critical {
			effects = append(effects, projection.Log{
				Level:   "warn",
				Message: "compute resource lifecycle transition flagged critical",
				Fields:  map[string]any{"aggregate_id": e.AggregateID, "to": string(p.To)},
			})
		}
		return state, effects, nil

	default:
		return state, nil, nil
	}
}

func update(state View, patches map[string]any) []projection.Effect {
	return []projection.Effect{projection.DatabaseUpdate{Table: Table, Key: state.AggregateID, Patches: patches}}
}
