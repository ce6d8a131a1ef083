package compute

import "github.com/shopspring/decimal"

// Event type strings. Stable across schema revisions of the same logical
// event, named in Go's past-tense convention for domain events.
const (
	EventResourceRegistered    = "compute.resource_registered"
	EventOrganizationAssigned  = "compute.organization_assigned"
	EventLocationAssigned      = "compute.location_assigned"
	EventOwnerAssigned         = "compute.owner_assigned"
	EventPolicyAdded           = "compute.policy_added"
	EventPolicyRemoved         = "compute.policy_removed"
	EventCapacitySet           = "compute.capacity_set"
	EventHardwareDetailsSet    = "compute.hardware_details_set"
	EventAssetTagAssigned      = "compute.asset_tag_assigned"
	EventMetadataUpdated       = "compute.metadata_updated"
	EventStatusChanged         = "compute.status_changed"
)

// CurrentEventVersion is the schema version every handler in this package
// produces. pkg/upcast is where an older version would be translated up to
// this one before folding.
const CurrentEventVersion = 1

// ResourceRegisteredPayload is the data of EventResourceRegistered.
type ResourceRegisteredPayload struct {
	Hostname     string       `json:"hostname"`
	ResourceType ResourceType `json:"resource_type"`
}

// OrganizationAssignedPayload is the data of EventOrganizationAssigned.
type OrganizationAssignedPayload struct {
	OrganizationID string `json:"organization_id"`
}

// LocationAssignedPayload is the data of EventLocationAssigned.
type LocationAssignedPayload struct {
	LocationID string `json:"location_id"`
}

// OwnerAssignedPayload is the data of EventOwnerAssigned.
type OwnerAssignedPayload struct {
	OwnerID string `json:"owner_id"`
}

// PolicyAddedPayload is the data of EventPolicyAdded.
type PolicyAddedPayload struct {
	PolicyID string `json:"policy_id"`
}

// PolicyRemovedPayload is the data of EventPolicyRemoved.
type PolicyRemovedPayload struct {
	PolicyID string `json:"policy_id"`
}

// CapacitySetPayload is the data of EventCapacitySet. CapacityUnits is a
// decimal.Decimal, not a float, so repeated re-provisioning never drifts
// from rounding error the way float64 accumulation would.
type CapacitySetPayload struct {
	CapacityUnits decimal.Decimal `json:"capacity_units"`
}

// HardwareDetailsSetPayload is the data of EventHardwareDetailsSet.
type HardwareDetailsSetPayload struct {
	Manufacturer string `json:"manufacturer,omitempty"`
	Model        string `json:"model,omitempty"`
	SerialNumber string `json:"serial_number,omitempty"`
}

// AssetTagAssignedPayload is the data of EventAssetTagAssigned.
type AssetTagAssignedPayload struct {
	AssetTag string `json:"asset_tag"`
}

// MetadataUpdatedPayload is the data of EventMetadataUpdated.
type MetadataUpdatedPayload struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// StatusChangedPayload is the data of EventStatusChanged, carrying the FSM
// gate's output alongside the transition itself: the gate's
// warnings/critical flag travel with the fact, not just the handler's
// return value.
type StatusChangedPayload struct {
	From     Status   `json:"from"`
	To       Status   `json:"to"`
	Warnings []string `json:"warnings,omitempty"`
	Critical bool     `json:"critical"`
}
