// Package compute implements the ComputeResource aggregate: identity,
// hostname, resource kind, organization/location/owner references, a
// policy-ID set, a capacity quota, free-form metadata, and lifecycle
// status, with its command set and lifecycle state machine.
package compute

import (
	"time"

	"github.com/shopspring/decimal"
)

// ResourceType is the taxonomy of compute resources the system tracks.
type ResourceType string

const (
	ResourcePhysicalServer ResourceType = "physical_server"
	ResourceVirtualMachine ResourceType = "virtual_machine"
	ResourceContainer      ResourceType = "container"
	ResourceRouter         ResourceType = "router"
)

// Status is the lifecycle state driven by lifecycle.go's FSM.
type Status string

const (
	StatusProvisioning   Status = "provisioning"
	StatusActive         Status = "active"
	StatusMaintenance    Status = "maintenance"
	StatusDecommissioned Status = "decommissioned"
)

// State is the immutable, fold-reconstructed aggregate state. The zero
// value is the pre-registration state: Initialized is false until
// ResourceRegistered has been folded in.
type State struct {
	ID             string
	Hostname       string
	ResourceType   ResourceType
	OrganizationID string
	LocationID     string
	OwnerID        string
	PolicyIDs      []string
	CapacityUnits  decimal.Decimal
	Manufacturer   string
	Model          string
	SerialNumber   string
	AssetTag       string
	Metadata       map[string]string
	Status         Status
	Initialized    bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// HasPolicy reports whether policyID is already attached to the resource.
func (s State) HasPolicy(policyID string) bool {
	for _, id := range s.PolicyIDs {
		if id == policyID {
			return true
		}
	}
	return false
}

func zeroState() State {
	return State{Status: StatusProvisioning, Metadata: map[string]string{}}
}
