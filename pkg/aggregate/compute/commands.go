package compute

import "github.com/shopspring/decimal"

// Command is implemented by every ComputeResource command. It exists only
// to let Handle dispatch on a closed set via a type switch — commands
// carry no shared behavior; they are plain data, and Handle is the pure
// function that validates them.
type Command interface{ isComputeCommand() }

type RegisterResource struct {
	Hostname     string
	ResourceType ResourceType
}

type AssignOrganization struct{ OrganizationID string }
type AssignLocation struct{ LocationID string }
type AssignOwner struct{ OwnerID string }
type AddPolicy struct{ PolicyID string }
type RemovePolicy struct{ PolicyID string }
type SetCapacity struct{ CapacityUnits decimal.Decimal }
type SetHardwareDetails struct {
	Manufacturer string
	Model        string
	SerialNumber string
}
type AssignAssetTag struct{ AssetTag string }
type SetMetadata struct {
	Key   string
	Value string
}
type ChangeStatus struct{ Lifecycle LifecycleCommand }

func (RegisterResource) isComputeCommand()    {}
func (AssignOrganization) isComputeCommand()  {}
func (AssignLocation) isComputeCommand()      {}
func (AssignOwner) isComputeCommand()         {}
func (AddPolicy) isComputeCommand()           {}
func (RemovePolicy) isComputeCommand()        {}
func (SetCapacity) isComputeCommand()         {}
func (SetHardwareDetails) isComputeCommand()  {}
func (AssignAssetTag) isComputeCommand()      {}
func (SetMetadata) isComputeCommand()         {}
func (ChangeStatus) isComputeCommand()        {}
