// Package cmdvalidate runs structural command validation in front of the
// aggregate's pure handler layer, so a malformed command is rejected by
// middleware.Validation before a command ever reaches Load/Handle/Save.
// Handlers still re-check the same invariants themselves — this layer is
// fail-fast defense in depth, not the source of truth.
package cmdvalidate

import (
	"fmt"

	"github.com/asaskevich/govalidator"

	"github.com/infracore/eventcore/pkg/aggregate/compute"
)

// Compute implements middleware.Validator for ComputeResource commands,
// using the same govalidator calls pkg/aggregate/compute's handlers make
// (IsDNSName for hostnames, Matches for metadata keys) for the same kind
// of field-level check.
type Compute struct{}

// Validate implements middleware.Validator.
func (Compute) Validate(cmd any) error {
	switch c := cmd.(type) {
	case compute.RegisterResource:
		if !govalidator.IsDNSName(c.Hostname) {
			return fmt.Errorf("cmdvalidate: invalid hostname %q", c.Hostname)
		}
		if c.ResourceType == "" {
			return fmt.Errorf("cmdvalidate: resource type is required")
		}
	case compute.SetMetadata:
		if !govalidator.Matches(c.Key, `^[a-z][a-z0-9_.]*$`) {
			return fmt.Errorf("cmdvalidate: invalid metadata key %q", c.Key)
		}
	case compute.AssignAssetTag:
		if c.AssetTag == "" {
			return fmt.Errorf("cmdvalidate: asset tag must not be empty")
		}
	}
	return nil
}
