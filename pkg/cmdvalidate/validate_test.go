package cmdvalidate_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/infracore/eventcore/pkg/aggregate/compute"
	"github.com/infracore/eventcore/pkg/cmdvalidate"
)

func TestValidateRejectsInvalidHostname(t *testing.T) {
	v := cmdvalidate.Compute{}
	err := v.Validate(compute.RegisterResource{Hostname: "not a hostname!", ResourceType: compute.ResourcePhysicalServer})
	assert.Error(t, err)
}

func TestValidateAcceptsValidRegistration(t *testing.T) {
	v := cmdvalidate.Compute{}
	err := v.Validate(compute.RegisterResource{Hostname: "web-01.example.com", ResourceType: compute.ResourcePhysicalServer})
	assert.NoError(t, err)
}

func TestValidateRejectsInvalidMetadataKey(t *testing.T) {
	v := cmdvalidate.Compute{}
	err := v.Validate(compute.SetMetadata{Key: "Not Valid", Value: "x"})
	assert.Error(t, err)
}

func TestValidateIgnoresUnrelatedCommands(t *testing.T) {
	v := cmdvalidate.Compute{}
	err := v.Validate(compute.AssignOrganization{OrganizationID: "org-1"})
	assert.NoError(t, err)
}
