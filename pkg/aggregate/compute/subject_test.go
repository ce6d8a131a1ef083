package compute_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/infracore/eventcore/pkg/aggregate/compute"
)

func TestEventSubjectCoversEveryMappedEventType(t *testing.T) {
	cases := []struct {
		eventType string
		want      string
	}{
		{compute.EventResourceRegistered, "infrastructure.compute.registered"},
		{compute.EventOrganizationAssigned, "infrastructure.compute.updated"},
		{compute.EventLocationAssigned, "infrastructure.compute.updated"},
		{compute.EventOwnerAssigned, "infrastructure.compute.updated"},
		{compute.EventPolicyAdded, "infrastructure.compute.added"},
		{compute.EventPolicyRemoved, "infrastructure.compute.removed"},
		{compute.EventCapacitySet, "infrastructure.compute.set"},
		{compute.EventHardwareDetailsSet, "infrastructure.compute.configured"},
		{compute.EventAssetTagAssigned, "infrastructure.compute.updated"},
		{compute.EventMetadataUpdated, "infrastructure.compute.set"},
		{compute.EventStatusChanged, "infrastructure.compute.updated"},
	}
	for _, c := range cases {
		t.Run(c.eventType, func(t *testing.T) {
			assert.Equal(t, c.want, compute.EventSubject(c.eventType))
		})
	}
}

func TestEventSubjectFallsBackToUpdatedForUnmappedEventType(t *testing.T) {
	assert.Equal(t, "infrastructure.compute.updated", compute.EventSubject("compute.something_unrecognized"))
}
