package compute

import "github.com/infracore/eventcore/pkg/subject"

// eventOperations maps each event this aggregate produces to the subject
// operation segment it routes under. The subject.Operation
// enum is shared across aggregate kinds, so several distinct compute
// events collapse onto the same operation (e.g. every "assign a reference
// field" event routes as OpUpdated) rather than growing the enum for
// fields this aggregate alone has.
var eventOperations = map[string]subject.Operation{
	EventResourceRegistered:   subject.OpRegistered,
	EventOrganizationAssigned: subject.OpUpdated,
	EventLocationAssigned:     subject.OpUpdated,
	EventOwnerAssigned:        subject.OpUpdated,
	EventPolicyAdded:          subject.OpAdded,
	EventPolicyRemoved:        subject.OpRemoved,
	EventCapacitySet:          subject.OpSet,
	EventHardwareDetailsSet:   subject.OpConfigured,
	EventAssetTagAssigned:     subject.OpUpdated,
	EventMetadataUpdated:      subject.OpSet,
	EventStatusChanged:        subject.OpUpdated,
}

// EventSubject derives the routing subject for one of this package's event
// types, falling back to OpUpdated for any event type this map hasn't been
// extended to cover yet.
func EventSubject(eventType string) string {
	op, ok := eventOperations[eventType]
	if !ok {
		op = subject.OpUpdated
	}
	return subject.ForEvent(subject.KindCompute, op)
}
