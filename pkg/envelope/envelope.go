package envelope

import (
	"encoding/json"
	"time"
)

// StoredEvent is the durable envelope every persisted event is wrapped in.
// All fields are set once, at append, and never mutated.
type StoredEvent struct {
	// EventID is a time-ordered, globally unique identifier.
	EventID string `json:"event_id"`

	// AggregateID identifies the owning entity stream.
	AggregateID string `json:"aggregate_id"`

	// Sequence is dense per aggregate; the first event is sequence 1.
	Sequence uint64 `json:"sequence"`

	// Timestamp is the UTC instant the event was appended.
	Timestamp time.Time `json:"timestamp"`

	// CorrelationID is shared by every event of one request flow.
	CorrelationID string `json:"correlation_id"`

	// CausationID is the event_id of the direct parent event, or the
	// aggregate_id for the root event of a stream.
	CausationID string `json:"causation_id"`

	// EventType is stable across schema versions of the same logical event.
	EventType string `json:"event_type"`

	// EventVersion increases monotonically when the payload schema changes.
	EventVersion uint32 `json:"event_version"`

	// Payload is the event-specific data, validated by upcasting before
	// projection. Deliberately untyped here — this package doesn't know
	// about any aggregate's concrete event types.
	Payload json.RawMessage `json:"data"`

	// Metadata is free-form audit context.
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Subject returns the hierarchical routing key "<root>.<aggregateKind>.<operation>"
// joined from its three arguments. aggregateKind is supplied by the
// caller because StoredEvent itself doesn't carry a kind — only an
// EventType string, which upper layers own the taxonomy of.
func (e StoredEvent) Subject(root, aggregateKind, operation string) string {
	return root + "." + aggregateKind + "." + operation
}

// NewRoot builds the envelope for the first event in a new aggregate
// stream: sequence 1, causation_id set to the aggregate's own id, since the
// root event has no parent event to point at.
func NewRoot(aggregateID, correlationID, eventType string, version uint32, payload json.RawMessage, metadata map[string]string, at time.Time) StoredEvent {
	return StoredEvent{
		EventID:       NewEventID(),
		AggregateID:   aggregateID,
		Sequence:      1,
		Timestamp:     at,
		CorrelationID: correlationID,
		CausationID:   aggregateID,
		EventType:     eventType,
		EventVersion:  version,
		Payload:       payload,
		Metadata:      metadata,
	}
}

// NewFollowing builds the envelope for a non-root event, threading
// causationID from the triggering event's event_id — never a freshly
// minted one.
func NewFollowing(aggregateID string, sequence uint64, correlationID, causationID, eventType string, version uint32, payload json.RawMessage, metadata map[string]string, at time.Time) StoredEvent {
	return StoredEvent{
		EventID:       NewEventID(),
		AggregateID:   aggregateID,
		Sequence:      sequence,
		Timestamp:     at,
		CorrelationID: correlationID,
		CausationID:   causationID,
		EventType:     eventType,
		EventVersion:  version,
		Payload:       payload,
		Metadata:      metadata,
	}
}
