// Package projection defines the pure event-folding contract read models
// are built from: Project(state, event) -> (state, effects), with all I/O
// pushed out into Effect values a separate executor interprets. This
// separation is what makes FoldProjection and ReplayProjection
// associative — replaying the same events in the same order always
// produces the same state and the same effect sequence, whether or not
// anything actually executes the effects.
package projection

import "github.com/infracore/eventcore/pkg/envelope"

// Effect is a side effect a projection wants performed, described as data
// rather than executed directly, so the fold itself stays pure.
type Effect interface{ isEffect() }

// DatabaseWrite inserts a new read-model row.
type DatabaseWrite struct {
	Table string
	Key   string
	Row   map[string]any
}

// DatabaseUpdate patches fields of an existing row.
type DatabaseUpdate struct {
	Table   string
	Key     string
	Patches map[string]any
}

// DatabaseDelete removes a row.
type DatabaseDelete struct {
	Table string
	Key   string
}

// DatabaseQuery is a read-modify-write hint: the executor must fetch the
// row before applying patches that depend on its current value (e.g.
// incrementing a counter). Projections that don't need read-modify-write
// semantics should prefer DatabaseUpdate.
type DatabaseQuery struct {
	Table string
	Key   string
	Then  func(current map[string]any) Effect
}

// Log asks the executor to emit a structured log line. Useful for
// projections that track audit trails rather than queryable state.
type Log struct {
	Level   string
	Message string
	Fields  map[string]any
}

// EmitEvent asks the executor to publish a derived event onto the bus
// (e.g. a notification triggered by crossing a threshold). The event
// itself still flows through the same envelope construction rules as any
// other fact — EmitEvent only describes the intent to produce one.
type EmitEvent struct {
	EventType string
	Payload   []byte
}

func (DatabaseWrite) isEffect()  {}
func (DatabaseUpdate) isEffect() {}
func (DatabaseDelete) isEffect() {}
func (DatabaseQuery) isEffect()  {}
func (Log) isEffect()            {}
func (EmitEvent) isEffect()      {}

// Project is the pure per-event fold every projection implements.
type Project[S any] func(state S, event envelope.StoredEvent) (S, []Effect, error)

// FoldProjection folds a batch of events through proj starting from state,
// collecting every effect produced along the way in event order. Used by
// both real-time delivery (one event at a time) and full replay (many
// events at once) — the function is identical either way, which is the
// associativity property that makes incremental and from-scratch
// projection results agree.
func FoldProjection[S any](state S, events []envelope.StoredEvent, proj Project[S]) (S, []Effect, error) {
	var all []Effect
	for _, e := range events {
		next, effects, err := proj(state, e)
		if err != nil {
			return state, all, err
		}
		state = next
		all = append(all, effects...)
	}
	return state, all, nil
}

// ReplayProjection is FoldProjection starting from the zero state,
// named separately because callers reach for it specifically when
// rebuilding a read model from scratch.
func ReplayProjection[S any](zero S, events []envelope.StoredEvent, proj Project[S]) (S, []Effect, error) {
	return FoldProjection(zero, events, proj)
}
