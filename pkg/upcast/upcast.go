// Package upcast translates an older schema version of an event's JSON
// payload forward to the version a fold function expects, as an ordered
// chain of JSON-to-JSON steps. Applying a chain to a payload already at
// the target version is a no-op, so upcasting is idempotent at the
// target version.
package upcast

import (
	"encoding/json"
	"fmt"
)

// Step transforms one version's JSON payload into the next version's.
// From is the version this step accepts; it must produce a payload valid
// for From+1.
type Step struct {
	From uint32
	Fn   func(json.RawMessage) (json.RawMessage, error)
}

// Chain upcasts payloads for one event type through an ordered sequence
// of Steps, keyed by the version the payload arrives at.
type Chain struct {
	eventType string
	steps     map[uint32]Step
}

// NewChain builds an (initially empty) upcast chain for one event type.
func NewChain(eventType string) *Chain {
	return &Chain{eventType: eventType, steps: make(map[uint32]Step)}
}

// Add registers a step. Panics on a duplicate From version — that's a
// programming error in the chain's construction, not a runtime condition.
func (c *Chain) Add(step Step) *Chain {
	if _, exists := c.steps[step.From]; exists {
		panic(fmt.Sprintf("upcast: duplicate step registered for %s version %d", c.eventType, step.From))
	}
	c.steps[step.From] = step
	return c
}

// ErrUnsupportedVersion is returned when a payload's version is higher
// than the chain knows how to upcast from (a newer writer than this
// reader), or lower than any step can bridge.
type ErrUnsupportedVersion struct {
	EventType string
	Version   uint32
}

func (e *ErrUnsupportedVersion) Error() string {
	return fmt.Sprintf("upcast: no path for %s at version %d", e.EventType, e.Version)
}

// Apply upcasts payload from fromVersion to targetVersion. If
// fromVersion already equals targetVersion, payload is returned
// unchanged (the idempotent-at-target-version requirement).
func (c *Chain) Apply(payload json.RawMessage, fromVersion, targetVersion uint32) (json.RawMessage, error) {
	if fromVersion == targetVersion {
		return payload, nil
	}
	if fromVersion > targetVersion {
		return nil, &ErrUnsupportedVersion{EventType: c.eventType, Version: fromVersion}
	}

	current := payload
	for v := fromVersion; v < targetVersion; v++ {
		step, ok := c.steps[v]
		if !ok {
			return nil, &ErrUnsupportedVersion{EventType: c.eventType, Version: v}
		}
		next, err := step.Fn(current)
		if err != nil {
			return nil, fmt.Errorf("upcast: %s v%d->v%d: %w", c.eventType, v, v+1, err)
		}
		current = next
	}
	return current, nil
}

// Registry maps event types to their Chains, so a fold function can
// upcast any event it reads before applying it regardless of the
// event's EventType.
type Registry struct {
	chains map[string]*Chain
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry { return &Registry{chains: make(map[string]*Chain)} }

// Register adds (or replaces) a chain for eventType.
func (r *Registry) Register(chain *Chain) { r.chains[chain.eventType] = chain }

// Upcast looks up the chain for eventType and applies it, or returns the
// payload unchanged if no chain is registered (events at their current
// version never need one).
func (r *Registry) Upcast(eventType string, payload json.RawMessage, fromVersion, targetVersion uint32) (json.RawMessage, error) {
	chain, ok := r.chains[eventType]
	if !ok {
		if fromVersion != targetVersion {
			return nil, &ErrUnsupportedVersion{EventType: eventType, Version: fromVersion}
		}
		return payload, nil
	}
	return chain.Apply(payload, fromVersion, targetVersion)
}
