// Package subject builds and matches the hierarchical subject names events
// are routed by: "<root>.<aggregate_kind>.<operation>".
//
// This repo's worked example only produces "compute" events, but the
// full aggregate-kind and operation enum is kept so other aggregate
// kinds can be added without touching this package.
package subject

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Root is the literal namespace every subject in this system lives under.
const Root = "infrastructure"

// AggregateKind names an aggregate stream's domain.
type AggregateKind string

const (
	KindCompute    AggregateKind = "compute"
	KindNetwork    AggregateKind = "network"
	KindConnection AggregateKind = "connection"
	KindSoftware   AggregateKind = "software"
	KindPolicy     AggregateKind = "policy"
)

// Operation names the event-producing action within an aggregate kind.
type Operation string

const (
	OpRegistered     Operation = "registered"
	OpDecommissioned Operation = "decommissioned"
	OpUpdated        Operation = "updated"
	OpDefined        Operation = "defined"
	OpRemoved        Operation = "removed"
	OpEstablished    Operation = "established"
	OpSevered        Operation = "severed"
	OpConfigured     Operation = "configured"
	OpDeployed       Operation = "deployed"
	OpAdded          Operation = "added"
	OpSet            Operation = "set"
)

var (
	lower     = cases.Lower(language.Und)
	lowerFold = cases.Fold()
)

// canon lower-cases and Unicode-case-folds a subject segment before it is
// interpolated, so "Compute" and "compute" never produce different wire
// subjects — Operation/AggregateKind values can also come from free-form
// upcast data, so this can't be left implicit.
func canon(segment string) string {
	return lowerFold.String(lower.String(segment))
}

// Builder constructs a single subject string from an aggregate kind and
// operation, or a wildcard subscription pattern.
type Builder struct {
	kind AggregateKind
	op   Operation
}

// NewBuilder starts building a subject for the given aggregate kind.
func NewBuilder(kind AggregateKind) *Builder {
	return &Builder{kind: kind}
}

// Operation sets the operation segment.
func (b *Builder) Operation(op Operation) *Builder {
	b.op = op
	return b
}

// Build returns the fully qualified subject "root.kind.operation".
// Panics if Operation was never set, since a builder used without an
// operation is a programmer error, not a runtime one.
func (b *Builder) Build() string {
	if b.op == "" {
		panic("subject: operation must be set before Build")
	}
	return fmt.Sprintf("%s.%s.%s", Root, canon(string(b.kind)), canon(string(b.op)))
}

// BuildWildcardTail returns "root.kind.>" — matches every operation for
// this aggregate kind (used by durable consumers scoped to one aggregate
// type, or by correlation replay across all of one kind's operations).
func (b *Builder) BuildWildcardTail() string {
	return fmt.Sprintf("%s.%s.>", Root, canon(string(b.kind)))
}

// ForEvent derives the subject for an already-produced event. This is the
// single point every append/publish path calls through, so every
// appended event has exactly one subject derivable from its envelope, by
// construction.
func ForEvent(kind AggregateKind, operation Operation) string {
	return NewBuilder(kind).Operation(operation).Build()
}

// Matches reports whether subject satisfies pattern, where pattern may use
// NATS-style wildcards: "*" matches exactly one segment, a trailing ">"
// matches one-or-more trailing segments.
func Matches(pattern, subj string) bool {
	pSegs := strings.Split(pattern, ".")
	sSegs := strings.Split(subj, ".")

	for i, p := range pSegs {
		if p == ">" {
			return i < len(sSegs) && sSegs[i] != "" // ">" must consume at least one trailing segment
		}
		if i >= len(sSegs) {
			return false
		}
		if p == "*" {
			continue
		}
		if p != sSegs[i] {
			return false
		}
	}
	return len(pSegs) == len(sSegs)
}
