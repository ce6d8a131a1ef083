// Package aggregate defines the pure command-handling contract aggregates
// implement and the generic load/save glue that wires a concrete
// aggregate to an eventlog.Store.
package aggregate

import "fmt"

// CommandError is the taxonomy every aggregate's command handlers return,
// a small closed set of business-rule rejection kinds shared across
// aggregates.
type CommandError struct {
	Kind    CommandErrorKind
	Member  string // the id involved in a duplicate/not-found error, if any
	From    string // InvalidTransition source state
	To      string // InvalidTransition target state
	Message string // BusinessRuleViolation / free-form detail
}

// CommandErrorKind enumerates the distinct ways a command can be rejected.
type CommandErrorKind int

const (
	NotInitialized CommandErrorKind = iota
	AlreadyInitialized
	DuplicateMember
	MemberNotFound
	InvalidTransition
	BusinessRuleViolation
)

func (e *CommandError) Error() string {
	switch e.Kind {
	case NotInitialized:
		return "aggregate not initialized"
	case AlreadyInitialized:
		return "aggregate already initialized"
	case DuplicateMember:
		return fmt.Sprintf("%s already added", e.Member)
	case MemberNotFound:
		return fmt.Sprintf("%s not found", e.Member)
	case InvalidTransition:
		return fmt.Sprintf("invalid transition from %s to %s", e.From, e.To)
	case BusinessRuleViolation:
		return fmt.Sprintf("business rule violation: %s", e.Message)
	default:
		return "command rejected"
	}
}

// ErrNotInitialized is returned by any command other than the registering
// one when no events have been applied to the aggregate yet.
func ErrNotInitialized() error { return &CommandError{Kind: NotInitialized} }

// ErrAlreadyInitialized is returned by the registering command when the
// aggregate already has history.
func ErrAlreadyInitialized() error { return &CommandError{Kind: AlreadyInitialized} }

// ErrDuplicateMember is returned when a command tries to add something
// (a policy id, a tag) that's already present in a set-valued field.
func ErrDuplicateMember(member string) error {
	return &CommandError{Kind: DuplicateMember, Member: member}
}

// ErrMemberNotFound is returned when a command tries to remove something
// that isn't present in a set-valued field.
func ErrMemberNotFound(member string) error {
	return &CommandError{Kind: MemberNotFound, Member: member}
}

// ErrInvalidTransition is returned when the FSM gate rejects a lifecycle
// command outright (no such edge in the transition table).
func ErrInvalidTransition(from, to string) error {
	return &CommandError{Kind: InvalidTransition, From: from, To: to}
}

// ErrBusinessRuleViolation is returned when the FSM gate recognizes the
// edge but a domain rule forbids taking it right now (e.g. "already
// active").
func ErrBusinessRuleViolation(message string) error {
	return &CommandError{Kind: BusinessRuleViolation, Message: message}
}
