// Package executor provides SideEffectExecutor implementations that
// interpret the Effect values a projection.Project produces. Several
// implementations wrap another SideEffectExecutor to add one concern
// (logging, filtering) around it, the same decorator shape
// pkg/middleware uses for command dispatch.
package executor

import (
	"context"
	"log/slog"

	"github.com/infracore/eventcore/pkg/projection"
)

// SideEffectExecutor performs the Effects a projection fold produced.
// Implementations must preserve the order effects are handed to Execute,
// so per-collection, per-id ordering survives from the log into the read
// model.
type SideEffectExecutor interface {
	Execute(ctx context.Context, effects []projection.Effect) error
}

// Null discards every effect. Useful for dry-run replay (compute what the
// projection would do without touching a read model).
type Null struct{}

func (Null) Execute(context.Context, []projection.Effect) error { return nil }

// Logging executes nothing itself but logs each effect before delegating
// to Next.
type Logging struct {
	Logger *slog.Logger
	Next   SideEffectExecutor
}

func (l Logging) Execute(ctx context.Context, effects []projection.Effect) error {
	for _, e := range effects {
		l.Logger.Info("projection effect", slog.String("type", effectName(e)))
	}
	if l.Next == nil {
		return nil
	}
	return l.Next.Execute(ctx, effects)
}

func effectName(e projection.Effect) string {
	switch e.(type) {
	case projection.DatabaseWrite:
		return "database_write"
	case projection.DatabaseUpdate:
		return "database_update"
	case projection.DatabaseDelete:
		return "database_delete"
	case projection.DatabaseQuery:
		return "database_query"
	case projection.Log:
		return "log"
	case projection.EmitEvent:
		return "emit_event"
	default:
		return "unknown"
	}
}

// Collecting accumulates every effect it's given, for assertions in tests
// that want to inspect exactly what a projection would have done.
type Collecting struct {
	Effects []projection.Effect
}

func (c *Collecting) Execute(_ context.Context, effects []projection.Effect) error {
	c.Effects = append(c.Effects, effects...)
	return nil
}

// Predicate reports whether an effect should reach the wrapped executor.
type Predicate func(projection.Effect) bool

// Filtering only forwards effects Predicate accepts, preserving relative
// order of the ones that pass.
type Filtering struct {
	Predicate Predicate
	Next      SideEffectExecutor
}

func (f Filtering) Execute(ctx context.Context, effects []projection.Effect) error {
	kept := make([]projection.Effect, 0, len(effects))
	for _, e := range effects {
		if f.Predicate(e) {
			kept = append(kept, e)
		}
	}
	if len(kept) == 0 {
		return nil
	}
	return f.Next.Execute(ctx, kept)
}
