package ports

import (
	"context"

	"github.com/aretw0/doorman/pkg/domain"
)

// ScriptLookup supplies the initial script of a call, keyed by caller address.
//
// Implementations return domain.ErrScriptNotFound (possibly wrapped) when they
// hold no script for the caller, and any other error for transport failures.
// The core applies no timeout of its own: bound slow lookups through ctx.
type ScriptLookup interface {
	Lookup(ctx context.Context, caller string) (domain.Script, error)
}

// LookupFunc adapts a function to ScriptLookup.
type LookupFunc func(ctx context.Context, caller string) (domain.Script, error)

func (f LookupFunc) Lookup(ctx context.Context, caller string) (domain.Script, error) {
	return f(ctx, caller)
}

// ScriptLister is implemented by lookups that can enumerate their callers.
type ScriptLister interface {
	Callers(ctx context.Context) ([]string, error)
}
