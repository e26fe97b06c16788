package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/aretw0/doorman/pkg/domain"
)

// Lookup implements ports.ScriptLookup using an in-memory map keyed by caller.
type Lookup struct {
	mu      sync.RWMutex
	scripts map[string]domain.Script
}

// NewLookup creates a Lookup seeded with scripts.
func NewLookup(scripts map[string]domain.Script) *Lookup {
	l := &Lookup{scripts: make(map[string]domain.Script, len(scripts))}
	for caller, script := range scripts {
		l.scripts[caller] = script
	}
	return l
}

// Set registers or replaces the script for caller.
func (l *Lookup) Set(caller string, script domain.Script) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.scripts[caller] = script
}

// Lookup returns the script for caller or domain.ErrScriptNotFound.
func (l *Lookup) Lookup(ctx context.Context, caller string) (domain.Script, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	script, ok := l.scripts[caller]
	if !ok {
		return nil, domain.ErrScriptNotFound
	}
	return script, nil
}

// Callers returns the callers with a script, sorted.
func (l *Lookup) Callers(ctx context.Context) ([]string, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	callers := make([]string, 0, len(l.scripts))
	for caller := range l.scripts {
		callers = append(callers, caller)
	}
	sort.Strings(callers)
	return callers, nil
}
