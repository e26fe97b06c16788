package domain

// Resolver selects the script that resumes a call paused on gatherDigits.
// It replaces an opaque callback with plain data so a paused call can be
// persisted and inspected.
type Resolver struct {
	Branches map[string]Script `json:"branches"`
	Default  Script            `json:"default"`
}

// NewResolver splits a gatherDigits branch map into its digit branches and
// the default branch.
func NewResolver(branches map[string]Script) *Resolver {
	r := &Resolver{Branches: make(map[string]Script, len(branches))}
	for key, script := range branches {
		if key == DefaultBranch {
			r.Default = script
			continue
		}
		r.Branches[key] = script
	}
	return r
}

// Resolve returns the branch keyed by exactly digits, or the default branch.
func (r *Resolver) Resolve(digits string) Script {
	if script, ok := r.Branches[digits]; ok {
		return script
	}
	return r.Default
}

// NumDigits is the length of the longest digit branch key.
func (r *Resolver) NumDigits() int {
	longest := 0
	for key := range r.Branches {
		if len(key) > longest {
			longest = len(key)
		}
	}
	return longest
}
