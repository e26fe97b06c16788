package domain

// Status defines the current mode of a call.
type Status string

const (
	StatusRunning   Status = "running"   // Steps left to traverse
	StatusPaused    Status = "paused"    // Waiting for digits, Resume is set
	StatusCompleted Status = "completed" // Hangup emitted, no further turns
)

// Call identifies one telephone session as reported by the provider.
type Call struct {
	// ID is the provider's call identifier (CallSid).
	ID string `json:"id"`
	// From is the inbound caller address, used to look up the initial script.
	From string `json:"from"`
	// To is the dialed address.
	To string `json:"to"`
}

// Input is the user input of one turn.
type Input struct {
	Digits string `json:"digits,omitempty"`
}

// CallState is the serializable snapshot of a call in progress.
type CallState struct {
	Call

	// Script is the branch currently being traversed.
	Script Script `json:"script"`

	// Position indexes into Script. A position past the end means the script
	// is exhausted.
	Position int `json:"position"`

	Status Status `json:"status"`

	// Resume selects the next Script once digits arrive. Set iff Status is paused.
	Resume *Resolver `json:"resume,omitempty"`

	// Sealed carries the encrypted snapshot when a store encrypts calls at rest.
	// The other fields of a sealed state are left empty apart from ID and Status.
	Sealed []byte `json:"sealed,omitempty"`
}

// NewCallState creates a running state positioned at the start of script.
func NewCallState(call Call, script Script) *CallState {
	if script == nil {
		script = Script{}
	}
	return &CallState{
		Call:   call,
		Script: script,
		Status: StatusRunning,
	}
}

// Paused reports whether the call is waiting for digits.
func (s *CallState) Paused() bool {
	return s.Status == StatusPaused
}

// Completed reports whether the call has ended.
func (s *CallState) Completed() bool {
	return s.Status == StatusCompleted
}

// Current returns the step at Position, or false when the script is exhausted.
func (s *CallState) Current() (Step, bool) {
	if s.Position < 0 || s.Position >= len(s.Script) {
		return Step{}, false
	}
	return s.Script[s.Position], true
}

// Clone returns a copy that can be mutated without affecting s.
// Scripts and resolvers are immutable and therefore shared.
func (s *CallState) Clone() *CallState {
	if s == nil {
		return nil
	}
	c := *s
	return &c
}
