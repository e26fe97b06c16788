package domain

import (
	"errors"
	"fmt"
)

// ErrSessionNotFound is returned when a call ID cannot be found in the store.
var ErrSessionNotFound = errors.New("session not found")

// ErrScriptNotFound is returned by script lookups that hold no script for a caller.
var ErrScriptNotFound = errors.New("script not found")

// ErrUnknownCommand marks a step whose command is not part of the vocabulary.
var ErrUnknownCommand = errors.New("unknown command")

// ErrInvalidInput is returned for user input that cannot be fed to a call.
var ErrInvalidInput = errors.New("invalid input")

// ValidationError reports a step that cannot be rendered because a required
// field is missing or its command is not supported.
type ValidationError struct {
	Command Command
	Field   string
	Reason  string
	Err     error
}

func (e *ValidationError) Error() string {
	reason := e.Reason
	if reason == "" {
		reason = "is required"
	}
	if e.Field == "" {
		return fmt.Sprintf("%s: %s", e.Command, reason)
	}
	return fmt.Sprintf("%s: field %q %s", e.Command, e.Field, reason)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// LookupError reports that no initial script could be obtained for a caller,
// either because none exists or because the lookup itself failed.
type LookupError struct {
	Caller string
	Err    error
}

func (e *LookupError) Error() string {
	return fmt.Sprintf("script lookup for %q: %v", e.Caller, e.Err)
}

func (e *LookupError) Unwrap() error {
	return e.Err
}

// NotFound reports whether the lookup completed without finding a script.
func (e *LookupError) NotFound() bool {
	return errors.Is(e.Err, ErrScriptNotFound)
}

// OperationError reports an operation the call's state does not allow, such as
// advancing a completed call. It always indicates an integration defect.
type OperationError struct {
	CallID string
	Reason string
}

func (e *OperationError) Error() string {
	return fmt.Sprintf("call %q: %s", e.CallID, e.Reason)
}
