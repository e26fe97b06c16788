package domain

import (
	"context"
	"time"
)

// EventType defines the category of the event.
type EventType string

const (
	EventCallStart    EventType = "call_start"
	EventCallComplete EventType = "call_complete"
	EventStep         EventType = "step"
	EventFallback     EventType = "fallback"
)

// EventBase contains common fields for all events.
type EventBase struct {
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
	CallID    string    `json:"call_id"`
}

// CallEvent marks the start or completion of a call.
type CallEvent struct {
	EventBase
	From string `json:"from"`
	To   string `json:"to"`
}

// StepEvent is emitted once per step rendered into a document.
type StepEvent struct {
	EventBase
	Command  Command `json:"command"`
	Position int     `json:"position"`
	Terminal bool    `json:"terminal"`
}

// FallbackEvent is emitted when a turn fails and the call is forwarded instead.
type FallbackEvent struct {
	EventBase
	Err error `json:"-"`
}

// LifecycleHooks defines callbacks for call observability.
type LifecycleHooks struct {
	OnCallStart    func(context.Context, *CallEvent)
	OnCallComplete func(context.Context, *CallEvent)
	OnStep         func(context.Context, *StepEvent)
	OnFallback     func(context.Context, *FallbackEvent)
}

func newBase(t EventType, callID string) EventBase {
	return EventBase{Timestamp: time.Now(), Type: t, CallID: callID}
}

// NewCallEvent builds a CallEvent of the given type for call.
func NewCallEvent(t EventType, call Call) *CallEvent {
	return &CallEvent{EventBase: newBase(t, call.ID), From: call.From, To: call.To}
}

// NewStepEvent builds a StepEvent for the step at position.
func NewStepEvent(callID string, command Command, position int, terminal bool) *StepEvent {
	return &StepEvent{
		EventBase: newBase(EventStep, callID),
		Command:   command,
		Position:  position,
		Terminal:  terminal,
	}
}

// NewFallbackEvent builds a FallbackEvent for a failed turn.
func NewFallbackEvent(callID string, err error) *FallbackEvent {
	return &FallbackEvent{EventBase: newBase(EventFallback, callID), Err: err}
}
