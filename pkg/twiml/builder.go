package twiml

import (
	"encoding/xml"
	"fmt"

	"github.com/aretw0/doorman/pkg/domain"
)

const (
	// DefaultEndpoint is the webhook path Twilio calls back after Dial and Gather.
	DefaultEndpoint = "/twilio"
	// DefaultTimeout applies to Dial and Gather, in seconds.
	DefaultTimeout = 20
	// DefaultVoice and DefaultLanguage apply to Say when the step omits them.
	DefaultVoice    = "woman"
	DefaultLanguage = "en-GB"

	callbackMethod = "GET"
)

// Result describes how a rendered step affects the turn.
type Result struct {
	// Terminal steps end the turn: nothing else is rendered after them.
	Terminal bool
	// Resume is set by steps that wait for digits.
	Resume *domain.Resolver
}

// Builder accumulates the TwiML verbs of one turn for one call.
// It is not safe for concurrent use.
type Builder struct {
	from     string // inbound caller id
	to       string // number that was dialed
	endpoint string
	verbs    []any
}

// Option configures a Builder.
type Option func(*Builder)

// WithEndpoint sets the callback action used by Dial and Gather.
func WithEndpoint(endpoint string) Option {
	return func(b *Builder) {
		if endpoint != "" {
			b.endpoint = endpoint
		}
	}
}

// NewBuilder creates a Builder for a call from the inbound caller id to the
// dialed number.
func NewBuilder(from, to string, opts ...Option) *Builder {
	b := &Builder{
		from:     from,
		to:       to,
		endpoint: DefaultEndpoint,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

type handler func(*Builder, domain.Step) (Result, error)

// handlers maps every supported command to its renderer.
var handlers = map[domain.Command]handler{
	domain.CommandForwardCall: func(b *Builder, s domain.Step) (Result, error) { return b.ForwardCall(s.Params) },
	domain.CommandSendSms:     func(b *Builder, s domain.Step) (Result, error) { return b.SendSms(s.Params) },
	domain.CommandSay:         func(b *Builder, s domain.Step) (Result, error) { return b.Say(s.Params) },
	domain.CommandSendDigits:  func(b *Builder, s domain.Step) (Result, error) { return b.SendDigits(s.Params) },
	domain.CommandGatherDigits: func(b *Builder, s domain.Step) (Result, error) {
		return b.GatherDigits(s.Branches)
	},
	domain.CommandPlay:   func(b *Builder, s domain.Step) (Result, error) { return b.Play(s.Params) },
	domain.CommandHangUp: func(b *Builder, _ domain.Step) (Result, error) { return b.HangUp(), nil },
}

// Apply renders step with the handler registered for its command.
func (b *Builder) Apply(step domain.Step) (Result, error) {
	h, ok := handlers[step.Command]
	if !ok {
		return Result{}, &domain.ValidationError{
			Command: step.Command,
			Reason:  "is not a supported command",
			Err:     domain.ErrUnknownCommand,
		}
	}
	return h(b, step)
}

func required(command domain.Command, field, value string) error {
	if value == "" {
		return &domain.ValidationError{Command: command, Field: field}
	}
	return nil
}

// ForwardCall bridges the caller to params.Value. The caller id is forwarded as is.
func (b *Builder) ForwardCall(params domain.Params) (Result, error) {
	if err := required(domain.CommandForwardCall, "value", params.Value); err != nil {
		return Result{}, err
	}

	b.verbs = append(b.verbs, Dial{
		Action:   b.endpoint,
		CallerID: b.from,
		Method:   callbackMethod,
		Timeout:  DefaultTimeout,
		Number:   params.Value,
	})

	// No Resume: when the forwarded party disconnects, Twilio calls back and the
	// call moves on to the next step.
	return Result{Terminal: true}, nil
}

// SendSms sends params.Value to params.To from the dialed number.
func (b *Builder) SendSms(params domain.Params) (Result, error) {
	if err := required(domain.CommandSendSms, "to", params.To); err != nil {
		return Result{}, err
	}
	if err := required(domain.CommandSendSms, "value", params.Value); err != nil {
		return Result{}, err
	}

	b.verbs = append(b.verbs, Sms{From: b.to, To: params.To, Body: params.Value})
	return Result{}, nil
}

// Say speaks params.Value.
func (b *Builder) Say(params domain.Params) (Result, error) {
	if err := required(domain.CommandSay, "value", params.Value); err != nil {
		return Result{}, err
	}

	voice, language := params.Voice, params.Language
	if voice == "" {
		voice = DefaultVoice
	}
	if language == "" {
		language = DefaultLanguage
	}

	b.verbs = append(b.verbs, Say{Language: language, Voice: voice, Text: params.Value})
	return Result{}, nil
}

// SendDigits plays params.Value as DTMF tones.
func (b *Builder) SendDigits(params domain.Params) (Result, error) {
	if err := required(domain.CommandSendDigits, "value", params.Value); err != nil {
		return Result{}, err
	}

	b.verbs = append(b.verbs, Play{Digits: params.Value})
	return Result{}, nil
}

// GatherDigits waits for as many digits as the longest branch key and resumes
// the call on the matching branch.
func (b *Builder) GatherDigits(branches map[string]domain.Script) (Result, error) {
	// An empty default branch is valid; a missing or null one is not.
	if branches[domain.DefaultBranch] == nil {
		return Result{}, &domain.ValidationError{
			Command: domain.CommandGatherDigits,
			Field:   domain.DefaultBranch,
			Reason:  "branch is required",
		}
	}

	resolver := domain.NewResolver(branches)
	b.verbs = append(b.verbs, Gather{
		Action:    b.endpoint,
		Method:    callbackMethod,
		NumDigits: resolver.NumDigits(),
		Timeout:   DefaultTimeout,
	})

	return Result{Terminal: true, Resume: resolver}, nil
}

// Play plays the audio file at params.Value.
func (b *Builder) Play(params domain.Params) (Result, error) {
	if err := required(domain.CommandPlay, "value", params.Value); err != nil {
		return Result{}, err
	}

	b.verbs = append(b.verbs, Play{URL: params.Value})
	return Result{}, nil
}

// HangUp pauses briefly and ends the call.
func (b *Builder) HangUp() Result {
	b.verbs = append(b.verbs, Pause{Length: 1}, Hangup{})
	return Result{Terminal: true}
}

// DefaultAction renders what a call does once its script is exhausted.
func (b *Builder) DefaultAction() Result {
	return b.HangUp()
}

// Len returns the number of verbs in the buffer.
func (b *Builder) Len() int {
	return len(b.verbs)
}

// Reset clears the buffer.
func (b *Builder) Reset() {
	b.verbs = nil
}

// Render serializes the buffer as a TwiML document.
func (b *Builder) Render() (string, error) {
	out, err := xml.Marshal(Response{Verbs: b.verbs})
	if err != nil {
		return "", fmt.Errorf("failed to render twiml: %w", err)
	}
	return xml.Header + string(out), nil
}

// Flush renders the buffer and then clears it.
func (b *Builder) Flush() (string, error) {
	doc, err := b.Render()
	b.Reset()
	return doc, err
}
