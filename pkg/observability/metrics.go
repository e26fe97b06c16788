package observability

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/aretw0/doorman/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Turn outcomes.
const (
	OutcomeContinued = "continued"
	OutcomePaused    = "paused"
	OutcomeCompleted = "completed"
	OutcomeFallback  = "fallback"
)

// Fallback reasons.
const (
	ReasonNotFound   = "not_found"
	ReasonLookup     = "lookup"
	ReasonValidation = "validation"
	ReasonOperation  = "operation"
	ReasonInput      = "input"
	ReasonInternal   = "internal"
)

// Metrics holds the doorman collectors on a dedicated registry.
type Metrics struct {
	registry *prometheus.Registry

	turns          *prometheus.CounterVec
	turnDuration   *prometheus.HistogramVec
	fallbacks      *prometheus.CounterVec
	steps          *prometheus.CounterVec
	callsStarted   prometheus.Counter
	callsCompleted prometheus.Counter
}

// NewMetrics creates and registers the collectors. Go runtime and process
// collectors are registered alongside.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		turns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "doorman_turns_total",
				Help: "Total number of webhook turns by outcome",
			},
			[]string{"outcome"},
		),
		turnDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "doorman_turn_duration_seconds",
				Help:    "Duration of webhook turns",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"outcome"},
		),
		fallbacks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "doorman_fallbacks_total",
				Help: "Total number of turns answered with the fallback forward",
			},
			[]string{"reason"},
		),
		steps: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "doorman_steps_total",
				Help: "Total number of steps rendered by command",
			},
			[]string{"command"},
		),
		callsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "doorman_calls_started_total",
			Help: "Total number of calls that found a script",
		}),
		callsCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "doorman_calls_completed_total",
			Help: "Total number of calls that ran to the end of their script",
		}),
	}

	m.registry.MustRegister(
		m.turns, m.turnDuration, m.fallbacks, m.steps, m.callsStarted, m.callsCompleted,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry exposes the underlying registry, mostly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the metrics in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveTurn records a finished turn.
func (m *Metrics) ObserveTurn(outcome string, elapsed time.Duration) {
	m.turns.WithLabelValues(outcome).Inc()
	m.turnDuration.WithLabelValues(outcome).Observe(elapsed.Seconds())
}

// Hooks returns lifecycle hooks that feed the collectors.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnCallStart: func(ctx context.Context, e *domain.CallEvent) {
			m.callsStarted.Inc()
		},
		OnCallComplete: func(ctx context.Context, e *domain.CallEvent) {
			m.callsCompleted.Inc()
		},
		OnStep: func(ctx context.Context, e *domain.StepEvent) {
			m.steps.WithLabelValues(string(e.Command)).Inc()
		},
		OnFallback: func(ctx context.Context, e *domain.FallbackEvent) {
			m.fallbacks.WithLabelValues(Reason(e.Err)).Inc()
		},
	}
}

// Reason classifies a turn error into a fallback reason label.
func Reason(err error) string {
	var (
		lookupErr *domain.LookupError
		validErr  *domain.ValidationError
		opErr     *domain.OperationError
	)
	switch {
	case errors.As(err, &lookupErr):
		if lookupErr.NotFound() {
			return ReasonNotFound
		}
		return ReasonLookup
	case errors.As(err, &validErr):
		return ReasonValidation
	case errors.As(err, &opErr):
		return ReasonOperation
	case errors.Is(err, domain.ErrInvalidInput):
		return ReasonInput
	}
	return ReasonInternal
}

// Chain combines hooks so every registered callback fires, in order.
func Chain(hooks ...domain.LifecycleHooks) domain.LifecycleHooks {
	var out domain.LifecycleHooks
	for _, h := range hooks {
		out.OnCallStart = chain(out.OnCallStart, h.OnCallStart)
		out.OnCallComplete = chain(out.OnCallComplete, h.OnCallComplete)
		out.OnStep = chain(out.OnStep, h.OnStep)
		out.OnFallback = chain(out.OnFallback, h.OnFallback)
	}
	return out
}

func chain[E any](a, b func(context.Context, E)) func(context.Context, E) {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	}
	return func(ctx context.Context, e E) {
		a(ctx, e)
		b(ctx, e)
	}
}
