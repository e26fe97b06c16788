// Package http exposes call sessions as a telephony webhook.
package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/aretw0/doorman/internal/logging"
	"github.com/aretw0/doorman/pkg/domain"
	"github.com/aretw0/doorman/pkg/observability"
	"github.com/aretw0/doorman/pkg/ports"
	"github.com/aretw0/doorman/pkg/runner"
	"github.com/aretw0/doorman/pkg/session"
	"github.com/aretw0/doorman/pkg/twiml"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// AnonymousClient is the caller id Twilio's web client reports.
const AnonymousClient = "client:Anonymous"

// Config holds the webhook settings.
type Config struct {
	// Endpoint is the webhook path, also used as the callback action.
	Endpoint string
	// PrimaryPhoneNumber receives every call that cannot be served.
	PrimaryPhoneNumber string
	// TwilioPhoneNumber replaces AnonymousClient as the inbound caller id.
	TwilioPhoneNumber string

	AccountSid     string
	ApplicationSid string
	// Development disables authenticity checks.
	Development bool

	// AssetPath is served as static files when set.
	AssetPath string
	// MaxDigits bounds the Digits parameter.
	MaxDigits int
}

// Server answers webhook turns with TwiML.
type Server struct {
	registry *session.Registry
	lookup   ports.ScriptLookup
	cfg      Config
	metrics  *observability.Metrics
	hooks    domain.LifecycleHooks
	logger   *slog.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the request logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics records turn outcomes and mounts /metrics.
func WithMetrics(m *observability.Metrics) Option {
	return func(s *Server) {
		s.metrics = m
	}
}

// WithHooks registers hooks; the server fires OnFallback.
func WithHooks(hooks domain.LifecycleHooks) Option {
	return func(s *Server) {
		s.hooks = hooks
	}
}

// NewServer creates a webhook server over registry, creating new calls from lookup.
func NewServer(registry *session.Registry, lookup ports.ScriptLookup, cfg Config, opts ...Option) *Server {
	if cfg.Endpoint == "" {
		cfg.Endpoint = twiml.DefaultEndpoint
	}
	s := &Server{
		registry: registry,
		lookup:   lookup,
		cfg:      cfg,
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the router: the webhook, /health, /metrics and static assets.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Group(func(r chi.Router) {
		r.Use(s.Authenticate)
		r.Get(s.cfg.Endpoint, s.Webhook)
		r.Post(s.cfg.Endpoint, s.Webhook)
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	})

	if s.metrics != nil {
		r.Handle("/metrics", s.metrics.Handler())
	}

	if s.cfg.AssetPath != "" {
		r.Handle("/*", http.FileServer(http.Dir(s.cfg.AssetPath)))
	}
	return r
}

// CallerID substitutes the web client's caller id with the Twilio number so
// forwarding works from the browser client.
func (s *Server) CallerID(from string) string {
	if from == AnonymousClient {
		return s.cfg.TwilioPhoneNumber
	}
	return from
}

// Authenticate rejects requests that did not come from the configured Twilio
// application over https.
func (s *Server) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.Development {
			next.ServeHTTP(w, r)
			return
		}

		// Form merges the query with a urlencoded body.
		if err := r.ParseForm(); err != nil {
			s.logger.Warn("Twilio request is invalid", "err", err)
			http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
			return
		}

		secure := r.Header.Get("X-Forwarded-Proto") == "https"
		valid := r.Form.Get("AccountSid") == s.cfg.AccountSid &&
			r.Form.Get("ApplicationSid") == s.cfg.ApplicationSid

		if !secure || !valid {
			s.logger.Warn("Twilio request is invalid",
				"from", s.CallerID(r.Form.Get("From")),
				"secure", secure,
			)
			http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Webhook runs one turn of the call and writes the resulting TwiML. Any turn
// error is answered by forwarding the caller to the primary number.
func (s *Server) Webhook(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	w.Header().Set("Content-Type", "application/xml")

	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	call := domain.Call{
		ID:   r.Form.Get("CallSid"),
		From: s.CallerID(r.Form.Get("From")),
		To:   r.Form.Get("To"),
	}
	if call.ID == "" {
		s.logger.Warn("Request without CallSid", "from", call.From)
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	doc, outcome, err := s.turn(r, call)
	if err != nil {
		doc, err = s.fallback(r, call, err)
		outcome = observability.OutcomeFallback
		if err != nil {
			s.logger.Error("Failed to render fallback", "call_sid", call.ID, "err", err)
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}
	}

	if s.metrics != nil {
		s.metrics.ObserveTurn(outcome, time.Since(start))
	}

	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte(doc)); err != nil {
		s.logger.Debug("Failed to write response", "call_sid", call.ID, "err", err)
	}
}

func (s *Server) turn(r *http.Request, call domain.Call) (string, string, error) {
	digits, err := runner.SanitizeDigits(r.Form.Get("Digits"), s.cfg.MaxDigits)
	if err != nil {
		return "", "", err
	}

	res, err := s.registry.Turn(r.Context(), call, domain.Input{Digits: digits}, s.lookup)
	if err != nil {
		return "", "", err
	}

	switch {
	case res.Completed:
		s.logger.Debug("Call is complete", "call_sid", call.ID)
		return res.Document, observability.OutcomeCompleted, nil
	case res.Paused:
		return res.Document, observability.OutcomePaused, nil
	}
	return res.Document, observability.OutcomeContinued, nil
}

// fallback renders the forward to the primary number for a failed turn.
func (s *Server) fallback(r *http.Request, call domain.Call, cause error) (string, error) {
	ctx := r.Context()

	var opErr *domain.OperationError
	var lookupErr *domain.LookupError
	switch {
	case errors.As(cause, &opErr):
		s.logger.Error("Request failed", "call_sid", call.ID, "err", cause)
		if err := s.registry.Remove(ctx, call.ID); err != nil {
			s.logger.Warn("Failed to discard call", "call_sid", call.ID, "err", err)
		}
	case errors.As(cause, &lookupErr) && lookupErr.NotFound():
		s.logger.Info("No script for caller", "call_sid", call.ID, "from", call.From)
	default:
		s.logger.Warn("Request failed", "call_sid", call.ID, "err", cause)
	}
	s.logger.Debug("Forwarding call", "call_sid", call.ID, "to", s.cfg.PrimaryPhoneNumber)

	if s.hooks.OnFallback != nil {
		s.hooks.OnFallback(ctx, domain.NewFallbackEvent(call.ID, cause))
	}

	b := twiml.NewBuilder(call.From, call.To, twiml.WithEndpoint(s.cfg.Endpoint))
	if _, err := b.ForwardCall(domain.Params{Value: s.cfg.PrimaryPhoneNumber}); err != nil {
		return "", err
	}
	return b.Flush()
}
