package doorman

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/aretw0/doorman/internal/config"
	"github.com/aretw0/doorman/internal/logging"
	"github.com/aretw0/doorman/pkg/adapters/file"
	webhook "github.com/aretw0/doorman/pkg/adapters/http"
	"github.com/aretw0/doorman/pkg/adapters/memory"
	"github.com/aretw0/doorman/pkg/adapters/redis"
	"github.com/aretw0/doorman/pkg/domain"
	"github.com/aretw0/doorman/pkg/observability"
	"github.com/aretw0/doorman/pkg/persistence/middleware"
	"github.com/aretw0/doorman/pkg/ports"
	"github.com/aretw0/doorman/pkg/session"
	backend "github.com/redis/go-redis/v9"
)

// Version is the release of the doorman module. Overridden at build time.
var Version = "v0.1.0"

// App wires a configured doorman server: session store, script lookup,
// registry, metrics and webhook.
type App struct {
	Config   config.Config
	Logger   *slog.Logger
	Store    ports.SessionStore
	Lookup   ports.ScriptLookup
	Registry *session.Registry
	Metrics  *observability.Metrics
	Server   *webhook.Server

	hooks  domain.LifecycleHooks
	client *backend.Client
}

// Option defines a functional option for configuring the App.
type Option func(*App)

// WithLogger sets the structured logger shared by every component.
func WithLogger(logger *slog.Logger) Option {
	return func(a *App) {
		a.Logger = logger
	}
}

// WithStore injects a session store, bypassing Config.Store.
func WithStore(store ports.SessionStore) Option {
	return func(a *App) {
		a.Store = store
	}
}

// WithLookup injects a script lookup, bypassing Config.ScriptSource.
func WithLookup(lookup ports.ScriptLookup) Option {
	return func(a *App) {
		a.Lookup = lookup
	}
}

// WithLifecycleHooks registers observability hooks alongside the metrics.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(a *App) {
		a.hooks = hooks
	}
}

// New builds an App from cfg. It validates cfg and, for Redis, checks the connection.
func New(cfg config.Config, opts ...Option) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	a := &App{Config: cfg}
	for _, opt := range opts {
		opt(a)
	}
	if a.Logger == nil {
		a.Logger = logging.NewNop()
	}

	if err := a.connect(); err != nil {
		return nil, err
	}
	if err := a.initStore(); err != nil {
		_ = a.Close()
		return nil, err
	}
	if err := a.initLookup(); err != nil {
		_ = a.Close()
		return nil, err
	}

	a.Metrics = observability.NewMetrics()
	hooks := observability.Chain(a.Metrics.Hooks(), a.hooks)

	regOpts := []session.RegistryOption{
		session.WithRegistryLogger(a.Logger),
		session.WithRegistryHooks(hooks),
		session.WithEndpoint(cfg.Endpoint),
	}
	if a.client != nil && cfg.Store == config.StoreRedis {
		regOpts = append(regOpts, session.WithLocker(redis.NewLocker(a.client, cfg.RedisPrefix)))
	}
	a.Registry = session.NewRegistry(a.Store, regOpts...)

	a.Server = webhook.NewServer(a.Registry, a.Lookup, webhook.Config{
		Endpoint:           cfg.Endpoint,
		PrimaryPhoneNumber: cfg.PrimaryPhoneNumber,
		TwilioPhoneNumber:  cfg.TwilioPhoneNumber,
		AccountSid:         cfg.TwilioAccountSid,
		ApplicationSid:     cfg.TwilioApplicationSid,
		Development:        cfg.Development(),
		AssetPath:          cfg.AssetPath,
		MaxDigits:          cfg.MaxDigits,
	},
		webhook.WithLogger(a.Logger),
		webhook.WithMetrics(a.Metrics),
		webhook.WithHooks(hooks),
	)

	a.Logger.Debug("Doorman initialized",
		"store", cfg.Store,
		"scripts", cfg.ScriptSource,
		"endpoint", cfg.Endpoint,
	)
	return a, nil
}

// connect opens the Redis client when the store or the script source needs it.
func (a *App) connect() error {
	needsStore := a.Store == nil && a.Config.Store == config.StoreRedis
	needsLookup := a.Lookup == nil && a.Config.ScriptSource == config.ScriptsRedis
	if !needsStore && !needsLookup {
		return nil
	}

	a.client = redis.NewClient(a.Config.RedisAddr, a.Config.RedisPassword, a.Config.RedisDB)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.client.Ping(ctx).Err(); err != nil {
		_ = a.client.Close()
		a.client = nil
		return fmt.Errorf("failed to connect to redis at %s: %w", a.Config.RedisAddr, err)
	}
	return nil
}

func (a *App) initStore() error {
	if a.Store == nil {
		a.Store = a.newStore()
	}

	enc, enabled, err := a.Config.Encryption()
	if err != nil {
		return fmt.Errorf("invalid encryption key: %w", err)
	}
	if enabled {
		a.Store = middleware.Chain(a.Store, middleware.NewEncryptionMiddleware(enc))
		a.Logger.Debug("Call encryption enabled", "fallback_keys", len(enc.FallbackKeys))
	}
	return nil
}

func (a *App) newStore() ports.SessionStore {
	switch a.Config.Store {
	case config.StoreFile:
		return file.NewStore(a.Config.StorePath, file.WithTTL(a.Config.SessionTTL))
	case config.StoreRedis:
		return redis.NewFromClient(a.client,
			redis.WithPrefix(a.Config.RedisPrefix+"call:"),
			redis.WithTTL(a.Config.SessionTTL),
		)
	default:
		return memory.NewStore(memory.WithTTL(a.Config.SessionTTL))
	}
}

func (a *App) initLookup() error {
	if a.Lookup != nil {
		return nil
	}
	switch a.Config.ScriptSource {
	case config.ScriptsRedis:
		a.Lookup = redis.NewLookup(a.client, a.Config.RedisPrefix)
	default:
		lookup, err := file.NewLookup(a.Config.ScriptsPath)
		if err != nil {
			return fmt.Errorf("failed to load scripts: %w", err)
		}
		a.Lookup = lookup
	}
	return nil
}

// Handler returns the HTTP handler serving the webhook.
func (a *App) Handler() http.Handler {
	return a.Server.Handler()
}

// Reload re-reads the scripts file when scripts come from a file.
func (a *App) Reload() error {
	r, ok := a.Lookup.(interface{ Reload() error })
	if !ok {
		return errors.New("the script source does not support reloading")
	}
	return r.Reload()
}

// Close releases the Redis connection, if any.
func (a *App) Close() error {
	if a.client == nil {
		return nil
	}
	err := a.client.Close()
	a.client = nil
	return err
}
