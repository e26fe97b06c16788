// Package config loads doorman's runtime configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aretw0/doorman/pkg/persistence/middleware"
	"github.com/caarlos0/env/v11"
)

// Store backends.
const (
	StoreMemory = "memory"
	StoreFile   = "file"
	StoreRedis  = "redis"
)

// Script sources.
const (
	ScriptsFile  = "file"
	ScriptsRedis = "redis"
)

// EnvDevelopment disables webhook authenticity checks.
const EnvDevelopment = "development"

// Config is the runtime configuration of a doorman server.
type Config struct {
	Env      string `env:"DOORMAN_ENV" envDefault:"production"`
	Host     string `env:"DOORMAN_HOST"`
	Port     int    `env:"DOORMAN_PORT" envDefault:"8080"`
	LogLevel string `env:"DOORMAN_LOG_LEVEL" envDefault:"info"`

	AssetPath string `env:"DOORMAN_ASSET_PATH" envDefault:"./assets"`
	Endpoint  string `env:"DOORMAN_ENDPOINT" envDefault:"/twilio"`

	PrimaryPhoneNumber   string `env:"DOORMAN_PRIMARY_PHONE_NUMBER"`
	TwilioPhoneNumber    string `env:"DOORMAN_TWILIO_PHONE_NUMBER"`
	TwilioAccountSid     string `env:"DOORMAN_TWILIO_ACCOUNT_SID"`
	TwilioApplicationSid string `env:"DOORMAN_TWILIO_APPLICATION_SID"`

	ScriptSource string `env:"DOORMAN_SCRIPT_SOURCE" envDefault:"file"`
	ScriptsPath  string `env:"DOORMAN_SCRIPTS" envDefault:"./callers.yaml"`

	Store         string        `env:"DOORMAN_STORE" envDefault:"memory"`
	StorePath     string        `env:"DOORMAN_STORE_PATH" envDefault:".doorman/calls"`
	RedisAddr     string        `env:"DOORMAN_REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string        `env:"DOORMAN_REDIS_PASSWORD"`
	RedisDB       int           `env:"DOORMAN_REDIS_DB" envDefault:"0"`
	RedisPrefix   string        `env:"DOORMAN_REDIS_PREFIX" envDefault:"doorman:"`
	SessionTTL    time.Duration `env:"DOORMAN_SESSION_TTL" envDefault:"1h"`

	// EncryptionKey is a base64 AES-256 key. When set, calls are encrypted at rest.
	EncryptionKey          string   `env:"DOORMAN_ENCRYPTION_KEY"`
	EncryptionFallbackKeys []string `env:"DOORMAN_ENCRYPTION_FALLBACK_KEYS" envSeparator:","`

	MaxDigits int `env:"DOORMAN_MAX_DIGITS" envDefault:"64"`
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Load parses a Config from the environment. It does not validate it.
func Load() (Config, error) {
	var cfg Config
	if err := ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Development reports whether authenticity checks are disabled.
func (c Config) Development() bool {
	return strings.EqualFold(c.Env, EnvDevelopment)
}

// Addr is the listen address of the webhook server.
func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Validate checks the settings a server needs before it accepts calls.
func (c Config) Validate() error {
	var errs []error
	if c.PrimaryPhoneNumber == "" {
		errs = append(errs, errors.New("DOORMAN_PRIMARY_PHONE_NUMBER is required"))
	}
	if !c.Development() {
		if c.TwilioAccountSid == "" {
			errs = append(errs, errors.New("DOORMAN_TWILIO_ACCOUNT_SID is required outside development"))
		}
		if c.TwilioApplicationSid == "" {
			errs = append(errs, errors.New("DOORMAN_TWILIO_APPLICATION_SID is required outside development"))
		}
	}
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("invalid port %d", c.Port))
	}
	if !strings.HasPrefix(c.Endpoint, "/") {
		errs = append(errs, fmt.Errorf("endpoint %q must start with /", c.Endpoint))
	}
	switch c.Store {
	case StoreMemory, StoreFile, StoreRedis:
	default:
		errs = append(errs, fmt.Errorf("unknown store %q", c.Store))
	}
	switch c.ScriptSource {
	case ScriptsFile, ScriptsRedis:
	default:
		errs = append(errs, fmt.Errorf("unknown script source %q", c.ScriptSource))
	}
	if c.EncryptionKey != "" {
		if _, err := middleware.ParseKey(c.EncryptionKey); err != nil {
			errs = append(errs, fmt.Errorf("DOORMAN_ENCRYPTION_KEY: %w", err))
		}
	} else if len(c.EncryptionFallbackKeys) > 0 {
		errs = append(errs, errors.New("DOORMAN_ENCRYPTION_FALLBACK_KEYS requires DOORMAN_ENCRYPTION_KEY"))
	}
	for i, key := range c.EncryptionFallbackKeys {
		if _, err := middleware.ParseKey(key); err != nil {
			errs = append(errs, fmt.Errorf("DOORMAN_ENCRYPTION_FALLBACK_KEYS[%d]: %w", i, err))
		}
	}
	if c.MaxDigits <= 0 {
		errs = append(errs, fmt.Errorf("invalid max digits %d", c.MaxDigits))
	}
	return errors.Join(errs...)
}

// Encryption returns the store encryption keys, or false when encryption is off.
func (c Config) Encryption() (middleware.EncryptionConfig, bool, error) {
	if c.EncryptionKey == "" {
		return middleware.EncryptionConfig{}, false, nil
	}
	active, err := middleware.ParseKey(c.EncryptionKey)
	if err != nil {
		return middleware.EncryptionConfig{}, false, err
	}
	enc := middleware.EncryptionConfig{ActiveKey: active}
	for _, encoded := range c.EncryptionFallbackKeys {
		key, err := middleware.ParseKey(encoded)
		if err != nil {
			return middleware.EncryptionConfig{}, false, err
		}
		enc.FallbackKeys = append(enc.FallbackKeys, key)
	}
	return enc, true, nil
}
