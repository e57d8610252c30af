// Package config loads scriptorium's runtime configuration from viper.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/multierr"

	"github.com/papapumpkin/scriptorium/internal/event"
	"github.com/papapumpkin/scriptorium/internal/linker"
	"github.com/papapumpkin/scriptorium/internal/relay"
)

// ErrInvalid marks every validation failure returned by Validate.
var ErrInvalid = errors.New("invalid configuration")

// RelaysConfig lists the default relay tiers.
type RelaysConfig struct {
	Notes           []string `mapstructure:"notes"`
	Content         []string `mapstructure:"content"`
	FallbackNotes   string   `mapstructure:"fallback_notes"`
	FallbackContent string   `mapstructure:"fallback_content"`
}

// BroadcastConfig bounds retries and timeouts.
type BroadcastConfig struct {
	MaxAttempts  int           `mapstructure:"max_attempts"`
	RetryDelay   time.Duration `mapstructure:"retry_delay"`
	RelayTimeout time.Duration `mapstructure:"relay_timeout"`
	Concurrency  int           `mapstructure:"concurrency"`
	PoolSize     int           `mapstructure:"pool_size"`
}

// LedgerConfig selects where published event IDs are recorded.
type LedgerConfig struct {
	Backend string `mapstructure:"backend"`
	Path    string `mapstructure:"path"`
}

// Config holds all runtime configuration for a scriptorium invocation.
// Values are populated from .scriptorium.yaml, SCRIPTORIUM_* env vars (a .env
// file included), and CLI flags.
type Config struct {
	Nsec          string          `mapstructure:"nsec"`
	Relays        RelaysConfig    `mapstructure:"relays"`
	Broadcast     BroadcastConfig `mapstructure:"broadcast"`
	RefMode       string          `mapstructure:"ref_mode"`
	IDScheme      string          `mapstructure:"id_scheme"`
	RelayHint     string          `mapstructure:"relay_hint"`
	Ledger        LedgerConfig    `mapstructure:"ledger"`
	TelemetryPath string          `mapstructure:"telemetry_path"`
	MetricsPath   string          `mapstructure:"metrics_path"`
	Trace         bool            `mapstructure:"trace"`
	Verbose       bool            `mapstructure:"verbose"`
}

// Load reads configuration from viper, applying built-in defaults for any
// values not set by config file, environment, or flags.
func Load() (Config, error) {
	tiers := relay.DefaultTiers()
	policy := relay.DefaultPolicy()

	viper.SetDefault("nsec", "")
	viper.SetDefault("relays.notes", tiers.Notes)
	viper.SetDefault("relays.content", tiers.Content)
	viper.SetDefault("relays.fallback_notes", tiers.FallbackNotes)
	viper.SetDefault("relays.fallback_content", tiers.FallbackContent)
	viper.SetDefault("broadcast.max_attempts", policy.MaxAttempts)
	viper.SetDefault("broadcast.retry_delay", policy.RetryDelay)
	viper.SetDefault("broadcast.relay_timeout", policy.PerRelayTimeout)
	viper.SetDefault("broadcast.concurrency", 0)
	viper.SetDefault("broadcast.pool_size", relay.DefaultPoolSize)
	viper.SetDefault("ref_mode", string(linker.ModeAddress))
	viper.SetDefault("id_scheme", event.SchemeNIP01.String())
	viper.SetDefault("relay_hint", "")
	viper.SetDefault("ledger.backend", "file")
	viper.SetDefault("ledger.path", "published.log")
	viper.SetDefault("telemetry_path", "")
	viper.SetDefault("metrics_path", "")
	viper.SetDefault("trace", false)
	viper.SetDefault("verbose", false)

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: unmarshal: %w", err)
	}
	return cfg, nil
}

// Policy returns the broadcast policy.
func (c Config) Policy() relay.Policy {
	return relay.Policy{
		MaxAttempts:     c.Broadcast.MaxAttempts,
		RetryDelay:      c.Broadcast.RetryDelay,
		PerRelayTimeout: c.Broadcast.RelayTimeout,
		Concurrency:     c.Broadcast.Concurrency,
	}
}

// Tiers returns the default relay tiers.
func (c Config) Tiers() relay.Tiers {
	return relay.Tiers{
		Notes:           c.Relays.Notes,
		Content:         c.Relays.Content,
		FallbackNotes:   c.Relays.FallbackNotes,
		FallbackContent: c.Relays.FallbackContent,
	}
}

// Mode returns the configured section reference mode.
func (c Config) Mode() (linker.Mode, error) {
	return linker.ParseMode(c.RefMode)
}

// Scheme returns the configured canonical serialization scheme.
func (c Config) Scheme() (event.Scheme, error) {
	return event.ParseScheme(c.IDScheme)
}

// Validate reports every problem in c at once. Each error wraps ErrInvalid.
func (c Config) Validate() error {
	var errs error
	invalid := func(format string, args ...any) {
		errs = multierr.Append(errs, fmt.Errorf("config: %w: "+format, append([]any{ErrInvalid}, args...)...))
	}

	if _, err := c.Mode(); err != nil {
		invalid("ref_mode %q", c.RefMode)
	}
	if _, err := c.Scheme(); err != nil {
		invalid("id_scheme %q", c.IDScheme)
	}
	if c.Broadcast.MaxAttempts < 1 {
		invalid("broadcast.max_attempts must be at least 1, got %d", c.Broadcast.MaxAttempts)
	}
	if c.Broadcast.RetryDelay < 0 {
		invalid("broadcast.retry_delay must not be negative")
	}
	if c.Broadcast.RelayTimeout <= 0 {
		invalid("broadcast.relay_timeout must be positive")
	}
	if c.Broadcast.Concurrency < 0 {
		invalid("broadcast.concurrency must not be negative")
	}
	switch strings.ToLower(c.Ledger.Backend) {
	case "file", "sqlite":
		if c.Ledger.Path == "" {
			invalid("ledger.path is required for the %s backend", c.Ledger.Backend)
		}
	case "none":
	default:
		invalid("ledger.backend %q (want file, sqlite or none)", c.Ledger.Backend)
	}
	for _, u := range append(append([]string{c.RelayHint, c.Relays.FallbackNotes, c.Relays.FallbackContent}, c.Relays.Notes...), c.Relays.Content...) {
		if u != "" && !strings.HasPrefix(u, "ws://") && !strings.HasPrefix(u, "wss://") {
			invalid("relay %q must use ws:// or wss://", u)
		}
	}
	return errs
}
