// Package config resolves CLI settings from flags, AGENTCTL_* environment
// variables and the context file, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/agentdeck/agentctl/internal/auth"
	"github.com/agentdeck/agentctl/internal/backend"
	agentctx "github.com/agentdeck/agentctl/internal/context"
	"github.com/agentdeck/agentctl/internal/sse"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of every environment variable the CLI reads.
const EnvPrefix = "AGENTCTL"

// Keys understood by Load. Flags bound to these names override the environment.
const (
	KeyAPIURL          = "api_url"
	KeyToken           = "token"
	KeyDebug           = "debug"
	KeyLogLevel        = "log_level"
	KeyStreamFormat    = "stream_format"
	KeyMaxReconnects   = "max_reconnects"
	KeyRecheckInterval = "recheck_interval"
)

// Config is the resolved configuration of one CLI invocation.
type Config struct {
	APIURL          string        `mapstructure:"api_url"`
	Token           string        `mapstructure:"token"`
	Debug           bool          `mapstructure:"debug"`
	LogLevel        string        `mapstructure:"log_level"`
	StreamFormat    string        `mapstructure:"stream_format"`
	MaxReconnects   int           `mapstructure:"max_reconnects"`
	RecheckInterval time.Duration `mapstructure:"recheck_interval"`

	// ContextName is the context the API URL or token came from, if any.
	ContextName string `mapstructure:"-"`

	store *agentctx.Store
}

// New returns a viper instance wired to the AGENTCTL_ environment.
func New() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()
	setDefaults(v)
	return v
}

func setDefaults(v *viper.Viper) {
	// Every key needs a default so Unmarshal picks up its env variable.
	v.SetDefault(KeyAPIURL, "")
	v.SetDefault(KeyToken, "")
	v.SetDefault(KeyDebug, false)
	v.SetDefault(KeyLogLevel, "warn")
	v.SetDefault(KeyStreamFormat, "auto")
	v.SetDefault(KeyMaxReconnects, sse.DefaultMaxReconnects)
	v.SetDefault(KeyRecheckInterval, 500*time.Millisecond)
}

// Load resolves the configuration. Settings missing from v are taken from the
// current context of store; a missing or empty context file is not an error.
func Load(v *viper.Viper, store *agentctx.Store) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}
	cfg.store = store
	cfg.APIURL = strings.TrimSpace(cfg.APIURL)
	cfg.Token = strings.TrimSpace(cfg.Token)

	if store != nil && (cfg.APIURL == "" || cfg.Token == "") {
		current, name, err := store.Current()
		switch {
		case err == nil:
			cfg.ContextName = name
			if cfg.APIURL == "" {
				cfg.APIURL = current.APIURL
			}
		case errors.Is(err, agentctx.ErrNoCurrentContext):
		default:
			return nil, fmt.Errorf("failed to read context file %s: %w", store.Path(), err)
		}
	}
	if cfg.APIURL == "" {
		cfg.APIURL = backend.DefaultBaseURL
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values that would otherwise fail late.
func (c *Config) Validate() error {
	switch c.StreamFormat {
	case "", "auto", "text", "json":
	default:
		return fmt.Errorf("invalid stream format %q: use auto, text or json", c.StreamFormat)
	}
	if c.RecheckInterval < 0 {
		return fmt.Errorf("recheck interval must not be negative, got %s", c.RecheckInterval)
	}
	if !strings.HasPrefix(c.APIURL, "http://") && !strings.HasPrefix(c.APIURL, "https://") {
		return fmt.Errorf("API URL %q must start with http:// or https://", c.APIURL)
	}
	return nil
}

// TokenProvider returns the token from flags or environment when set, else
// the token of the current context, read again on every call.
func (c *Config) TokenProvider() auth.TokenProvider {
	var chain auth.ChainProvider
	if c.Token != "" {
		chain = append(chain, auth.NewStaticProvider(c.Token))
	}
	if c.store != nil {
		chain = append(chain, c.store.TokenProvider())
	}
	return chain
}

// Store returns the context store the configuration was loaded with.
func (c *Config) Store() *agentctx.Store {
	return c.store
}
