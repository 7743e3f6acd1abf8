// Package config loads runtime configuration from flags, environment and config files.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/codeGROOVE-dev/folio/pkg/cache"
	"github.com/codeGROOVE-dev/folio/pkg/github"
	"github.com/codeGROOVE-dev/folio/pkg/profile"
)

const (
	envPrefix             = "FOLIO"
	defaultHTTPAddress    = "0.0.0.0:8080"
	defaultLogLevel       = "info"
	defaultGitHubTimeout  = 15 * time.Second
	defaultGitHubAttempts = 1
)

// Config captures runtime configuration for the CLI and API server.
//
//nolint:govet // fieldalignment: intentional layout for readability
type Config struct {
	GitHubToken    string
	GitHubAPIURL   string
	GitHubRawURL   string
	GitHubTimeout  time.Duration
	GitHubAttempts uint

	HTTPAddress string
	LogLevel    string

	CacheTTL      time.Duration
	CacheDir      string
	CacheDisabled bool
}

// NewViper returns a viper instance with defaults and env bindings configured.
func NewViper() *viper.Viper {
	v := viper.New()
	ApplyDefaults(v)
	return v
}

// ApplyDefaults configures defaults and env bindings on v.
// GITHUB_TOKEN is honored alongside FOLIO_GITHUB_TOKEN.
func ApplyDefaults(v *viper.Viper) {
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("github.token", envPrefix+"_GITHUB_TOKEN", "GITHUB_TOKEN"); err != nil {
		panic(err)
	}

	v.SetDefault("github.api_url", github.DefaultAPIURL)
	v.SetDefault("github.raw_url", github.DefaultRawURL)
	v.SetDefault("github.timeout", defaultGitHubTimeout)
	v.SetDefault("github.attempts", defaultGitHubAttempts)
	v.SetDefault("http.address", defaultHTTPAddress)
	v.SetDefault("log.level", defaultLogLevel)
	v.SetDefault("cache.ttl", cache.DefaultTTL)
	v.SetDefault("cache.dir", "")
	v.SetDefault("cache.disabled", false)
}

// Load parses runtime configuration from v. A missing GitHub token is reported as profile.ErrConfig.
func Load(v *viper.Viper) (Config, error) {
	cfg := Config{
		GitHubToken:    strings.TrimSpace(v.GetString("github.token")),
		GitHubAPIURL:   v.GetString("github.api_url"),
		GitHubRawURL:   v.GetString("github.raw_url"),
		GitHubTimeout:  v.GetDuration("github.timeout"),
		GitHubAttempts: v.GetUint("github.attempts"),
		HTTPAddress:    v.GetString("http.address"),
		LogLevel:       v.GetString("log.level"),
		CacheTTL:       v.GetDuration("cache.ttl"),
		CacheDir:       v.GetString("cache.dir"),
		CacheDisabled:  v.GetBool("cache.disabled"),
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.GitHubToken == "" {
		return fmt.Errorf("%w: github.token is required (set GITHUB_TOKEN)", profile.ErrConfig)
	}
	if strings.TrimSpace(c.GitHubAPIURL) == "" {
		return fmt.Errorf("%w: github.api_url is required", profile.ErrConfig)
	}
	if c.GitHubTimeout <= 0 {
		return fmt.Errorf("%w: github.timeout must be positive", profile.ErrConfig)
	}
	if c.GitHubAttempts < 1 {
		return fmt.Errorf("%w: github.attempts must be at least 1", profile.ErrConfig)
	}
	if c.CacheTTL < 0 {
		return fmt.Errorf("%w: cache.ttl must not be negative", profile.ErrConfig)
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// ParseLevel converts a level name (debug, info, warn, error) to a slog level.
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return 0, fmt.Errorf("%w: invalid log level %q", profile.ErrConfig, s)
	}
	return level, nil
}

// NewLogger returns a text logger writing to w at the named level.
func NewLogger(w io.Writer, level string) (*slog.Logger, error) {
	lvl, err := ParseLevel(level)
	if err != nil {
		return nil, err
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl})), nil
}

// Logger returns a text logger writing to w at the configured level.
func (c Config) Logger(w io.Writer) *slog.Logger {
	logger, err := NewLogger(w, c.LogLevel)
	if err != nil {
		// Load already validated the level.
		return slog.New(slog.NewTextHandler(w, nil))
	}
	return logger
}

// GitHubOptions returns client options for the configured GitHub settings.
func (c Config) GitHubOptions(logger *slog.Logger) []github.Option {
	return []github.Option{
		github.WithToken(c.GitHubToken),
		github.WithAPIURL(c.GitHubAPIURL),
		github.WithRawURL(c.GitHubRawURL),
		github.WithTimeout(c.GitHubTimeout),
		github.WithAttempts(c.GitHubAttempts),
		github.WithLogger(logger),
	}
}

// ErrCacheDisabled is returned by Cache when caching is turned off.
var ErrCacheDisabled = errors.New("cache disabled")

// Cache opens the configured result cache.
func (c Config) Cache() (*cache.Cache, error) {
	switch {
	case c.CacheDisabled:
		return nil, ErrCacheDisabled
	case c.CacheDir != "":
		return cache.NewWithPath(c.CacheTTL, c.CacheDir)
	default:
		return cache.New(c.CacheTTL)
	}
}
