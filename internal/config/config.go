// Package config loads runtime configuration for the rtpmidi engine,
// following the flags > env vars > defaults precedence used throughout
// this codebase.
package config

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
)

// Config holds all runtime configuration for an applemidi.Driver plus the
// debug HTTP server. Precedence: CLI flags > env vars > defaults.
type Config struct {
	Name           string
	BasePort       int
	AcceptPolicy   string // "none", "any", or "peer"
	AcceptPeer     string // required host:port when AcceptPolicy == "peer"
	DebugListen    string
	LogLevel       string
	LogFormat      string
	RateLimitRPS   float64
	RateLimitBurst int
}

const (
	defaultName           = "rtpmidi"
	defaultBasePort       = 5004
	defaultAcceptPolicy   = "none"
	defaultDebugListen    = ":9100"
	defaultLogLevel       = "info"
	defaultLogFormat      = "text"
	defaultRateLimitRPS   = 5
	defaultRateLimitBurst = 10
)

// envPrefix is the prefix for all rtpmidi environment variables.
const envPrefix = "RTPMIDI_"

// Load parses configuration from CLI flags and environment variables.
func Load() (*Config, error) {
	cfg := &Config{}

	fs := flag.NewFlagSet("rtpmidi", flag.ContinueOnError)

	fs.StringVar(&cfg.Name, "name", defaultName, "advertised AppleMIDI session name (<=31 bytes)")
	fs.IntVar(&cfg.BasePort, "base-port", defaultBasePort, "control port; RTP port is base-port+1")
	fs.StringVar(&cfg.AcceptPolicy, "accept-policy", defaultAcceptPolicy, "invitation accept policy: none, any, peer")
	fs.StringVar(&cfg.AcceptPeer, "accept-peer", "", "host:port to accept invitations from (accept-policy=peer)")
	fs.StringVar(&cfg.DebugListen, "debug-listen", defaultDebugListen, "address for the debug HTTP server (/healthz, /metrics)")
	fs.StringVar(&cfg.LogLevel, "log-level", defaultLogLevel, "log level (debug, info, warn, error)")
	fs.StringVar(&cfg.LogFormat, "log-format", defaultLogFormat, "log output format (text, json)")
	fs.Float64Var(&cfg.RateLimitRPS, "invitation-rate", defaultRateLimitRPS, "invitations/second allowed per source address")
	fs.IntVar(&cfg.RateLimitBurst, "invitation-burst", defaultRateLimitBurst, "invitation rate limiter burst size")

	if err := fs.Parse(os.Args[1:]); err != nil {
		return nil, fmt.Errorf("parsing flags: %w", err)
	}

	applyEnvOverrides(fs, cfg)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// applyEnvOverrides checks environment variables for any flag that was not
// explicitly provided on the command line, preserving flags > env > defaults.
func applyEnvOverrides(fs *flag.FlagSet, cfg *Config) {
	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })

	envMap := map[string]string{
		"name":             envPrefix + "NAME",
		"base-port":        envPrefix + "BASE_PORT",
		"accept-policy":    envPrefix + "ACCEPT_POLICY",
		"accept-peer":      envPrefix + "ACCEPT_PEER",
		"debug-listen":     envPrefix + "DEBUG_LISTEN",
		"log-level":        envPrefix + "LOG_LEVEL",
		"log-format":       envPrefix + "LOG_FORMAT",
		"invitation-rate":  envPrefix + "INVITATION_RATE",
		"invitation-burst": envPrefix + "INVITATION_BURST",
	}

	for flagName, envVar := range envMap {
		if set[flagName] {
			continue
		}
		val, ok := os.LookupEnv(envVar)
		if !ok || val == "" {
			continue
		}
		switch flagName {
		case "name":
			cfg.Name = val
		case "base-port":
			if v, err := strconv.Atoi(val); err == nil {
				cfg.BasePort = v
			}
		case "accept-policy":
			cfg.AcceptPolicy = val
		case "accept-peer":
			cfg.AcceptPeer = val
		case "debug-listen":
			cfg.DebugListen = val
		case "log-level":
			cfg.LogLevel = val
		case "log-format":
			cfg.LogFormat = val
		case "invitation-rate":
			if v, err := strconv.ParseFloat(val, 64); err == nil {
				cfg.RateLimitRPS = v
			}
		case "invitation-burst":
			if v, err := strconv.Atoi(val); err == nil {
				cfg.RateLimitBurst = v
			}
		}
	}
}

// validate checks that the config values are sane.
func (c *Config) validate() error {
	if len(c.Name) > 31 {
		return fmt.Errorf("name must be <=31 bytes, got %d", len(c.Name))
	}
	if c.BasePort < 1 || c.BasePort > 65534 {
		return fmt.Errorf("base-port must be between 1 and 65534, got %d", c.BasePort)
	}

	validPolicies := map[string]bool{"none": true, "any": true, "peer": true}
	if !validPolicies[strings.ToLower(c.AcceptPolicy)] {
		return fmt.Errorf("accept-policy must be one of none, any, peer; got %q", c.AcceptPolicy)
	}
	c.AcceptPolicy = strings.ToLower(c.AcceptPolicy)
	if c.AcceptPolicy == "peer" && c.AcceptPeer == "" {
		return fmt.Errorf("accept-peer is required when accept-policy=peer")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.LogLevel)] {
		return fmt.Errorf("log-level must be one of debug, info, warn, error; got %q", c.LogLevel)
	}
	c.LogLevel = strings.ToLower(c.LogLevel)

	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[strings.ToLower(c.LogFormat)] {
		return fmt.Errorf("log-format must be one of text, json; got %q", c.LogFormat)
	}
	c.LogFormat = strings.ToLower(c.LogFormat)

	if c.RateLimitRPS < 0 {
		return fmt.Errorf("invitation-rate must be >= 0, got %v", c.RateLimitRPS)
	}
	if c.RateLimitBurst < 1 {
		return fmt.Errorf("invitation-burst must be >= 1, got %d", c.RateLimitBurst)
	}

	return nil
}

// SlogHandler returns a slog.Handler configured with the appropriate
// format (text or json) and level.
func (c *Config) SlogHandler(w *os.File) slog.Handler {
	opts := &slog.HandlerOptions{Level: c.SlogLevel()}
	if c.LogFormat == "json" {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

// SlogLevel returns the slog.Level corresponding to the configured log level.
func (c *Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
