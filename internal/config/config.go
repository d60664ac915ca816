// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 didpoop Contributors

// Package config loads runtime configuration from defaults, an optional
// YAML file, environment variables, and command-line flags, in that
// order of precedence.
package config

import (
	"fmt"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/didpoop/didpoop/internal/auth"
)

// Config holds every runtime setting for the didpoop server.
type Config struct {
	Version string `koanf:"version"`

	// Bind address for the HTTP API.
	Host string `koanf:"host"`
	Port int    `koanf:"port"`

	// Public host and domain, used for redirects and the auth cookie.
	// Empty values fall back to the bind address and "localhost".
	RealHostname string `koanf:"real_hostname"`
	RealDomain   string `koanf:"real_domain"`

	CookieName   string `koanf:"cookie_name"`
	SecureCookie bool   `koanf:"secure_cookie"`

	LogLevel  string `koanf:"log_level"`
	LogFormat string `koanf:"log_format"`

	DatabaseURL            string `koanf:"database_url"`
	DatabaseMaxConnections int32  `koanf:"database_max_connections"`

	// Key used for HMAC-signing session tokens before they touch the
	// database.
	SigningKey string `koanf:"signing_key"`

	AuthExpirationSeconds int `koanf:"auth_expiration_seconds"`

	MetricsAddr string `koanf:"metrics_addr"`
}

// envKeys is the allowlist of environment variables the loader reads.
var envKeys = map[string]struct{}{
	"HOST":                     {},
	"PORT":                     {},
	"REAL_HOSTNAME":            {},
	"REAL_DOMAIN":              {},
	"COOKIE_NAME":              {},
	"SECURE_COOKIE":            {},
	"LOG_LEVEL":                {},
	"LOG_FORMAT":               {},
	"DATABASE_URL":             {},
	"DATABASE_MAX_CONNECTIONS": {},
	"SIGNING_KEY":              {},
	"AUTH_EXPIRATION_SECONDS":  {},
	"METRICS_ADDR":             {},
}

func defaults() map[string]any {
	return map[string]any{
		"version":                  "unknown",
		"host":                     "localhost",
		"port":                     3030,
		"cookie_name":              "poop_auth",
		"secure_cookie":            true,
		"log_level":                "info",
		"log_format":               "json",
		"database_max_connections": 5,
		// 30 days.
		"auth_expiration_seconds": 43200 * 60,
		"metrics_addr":            "localhost:9090",
	}
}

// Load builds a Config. The YAML file at path is optional; it overrides
// defaults and is in turn overridden by environment variables and then
// by flags (if flags is non-nil).
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, oops.Code("CONFIG_LOAD_FAILED").With("source", "defaults").Wrap(err)
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").With("source", "file").With("path", path).Wrap(err)
		}
	}

	envProvider := env.Provider("", ".", func(key string) string {
		if _, ok := envKeys[key]; !ok {
			return ""
		}
		return strings.ToLower(key)
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, oops.Code("CONFIG_LOAD_FAILED").With("source", "env").Wrap(err)
	}

	if flags != nil {
		// CLI flags use dashes; config keys use underscores.
		flagProvider := posflag.ProviderWithValue(flags, ".", k, func(key, value string) (string, any) {
			return strings.ReplaceAll(key, "-", "_"), value
		})
		if err := k.Load(flagProvider, nil); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").With("source", "flags").Wrap(err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, oops.Code("CONFIG_LOAD_FAILED").With("source", "unmarshal").Wrap(err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks settings that would otherwise fail deep inside the
// server at an unhelpful moment.
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return oops.Code("CONFIG_INVALID").With("field", "port").Errorf("port %d out of range", c.Port)
	}
	if c.DatabaseURL == "" {
		return oops.Code("CONFIG_INVALID").With("field", "database_url").Errorf("DATABASE_URL is required")
	}
	if c.DatabaseMaxConnections < 1 {
		return oops.Code("CONFIG_INVALID").With("field", "database_max_connections").
			Errorf("database_max_connections must be positive, got %d", c.DatabaseMaxConnections)
	}
	if len(c.SigningKey) < 32 {
		return oops.Code("CONFIG_INVALID").With("field", "signing_key").
			Errorf("signing key must be at least 32 bytes, got %d", len(c.SigningKey))
	}
	if c.AuthExpirationSeconds < 1 {
		return oops.Code("CONFIG_INVALID").With("field", "auth_expiration_seconds").
			Errorf("auth expiration must be positive, got %d", c.AuthExpirationSeconds)
	}
	return nil
}

// Addr returns the bind address for the HTTP listener.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// RealHost returns the public base URL for building redirects.
func (c *Config) RealHost() string {
	if c.RealHostname != "" {
		return c.RealHostname
	}
	return fmt.Sprintf("http://%s:%d", c.Host, c.Port)
}

// CookieDomain returns the domain attribute for the auth cookie.
func (c *Config) CookieDomain() string {
	if c.RealDomain != "" {
		return c.RealDomain
	}
	return "localhost"
}

// Cookie returns the auth cookie settings derived from this config.
// The cookie lifetime matches the session token lifetime so the
// browser and the database expire the session together.
func (c *Config) Cookie() auth.CookieSettings {
	return auth.CookieSettings{
		Name:      c.CookieName,
		Domain:    c.CookieDomain(),
		Secure:    c.SecureCookie,
		MaxAgeSec: c.AuthExpirationSeconds,
	}
}
