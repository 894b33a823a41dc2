// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatekeep Contributors

// Package config loads gatekeep configuration from defaults, an optional
// YAML file and command-line flags.
package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/gatekeep/gatekeep/internal/logging"
	"github.com/gatekeep/gatekeep/internal/xdg"
)

// Storage drivers.
const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// DatabaseURLEnv is consulted when database.url is unset.
const DatabaseURLEnv = "DATABASE_URL"

// DefaultFileName is looked up in the XDG config directory when no
// --config flag is given.
const DefaultFileName = "config.yaml"

// Config is the full gatekeep configuration.
type Config struct {
	HTTP     HTTPConfig     `koanf:"http"`
	Metrics  MetricsConfig  `koanf:"metrics"`
	Database DatabaseConfig `koanf:"database"`
	Token    TokenConfig    `koanf:"token"`
	Audit    AuditConfig    `koanf:"audit"`
	Log      LogConfig      `koanf:"log"`
}

// HTTPConfig configures the public HTTP listener. ProxyHeader is honoured
// only on connections from a TrustedProxies peer.
type HTTPConfig struct {
	Addr           string   `koanf:"addr"`
	ProxyHeader    string   `koanf:"proxy_header"`
	TrustedProxies []string `koanf:"trusted_proxies"`
}

// MetricsConfig configures the observability listener. An empty Addr
// disables it.
type MetricsConfig struct {
	Addr string `koanf:"addr"`
}

// DatabaseConfig selects the credential store.
type DatabaseConfig struct {
	Driver string `koanf:"driver"`
	URL    string `koanf:"url"`
}

// TokenConfig locates the session-token signing key.
type TokenConfig struct {
	Key string `koanf:"key"`
}

// AuditConfig configures the login audit files. An empty Dir selects the
// XDG state directory.
type AuditConfig struct {
	Dir    string        `koanf:"dir"`
	MaxAge time.Duration `koanf:"max_age"`
}

// LogConfig configures process logging.
type LogConfig struct {
	Format string `koanf:"format"`
	Level  string `koanf:"level"`
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		HTTP:     HTTPConfig{Addr: ":3000", TrustedProxies: []string{}},
		Metrics:  MetricsConfig{Addr: "127.0.0.1:9100"},
		Database: DatabaseConfig{Driver: DriverPostgres},
		Token:    TokenConfig{Key: "ssl/server.key"},
		Audit:    AuditConfig{Dir: "log", MaxAge: 2160 * time.Hour},
		Log:      LogConfig{Format: logging.FormatJSON, Level: "info"},
	}
}

// flagKeys maps command-line flags to configuration keys.
var flagKeys = map[string]string{
	"http-addr":            "http.addr",
	"http-proxy-header":    "http.proxy_header",
	"http-trusted-proxies": "http.trusted_proxies",
	"metrics-addr":         "metrics.addr",
	"database-driver":      "database.driver",
	"database-url":         "database.url",
	"token-key":            "token.key",
	"audit-dir":            "audit.dir",
	"audit-max-age":        "audit.max_age",
	"log-format":           "log.format",
	"log-level":            "log.level",
}

// RegisterFlags adds one flag per configuration key to flags, defaulting to
// Defaults().
func RegisterFlags(flags *pflag.FlagSet) {
	d := Defaults()
	flags.String("http-addr", d.HTTP.Addr, "HTTP listen address")
	flags.String("http-proxy-header", d.HTTP.ProxyHeader, "header carrying the client IP (empty = socket address)")
	flags.StringSlice("http-trusted-proxies", d.HTTP.TrustedProxies, "proxy IPs or CIDR ranges allowed to set the proxy header")
	flags.String("metrics-addr", d.Metrics.Addr, "metrics/health HTTP address (empty = disabled)")
	flags.String("database-driver", d.Database.Driver, "credential store driver (postgres or memory)")
	flags.String("database-url", d.Database.URL, "PostgreSQL URL (default: $"+DatabaseURLEnv+")")
	flags.String("token-key", d.Token.Key, "PEM file holding the RSA signing key")
	flags.String("audit-dir", d.Audit.Dir, "login audit directory (empty = XDG state directory)")
	flags.Duration("audit-max-age", d.Audit.MaxAge, "retention of login audit files")
	flags.String("log-format", d.Log.Format, "log format (json or text)")
	flags.String("log-level", d.Log.Level, "log level (debug, info, warn, error)")
}

// Options controls where Load reads from.
type Options struct {
	// File is an explicit config file. Empty tries the XDG default and
	// skips it when absent.
	File string
	// Flags is the parsed flag set carrying RegisterFlags' flags.
	Flags *pflag.FlagSet
	// Getenv defaults to os.Getenv.
	Getenv func(string) string
}

// Load builds a Config. Later sources override earlier ones: defaults, then
// the config file, then flags the user set.
func Load(opts Options) (*Config, error) {
	getenv := opts.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}

	k := koanf.New(".")

	path, err := configFile(opts.File)
	if err != nil {
		return nil, err
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").With("path", path).Wrap(err)
		}
	}

	if opts.Flags != nil {
		provider := posflag.ProviderWithFlag(opts.Flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			key, ok := flagKeys[f.Name]
			if !ok {
				return "", nil
			}
			return key, posflag.FlagVal(opts.Flags, f)
		})
		if err := k.Load(provider, nil); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").With("source", "flags").Wrap(err)
		}
	}

	cfg := Defaults()
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, oops.Code("CONFIG_LOAD_FAILED").With("operation", "unmarshal").Wrap(err)
	}

	if cfg.Database.URL == "" {
		cfg.Database.URL = getenv(DatabaseURLEnv)
	}

	return &cfg, nil
}

// configFile resolves the file to load. An explicit path must exist; the
// XDG default is optional.
func configFile(explicit string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}

	dir, err := xdg.ConfigDir()
	if err != nil {
		return "", nil //nolint:nilerr // the default file is optional
	}

	path := filepath.Join(dir, DefaultFileName)
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", nil
		}
		return "", oops.Code("CONFIG_LOAD_FAILED").With("path", path).Wrap(err)
	}
	return path, nil
}

// Validate checks the settings the serve command depends on.
func (c *Config) Validate() error {
	if c.HTTP.Addr == "" {
		return invalid("http.addr", "http.addr is required")
	}
	if c.HTTP.ProxyHeader != "" && len(c.HTTP.TrustedProxies) == 0 {
		return invalid("http.trusted_proxies", "http.trusted_proxies is required when http.proxy_header is set")
	}
	switch c.Database.Driver {
	case DriverPostgres:
		if c.Database.URL == "" {
			return invalid("database.url", "database.url or "+DatabaseURLEnv+" is required for the postgres driver")
		}
	case DriverMemory:
	default:
		return invalid("database.driver", "database.driver must be postgres or memory, got "+c.Database.Driver)
	}
	if c.Token.Key == "" {
		return invalid("token.key", "token.key is required")
	}
	if c.Audit.MaxAge <= 0 {
		return invalid("audit.max_age", "audit.max_age must be positive")
	}
	if err := logging.ValidateFormat(c.Log.Format); err != nil {
		return oops.Code("CONFIG_INVALID").With("key", "log.format").Wrap(err)
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return oops.Code("CONFIG_INVALID").With("key", "log.level").Wrap(err)
	}
	return nil
}

func invalid(key, msg string) error {
	return oops.Code("CONFIG_INVALID").With("key", key).Errorf("%s", msg)
}
