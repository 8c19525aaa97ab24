// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tollgate Contributors

package main

import (
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/tollgate/tollgate/internal/logging"
	"github.com/tollgate/tollgate/internal/xdg"
)

// envPrefix namespaces environment overrides: TOLLGATE_HTTP__ADDR sets http.addr.
const envPrefix = "TOLLGATE_"

// envAliases maps the variable names used by earlier deployments.
var envAliases = map[string]string{
	"DATABASE_URL": "database.url",
	"REDIS_URL":    "redis.url",
	"JWT_SECRET":   "token.secret",
}

const redacted = "[redacted]"

// Config is the full service configuration.
type Config struct {
	HTTP      HTTPConfig      `koanf:"http" yaml:"http"`
	Metrics   MetricsConfig   `koanf:"metrics" yaml:"metrics"`
	Database  DatabaseConfig  `koanf:"database" yaml:"database"`
	Redis     RedisConfig     `koanf:"redis" yaml:"redis"`
	Token     TokenConfig     `koanf:"token" yaml:"token"`
	Reset     ResetConfig     `koanf:"reset" yaml:"reset"`
	Reconcile ReconcileConfig `koanf:"reconcile" yaml:"reconcile"`
	Log       LogConfig       `koanf:"log" yaml:"log"`
}

// HTTPConfig configures the API listener.
type HTTPConfig struct {
	Addr            string        `koanf:"addr" yaml:"addr"`
	ReadTimeout     time.Duration `koanf:"read_timeout" yaml:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout" yaml:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" yaml:"shutdown_timeout"`
	AllowedOrigins  []string      `koanf:"allowed_origins" yaml:"allowed_origins"`
}

// MetricsConfig configures the metrics and probe listener. An empty
// address disables it.
type MetricsConfig struct {
	Addr string `koanf:"addr" yaml:"addr"`
}

// DatabaseConfig configures the credential store.
type DatabaseConfig struct {
	URL             string        `koanf:"url" yaml:"url"`
	MaxConns        int32         `koanf:"max_conns" yaml:"max_conns"`
	MaxConnIdleTime time.Duration `koanf:"max_conn_idle_time" yaml:"max_conn_idle_time"`
	ConnectTimeout  time.Duration `koanf:"connect_timeout" yaml:"connect_timeout"`
	AutoMigrate     bool          `koanf:"auto_migrate" yaml:"auto_migrate"`
}

// RedisConfig configures the revocation cache.
type RedisConfig struct {
	URL       string `koanf:"url" yaml:"url"`
	KeyPrefix string `koanf:"key_prefix" yaml:"key_prefix"`
}

// TokenConfig configures session token signing.
type TokenConfig struct {
	Secret string        `koanf:"secret" yaml:"secret"`
	Issuer string        `koanf:"issuer" yaml:"issuer"`
	TTL    time.Duration `koanf:"ttl" yaml:"ttl"`
}

// ResetConfig configures the password reset workflow.
type ResetConfig struct {
	TTL            time.Duration `koanf:"ttl" yaml:"ttl"`
	LinkBaseURL    string        `koanf:"link_base_url" yaml:"link_base_url"`
	RevokeSessions bool          `koanf:"revoke_sessions" yaml:"revoke_sessions"`
}

// ReconcileConfig configures revocation cache reconciliation.
type ReconcileConfig struct {
	Interval  time.Duration `koanf:"interval" yaml:"interval"`
	BatchSize int           `koanf:"batch_size" yaml:"batch_size"`
	Retention time.Duration `koanf:"retention" yaml:"retention"`
}

// LogConfig configures logging.
type LogConfig struct {
	Format string `koanf:"format" yaml:"format"`
	Level  string `koanf:"level" yaml:"level"`
}

// registerConfigFlags declares one flag per config key. Flag defaults are
// the lowest-precedence source.
func registerConfigFlags(fs *pflag.FlagSet) {
	fs.String("http.addr", ":3001", "API listen address")
	fs.Duration("http.read_timeout", 10*time.Second, "API read timeout")
	fs.Duration("http.write_timeout", 10*time.Second, "API write timeout")
	fs.Duration("http.shutdown_timeout", 15*time.Second, "grace period for in-flight requests on shutdown")
	fs.StringSlice("http.allowed_origins", []string{"http://localhost:3000"}, "CORS origin glob patterns")
	fs.String("metrics.addr", "127.0.0.1:9100", "metrics/health listen address (empty = disabled)")
	fs.String("database.url", "", "PostgreSQL connection URL")
	fs.Int32("database.max_conns", 20, "maximum pooled connections")
	fs.Duration("database.max_conn_idle_time", 30*time.Second, "idle time before a pooled connection is closed")
	fs.Duration("database.connect_timeout", 2*time.Second, "database connect timeout")
	fs.Bool("database.auto_migrate", false, "apply pending migrations on serve startup")
	fs.String("redis.url", "redis://redis:6379", "Redis connection URL")
	fs.String("redis.key_prefix", "token:", "revocation cache key prefix")
	fs.String("token.secret", "", "session token signing secret")
	fs.String("token.issuer", "tollgate", "session token issuer")
	fs.Duration("token.ttl", 168*time.Hour, "session token lifetime")
	fs.Duration("reset.ttl", time.Hour, "password reset token lifetime")
	fs.String("reset.link_base_url", "http://localhost:3000/reset-password", "base URL of reset links")
	fs.Bool("reset.revoke_sessions", false, "revoke all sessions after a password reset")
	fs.Duration("reconcile.interval", 5*time.Minute, "reconciliation interval (0 disables the loop)")
	fs.Int("reconcile.batch_size", 500, "sessions scanned per reconciliation page")
	fs.Duration("reconcile.retention", 24*time.Hour, "how long expired rows are kept before purging")
	fs.String("log.format", logging.FormatJSON, "log format (json or text)")
	fs.String("log.level", "info", "log level (debug, info, warn, error)")
}

// loadConfig merges, lowest first: flag defaults, the YAML file at path,
// aliased and TOLLGATE_ environment variables, and explicitly set flags.
func loadConfig(fs *pflag.FlagSet, path string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").With("path", path).Wrap(err)
		}
	}

	aliases := env.Provider("", ".", func(name string) string {
		return envAliases[name]
	})
	if err := k.Load(aliases, nil); err != nil {
		return nil, oops.Code("CONFIG_LOAD_FAILED").With("source", "env aliases").Wrap(err)
	}

	prefixed := env.ProviderWithValue(envPrefix, ".", func(name, value string) (string, any) {
		key := strings.ToLower(strings.ReplaceAll(strings.TrimPrefix(name, envPrefix), "__", "."))
		if key == "http.allowed_origins" {
			return key, strings.Split(value, ",")
		}
		return key, value
	})
	if err := k.Load(prefixed, nil); err != nil {
		return nil, oops.Code("CONFIG_LOAD_FAILED").With("source", "env").Wrap(err)
	}

	if err := k.Load(posflag.Provider(fs, ".", k), nil); err != nil {
		return nil, oops.Code("CONFIG_LOAD_FAILED").With("source", "flags").Wrap(err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, oops.Code("CONFIG_INVALID").With("operation", "decode").Wrap(err)
	}
	return &cfg, nil
}

// Validate rejects configurations the service cannot start with.
func (c *Config) Validate() error {
	switch {
	case c.Database.URL == "":
		return oops.Code("CONFIG_INVALID").With("key", "database.url").Errorf("database URL is required")
	case c.Token.Secret == "":
		return oops.Code("CONFIG_INVALID").With("key", "token.secret").Errorf("token secret is required")
	case c.Token.TTL <= 0:
		return oops.Code("CONFIG_INVALID").With("key", "token.ttl").Errorf("token TTL must be positive, got %s", c.Token.TTL)
	case c.Reset.TTL <= 0:
		return oops.Code("CONFIG_INVALID").With("key", "reset.ttl").Errorf("reset TTL must be positive, got %s", c.Reset.TTL)
	case c.Reconcile.Interval < 0:
		return oops.Code("CONFIG_INVALID").With("key", "reconcile.interval").Errorf("reconcile interval must not be negative")
	case c.Reconcile.BatchSize <= 0:
		return oops.Code("CONFIG_INVALID").With("key", "reconcile.batch_size").Errorf("reconcile batch size must be positive")
	case !logging.ValidFormat(c.Log.Format):
		return oops.Code("CONFIG_INVALID").With("key", "log.format").Errorf("log format must be 'json' or 'text', got %q", c.Log.Format)
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return oops.Code("CONFIG_INVALID").With("key", "log.level").Wrap(err)
	}
	return nil
}

// Redacted returns a copy safe to print: secrets and URL credentials are
// masked.
func (c *Config) Redacted() Config {
	out := *c
	out.HTTP.AllowedOrigins = append([]string(nil), c.HTTP.AllowedOrigins...)
	if out.Token.Secret != "" {
		out.Token.Secret = redacted
	}
	out.Database.URL = redactURL(out.Database.URL)
	out.Redis.URL = redactURL(out.Redis.URL)
	return out
}

// redactURL masks the password of a URL. Unparseable values are masked
// whole since they may embed credentials.
func redactURL(raw string) string {
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil {
		return redacted
	}
	return u.Redacted()
}

// configPath resolves the config file: the --config flag, then
// TOLLGATE_CONFIG, then config.yaml in the XDG config directory if present.
func configPath(flag string) (string, error) {
	if flag != "" {
		return flag, nil
	}
	if path := os.Getenv(envPrefix + "CONFIG"); path != "" {
		return path, nil
	}
	return xdg.DefaultConfigFile() //nolint:wrapcheck // xdg errors carry codes
}
