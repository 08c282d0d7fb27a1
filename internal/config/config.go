// Package config handles TOML configuration loading and validation.
package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

// configSearchPaths lists paths checked in order when no explicit config is given.
var configSearchPaths = []string{
	"/etc/xtream-web/config.toml",
	"configs/config.toml",
}

// DefaultUserAgent is sent to upstream panels, several of which reject
// unrecognized agents.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"

// CLI holds command-line arguments parsed by Kong.
type CLI struct {
	Config      string `kong:"short='c',help='Path to TOML config file.',env='CONFIG_PATH'"`
	Host        string `kong:"help='Listen host (overrides config).',env='HOST'"`
	Port        int    `kong:"short='p',help='Listen port (overrides config).',env='PORT'"`
	AdminSecret string `kong:"help='Shared admin secret (overrides config).',env='ADMIN_SECRET'"`
	DataDir     string `kong:"help='Directory for servers, branding and uploads (overrides config).',env='DATA_DIR'"`
	LogLevel    string `kong:"help='Log level: debug|info|warn|error (overrides config).',env='LOG_LEVEL'"`
}

// Config is the top-level application configuration.
type Config struct {
	Server   ServerConfig   `toml:"server"`
	Admin    AdminConfig    `toml:"admin"`
	Upstream UpstreamConfig `toml:"upstream"`
	Storage  StorageConfig  `toml:"storage"`
	Sessions SessionsConfig `toml:"sessions"`
	Log      LogConfig      `toml:"log"`
	Metrics  MetricsConfig  `toml:"metrics"`

	filePath string // resolved config file path (unexported)
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string          `toml:"host"`
	Port         int             `toml:"port"` // 0 means "use default" (8080); TOML cannot distinguish 0 from unset
	BodyMaxBytes int64           `toml:"body_max_bytes"`
	RateLimit    RateLimitConfig `toml:"rate_limit"`
}

// RateLimitConfig controls per-IP request rate limiting.
type RateLimitConfig struct {
	Enabled           bool    `toml:"enabled"`
	RequestsPerSecond float64 `toml:"requests_per_second"`
}

// AdminConfig holds the single shared secret guarding write endpoints.
type AdminConfig struct {
	Secret string `toml:"secret"`
}

// UpstreamConfig holds settings for talking to Xtream panels.
type UpstreamConfig struct {
	UserAgent              string `toml:"user_agent"`
	ManifestTimeoutSeconds int    `toml:"manifest_timeout_seconds"`
	StreamTimeoutSeconds   int    `toml:"stream_timeout_seconds"`
	MaxRedirects           int    `toml:"max_redirects"`
	IdleConnections        int    `toml:"idle_connections"`
	ManifestMaxBytes       int64  `toml:"manifest_max_bytes"`
	ProxyURL               string `toml:"proxy_url"`
	APIRequestsPerSecond   int    `toml:"api_requests_per_second"`

	// InsecureSkipVerify disables TLS certificate checks against upstream
	// panels. Unset means true: many IPTV origins serve self-signed certs.
	InsecureSkipVerify *bool `toml:"insecure_skip_verify"`
}

// SkipVerify reports whether upstream TLS verification is disabled.
func (u *UpstreamConfig) SkipVerify() bool {
	return u.InsecureSkipVerify == nil || *u.InsecureSkipVerify
}

// StorageConfig locates the best-effort JSON stores and uploads.
type StorageConfig struct {
	DataDir        string `toml:"data_dir"`
	UploadMaxBytes int64  `toml:"upload_max_bytes"`
}

// Session backends.
const (
	SessionBackendMemory = "memory"
	SessionBackendRedis  = "redis"
)

// SessionsConfig selects and tunes the session backend.
type SessionsConfig struct {
	Backend       string `toml:"backend"`
	TTLSeconds    int    `toml:"ttl_seconds"`
	RedisAddr     string `toml:"redis_addr"`
	RedisPassword string `toml:"redis_password"`
	RedisDB       int    `toml:"redis_db"`
}

// TTL is how long a session stays alive after its last heartbeat.
func (s SessionsConfig) TTL() time.Duration {
	return time.Duration(s.TTLSeconds) * time.Second
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// MetricsConfig holds Prometheus metrics settings.
type MetricsConfig struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

// reservedRoutes may not be shadowed by the metrics endpoint.
var reservedRoutes = []string{"/proxy-stream", "/api", "/healthz", "/uploads"}

// Load reads the TOML config file and applies CLI overrides.
// When no explicit path is given (via --config or CONFIG_PATH), it searches
// /etc/xtream-web/config.toml then configs/config.toml.
func Load(cli *CLI) (*Config, error) {
	path := cli.Config
	if path == "" {
		path = findConfig()
	}
	if path == "" {
		return nil, fmt.Errorf("config: no config file found (searched %v)", configSearchPaths)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	cfg.filePath = path
	cfg.applyCLI(cli)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config: validate: %w", err)
	}

	cfg.setDefaults()
	return &cfg, nil
}

// applyCLI overrides config values with non-zero CLI flags.
func (c *Config) applyCLI(cli *CLI) {
	if cli.Host != "" {
		c.Server.Host = cli.Host
	}
	if cli.Port != 0 {
		c.Server.Port = cli.Port
	}
	if cli.AdminSecret != "" {
		c.Admin.Secret = cli.AdminSecret
	}
	if cli.DataDir != "" {
		c.Storage.DataDir = cli.DataDir
	}
	if cli.LogLevel != "" {
		c.Log.Level = cli.LogLevel
	}
}

func (c *Config) validate() error {
	if c.Admin.Secret == "CHANGE_ME" {
		return fmt.Errorf("admin.secret contains placeholder value; set a real secret or leave empty to disable admin routes")
	}

	// Numeric bounds.
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be 0–65535; got %d", c.Server.Port)
	}
	if c.Server.BodyMaxBytes < 0 {
		return fmt.Errorf("server.body_max_bytes must be non-negative; got %d", c.Server.BodyMaxBytes)
	}
	if c.Server.RateLimit.Enabled && c.Server.RateLimit.RequestsPerSecond <= 0 {
		return fmt.Errorf("server.rate_limit.requests_per_second must be > 0 when rate limiting is enabled; got %v", c.Server.RateLimit.RequestsPerSecond)
	}
	for name, v := range map[string]int{
		"upstream.manifest_timeout_seconds": c.Upstream.ManifestTimeoutSeconds,
		"upstream.stream_timeout_seconds":   c.Upstream.StreamTimeoutSeconds,
		"upstream.max_redirects":            c.Upstream.MaxRedirects,
		"upstream.idle_connections":         c.Upstream.IdleConnections,
		"upstream.api_requests_per_second":  c.Upstream.APIRequestsPerSecond,
		"sessions.ttl_seconds":              c.Sessions.TTLSeconds,
	} {
		if v < 0 {
			return fmt.Errorf("%s must be non-negative; got %d", name, v)
		}
	}
	if c.Upstream.ManifestMaxBytes < 0 {
		return fmt.Errorf("upstream.manifest_max_bytes must be non-negative; got %d", c.Upstream.ManifestMaxBytes)
	}
	if c.Storage.UploadMaxBytes < 0 {
		return fmt.Errorf("storage.upload_max_bytes must be non-negative; got %d", c.Storage.UploadMaxBytes)
	}

	// Optional egress proxy: only SOCKS5 is supported by the dialer.
	if c.Upstream.ProxyURL != "" {
		u, err := url.Parse(c.Upstream.ProxyURL)
		if err != nil {
			return fmt.Errorf("upstream.proxy_url is not a valid URL: %w", err)
		}
		if u.Scheme != "socks5" && u.Scheme != "socks5h" {
			return fmt.Errorf("upstream.proxy_url must use socks5; got %q", u.Scheme)
		}
		if u.Host == "" {
			return fmt.Errorf("upstream.proxy_url must include a host")
		}
	}

	switch strings.ToLower(c.Sessions.Backend) {
	case "", SessionBackendMemory:
	case SessionBackendRedis:
		if c.Sessions.RedisAddr == "" {
			return fmt.Errorf("sessions.redis_addr is required when sessions.backend is redis")
		}
	default:
		return fmt.Errorf("sessions.backend must be one of: memory, redis; got %q", c.Sessions.Backend)
	}

	// Log fields.
	level := strings.ToLower(c.Log.Level)
	switch level {
	case "debug", "info", "warn", "error", "":
		// valid
	default:
		return fmt.Errorf("log.level must be one of: debug, info, warn, error; got %q", c.Log.Level)
	}
	format := strings.ToLower(c.Log.Format)
	switch format {
	case "json", "text", "":
		// valid
	default:
		return fmt.Errorf("log.format must be one of: json, text; got %q", c.Log.Format)
	}

	// Metrics path validation (only when metrics are enabled).
	if c.Metrics.Enabled && c.Metrics.Path != "" {
		p := c.Metrics.Path
		if p[0] != '/' {
			return fmt.Errorf("metrics.path must start with '/'; got %q", p)
		}
		for _, reserved := range reservedRoutes {
			if p == reserved || strings.HasPrefix(p, reserved+"/") {
				return fmt.Errorf("metrics.path %q conflicts with reserved route %q", p, reserved)
			}
		}
	}

	return nil
}

// setDefaults fills zero-valued fields with sensible defaults.
// For integer fields (Port, BodyMaxBytes, etc.), zero means "unset" because TOML
// cannot distinguish between an explicit 0 and an omitted key.
func (c *Config) setDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.BodyMaxBytes == 0 {
		c.Server.BodyMaxBytes = 10 * 1024 * 1024 // 10 MB
	}
	if c.Upstream.UserAgent == "" {
		c.Upstream.UserAgent = DefaultUserAgent
	}
	if c.Upstream.ManifestTimeoutSeconds == 0 {
		c.Upstream.ManifestTimeoutSeconds = 10
	}
	if c.Upstream.StreamTimeoutSeconds == 0 {
		c.Upstream.StreamTimeoutSeconds = 60
	}
	if c.Upstream.MaxRedirects == 0 {
		c.Upstream.MaxRedirects = 5
	}
	if c.Upstream.IdleConnections == 0 {
		c.Upstream.IdleConnections = 64
	}
	if c.Upstream.ManifestMaxBytes == 0 {
		c.Upstream.ManifestMaxBytes = 10 * 1024 * 1024
	}
	if c.Storage.DataDir == "" {
		c.Storage.DataDir = "data"
	}
	if c.Storage.UploadMaxBytes == 0 {
		c.Storage.UploadMaxBytes = 2 * 1024 * 1024
	}
	if c.Sessions.Backend == "" {
		c.Sessions.Backend = SessionBackendMemory
	}
	c.Sessions.Backend = strings.ToLower(c.Sessions.Backend)
	if c.Sessions.TTLSeconds == 0 {
		c.Sessions.TTLSeconds = 120
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}
}

// findConfig returns the first config path that exists, or empty string.
func findConfig() string {
	return findConfigInPaths(configSearchPaths)
}

// findConfigInPaths returns the first path that exists on disk, or empty string.
func findConfigInPaths(paths []string) string {
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// Addr returns the server listen address as host:port.
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// WarnPermissions logs a warning if the config file is readable by group or others.
func (c *Config) WarnPermissions(logger *slog.Logger) {
	if c.filePath == "" {
		return
	}
	info, err := os.Stat(c.filePath)
	if err != nil {
		return
	}
	if perm := info.Mode().Perm(); perm&0o077 != 0 {
		logger.Warn("config file is readable by group/others; consider chmod 600",
			"path", c.filePath,
			"mode", fmt.Sprintf("%04o", perm),
		)
	}
}
