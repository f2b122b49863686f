package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/strata-dev/strata/internal/errors"
)

const (
	// ConfigFileName is the name of the configuration file.
	ConfigFileName = "strata.json"

	// DefaultPort is the default server port.
	DefaultPort = 4400

	// DefaultHost is the default bind host.
	DefaultHost = "localhost"

	// DefaultRevalidate is the default revalidation window for
	// runtime-static entries.
	DefaultRevalidate = 60 * time.Second

	// DefaultBundlePrefix is the URL prefix bundles are served under
	// when no remote store is configured.
	DefaultBundlePrefix = "/bundles/"
)

// Config represents the complete strata.json configuration.
type Config struct {
	// Name is the project name.
	Name string `json:"name,omitempty"`

	// Server contains listen configuration.
	Server ServerConfig `json:"server,omitempty"`

	// Cache contains memoization defaults.
	Cache CacheConfig `json:"cache,omitempty"`

	// Bundles contains activation bundle storage configuration.
	Bundles BundleConfig `json:"bundles,omitempty"`

	// Metrics toggles the Prometheus endpoint.
	Metrics MetricsConfig `json:"metrics,omitempty"`

	// configPath stores the path the config was loaded from.
	configPath string
}

// ServerConfig contains listen settings.
type ServerConfig struct {
	// Port is the port to listen on.
	Port int `json:"port,omitempty"`

	// Host is the host to bind to.
	Host string `json:"host,omitempty"`
}

// CacheConfig contains memoization defaults.
type CacheConfig struct {
	// Revalidate is the default revalidation window for
	// runtime-static entries (e.g. "60s").
	Revalidate string `json:"revalidate,omitempty"`

	// BlockUntilFresh makes stale reads wait for recomputation
	// instead of serving the stale value while refreshing.
	BlockUntilFresh bool `json:"blockUntilFresh,omitempty"`
}

// BundleConfig contains bundle storage settings.
type BundleConfig struct {
	// Backend selects the store: "memory" (default) or "s3".
	Backend string `json:"backend,omitempty"`

	// Prefix is the URL or key prefix for bundles.
	Prefix string `json:"prefix,omitempty"`

	// Bucket is the S3 bucket name (s3 backend only).
	Bucket string `json:"bucket,omitempty"`

	// URLExpiry is how long presigned URLs stay valid (e.g. "24h").
	URLExpiry string `json:"urlExpiry,omitempty"`
}

// MetricsConfig contains observability settings.
type MetricsConfig struct {
	// Enabled exposes /metrics when true.
	Enabled bool `json:"enabled,omitempty"`

	// Namespace prefixes metric names. Defaults to "strata".
	Namespace string `json:"namespace,omitempty"`
}

// New returns a config populated with defaults.
func New() *Config {
	c := &Config{}
	c.applyDefaults()
	return c
}

// Load reads strata.json from the given directory.
func Load(dir string) (*Config, error) {
	return LoadFile(filepath.Join(dir, ConfigFileName))
}

// LoadFile reads a config from an explicit path.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.New("E400").Wrap(err)
	}
	c := &Config{configPath: path}
	if err := json.Unmarshal(data, c); err != nil {
		return nil, errors.New("E400").Wrap(err).
			WithDetail("%s is not valid JSON", path)
	}
	c.applyEnv()
	c.applyDefaults()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Exists reports whether strata.json is present in dir.
func Exists(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, ConfigFileName))
	return err == nil
}

// Path returns where the config was loaded from.
func (c *Config) Path() string { return c.configPath }

// applyEnv lets deployment environments override listen settings
// without editing strata.json.
func (c *Config) applyEnv() {
	if host := os.Getenv("STRATA_HOST"); host != "" {
		c.Server.Host = host
	}
	if port := os.Getenv("STRATA_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			c.Server.Port = p
		}
	}
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = DefaultPort
	}
	if c.Server.Host == "" {
		c.Server.Host = DefaultHost
	}
	if c.Cache.Revalidate == "" {
		c.Cache.Revalidate = DefaultRevalidate.String()
	}
	if c.Bundles.Backend == "" {
		c.Bundles.Backend = "memory"
	}
	if c.Bundles.Prefix == "" {
		c.Bundles.Prefix = DefaultBundlePrefix
	}
	if c.Metrics.Namespace == "" {
		c.Metrics.Namespace = "strata"
	}
}

// Validate checks the config for contradictions.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return errors.New("E400").WithDetail("server.port %d out of range", c.Server.Port)
	}
	if _, err := time.ParseDuration(c.Cache.Revalidate); err != nil {
		return errors.New("E400").WithDetail("cache.revalidate %q is not a duration", c.Cache.Revalidate)
	}
	switch c.Bundles.Backend {
	case "memory":
	case "s3":
		if c.Bundles.Bucket == "" {
			return errors.New("E400").WithDetail("bundles.backend s3 requires bundles.bucket")
		}
	default:
		return errors.New("E400").WithDetail("unknown bundles.backend %q", c.Bundles.Backend)
	}
	if c.Bundles.URLExpiry != "" {
		if _, err := time.ParseDuration(c.Bundles.URLExpiry); err != nil {
			return errors.New("E400").WithDetail("bundles.urlExpiry %q is not a duration", c.Bundles.URLExpiry)
		}
	}
	return nil
}

// RevalidateWindow returns the parsed default revalidation window.
func (c *Config) RevalidateWindow() time.Duration {
	d, err := time.ParseDuration(c.Cache.Revalidate)
	if err != nil {
		return DefaultRevalidate
	}
	return d
}

// ListenAddress returns host:port for the server.
func (c *Config) ListenAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
