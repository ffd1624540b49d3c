// Package config loads flux9s application settings.
//
// Settings come from <UserConfigDir>/flux9s/config.yaml, then environment
// variables, then command-line flags, each layer overriding the previous.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/felixgeelhaar/flux9s/internal/domain/connector"
	"github.com/felixgeelhaar/flux9s/internal/domain/plugin"
	"github.com/felixgeelhaar/flux9s/internal/ports"
)

// Environment variables read by ApplyEnv.
const (
	EnvPluginsDir    = "FLUX9S_PLUGINS_DIR"
	EnvClusterDomain = "FLUX9S_CLUSTER_DOMAIN"
	EnvLogLevel      = "FLUX9S_LOG_LEVEL"
	EnvKubeconfig    = "KUBECONFIG"
)

// DefaultRefreshTick is how often the status view sweeps expired plugins.
const DefaultRefreshTick = time.Second

// Config holds application settings.
type Config struct {
	// PluginsDir is the directory manifests are loaded from.
	PluginsDir string `yaml:"pluginsDir,omitempty"`
	// ClusterDomain is the DNS suffix for ClusterService URLs.
	ClusterDomain string `yaml:"clusterDomain,omitempty"`
	LogLevel      string `yaml:"logLevel,omitempty"`
	// RefreshTick is a duration such as "1s".
	RefreshTick string `yaml:"refreshTick,omitempty"`
	Kubeconfig  string `yaml:"kubeconfig,omitempty"`
	Context     string `yaml:"context,omitempty"`

	// Contexts holds per-kubeconfig-context overrides.
	Contexts map[string]ContextConfig `yaml:"contexts,omitempty"`
}

// ContextConfig overrides settings for one kubeconfig context.
type ContextConfig struct {
	ClusterDomain string `yaml:"clusterDomain,omitempty"`
}

// Default returns the built-in settings.
func Default() *Config {
	dir, err := plugin.DefaultPluginsDir()
	if err != nil {
		dir = filepath.Join(".flux9s", "plugins")
	}
	return &Config{
		PluginsDir:    dir,
		ClusterDomain: connector.DefaultDNSSuffix,
		LogLevel:      "info",
		RefreshTick:   DefaultRefreshTick.String(),
	}
}

// DefaultPath returns <UserConfigDir>/flux9s/config.yaml.
func DefaultPath() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("locating user config directory: %w", err)
	}
	return filepath.Join(base, "flux9s", "config.yaml"), nil
}

// Load reads the config file at path over the defaults. A missing file is
// not an error and yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	cfg.expandPaths()
	return cfg, nil
}

// expandPaths expands a leading ~ in path settings.
func (c *Config) expandPaths() {
	c.PluginsDir = ports.ExpandPath(c.PluginsDir)
	c.Kubeconfig = ports.ExpandPath(c.Kubeconfig)
}

// ApplyEnv overrides settings from environment variables. Unset or empty
// variables leave the setting alone.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	set := func(dst *string, key string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	set(&c.PluginsDir, EnvPluginsDir)
	set(&c.ClusterDomain, EnvClusterDomain)
	set(&c.LogLevel, EnvLogLevel)
	set(&c.Kubeconfig, EnvKubeconfig)
	c.expandPaths()
}

// Validate checks values that cannot be corrected silently.
func (c *Config) Validate() error {
	if c.LogLevel != "" {
		if _, err := ports.ParseLevel(c.LogLevel); err != nil {
			return fmt.Errorf("logLevel: %w", err)
		}
	}
	if c.RefreshTick != "" {
		d, err := time.ParseDuration(c.RefreshTick)
		if err != nil {
			return fmt.Errorf("refreshTick: %w", err)
		}
		if d <= 0 {
			return fmt.Errorf("refreshTick: must be positive, got %s", c.RefreshTick)
		}
	}
	return nil
}

// Level returns the parsed log level, Info if unset.
func (c *Config) Level() (ports.Level, error) {
	if c.LogLevel == "" {
		return ports.LevelInfo, nil
	}
	return ports.ParseLevel(c.LogLevel)
}

// Tick returns the refresh tick, DefaultRefreshTick if unset or invalid.
func (c *Config) Tick() time.Duration {
	d, err := time.ParseDuration(c.RefreshTick)
	if err != nil || d <= 0 {
		return DefaultRefreshTick
	}
	return d
}

// ClusterDomainFor returns the normalised DNS suffix for a kubeconfig
// context, preferring a per-context override.
func (c *Config) ClusterDomainFor(kubeContext string) string {
	if override, ok := c.Contexts[kubeContext]; ok && override.ClusterDomain != "" {
		return connector.NormalizeDNSSuffix(override.ClusterDomain)
	}
	return connector.NormalizeDNSSuffix(c.ClusterDomain)
}
