// Package config loads and normalizes the livepreview configuration file.
package config

import (
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	ferrors "git.home.luguber.info/inful/livepreview/internal/foundation/errors"
)

// DefaultPath is used when no --config flag is given.
const DefaultPath = "livepreview.yaml"

// Config is the root configuration.
type Config struct {
	Server     ServerConfig      `yaml:"server"`
	Preview    PreviewConfig     `yaml:"preview"`
	Workspaces []WorkspaceConfig `yaml:"workspaces,omitempty"`
	Monitoring MonitoringConfig  `yaml:"monitoring"`
	Events     EventsConfig      `yaml:"events"`
}

// ServerConfig holds the desired listener settings. The WS server starts at Port+1.
type ServerConfig struct {
	Host         string `yaml:"host"`
	Port         int    `yaml:"port"`
	WSPathPrefix string `yaml:"ws_path_prefix,omitempty"`
}

// PreviewConfig controls refresh and keep-alive behavior.
type PreviewConfig struct {
	AutoRefresh AutoRefreshMode `yaml:"auto_refresh"`
	// CloseDelay keeps the server up after the last preview closes; 0 never auto-closes.
	CloseDelay time.Duration `yaml:"close_delay"`
	ServerRoot string        `yaml:"server_root,omitempty"`
	// ScriptFile replaces the built-in live-reload client; it must contain ${WS_URL}.
	ScriptFile string `yaml:"script_file,omitempty"`
}

// WorkspaceConfig overrides settings for one workspace root.
type WorkspaceConfig struct {
	Root       string `yaml:"root"`
	ServerRoot string `yaml:"server_root,omitempty"`
}

// MonitoringConfig groups metrics and logging settings.
type MonitoringConfig struct {
	Metrics MonitoringMetrics `yaml:"metrics"`
	Logging MonitoringLogging `yaml:"logging"`
}

// MonitoringMetrics represents metrics configuration.
type MonitoringMetrics struct {
	Enabled bool   `yaml:"enabled"`
	Address string `yaml:"address"`
	Path    string `yaml:"path"`
}

// MonitoringLogging represents logging configuration.
type MonitoringLogging struct {
	Level  LogLevel  `yaml:"level"`
	Format LogFormat `yaml:"format"`
}

// EventsConfig configures external event sinks.
type EventsConfig struct {
	NATS NATSConfig `yaml:"nats"`
}

// NATSConfig enables forwarding lifecycle and request events to NATS.
type NATSConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	SubjectPrefix string `yaml:"subject_prefix"`
}

// Load reads path (after loading .env files), expands ${VAR} references, normalizes and validates.
// A missing file is not an error: defaults are returned.
func Load(path string) (*Config, *NormalizationResult, error) {
	if err := LoadEnvFiles(".env", ".env.local"); err != nil {
		return nil, nil, err
	}

	cfg := Default()
	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
	case err != nil:
		return nil, nil, ferrors.WrapError(err, ferrors.CategoryConfig, "failed to read config file").
			WithContext("path", path).
			Build()
	default:
		if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), cfg); err != nil {
			return nil, nil, ferrors.WrapError(err, ferrors.CategoryConfig, "failed to parse config file").
				WithContext("path", path).
				UserAction().
				Build()
		}
	}

	res, err := Normalize(cfg, filepath.Dir(path))
	if err != nil {
		return nil, nil, err
	}
	if err := Validate(cfg); err != nil {
		return nil, nil, err
	}
	return cfg, res, nil
}

// Init writes an example configuration file.
func Init(path string, force bool) error {
	if _, err := os.Stat(path); err == nil && !force {
		return ferrors.ConfigError("configuration file already exists (use --force to overwrite)").
			WithContext("path", path).
			Build()
	}

	data, err := yaml.Marshal(Default())
	if err != nil {
		return ferrors.WrapError(err, ferrors.CategoryInternal, "failed to marshal config").Build()
	}
	header := []byte("# livepreview configuration. ${VAR} references are expanded from the environment.\n")
	if err := os.WriteFile(path, append(header, data...), 0o644); err != nil {
		return ferrors.WrapError(err, ferrors.CategoryFileSystem, "failed to write config file").
			WithContext("path", path).
			Build()
	}
	return nil
}

// ServerRootFor returns the sub-directory served for a workspace root; a per-workspace entry
// wins over preview.server_root.
func (c *Config) ServerRootFor(root string) string {
	clean := filepath.Clean(root)
	for _, ws := range c.Workspaces {
		if filepath.Clean(ws.Root) == clean && ws.ServerRoot != "" {
			return ws.ServerRoot
		}
	}
	return c.Preview.ServerRoot
}
