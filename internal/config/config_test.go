package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ferrors "git.home.luguber.info/inful/livepreview/internal/foundation/errors"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "livepreview.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, res, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Empty(t, res.Warnings)
	assert.Equal(t, DefaultHost, cfg.Server.Host)
	assert.Equal(t, DefaultPort, cfg.Server.Port)
	assert.Equal(t, AutoRefreshOnAnyChange, cfg.Preview.AutoRefresh)
	assert.Equal(t, time.Duration(0), cfg.Preview.CloseDelay)
	assert.Equal(t, "/metrics", cfg.Monitoring.Metrics.Path)
}

func TestLoad_ParsesAndExpandsEnv(t *testing.T) {
	t.Setenv("LP_TEST_PORT", "4100")
	path := writeConfig(t, `
server:
  host: 127.0.0.2
  port: ${LP_TEST_PORT}
preview:
  auto_refresh: on-save
  close_delay: 30s
  server_root: public/
  script_file: client.js
workspaces:
  - root: site
    server_root: dist
monitoring:
  logging:
    level: WARNING
    format: json
`)
	cfg, res, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.2", cfg.Server.Host)
	assert.Equal(t, 4100, cfg.Server.Port)
	assert.Equal(t, AutoRefreshOnSave, cfg.Preview.AutoRefresh)
	assert.Equal(t, 30*time.Second, cfg.Preview.CloseDelay)
	assert.Equal(t, "public", cfg.Preview.ServerRoot)
	assert.Equal(t, filepath.Join(filepath.Dir(path), "client.js"), cfg.Preview.ScriptFile)
	assert.Equal(t, LogLevelWarn, cfg.Monitoring.Logging.Level)
	assert.Equal(t, LogFormatJSON, cfg.Monitoring.Logging.Format)
	assert.Len(t, res.Warnings, 1, "level spelling change is reported")

	root := filepath.Join(filepath.Dir(path), "site")
	assert.Equal(t, root, cfg.Workspaces[0].Root)
	assert.Equal(t, "dist", cfg.ServerRootFor(root))
	assert.Equal(t, "public", cfg.ServerRootFor("/elsewhere"))
}

func TestLoad_InvalidHostFallsBackWithWarning(t *testing.T) {
	path := writeConfig(t, "server:\n  host: localhost\n")
	cfg, res, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultHost, cfg.Server.Host)
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "localhost")
}

func TestLoad_RejectsBadYAML(t *testing.T) {
	path := writeConfig(t, "server: [unterminated")
	_, _, err := Load(path)
	require.Error(t, err)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryConfig))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"port too high", func(c *Config) { c.Server.Port = 65535 }},
		{"negative port", func(c *Config) { c.Server.Port = -1 }},
		{"absolute server root", func(c *Config) { c.Preview.ServerRoot = "/srv" }},
		{"escaping server root", func(c *Config) { c.Preview.ServerRoot = "../up" }},
		{"empty workspace root", func(c *Config) { c.Workspaces = []WorkspaceConfig{{}} }},
		{"duplicate workspace", func(c *Config) {
			c.Workspaces = []WorkspaceConfig{{Root: "/a"}, {Root: "/a"}}
		}},
		{"nats without url", func(c *Config) { c.Events.NATS.Enabled = true; c.Events.NATS.URL = " " }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := Validate(cfg)
			require.Error(t, err)
			assert.True(t, ferrors.HasCategory(err, ferrors.CategoryValidation))
		})
	}
	require.NoError(t, Validate(Default()))
}

func TestIsIPv4(t *testing.T) {
	assert.True(t, IsIPv4("127.0.0.1"))
	assert.True(t, IsIPv4("0.0.0.0"))
	assert.False(t, IsIPv4("::1"))
	assert.False(t, IsIPv4("::ffff:127.0.0.1"))
	assert.False(t, IsIPv4("localhost"))
	assert.False(t, IsIPv4("256.0.0.1"))

	host, ok := NormalizeHost("")
	assert.True(t, ok)
	assert.Equal(t, DefaultHost, host)
	host, ok = NormalizeHost("not-an-ip")
	assert.False(t, ok)
	assert.Equal(t, DefaultHost, host)
}

func TestParseAutoRefreshMode(t *testing.T) {
	m, err := ParseAutoRefreshMode("ON_ANY_CHANGE")
	require.NoError(t, err)
	assert.Equal(t, AutoRefreshOnAnyChange, m)
	m, err = ParseAutoRefreshMode("Off")
	require.NoError(t, err)
	assert.Equal(t, AutoRefreshOff, m)

	for raw, want := range map[string]AutoRefreshMode{
		"never":         AutoRefreshOff,
		"Never":         AutoRefreshOff,
		"on any change": AutoRefreshOnAnyChange,
		"on save":       AutoRefreshOnSave,
	} {
		m, err = ParseAutoRefreshMode(raw)
		require.NoError(t, err, raw)
		assert.Equal(t, want, m, raw)
	}
	_, err = ParseAutoRefreshMode("sometimes")
	assert.Error(t, err)
}

func TestLoad_AutoRefreshNever(t *testing.T) {
	path := writeConfig(t, `
preview:
  auto_refresh: never
`)
	cfg, res, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, AutoRefreshOff, cfg.Preview.AutoRefresh)
	assert.Empty(t, res.Warnings)
}

func TestInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "livepreview.yaml")
	require.NoError(t, Init(path, false))
	require.Error(t, Init(path, false))
	require.NoError(t, Init(path, true))

	cfg, _, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, Default().Server, cfg.Server)
}
