package commands

import (
	"bytes"
	"context"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/livepreview/internal/config"
	ferrors "git.home.luguber.info/inful/livepreview/internal/foundation/errors"
	helpers "git.home.luguber.info/inful/livepreview/internal/testutil/testutils"
)

func TestServeCmd_ApplyOverrides(t *testing.T) {
	cfg := config.Default()
	cmd := ServeCmd{
		Host:           "0.0.0.0",
		Port:           4100,
		AutoRefresh:    "on-save",
		MetricsAddress: "127.0.0.1:9999",
		NATSURL:        "nats://127.0.0.1:4222",
	}
	require.NoError(t, cmd.ApplyOverrides(cfg))

	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 4100, cfg.Server.Port)
	assert.Equal(t, config.AutoRefreshOnSave, cfg.Preview.AutoRefresh)
	assert.True(t, cfg.Monitoring.Metrics.Enabled)
	assert.Equal(t, "127.0.0.1:9999", cfg.Monitoring.Metrics.Address)
	assert.True(t, cfg.Events.NATS.Enabled)
	assert.Equal(t, "nats://127.0.0.1:4222", cfg.Events.NATS.URL)
}

func TestServeCmd_AutoRefreshNever(t *testing.T) {
	cfg := config.Default()
	require.NoError(t, (&ServeCmd{AutoRefresh: "never"}).ApplyOverrides(cfg))
	assert.Equal(t, config.AutoRefreshOff, cfg.Preview.AutoRefresh)
}

func TestServeCmd_ApplyOverridesRejectsBadValues(t *testing.T) {
	err := (&ServeCmd{AutoRefresh: "sometimes"}).ApplyOverrides(config.Default())
	require.Error(t, err)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryValidation))

	err = (&ServeCmd{Port: 65535}).ApplyOverrides(config.Default())
	require.Error(t, err)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryValidation))
}

func TestSplitRoots(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "page.html")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))

	dirs, files, err := splitRoots([]string{dir, file, dir})
	require.NoError(t, err)
	assert.Equal(t, []string{dir}, dirs)
	assert.Equal(t, []string{file}, files)

	_, _, err = splitRoots([]string{filepath.Join(dir, "missing")})
	require.Error(t, err)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryNotFound))
}

func TestRunInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "livepreview.yaml")
	var out bytes.Buffer

	require.NoError(t, RunInit(&out, path, false))
	assert.Contains(t, out.String(), "initialized successfully")
	assert.FileExists(t, path)

	err := RunInit(&out, path, false)
	require.Error(t, err)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryConfig))

	require.NoError(t, RunInit(io.Discard, path, true))
}

func TestRunServe_ServesUntilCanceled(t *testing.T) {
	port := helpers.FreePort(t)
	root := helpers.WriteTree(t, map[string]string{"index.html": "<h1>served</h1>"})

	monitor := net.JoinHostPort("127.0.0.1", strconv.Itoa(helpers.FreePort(t)))
	cfg := config.Default()
	cfg.Server.Port = port
	cfg.Monitoring.Metrics.Enabled = true
	cfg.Monitoring.Metrics.Address = monitor
	out := &helpers.SyncBuffer{}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- RunServe(ctx, cfg, []string{root}, ServeOptions{Out: out}) }()

	serving := regexp.MustCompile(`Serving .* at (http://\S+)`)
	var base string
	require.Eventually(t, func() bool {
		m := serving.FindStringSubmatch(out.String())
		if m == nil {
			return false
		}
		base = m[1]
		return true
	}, 5*time.Second, 20*time.Millisecond)

	resp, err := http.Get(base + "/index.html")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	require.NoError(t, err)
	assert.Contains(t, string(body), "<h1>served</h1>")

	resp, err = http.Get("http://" + monitor + "/healthz")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get("http://" + monitor + config.DefaultMetricsPath)
	require.NoError(t, err)
	body, err = io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	require.NoError(t, err)
	assert.Contains(t, string(body), "livepreview_http_requests_total")

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not stop")
	}
	assert.Eventually(t, func() bool {
		return strings.Contains(out.String(), "Stopped "+root)
	}, 2*time.Second, 10*time.Millisecond)
}
