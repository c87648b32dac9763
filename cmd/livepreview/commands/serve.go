package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	prom "github.com/prometheus/client_golang/prometheus"

	"git.home.luguber.info/inful/livepreview/internal/config"
	"git.home.luguber.info/inful/livepreview/internal/documents"
	"git.home.luguber.info/inful/livepreview/internal/events"
	ferrors "git.home.luguber.info/inful/livepreview/internal/foundation/errors"
	"git.home.luguber.info/inful/livepreview/internal/logfields"
	"git.home.luguber.info/inful/livepreview/internal/metrics"
	"git.home.luguber.info/inful/livepreview/internal/preview"
	"git.home.luguber.info/inful/livepreview/internal/retry"
	"git.home.luguber.info/inful/livepreview/internal/server/handlers"
	"git.home.luguber.info/inful/livepreview/internal/watch"
)

// ServeCmd implements the 'serve' command.
type ServeCmd struct {
	Roots          []string `arg:"" optional:"" type:"path" help:"Directories to serve as workspaces or files to serve on their own."`
	Host           string   `help:"IPv4 address to bind (overrides server.host)."`
	Port           int      `short:"p" help:"Desired HTTP port; the WebSocket server starts one above (overrides server.port)."`
	AutoRefresh    string   `name:"auto-refresh" help:"Reload browsers on: onAnyChange, onSave or off (alias never)."`
	Open           bool     `short:"o" help:"Open each root in the system browser once it is served."`
	MetricsAddress string   `name:"metrics-address" help:"Expose Prometheus metrics on this address."`
	NATSURL        string   `name:"nats-url" help:"Forward preview events to this NATS server."`
}

func (s *ServeCmd) Run(g *Global, root *CLI) error {
	cfg, res, err := config.Load(root.Config)
	if err != nil {
		return err
	}
	if err := s.ApplyOverrides(cfg); err != nil {
		return err
	}

	logger := NewLogger(cfg.Monitoring.Logging.Level, cfg.Monitoring.Logging.Format, root.Verbose)
	slog.SetDefault(logger)
	g.Logger = logger
	for _, w := range res.Warnings {
		logger.Warn("Configuration adjusted", slog.String("detail", w))
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	roots := s.Roots
	if len(roots) == 0 {
		for _, ws := range cfg.Workspaces {
			roots = append(roots, ws.Root)
		}
	}
	return RunServe(ctx, cfg, roots, ServeOptions{Open: s.Open, Logger: logger, Out: os.Stdout})
}

// ApplyOverrides folds command line flags into cfg and validates the result. The host is kept
// verbatim so the connection manager can warn about it.
func (s *ServeCmd) ApplyOverrides(cfg *config.Config) error {
	if s.Host != "" {
		cfg.Server.Host = s.Host
	}
	if s.Port != 0 {
		cfg.Server.Port = s.Port
	}
	if s.AutoRefresh != "" {
		mode, err := config.ParseAutoRefreshMode(s.AutoRefresh)
		if err != nil {
			return err
		}
		cfg.Preview.AutoRefresh = mode
	}
	if s.MetricsAddress != "" {
		cfg.Monitoring.Metrics.Enabled = true
		cfg.Monitoring.Metrics.Address = s.MetricsAddress
	}
	if s.NATSURL != "" {
		cfg.Events.NATS.Enabled = true
		cfg.Events.NATS.URL = s.NATSURL
	}
	return config.Validate(cfg)
}

// ServeOptions tunes RunServe.
type ServeOptions struct {
	Open   bool
	Logger *slog.Logger
	Out    io.Writer
}

// RunServe serves roots until ctx is done. Directories become workspaces; files are served
// through loose-file endpoints. With no roots only the loose-file server runs.
func RunServe(ctx context.Context, cfg *config.Config, roots []string, opts ServeOptions) error {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	out := opts.Out
	if out == nil {
		out = io.Discard
	}

	dirs, files, err := splitRoots(roots)
	if err != nil {
		return err
	}

	bus := events.NewBus()
	defer bus.Close()
	printed, unsubscribe := events.Subscribe[events.Event](bus, 32)
	defer unsubscribe()
	go printEvents(printed, out)

	var recorder metrics.Recorder = metrics.NoopRecorder{}
	var reg *prom.Registry
	if cfg.Monitoring.Metrics.Enabled {
		reg = prom.NewRegistry()
		recorder = metrics.NewPrometheusRecorder(reg)
	}

	if cfg.Events.NATS.Enabled {
		var conn *nats.Conn
		err := retry.Do(ctx, retry.DefaultPolicy(), func() error {
			var err error
			conn, err = events.ConnectNATS(cfg.Events.NATS.URL)
			return err
		})
		if err != nil {
			return err
		}
		defer func() { _ = conn.Drain() }()
		sink := events.NewNATSSink(conn, cfg.Events.NATS.SubjectPrefix, logger)
		go sink.Run(ctx, bus)
		logger.Info("Forwarding events to NATS", logfields.URL(cfg.Events.NATS.URL))
	}

	var svc *preview.Service
	docs := documents.NewStore(func(path string) {
		svc.NotifyFileChanged(path, preview.Edited)
	})
	svc = preview.NewService(preview.Options{
		Config:     cfg,
		Logger:     logger,
		Recorder:   recorder,
		Bus:        bus,
		Documents:  docs,
		ScriptFile: cfg.Preview.ScriptFile,
	})
	defer svc.Close()

	if reg != nil {
		stop, err := serveMonitoring(cfg.Monitoring.Metrics, reg, svc, logger)
		if err != nil {
			return err
		}
		defer stop()
	}

	for _, dir := range dirs {
		if err := startRoot(svc, dir, "/", opts.Open); err != nil {
			return err
		}
	}
	for _, file := range files {
		if err := startRoot(svc, "", svc.EncodeLooseFile(file), opts.Open); err != nil {
			return err
		}
	}
	if len(dirs) == 0 && len(files) == 0 {
		if err := startRoot(svc, "", "/", opts.Open); err != nil {
			return err
		}
	}

	if len(dirs)+len(files) > 0 {
		w, err := watch.New(dirs, watch.DefaultDebounce, func(paths []string) {
			for _, p := range paths {
				docs.MarkSaved(p)
				svc.NotifyFileChanged(p, preview.Saved)
			}
		}, logger)
		if err != nil {
			return err
		}
		defer func() { _ = w.Close() }()
		for _, file := range files {
			if err := w.AddFile(file); err != nil {
				return err
			}
		}
		go w.Run(ctx)
	}

	<-ctx.Done()
	logger.Info("Shutdown signal received, stopping preview servers")
	return nil
}

func startRoot(svc *preview.Service, workspace, target string, open bool) error {
	if open {
		return svc.ShowPreviewInExternalBrowser(workspace, target, false)
	}
	g, err := svc.Grouping(workspace)
	if err != nil {
		return err
	}
	g.OpenServer(false)
	return nil
}

func splitRoots(roots []string) (dirs, files []string, err error) {
	seen := make(map[string]struct{}, len(roots))
	for _, r := range roots {
		abs, err := filepath.Abs(r)
		if err != nil {
			return nil, nil, ferrors.WrapError(err, ferrors.CategoryFileSystem, "failed to resolve path").
				WithContext("path", r).
				Build()
		}
		if _, dup := seen[abs]; dup {
			continue
		}
		seen[abs] = struct{}{}
		info, err := os.Stat(abs)
		if err != nil {
			return nil, nil, ferrors.WrapError(err, ferrors.CategoryNotFound, "root does not exist").
				WithContext("path", abs).
				UserAction().
				Build()
		}
		if info.IsDir() {
			dirs = append(dirs, abs)
		} else {
			files = append(files, abs)
		}
	}
	return dirs, files, nil
}

// serveMonitoring exposes metrics, health and server status on the metrics address.
func serveMonitoring(cfg config.MonitoringMetrics, reg *prom.Registry, svc *preview.Service, logger *slog.Logger) (func(), error) {
	routes := handlers.NewMonitoringHandlers(svc, logger).Routes(cfg.Path, metrics.HTTPHandler(reg))
	srv := &http.Server{Addr: cfg.Address, Handler: routes, ReadHeaderTimeout: 10 * time.Second}
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	select {
	case err := <-errCh:
		return nil, ferrors.WrapError(err, ferrors.CategoryBind, "failed to start monitoring server").
			WithContext("address", cfg.Address).
			Build()
	case <-time.After(100 * time.Millisecond):
	}
	logger.Info("Monitoring server listening", slog.String("address", cfg.Address), logfields.Path(cfg.Path))
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}, nil
}

// printEvents writes user-facing lines until the subscription ends.
func printEvents(ch <-chan events.Event, out io.Writer) {
	for evt := range ch {
		switch e := evt.(type) {
		case events.Connected:
			_, _ = fmt.Fprintf(out, "Serving %s at %s\n", workspaceLabel(e.Workspace), e.HTTPURI)
		case events.Disconnected:
			_, _ = fmt.Fprintf(out, "Stopped %s\n", workspaceLabel(e.Workspace))
		case events.BindFailed:
			_, _ = fmt.Fprintf(out, "Could not start %s server for %s on port %d: %s\n",
				e.Server, workspaceLabel(e.Workspace), e.Port, e.Error)
		case events.NonInjectableFound:
			_, _ = fmt.Fprintf(out, "Page %s cannot live reload\n", e.Path)
		}
	}
}

func workspaceLabel(ws string) string {
	if ws == "" {
		return "loose files"
	}
	return ws
}
