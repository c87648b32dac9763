// Package preview is the root of the live preview runtime. A Service owns the connection
// manager, the loose-file endpoint registry and one Grouping (HTTP + WebSocket server pair) per
// workspace, and tears them down in reverse creation order.
package preview

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"git.home.luguber.info/inful/livepreview/internal/config"
	"git.home.luguber.info/inful/livepreview/internal/connection"
	"git.home.luguber.info/inful/livepreview/internal/content"
	"git.home.luguber.info/inful/livepreview/internal/documents"
	"git.home.luguber.info/inful/livepreview/internal/endpoint"
	"git.home.luguber.info/inful/livepreview/internal/events"
	ferrors "git.home.luguber.info/inful/livepreview/internal/foundation/errors"
	"git.home.luguber.info/inful/livepreview/internal/launch"
	"git.home.luguber.info/inful/livepreview/internal/logfields"
	"git.home.luguber.info/inful/livepreview/internal/metrics"
	"git.home.luguber.info/inful/livepreview/internal/resolve"
	"git.home.luguber.info/inful/livepreview/internal/server/httpserver"
	"git.home.luguber.info/inful/livepreview/internal/server/netutil"
	"git.home.luguber.info/inful/livepreview/internal/server/wsserver"
)

// Options wires a Service. Only Config is required.
type Options struct {
	Config      *config.Config
	Logger      *slog.Logger
	Recorder    metrics.Recorder
	Bus         *events.Bus
	Launcher    launch.Launcher
	URIResolver connection.URIResolver
	Documents   documents.Lookup
	Notifier    connection.Notifier
	// ScriptFile optionally replaces the built-in live-reload client.
	ScriptFile string
	// ProbeTimeout bounds each free-port probe; defaults to netutil.ProbeTimeout.
	ProbeTimeout time.Duration
}

// Service is the process-wide preview runtime.
type Service struct {
	logger   *slog.Logger
	recorder metrics.Recorder
	bus      *events.Bus
	launcher launch.Launcher
	resolver connection.URIResolver
	docs     documents.Lookup
	codec    *endpoint.Codec
	manager  *connection.Manager
	probe    time.Duration
	script   string

	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	cfg       *config.Config
	groupings map[string]*Grouping
	order     []string
	closed    bool
}

func NewService(opts Options) *Service {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Launcher == nil {
		opts.Launcher = launch.NewBrowser(logger)
	}
	if opts.URIResolver == nil {
		opts.URIResolver = connection.IdentityResolver
	}
	if opts.Documents == nil {
		opts.Documents = documents.Empty{}
	}
	if opts.ProbeTimeout <= 0 {
		opts.ProbeTimeout = netutil.ProbeTimeout
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Service{
		logger:    logger,
		recorder:  metrics.OrNoop(opts.Recorder),
		bus:       opts.Bus,
		launcher:  opts.Launcher,
		resolver:  opts.URIResolver,
		docs:      opts.Documents,
		codec:     endpoint.NewCodec(),
		manager:   connection.NewManager(connection.Settings{Host: cfg.Server.Host, Port: cfg.Server.Port}, logger, opts.Notifier),
		probe:     opts.ProbeTimeout,
		script:    opts.ScriptFile,
		ctx:       ctx,
		cancel:    cancel,
		cfg:       cfg,
		groupings: make(map[string]*Grouping),
	}
}

// Manager exposes the connection manager.
func (s *Service) Manager() *connection.Manager { return s.manager }

// Codec exposes the loose-file endpoint registry shared by every grouping.
func (s *Service) Codec() *endpoint.Codec { return s.codec }

// Grouping returns the grouping for workspace ("" for loose files), creating it on first use.
func (s *Service) Grouping(workspace string) (*Grouping, error) {
	if workspace != "" {
		workspace = filepath.Clean(workspace)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	if g, ok := s.groupings[workspace]; ok {
		return g, nil
	}
	g, err := s.newGroupingLocked(workspace)
	if err != nil {
		return nil, err
	}
	s.groupings[workspace] = g
	s.order = append(s.order, workspace)
	return g, nil
}

func (s *Service) newGroupingLocked(workspace string) (*Grouping, error) {
	injector := content.NewInjector()
	if s.script != "" {
		var err error
		if injector, err = content.NewInjectorFromFile(s.script); err != nil {
			return nil, err
		}
	}

	servingRoot := workspace
	if workspace != "" {
		if sub := s.cfg.ServerRootFor(workspace); sub != "" {
			servingRoot = filepath.Join(workspace, sub)
		}
	}
	logger := s.logger.With(logfields.Workspace(workspace))
	res := resolve.New(servingRoot, s.codec, s.docs)
	loader := content.NewLoader(injector, s.docs, s.recorder)
	gctx, gcancel := context.WithCancel(s.ctx)

	g := &Grouping{
		workspace:    workspace,
		conn:         s.manager.Connection(workspace),
		injector:     injector,
		bus:          s.bus,
		recorder:     s.recorder,
		launcher:     s.launcher,
		resolveURI:   s.resolver,
		logger:       logger,
		probeTimeout: s.probe,
		onState:      s.updateConnectedGauge,
		ctx:          gctx,
		cancel:       gcancel,
		servingRoot:  servingRoot,
		autoRefresh:  s.cfg.Preview.AutoRefresh,
		closeDelay:   s.cfg.Preview.CloseDelay,
	}
	g.http = httpserver.New(httpserver.Options{
		Workspace: workspace,
		Resolver:  res,
		Loader:    loader,
		Logger:    s.logger,
		Recorder:  s.recorder,
		OnRequest: func(e httpserver.RequestLogEntry) {
			g.publish(events.RequestLogged{Workspace: workspace, Method: e.Method, URL: e.URL, Status: e.Status})
		},
	})
	g.served = g.http.HasServed
	g.ws = wsserver.New(wsserver.Options{
		Workspace:  workspace,
		Resolver:   res,
		Logger:     s.logger,
		Recorder:   s.recorder,
		PathPrefix: s.cfg.Server.WSPathPrefix,
		OnNonInjectable: func(path string) {
			g.publish(events.NonInjectableFound{Workspace: workspace, Path: path})
		},
	})
	return g, nil
}

// Groupings returns every grouping in creation order.
func (s *Service) Groupings() []*Grouping {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Grouping, 0, len(s.order))
	for _, ws := range s.order {
		out = append(out, s.groupings[ws])
	}
	return out
}

// TargetFor returns the unescaped URL path that serves absPath from workspace's grouping: a
// path below the serving root, or a loose-file endpoint otherwise.
func (s *Service) TargetFor(workspace, absPath string) string {
	if workspace != "" {
		workspace = filepath.Clean(workspace)
	}
	s.mu.Lock()
	g, ok := s.groupings[workspace]
	s.mu.Unlock()
	if ok && within(g.servingRoot, absPath) {
		rel, _ := filepath.Rel(g.servingRoot, absPath)
		if rel == "." {
			return "/"
		}
		return "/" + filepath.ToSlash(rel)
	}
	return s.EncodeLooseFile(absPath)
}

// EncodeLooseFile registers absPath's parent as a loose-file endpoint and returns its URL path.
func (s *Service) EncodeLooseFile(absPath string) string {
	return s.codec.Encode(absPath)
}

// ShowPreviewInExternalBrowser opens target (a URL path) in the system browser once the
// workspace's server is connected.
func (s *Service) ShowPreviewInExternalBrowser(workspace, target string, debug bool) error {
	g, err := s.Grouping(workspace)
	if err != nil {
		return err
	}
	g.ShowPreview(Launch{Kind: External, Target: target, Debug: debug})
	return nil
}

// CreateOrShowEmbeddedPreview shows target in the named embedded panel once connected.
func (s *Service) CreateOrShowEmbeddedPreview(workspace, target, panel string) error {
	g, err := s.Grouping(workspace)
	if err != nil {
		return err
	}
	g.ShowPreview(Launch{Kind: Embedded, Target: target, Panel: panel})
	return nil
}

// NotifyFileChanged fans a change out to every grouping and returns how many reloaded.
func (s *Service) NotifyFileChanged(absPath string, kind ChangeKind) int {
	n := 0
	for _, g := range s.Groupings() {
		if g.NotifyFileChanged(absPath, kind) {
			n++
		}
	}
	return n
}

// UpdateSettings applies new configuration. Host and port only affect the next server start.
func (s *Service) UpdateSettings(cfg *config.Config) {
	s.mu.Lock()
	s.cfg = cfg
	s.mu.Unlock()
	s.manager.UpdateSettings(connection.Settings{Host: cfg.Server.Host, Port: cfg.Server.Port})
	for _, g := range s.Groupings() {
		g.applySettings(cfg.Preview.AutoRefresh, cfg.Preview.CloseDelay)
	}
}

func (s *Service) updateConnectedGauge() {
	n := 0
	for _, c := range s.manager.Connections() {
		if c.State() == connection.Connected {
			n++
		}
	}
	s.recorder.SetConnectedServers(n)
}

// Close tears down every grouping in reverse creation order. It is safe to call twice.
func (s *Service) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	order := make([]*Grouping, 0, len(s.order))
	for i := len(s.order) - 1; i >= 0; i-- {
		order = append(order, s.groupings[s.order[i]])
	}
	s.mu.Unlock()

	for _, g := range order {
		g.release()
		s.manager.Remove(g.workspace)
	}
	s.cancel()
	s.logger.Info("Preview service stopped", slog.Int("groupings", len(order)))
}

// ErrClosed is returned by Service operations after Close.
var ErrClosed = ferrors.RuntimeError("preview service is closed").Build()

// ServerSnapshot is a point-in-time view of one grouping.
type ServerSnapshot struct {
	Workspace string
	State     connection.State
	HTTPURI   string
	WSURI     string
	HTTPPort  int
	WSPort    int
	Clients   int
}

// Snapshot reports every grouping in creation order.
func (s *Service) Snapshot() []ServerSnapshot {
	groupings := s.Groupings()
	out := make([]ServerSnapshot, 0, len(groupings))
	for _, g := range groupings {
		c := g.Connection()
		out = append(out, ServerSnapshot{
			Workspace: g.Workspace(),
			State:     c.State(),
			HTTPURI:   c.HTTPURI(),
			WSURI:     c.WSURI(),
			HTTPPort:  c.HTTPPort(),
			WSPort:    c.WSPort(),
			Clients:   g.ws.ClientCount(),
		})
	}
	return out
}
