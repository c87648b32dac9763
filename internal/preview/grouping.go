package preview

import (
	"context"
	"log/slog"
	"net"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"git.home.luguber.info/inful/livepreview/internal/config"
	"git.home.luguber.info/inful/livepreview/internal/connection"
	"git.home.luguber.info/inful/livepreview/internal/content"
	"git.home.luguber.info/inful/livepreview/internal/events"
	"git.home.luguber.info/inful/livepreview/internal/launch"
	"git.home.luguber.info/inful/livepreview/internal/logfields"
	"git.home.luguber.info/inful/livepreview/internal/metrics"
	"git.home.luguber.info/inful/livepreview/internal/server/httpserver"
	"git.home.luguber.info/inful/livepreview/internal/server/netutil"
	"git.home.luguber.info/inful/livepreview/internal/server/wsserver"
)

// ChangeKind distinguishes on-disk saves from in-memory edits.
type ChangeKind int

const (
	Saved ChangeKind = iota
	Edited
)

// LaunchKind selects where a preview is shown.
type LaunchKind int

const (
	External LaunchKind = iota
	Embedded
)

// Launch is a preview request. Target is an unescaped URL path on the preview server; it is
// escaped when the launch URI is built.
type Launch struct {
	Kind   LaunchKind
	Target string
	Panel  string
	Debug  bool
}

// Grouping couples one Connection with its HTTP and WebSocket servers.
type Grouping struct {
	workspace string
	conn      *connection.Connection
	http      *httpserver.Server
	ws        *wsserver.Server
	injector  *content.Injector
	served    func(string) bool

	bus          *events.Bus
	recorder     metrics.Recorder
	launcher     launch.Launcher
	resolveURI   connection.URIResolver
	logger       *slog.Logger
	probeTimeout time.Duration
	onState      func()

	ctx    context.Context
	cancel context.CancelFunc

	mu          sync.Mutex
	generation  uint64
	startCancel context.CancelFunc
	httpBound   *netutil.Bound
	wsBound     *netutil.Bound
	pending     *Launch
	fromTask    bool
	servingRoot string
	autoRefresh config.AutoRefreshMode
	closeDelay  time.Duration
	previews    int
	closeTimer  *time.Timer
}

// Workspace returns the root this grouping serves, "" for loose files.
func (g *Grouping) Workspace() string { return g.workspace }

// Connection returns the grouping's connection state.
func (g *Grouping) Connection() *connection.Connection { return g.conn }

// WSPath is the WebSocket path browsers connect to.
func (g *Grouping) WSPath() string { return g.ws.Path() }

// OpenServer starts both listeners unless they are already up or starting. fromTask asks for a
// TaskServerReady event once connected (immediately when already connected).
func (g *Grouping) OpenServer(fromTask bool) {
	g.mu.Lock()
	switch g.conn.State() {
	case connection.Connected:
		uri := g.conn.HTTPURI()
		g.mu.Unlock()
		if fromTask {
			g.publish(events.TaskServerReady{Workspace: g.workspace, HTTPURI: uri})
		}
		return
	case connection.Connecting:
		g.fromTask = g.fromTask || fromTask
		g.mu.Unlock()
		return
	}
	g.conn.BeginConnecting()
	g.generation++
	gen := g.generation
	g.httpBound, g.wsBound = nil, nil
	g.fromTask = fromTask
	ctx, cancel := context.WithCancel(g.ctx)
	g.startCancel = cancel
	host := g.conn.Host()
	port := g.conn.DesiredHTTPPort()
	g.mu.Unlock()

	g.logger.Debug("Opening preview server", logfields.Host(host), logfields.Port(port))
	go g.start(ctx, gen, host, port)
}

func (g *Grouping) start(ctx context.Context, gen uint64, host string, port int) {
	free, err := netutil.FindFreePort(ctx, host, port, g.probeTimeout)
	if err != nil {
		g.logger.Error("No free port for preview server", logfields.Port(port), logfields.Error(err))
		g.publish(events.BindFailed{Workspace: g.workspace, Server: httpserver.ServerKind, Port: port, Error: err.Error()})
		return
	}
	go func() {
		b, err := g.http.Start(ctx, host, free)
		g.listening(gen, httpserver.ServerKind, b, err, free)
	}()
	go func() {
		b, err := g.ws.Start(ctx, host, free+1)
		g.listening(gen, wsserver.ServerKind, b, err, free+1)
	}()
}

// listening joins the two listener results. Only the call that completes the pair connects.
func (g *Grouping) listening(gen uint64, kind string, b *netutil.Bound, err error, port int) {
	g.mu.Lock()
	if gen != g.generation || g.conn.State() != connection.Connecting {
		g.mu.Unlock()
		if b != nil {
			g.closeServer(kind)
		}
		return
	}
	if err != nil {
		g.mu.Unlock()
		// the grouping stays connecting; no Connected event will follow
		g.publish(events.BindFailed{Workspace: g.workspace, Server: kind, Port: port, Error: err.Error()})
		return
	}
	if kind == httpserver.ServerKind {
		g.httpBound = b
	} else {
		g.wsBound = b
	}
	if g.httpBound == nil || g.wsBound == nil {
		g.mu.Unlock()
		return
	}
	httpBound, wsBound := g.httpBound, g.wsBound
	g.mu.Unlock()

	g.connect(gen, httpBound, wsBound)
}

func (g *Grouping) connect(gen uint64, httpBound, wsBound *netutil.Bound) {
	httpLocal := &url.URL{Scheme: "http", Host: net.JoinHostPort(httpBound.Host, strconv.Itoa(httpBound.Port))}
	wsLocal := &url.URL{Scheme: "ws", Host: net.JoinHostPort(wsBound.Host, strconv.Itoa(wsBound.Port)), Path: g.ws.Path()}
	httpURI, err := g.resolveURI(g.ctx, httpLocal)
	if err != nil {
		g.logger.Warn("External URI resolution failed, using local URI", logfields.URL(httpLocal.String()), logfields.Error(err))
		httpURI = httpLocal
	}
	wsURI, err := g.resolveURI(g.ctx, wsLocal)
	if err != nil {
		g.logger.Warn("External URI resolution failed, using local URI", logfields.URL(wsLocal.String()), logfields.Error(err))
		wsURI = wsLocal
	}

	g.mu.Lock()
	if gen != g.generation {
		g.mu.Unlock()
		return
	}
	binding := connection.Binding{
		HTTPPort: httpBound.Port,
		WSPort:   wsBound.Port,
		WSPath:   g.ws.Path(),
		HTTPURI:  strings.TrimSuffix(httpURI.String(), "/"),
		WSURI:    wsURI.String(),
	}
	if !g.conn.MarkConnected(binding) {
		g.mu.Unlock()
		return
	}
	g.ws.SetAllowedOrigin(httpURI.Scheme + "://" + httpURI.Host)
	g.injector.SetWSURL(binding.WSURI)
	pending := g.pending
	g.pending = nil
	fromTask := g.fromTask
	g.fromTask = false
	g.mu.Unlock()

	g.logger.Info("Preview server connected",
		logfields.URL(binding.HTTPURI), logfields.Port(binding.HTTPPort), logfields.WSPort(binding.WSPort))
	g.notifyState()
	g.publish(events.Connected{
		Workspace: g.workspace,
		HTTPURI:   binding.HTTPURI,
		WSURI:     binding.WSURI,
		HTTPPort:  binding.HTTPPort,
		WSPort:    binding.WSPort,
	})
	if fromTask {
		g.publish(events.TaskServerReady{Workspace: g.workspace, HTTPURI: binding.HTTPURI})
	}
	if pending != nil {
		g.dispatch(*pending, binding.HTTPURI)
	}
}

// CloseServer stops both listeners. It returns false when the grouping was already stopped.
// A start still in progress is abandoned.
func (g *Grouping) CloseServer() bool {
	g.mu.Lock()
	if g.conn.State() == connection.Disconnected {
		g.mu.Unlock()
		return false
	}
	g.generation++
	if g.startCancel != nil {
		g.startCancel()
		g.startCancel = nil
	}
	if g.closeTimer != nil {
		g.closeTimer.Stop()
		g.closeTimer = nil
	}
	g.httpBound, g.wsBound = nil, nil
	g.pending = nil
	g.fromTask = false
	prev := g.conn.MarkDisconnected()
	g.mu.Unlock()

	g.closeServer(httpserver.ServerKind)
	g.closeServer(wsserver.ServerKind)
	g.injector.SetWSURL("")
	g.notifyState()

	if prev == connection.Connected {
		g.logger.Info("Preview server closed")
		g.publish(events.Disconnected{Workspace: g.workspace})
	}
	return true
}

func (g *Grouping) closeServer(kind string) {
	var err error
	if kind == httpserver.ServerKind {
		err = g.http.Close()
	} else {
		err = g.ws.Close()
	}
	if err != nil {
		g.logger.Warn("Listener close failed", logfields.Server(kind), logfields.Error(err))
	}
}

// ShowPreview launches l now when connected; otherwise it becomes the pending launch (replacing
// any earlier one) and the server is opened.
func (g *Grouping) ShowPreview(l Launch) {
	g.mu.Lock()
	if g.conn.State() == connection.Connected {
		uri := g.conn.HTTPURI()
		g.mu.Unlock()
		g.dispatch(l, uri)
		return
	}
	g.pending = &l
	g.mu.Unlock()
	g.OpenServer(false)
}

func (g *Grouping) dispatch(l Launch, base string) {
	target := l.Target
	if !strings.HasPrefix(target, "/") {
		target = "/" + target
	}
	uri := base + (&url.URL{Path: target}).EscapedPath()
	var err error
	switch l.Kind {
	case Embedded:
		err = g.launcher.OpenEmbedded(g.ctx, uri, l.Panel)
	default:
		err = g.launcher.OpenExternal(g.ctx, uri, l.Debug)
	}
	if err != nil {
		g.logger.Warn("Preview launch failed", logfields.URL(uri), logfields.Error(err))
	}
}

// PreviewOpened records an open preview and cancels a pending keep-alive close.
func (g *Grouping) PreviewOpened() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.previews++
	if g.closeTimer != nil {
		g.closeTimer.Stop()
		g.closeTimer = nil
	}
}

// PreviewClosed schedules a close after the keep-alive delay once no preview is open. A zero
// delay keeps the server running.
func (g *Grouping) PreviewClosed() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.previews > 0 {
		g.previews--
	}
	if g.previews > 0 || g.closeDelay <= 0 {
		return
	}
	if g.closeTimer != nil {
		g.closeTimer.Stop()
	}
	var timer *time.Timer
	timer = time.AfterFunc(g.closeDelay, func() {
		g.mu.Lock()
		current := g.closeTimer == timer && g.previews == 0
		if current {
			g.closeTimer = nil
		}
		g.mu.Unlock()
		if current {
			g.logger.Debug("Keep-alive expired, closing preview server")
			g.CloseServer()
		}
	})
	g.closeTimer = timer
}

// NotifyFileChanged reloads connected browsers when absPath belongs to this grouping and the
// auto-refresh mode allows the change kind. It returns true when a reload was sent.
func (g *Grouping) NotifyFileChanged(absPath string, kind ChangeKind) bool {
	g.mu.Lock()
	mode := g.autoRefresh
	root := g.servingRoot
	g.mu.Unlock()

	switch mode {
	case config.AutoRefreshOff:
		return false
	case config.AutoRefreshOnSave:
		if kind != Saved {
			return false
		}
	}
	if g.conn.State() != connection.Connected {
		return false
	}
	if !within(root, absPath) && !g.served(absPath) {
		return false
	}
	n := g.ws.RefreshBrowsers()
	g.publish(events.ReloadSent{Workspace: g.workspace, Clients: n})
	return true
}

// RefreshBrowsers reloads every connected browser unconditionally.
func (g *Grouping) RefreshBrowsers() int {
	return g.ws.RefreshBrowsers()
}

func (g *Grouping) applySettings(mode config.AutoRefreshMode, closeDelay time.Duration) {
	g.mu.Lock()
	g.autoRefresh = mode
	g.closeDelay = closeDelay
	g.mu.Unlock()
}

// release closes the grouping for good.
func (g *Grouping) release() {
	g.CloseServer()
	g.cancel()
}

func (g *Grouping) publish(evt any) {
	if err := g.bus.Publish(g.ctx, evt); err != nil {
		g.logger.Debug("Event not delivered", logfields.Error(err))
	}
}

func (g *Grouping) notifyState() {
	if g.onState != nil {
		g.onState()
	}
}

func within(root, p string) bool {
	if root == "" {
		return false
	}
	rel, err := filepath.Rel(root, p)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
