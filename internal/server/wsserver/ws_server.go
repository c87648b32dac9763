// Package wsserver runs the WebSocket side of a preview grouping: it tells browsers to reload
// and answers their "can this page run the live-reload client" checks.
package wsserver

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"

	"git.home.luguber.info/inful/livepreview/internal/content"
	ferrors "git.home.luguber.info/inful/livepreview/internal/foundation/errors"
	"git.home.luguber.info/inful/livepreview/internal/logfields"
	"git.home.luguber.info/inful/livepreview/internal/metrics"
	"git.home.luguber.info/inful/livepreview/internal/resolve"
	smw "git.home.luguber.info/inful/livepreview/internal/server/middleware"
	"git.home.luguber.info/inful/livepreview/internal/server/netutil"
)

// ServerKind labels this server in logs and metrics.
const ServerKind = "ws"

// EmbeddedOriginScheme is the origin prefix of the editor's embedded preview panel.
const EmbeddedOriginScheme = "vscode-webview://"

// Options wires a Server.
type Options struct {
	Workspace  string
	Resolver   *resolve.Resolver
	Logger     *slog.Logger
	Recorder   metrics.Recorder
	PathPrefix string
	// OnNonInjectable is told about browsers that navigated to a page without the client.
	OnNonInjectable func(path string)
}

// Server accepts live-reload WebSocket connections for one grouping.
type Server struct {
	opts     Options
	logger   *slog.Logger
	recorder metrics.Recorder
	path     string
	upgrader websocket.Upgrader
	hub      *hub
	handler  http.Handler

	mu            sync.Mutex
	allowedOrigin string
	srv           *http.Server
	bound         *netutil.Bound
}

func New(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(logfields.Workspace(opts.Workspace), logfields.Server(ServerKind))

	path := "/" + uuid.NewString()
	if prefix := strings.Trim(opts.PathPrefix, "/"); prefix != "" {
		path = "/" + prefix + path
	}

	s := &Server{
		opts:     opts,
		logger:   logger,
		recorder: metrics.OrNoop(opts.Recorder),
		path:     path,
		hub:      newHub(),
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}

	router := httprouter.New()
	router.GET(path, s.handleUpgrade)
	s.handler = smw.Chain(smw.Options{Logger: logger})(router)
	return s
}

// Path is the URL path browsers connect to.
func (s *Server) Path() string { return s.path }

// Handler exposes the upgrade handler, chiefly for tests.
func (s *Server) Handler() http.Handler { return s.handler }

// SetAllowedOrigin records the external HTTP origin (scheme://host:port) once it is known.
func (s *Server) SetAllowedOrigin(origin string) {
	s.mu.Lock()
	s.allowedOrigin = strings.TrimSuffix(origin, "/")
	s.mu.Unlock()
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if strings.HasPrefix(origin, EmbeddedOriginScheme) {
		return true
	}
	s.mu.Lock()
	allowed := s.allowedOrigin
	s.mu.Unlock()
	ok := allowed != "" && origin == allowed
	if !ok {
		s.logger.Warn("Rejected WebSocket origin", logfields.Origin(origin))
	}
	return ok
}

func (s *Server) handleUpgrade(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the error response
		s.logger.Debug("WebSocket upgrade failed", logfields.Error(err))
		return
	}
	c := newClient(conn)
	if !s.hub.register(c) {
		_ = conn.Close()
		return
	}
	s.recorder.SetWSClients(s.hub.count())
	s.logger.Debug("WebSocket client connected", logfields.ClientID(c.id), logfields.RemoteAddr(r.RemoteAddr))

	go s.writePump(c)
	s.readPump(c)
}

func (s *Server) readPump(c *client) {
	defer func() {
		s.hub.unregister(c)
		_ = c.conn.Close()
		s.recorder.SetWSClients(s.hub.count())
		s.logger.Debug("WebSocket client disconnected", logfields.ClientID(c.id))
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				s.logger.Debug("WebSocket read error", logfields.ClientID(c.id), logfields.Error(err))
			}
			return
		}
		msg, err := ParseClientMessage(data)
		if err != nil {
			s.logger.Debug("Ignoring malformed WebSocket message", logfields.ClientID(c.id), logfields.Error(err))
			continue
		}
		switch m := msg.(type) {
		case URLCheck:
			s.handleURLCheck(c, m)
		}
	}
}

func (s *Server) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			data, err := json.Marshal(msg)
			if err != nil {
				continue
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleURLCheck resolves the page a browser is about to show the same way the HTTP server
// would and, when the client script cannot run there, reports the path back.
func (s *Server) handleURLCheck(c *client, m URLCheck) {
	u, err := url.Parse(m.URL)
	if err != nil {
		return
	}
	if s.injectable(u.Path) {
		return
	}
	path := u.EscapedPath()
	s.hub.sendTo(c, nonInjectableMessage(path))
	if s.opts.OnNonInjectable != nil {
		s.opts.OnNonInjectable(path)
	}
}

// injectable mirrors the HTTP server's routing: the client script itself is served raw, and
// "/" without a root is the generated no-root page.
func (s *Server) injectable(urlPath string) bool {
	switch {
	case urlPath == content.ScriptPath:
		return false
	case s.opts.Resolver.Root() == "" && urlPath == "/":
		return true
	}
	return s.opts.Resolver.Resolve(urlPath).Injectable()
}

// RefreshBrowsers tells every connected browser to reload and returns how many were told.
func (s *Server) RefreshBrowsers() int {
	n := s.hub.broadcast(reloadMessage())
	s.recorder.IncReloadBroadcast(n)
	s.logger.Debug("Reload broadcast", slog.Int("clients", n))
	return n
}

// ClientCount returns the number of connected browsers.
func (s *Server) ClientCount() int { return s.hub.count() }

// Start binds host:port with the shared retry rules and serves in the background.
func (s *Server) Start(ctx context.Context, host string, port int) (*netutil.Bound, error) {
	s.mu.Lock()
	if s.srv != nil {
		b := s.bound
		s.mu.Unlock()
		return b, nil
	}
	s.mu.Unlock()

	b, err := netutil.Listen(ctx, netutil.ListenConfig{Host: host, Port: port, OnAttempt: s.observeAttempt})
	if err != nil {
		s.logger.Error("WebSocket server failed to bind", logfields.Host(host), logfields.Port(port), logfields.Error(err))
		return nil, err
	}
	s.hub.reopen()

	srv := &http.Server{Handler: s.handler, ReadHeaderTimeout: 10 * time.Second}
	s.mu.Lock()
	s.srv = srv
	s.bound = b
	s.mu.Unlock()

	go func() {
		if err := srv.Serve(b); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("WebSocket server error", logfields.Error(err))
		}
	}()
	s.logger.Info("WebSocket server listening", logfields.Host(b.Host), logfields.WSPort(b.Port))
	return b, nil
}

func (s *Server) observeAttempt(a netutil.Attempt) {
	s.recorder.IncBindOutcome(ServerKind, a.Outcome)
	switch a.Outcome {
	case metrics.BindInUse:
		s.logger.Debug("Port in use, trying next", logfields.WSPort(a.Port))
	case metrics.BindHostFallback:
		s.logger.Warn("Host not available, falling back to loopback", logfields.Host(a.Host), logfields.Error(a.Err))
	}
}

// Close stops listening and disconnects every browser. Closing a stopped server is a no-op.
func (s *Server) Close() error {
	s.mu.Lock()
	srv := s.srv
	s.srv = nil
	s.bound = nil
	s.allowedOrigin = ""
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	s.hub.closeAll()
	s.recorder.SetWSClients(0)
	if err := srv.Close(); err != nil {
		return ferrors.WrapError(err, ferrors.CategoryNetwork, "failed to close WebSocket server").Build()
	}
	s.logger.Info("WebSocket server stopped")
	return nil
}

// Port returns the bound port, or 0 when stopped.
func (s *Server) Port() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.bound == nil {
		return 0
	}
	return s.bound.Port
}
