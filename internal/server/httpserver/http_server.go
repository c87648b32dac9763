// Package httpserver serves one preview root over HTTP: workspace files, loose-file endpoints,
// untitled documents, directory listings and the live-reload client.
package httpserver

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

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
const ServerKind = "http"

// RequestLogEntry is reported once per response.
type RequestLogEntry struct {
	Method string
	URL    string
	Status int
}

// Options wires a Server.
type Options struct {
	Workspace string
	Resolver  *resolve.Resolver
	Loader    *content.Loader
	Logger    *slog.Logger
	Recorder  metrics.Recorder
	OnRequest func(RequestLogEntry)
}

// Server is the preview HTTP server for one grouping.
type Server struct {
	opts         Options
	logger       *slog.Logger
	recorder     metrics.Recorder
	errorAdapter *ferrors.HTTPErrorAdapter
	handler      http.Handler

	mu          sync.Mutex
	srv         *http.Server
	bound       *netutil.Bound
	desiredPort int
	served      map[string]struct{}
}

// New constructs the server and its handler; nothing is bound until Start.
func New(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(logfields.Workspace(opts.Workspace), logfields.Server(ServerKind))
	s := &Server{
		opts:         opts,
		logger:       logger,
		recorder:     metrics.OrNoop(opts.Recorder),
		errorAdapter: ferrors.NewHTTPErrorAdapter(logger),
		served:       make(map[string]struct{}),
	}

	router := httprouter.New()
	router.RedirectTrailingSlash = false
	router.RedirectFixedPath = false
	router.GET("/*filepath", s.serve)
	router.HEAD("/*filepath", s.serve)

	s.handler = smw.Chain(smw.Options{
		Logger:   logger,
		Adapter:  s.errorAdapter,
		Recorder: s.recorder,
		Report:   s.report,
	})(router)
	return s
}

// Handler exposes the routed handler, chiefly for tests.
func (s *Server) Handler() http.Handler { return s.handler }

func (s *Server) report(r *http.Request, status int) {
	if s.opts.OnRequest != nil {
		s.opts.OnRequest(RequestLogEntry{Method: r.Method, URL: r.URL.RequestURI(), Status: status})
	}
}

// Start binds host:port following the netutil retry rules, resets served-file tracking and
// serves in the background. It returns once the listener is up (or has failed for good).
func (s *Server) Start(ctx context.Context, host string, port int) (*netutil.Bound, error) {
	s.mu.Lock()
	if s.srv != nil {
		b := s.bound
		s.mu.Unlock()
		return b, nil
	}
	s.desiredPort = port
	s.served = make(map[string]struct{})
	s.mu.Unlock()

	b, err := netutil.Listen(ctx, netutil.ListenConfig{Host: host, Port: port, OnAttempt: s.observeAttempt})
	if err != nil {
		s.logger.Error("HTTP server failed to bind", logfields.Host(host), logfields.Port(port), logfields.Error(err))
		return nil, err
	}

	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	s.mu.Lock()
	s.srv = srv
	s.bound = b
	s.mu.Unlock()

	go func() {
		if err := srv.Serve(b); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("HTTP server error", logfields.Error(err))
		}
	}()
	s.logger.Info("HTTP server listening", logfields.Host(b.Host), logfields.Port(b.Port))
	return b, nil
}

func (s *Server) observeAttempt(a netutil.Attempt) {
	s.recorder.IncBindOutcome(ServerKind, a.Outcome)
	switch a.Outcome {
	case metrics.BindInUse:
		s.logger.Debug("Port in use, trying next", logfields.Port(a.Port))
	case metrics.BindHostFallback:
		s.logger.Warn("Host not available, falling back to loopback", logfields.Host(a.Host), logfields.Error(a.Err))
	}
}

// Close stops listening and drops open connections. Closing a stopped server is a no-op.
func (s *Server) Close() error {
	s.mu.Lock()
	srv := s.srv
	s.srv = nil
	s.bound = nil
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	if err := srv.Close(); err != nil {
		return ferrors.WrapError(err, ferrors.CategoryNetwork, "failed to close HTTP server").Build()
	}
	s.logger.Info("HTTP server stopped")
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

// DesiredPort is the port the last Start was asked for.
func (s *Server) DesiredPort() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.desiredPort
}

// HasServed reports whether absPath was streamed since the last Start.
func (s *Server) HasServed(absPath string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.served[absPath]
	return ok
}

func (s *Server) markServed(absPath string) {
	s.mu.Lock()
	s.served[absPath] = struct{}{}
	s.mu.Unlock()
}
