// Package middleware provides HTTP middleware for request logging, request-log reporting and
// panic recovery shared by the preview HTTP and WebSocket servers.
package middleware

import (
	"bufio"
	"log/slog"
	"net"
	"net/http"
	"time"

	ferrors "git.home.luguber.info/inful/livepreview/internal/foundation/errors"
	"git.home.luguber.info/inful/livepreview/internal/logfields"
	"git.home.luguber.info/inful/livepreview/internal/metrics"
)

// ReportFunc receives the final status of every request.
type ReportFunc func(r *http.Request, status int)

// Options configures Chain. Zero values are valid.
type Options struct {
	Logger   *slog.Logger
	Adapter  *ferrors.HTTPErrorAdapter
	Recorder metrics.Recorder
	Report   ReportFunc
}

// Chain returns a middleware wrapper that applies logging, reporting and panic recovery.
func Chain(opts Options) func(http.Handler) http.Handler {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Adapter == nil {
		opts.Adapter = ferrors.NewHTTPErrorAdapter(opts.Logger)
	}
	opts.Recorder = metrics.OrNoop(opts.Recorder)
	return func(next http.Handler) http.Handler {
		return loggingMiddleware(opts, panicRecoveryMiddleware(opts.Logger, opts.Adapter, next))
	}
}

// loggingMiddleware logs method, url, status and duration, then reports the outcome.
func loggingMiddleware(opts Options, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapped, r)
		duration := time.Since(start)
		status := wrapped.loggedStatus()

		level := slog.LevelDebug
		if status >= http.StatusInternalServerError {
			level = slog.LevelWarn
		}
		opts.Logger.Log(r.Context(), level, "HTTP request",
			logfields.Method(r.Method),
			logfields.URL(r.URL.RequestURI()),
			logfields.Status(status),
			logfields.DurationMS(float64(duration.Microseconds())/1000),
			logfields.UserAgent(r.UserAgent()),
			logfields.RemoteAddr(r.RemoteAddr))
		opts.Recorder.ObserveRequest(r.Method, status, duration)
		if opts.Report != nil {
			opts.Report(r, status)
		}
	})
}

// panicRecoveryMiddleware recovers from panics and writes a structured error response.
func panicRecoveryMiddleware(logger *slog.Logger, adapter *ferrors.HTTPErrorAdapter, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				logger.Error("HTTP handler panic",
					slog.Any("panic", rec),
					logfields.Path(r.URL.Path),
					logfields.Method(r.Method),
					logfields.RemoteAddr(r.RemoteAddr))

				panicErr := ferrors.InternalError("internal server error").
					WithContext("path", r.URL.Path).
					WithContext("method", r.Method).
					Build()

				status := adapter.WriteErrorResponse(w, r, panicErr)
				MarkStatus(w, status)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// MarkStatus overrides the status reported for a request whose headers were already sent,
// e.g. a stream that failed halfway. It is a no-op outside Chain.
func MarkStatus(w http.ResponseWriter, status int) {
	if rw, ok := w.(*responseWriter); ok {
		rw.override = status
	}
}

// responseWriter captures status codes for logging.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
	override   int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) loggedStatus() int {
	if rw.override != 0 {
		return rw.override
	}
	return rw.statusCode
}

func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Hijack lets WebSocket upgrades pass through the chain.
func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := rw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, http.ErrNotSupported
	}
	rw.statusCode = http.StatusSwitchingProtocols
	return h.Hijack()
}

func (rw *responseWriter) Unwrap() http.ResponseWriter { return rw.ResponseWriter }
