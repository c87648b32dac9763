package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"

	"git.home.luguber.info/inful/livepreview/internal/connection"
	ferrors "git.home.luguber.info/inful/livepreview/internal/foundation/errors"
	"git.home.luguber.info/inful/livepreview/internal/preview"
	"git.home.luguber.info/inful/livepreview/internal/server/responses"
	"git.home.luguber.info/inful/livepreview/internal/version"
)

const (
	HealthPath = "/healthz"
	StatusPath = "/status"
)

// StatusSource reports the preview servers.
type StatusSource interface {
	Snapshot() []preview.ServerSnapshot
}

// MonitoringHandlers contains monitoring-related HTTP handlers.
type MonitoringHandlers struct {
	source       StatusSource
	start        time.Time
	errorAdapter *ferrors.HTTPErrorAdapter
	now          func() time.Time
}

func NewMonitoringHandlers(source StatusSource, logger *slog.Logger) *MonitoringHandlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &MonitoringHandlers{
		source:       source,
		start:        time.Now(),
		errorAdapter: ferrors.NewHTTPErrorAdapter(logger),
		now:          time.Now,
	}
}

// Routes mounts health, status and (when non-nil) the metrics handler at metricsPath.
func (h *MonitoringHandlers) Routes(metricsPath string, metricsHandler http.Handler) http.Handler {
	r := httprouter.New()
	r.GET(HealthPath, h.HandleHealthCheck)
	r.GET(StatusPath, h.HandleStatus)
	if metricsHandler != nil {
		r.Handler(http.MethodGet, metricsPath, metricsHandler)
	}
	return r
}

// HandleHealthCheck handles the health check endpoint.
func (h *MonitoringHandlers) HandleHealthCheck(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	connected := 0
	for _, s := range h.source.Snapshot() {
		if s.State == connection.Connected {
			connected++
		}
	}
	health := &responses.HealthResponse{
		Status:    "healthy",
		Timestamp: h.now().UTC(),
		Version:   version.Version,
		Uptime:    h.now().Sub(h.start).Seconds(),
		Connected: connected,
	}
	if err := writeJSON(w, r, http.StatusOK, health); err != nil {
		h.errorAdapter.WriteErrorResponse(w, r,
			ferrors.WrapError(err, ferrors.CategoryInternal, "failed to write health response").Build())
	}
}

// HandleStatus lists every preview server.
func (h *MonitoringHandlers) HandleStatus(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	snap := h.source.Snapshot()
	resp := &responses.StatusResponse{
		Timestamp: h.now().UTC(),
		Servers:   make([]responses.ServerStatus, 0, len(snap)),
	}
	for _, s := range snap {
		resp.Servers = append(resp.Servers, responses.ServerStatus{
			Workspace: s.Workspace,
			State:     s.State.String(),
			HTTPURI:   s.HTTPURI,
			WSURI:     s.WSURI,
			HTTPPort:  s.HTTPPort,
			WSPort:    s.WSPort,
			Clients:   s.Clients,
		})
	}
	if err := writeJSON(w, r, http.StatusOK, resp); err != nil {
		h.errorAdapter.WriteErrorResponse(w, r,
			ferrors.WrapError(err, ferrors.CategoryInternal, "failed to write status response").Build())
	}
}
