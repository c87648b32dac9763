package logfields

import "log/slog"

// Canonical log field name constants to avoid drift across packages.
const (
	KeyWorkspace = "workspace"
	KeyHost      = "host"
	KeyPort      = "port"
	KeyWSPort    = "ws_port"
	KeyServer    = "server"
	KeyMethod    = "method"
	KeyURL       = "url"
	KeyPath      = "path"
	KeyStatus    = "status"
	KeyEndpoint  = "endpoint"
	KeyClientID  = "client_id"
	KeyOrigin    = "origin"
	KeyError     = "error"
	KeyUserAgent = "user_agent"
	KeyRemote    = "remote_addr"
	KeyDuration  = "duration_ms"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func Workspace(root string) slog.Attr {
	if root == "" {
		return slog.String(KeyWorkspace, "<none>")
	}
	return slog.String(KeyWorkspace, root)
}
func Host(h string) slog.Attr         { return slog.String(KeyHost, h) }
func Port(p int) slog.Attr            { return slog.Int(KeyPort, p) }
func WSPort(p int) slog.Attr          { return slog.Int(KeyWSPort, p) }
func Server(kind string) slog.Attr    { return slog.String(KeyServer, kind) }
func Method(m string) slog.Attr       { return slog.String(KeyMethod, m) }
func URL(u string) slog.Attr          { return slog.String(KeyURL, u) }
func Path(p string) slog.Attr         { return slog.String(KeyPath, p) }
func Status(code int) slog.Attr       { return slog.Int(KeyStatus, code) }
func Endpoint(e string) slog.Attr     { return slog.String(KeyEndpoint, e) }
func ClientID(id string) slog.Attr    { return slog.String(KeyClientID, id) }
func Origin(o string) slog.Attr       { return slog.String(KeyOrigin, o) }
func UserAgent(ua string) slog.Attr   { return slog.String(KeyUserAgent, ua) }
func RemoteAddr(a string) slog.Attr   { return slog.String(KeyRemote, a) }
func DurationMS(ms float64) slog.Attr { return slog.Float64(KeyDuration, ms) }
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
