package metrics

import "time"

// BindOutcome labels the result of one listen attempt.
type BindOutcome string

const (
	BindOK           BindOutcome = "ok"
	BindInUse        BindOutcome = "in_use"
	BindHostFallback BindOutcome = "host_fallback"
	BindFailed       BindOutcome = "failed"
)

// PageKind labels synthesized pages.
type PageKind string

const (
	PageIndex        PageKind = "index"
	PageDoesNotExist PageKind = "not_found"
	PageNoRoot       PageKind = "no_root"
)

// Recorder defines observability hooks for the HTTP/WS servers and their lifecycle.
type Recorder interface {
	ObserveRequest(method string, status int, d time.Duration)
	IncBindOutcome(server string, outcome BindOutcome)
	IncPageGenerated(kind PageKind)
	IncReloadBroadcast(clients int)
	SetWSClients(n int)
	SetConnectedServers(n int)
}

// NoopRecorder is a Recorder that does nothing (default when metrics not configured).
type NoopRecorder struct{}

func (NoopRecorder) ObserveRequest(string, int, time.Duration) {}
func (NoopRecorder) IncBindOutcome(string, BindOutcome)        {}
func (NoopRecorder) IncPageGenerated(PageKind)                 {}
func (NoopRecorder) IncReloadBroadcast(int)                    {}
func (NoopRecorder) SetWSClients(int)                          {}
func (NoopRecorder) SetConnectedServers(int)                   {}

// OrNoop returns r, or NoopRecorder when r is nil.
func OrNoop(r Recorder) Recorder {
	if r == nil {
		return NoopRecorder{}
	}
	return r
}
