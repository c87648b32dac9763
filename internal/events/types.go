package events

// Event is implemented by every notification published on the bus. Kind names the
// event in external sinks.
type Event interface {
	Kind() string
}

// Connected fires once both the HTTP and the WS listener of a grouping are up.
type Connected struct {
	Workspace string `json:"workspace"`
	HTTPURI   string `json:"http_uri"`
	WSURI     string `json:"ws_uri"`
	HTTPPort  int    `json:"http_port"`
	WSPort    int    `json:"ws_port"`
}

// Disconnected fires when a connected grouping closes its listeners.
type Disconnected struct {
	Workspace string `json:"workspace"`
}

// RequestLogged is emitted for every HTTP response.
type RequestLogged struct {
	Workspace string `json:"workspace"`
	Method    string `json:"method"`
	URL       string `json:"url"`
	Status    int    `json:"status"`
}

// NonInjectableFound tells an embedding panel the browser navigated to a page that cannot
// report its own location.
type NonInjectableFound struct {
	Workspace string `json:"workspace"`
	Path      string `json:"path"`
}

// ReloadSent records one reload broadcast.
type ReloadSent struct {
	Workspace string `json:"workspace"`
	Clients   int    `json:"clients"`
}

// TaskServerReady answers a server start requested by a task runner.
type TaskServerReady struct {
	Workspace string `json:"workspace"`
	HTTPURI   string `json:"http_uri"`
}

// BindFailed reports a listener that could not be bound and will not retry.
type BindFailed struct {
	Workspace string `json:"workspace"`
	Server    string `json:"server"`
	Port      int    `json:"port"`
	Error     string `json:"error"`
}

func (Connected) Kind() string          { return "connected" }
func (Disconnected) Kind() string       { return "disconnected" }
func (RequestLogged) Kind() string      { return "request" }
func (NonInjectableFound) Kind() string { return "non_injectable" }
func (ReloadSent) Kind() string         { return "reload" }
func (TaskServerReady) Kind() string    { return "task_ready" }
func (BindFailed) Kind() string         { return "bind_failed" }
