// Package connection tracks the desired and actual listener state of each preview workspace.
package connection

import (
	"context"
	"net/url"
	"sync"
)

// State is the lifecycle state of a Connection.
type State int

const (
	Disconnected State = iota
	Connecting
	Connected
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	default:
		return "disconnected"
	}
}

// URIResolver maps a local listener URI to the URI a browser should use.
type URIResolver func(ctx context.Context, local *url.URL) (*url.URL, error)

// IdentityResolver returns local unchanged, except that a wildcard host is shown as loopback.
func IdentityResolver(_ context.Context, local *url.URL) (*url.URL, error) {
	u := *local
	if u.Hostname() == "0.0.0.0" {
		u.Host = "127.0.0.1:" + u.Port()
	}
	return &u, nil
}

// Connection is one workspace's (host, port pair) binding. Actual ports only mean something
// while Connected; leaving Connected resets them to the desired values so the next start
// retries from the configured port.
type Connection struct {
	workspace string

	mu              sync.RWMutex
	state           State
	host            string
	desiredHTTPPort int
	desiredWSPort   int
	httpPort        int
	wsPort          int
	wsPath          string
	httpURI         string
	wsURI           string
}

// New creates a disconnected Connection whose WS port defaults to httpPort+1.
func New(workspace, host string, httpPort int) *Connection {
	c := &Connection{workspace: workspace}
	c.setDesiredLocked(host, httpPort)
	c.resetLocked()
	return c
}

// Workspace is the root this connection serves, "" for the loose-file workspace.
func (c *Connection) Workspace() string { return c.workspace }

func (c *Connection) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

func (c *Connection) Host() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.host
}

func (c *Connection) DesiredHTTPPort() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.desiredHTTPPort
}

func (c *Connection) DesiredWSPort() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.desiredWSPort
}

// HTTPPort is the bound port while connected, the desired port otherwise.
func (c *Connection) HTTPPort() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.httpPort
}

// WSPort is the bound port while connected, the desired port otherwise.
func (c *Connection) WSPort() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.wsPort
}

func (c *Connection) WSPath() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.wsPath
}

// HTTPURI is the externally resolved HTTP base URI, empty unless connected.
func (c *Connection) HTTPURI() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.httpURI
}

// WSURI is the externally resolved WebSocket URI, empty unless connected.
func (c *Connection) WSURI() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.wsURI
}

// SetDesired records new pending settings. A running connection keeps its actual ports; the
// values apply on the next start.
func (c *Connection) SetDesired(host string, httpPort int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setDesiredLocked(host, httpPort)
	if c.state == Disconnected {
		c.resetLocked()
	}
}

// BeginConnecting moves Disconnected to Connecting. It reports false in any other state.
func (c *Connection) BeginConnecting() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != Disconnected {
		return false
	}
	c.state = Connecting
	return true
}

// Binding is what a connection learned once both listeners came up.
type Binding struct {
	HTTPPort int
	WSPort   int
	WSPath   string
	HTTPURI  string
	WSURI    string
}

// MarkConnected moves Connecting to Connected. It reports false in any other state.
func (c *Connection) MarkConnected(b Binding) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != Connecting {
		return false
	}
	c.state = Connected
	c.httpPort = b.HTTPPort
	c.wsPort = b.WSPort
	c.wsPath = b.WSPath
	c.httpURI = b.HTTPURI
	c.wsURI = b.WSURI
	return true
}

// MarkDisconnected returns to Disconnected and resets actual ports to the desired ones. It
// returns the state it left.
func (c *Connection) MarkDisconnected() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	prev := c.state
	c.state = Disconnected
	c.resetLocked()
	return prev
}

func (c *Connection) setDesiredLocked(host string, httpPort int) {
	c.host = host
	c.desiredHTTPPort = httpPort
	c.desiredWSPort = httpPort + 1
}

func (c *Connection) resetLocked() {
	c.httpPort = c.desiredHTTPPort
	c.wsPort = c.desiredWSPort
	c.wsPath = ""
	c.httpURI = ""
	c.wsURI = ""
}
