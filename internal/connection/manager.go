package connection

import (
	"log/slog"
	"sort"
	"sync"

	"git.home.luguber.info/inful/livepreview/internal/config"
	"git.home.luguber.info/inful/livepreview/internal/logfields"
)

// Settings are the global defaults seeded into new connections.
type Settings struct {
	Host string
	Port int
}

// Notifier surfaces one-off user-visible notices.
type Notifier interface {
	Warn(message string)
}

// LogNotifier writes notices to a logger.
type LogNotifier struct{ Logger *slog.Logger }

func (n LogNotifier) Warn(message string) {
	logger := n.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Warn(message)
}

// Manager owns the workspace -> Connection map.
type Manager struct {
	logger   *slog.Logger
	notifier Notifier

	mu         sync.Mutex
	settings   Settings
	conns      map[string]*Connection
	warnedHost string
}

func NewManager(settings Settings, logger *slog.Logger, notifier Notifier) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	if notifier == nil {
		notifier = LogNotifier{Logger: logger}
	}
	m := &Manager{logger: logger, notifier: notifier, conns: make(map[string]*Connection)}
	m.settings = m.validate(settings)
	return m
}

// validate falls back to loopback for a host that is not IPv4, warning once per bad value.
func (m *Manager) validate(s Settings) Settings {
	host, ok := config.NormalizeHost(s.Host)
	if !ok {
		if m.warnedHost != s.Host {
			m.warnedHost = s.Host
			m.notifier.Warn("Configured host \"" + s.Host + "\" is not a valid IPv4 address; using " + host)
		}
	} else {
		m.warnedHost = ""
	}
	s.Host = host
	if s.Port <= 0 {
		s.Port = config.DefaultPort
	}
	return s
}

// Settings returns the current validated settings.
func (m *Manager) Settings() Settings {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.settings
}

// Connection returns the connection for workspace, creating and seeding it on first use.
func (m *Manager) Connection(workspace string) *Connection {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.conns[workspace]; ok {
		return c
	}
	c := New(workspace, m.settings.Host, m.settings.Port)
	m.conns[workspace] = c
	m.logger.Debug("Connection created", logfields.Workspace(workspace),
		logfields.Host(m.settings.Host), logfields.Port(m.settings.Port))
	return c
}

// Lookup returns an existing connection.
func (m *Manager) Lookup(workspace string) (*Connection, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.conns[workspace]
	return c, ok
}

// Remove forgets a workspace's connection.
func (m *Manager) Remove(workspace string) {
	m.mu.Lock()
	delete(m.conns, workspace)
	m.mu.Unlock()
}

// Connections returns every connection ordered by workspace.
func (m *Manager) Connections() []*Connection {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Connection, 0, len(m.conns))
	for _, c := range m.conns {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].workspace < out[j].workspace })
	return out
}

// UpdateSettings pushes new desired host/port into every existing connection. Running servers
// are not restarted; the change applies on their next open.
func (m *Manager) UpdateSettings(s Settings) {
	m.mu.Lock()
	m.settings = m.validate(s)
	settings := m.settings
	conns := make([]*Connection, 0, len(m.conns))
	for _, c := range m.conns {
		conns = append(conns, c)
	}
	m.mu.Unlock()

	for _, c := range conns {
		c.SetDesired(settings.Host, settings.Port)
	}
	m.logger.Debug("Connection settings updated", logfields.Host(settings.Host), logfields.Port(settings.Port))
}
