package config

import (
	"fmt"
	"net"
	"path/filepath"
	"strings"
)

// NormalizationResult captures coercions made while normalizing.
type NormalizationResult struct {
	Warnings []string
}

func (r *NormalizationResult) warnf(format string, args ...any) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

// IsIPv4 reports whether host is a dotted-quad IPv4 literal.
func IsIPv4(host string) bool {
	ip := net.ParseIP(host)
	return ip != nil && ip.To4() != nil && strings.Count(host, ".") == 3
}

// NormalizeHost returns host when it is a valid IPv4 literal and the loopback default otherwise.
// The second return value is false when a fallback happened.
func NormalizeHost(host string) (string, bool) {
	host = strings.TrimSpace(host)
	if host == "" {
		return DefaultHost, true
	}
	if !IsIPv4(host) {
		return DefaultHost, false
	}
	return host, true
}

// Normalize canonicalizes enumerations and fills blanks in place. Relative workspace roots are
// resolved against baseDir.
func Normalize(c *Config, baseDir string) (*NormalizationResult, error) {
	res := &NormalizationResult{}

	host, ok := NormalizeHost(c.Server.Host)
	if !ok {
		res.warnf("server.host %q is not a valid IPv4 address; using %s", c.Server.Host, host)
	}
	c.Server.Host = host
	if c.Server.Port == 0 {
		c.Server.Port = DefaultPort
	}
	c.Server.WSPathPrefix = strings.Trim(strings.TrimSpace(c.Server.WSPathPrefix), "/")

	mode, err := ParseAutoRefreshMode(string(c.Preview.AutoRefresh))
	if err != nil {
		res.warnf("preview.auto_refresh %q unknown; using %s", c.Preview.AutoRefresh, AutoRefreshOnAnyChange)
		mode = AutoRefreshOnAnyChange
	}
	c.Preview.AutoRefresh = mode
	if c.Preview.CloseDelay < 0 {
		res.warnf("preview.close_delay %s is negative; keeping servers open", c.Preview.CloseDelay)
		c.Preview.CloseDelay = 0
	}
	c.Preview.ServerRoot = cleanServerRoot(c.Preview.ServerRoot)
	if f := c.Preview.ScriptFile; f != "" && !filepath.IsAbs(f) {
		c.Preview.ScriptFile = filepath.Join(baseDir, f)
	}

	for i := range c.Workspaces {
		ws := &c.Workspaces[i]
		if ws.Root != "" && !filepath.IsAbs(ws.Root) {
			ws.Root = filepath.Join(baseDir, ws.Root)
		}
		if ws.Root != "" {
			abs, err := filepath.Abs(ws.Root)
			if err == nil {
				ws.Root = abs
			}
		}
		ws.ServerRoot = cleanServerRoot(ws.ServerRoot)
	}

	lvl := NormalizeLogLevel(string(c.Monitoring.Logging.Level))
	if raw := strings.TrimSpace(string(c.Monitoring.Logging.Level)); raw != "" && raw != string(lvl) {
		res.warnf("monitoring.logging.level normalized from %q to %q", raw, lvl)
	}
	c.Monitoring.Logging.Level = lvl
	c.Monitoring.Logging.Format = NormalizeLogFormat(string(c.Monitoring.Logging.Format))
	if c.Monitoring.Metrics.Path == "" {
		c.Monitoring.Metrics.Path = DefaultMetricsPath
	} else if !strings.HasPrefix(c.Monitoring.Metrics.Path, "/") {
		c.Monitoring.Metrics.Path = "/" + c.Monitoring.Metrics.Path
	}

	c.Events.NATS.SubjectPrefix = strings.Trim(strings.TrimSpace(c.Events.NATS.SubjectPrefix), ".")
	if c.Events.NATS.SubjectPrefix == "" {
		c.Events.NATS.SubjectPrefix = DefaultSubjectPrefix
	}
	return res, nil
}

func cleanServerRoot(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return ""
	}
	p = filepath.Clean(p)
	if p == "." {
		return ""
	}
	return p
}
