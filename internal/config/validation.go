package config

import (
	"path/filepath"
	"strings"

	ferrors "git.home.luguber.info/inful/livepreview/internal/foundation/errors"
)

// Validate checks a normalized configuration.
func Validate(c *Config) error {
	if c.Server.Port < 1 || c.Server.Port > 65534 {
		// the WS server starts at port+1, so the last port is not usable for HTTP
		return ferrors.ValidationError("server.port out of range").
			WithContext("port", c.Server.Port).
			WithContext("range", "1-65534").
			Build()
	}
	if err := validateServerRoot("preview.server_root", c.Preview.ServerRoot); err != nil {
		return err
	}
	seen := make(map[string]struct{}, len(c.Workspaces))
	for i, ws := range c.Workspaces {
		if ws.Root == "" {
			return ferrors.ValidationError("workspace root is required").
				WithContext("index", i).
				Build()
		}
		if _, dup := seen[ws.Root]; dup {
			return ferrors.ValidationError("duplicate workspace root").
				WithContext("root", ws.Root).
				Build()
		}
		seen[ws.Root] = struct{}{}
		if err := validateServerRoot("workspaces.server_root", ws.ServerRoot); err != nil {
			return err
		}
	}
	if c.Monitoring.Metrics.Enabled && c.Monitoring.Metrics.Address == "" {
		return ferrors.ValidationError("monitoring.metrics.address is required when metrics are enabled").Build()
	}
	if c.Events.NATS.Enabled && strings.TrimSpace(c.Events.NATS.URL) == "" {
		return ferrors.ValidationError("events.nats.url is required when NATS is enabled").Build()
	}
	return nil
}

// server roots are joined under the workspace root and must stay inside it
func validateServerRoot(field, p string) error {
	if p == "" {
		return nil
	}
	if filepath.IsAbs(p) || p == ".." || strings.HasPrefix(p, ".."+string(filepath.Separator)) {
		return ferrors.ValidationError(field+" must be a relative path inside the workspace").
			WithContext("value", p).
			Build()
	}
	return nil
}
