package content

import (
	_ "embed"
	"fmt"
	"os"
	"strings"
	"sync"

	ferrors "git.home.luguber.info/inful/livepreview/internal/foundation/errors"
)

// ScriptPath is the reserved URL path that serves the live-reload client.
const ScriptPath = "/___livepreview_injected_script"

// wsURLToken is replaced by the WebSocket URL in the script template.
const wsURLToken = "${WS_URL}"

//go:embed inject_script.js
var defaultTemplate string

// Injector renders the live-reload client. The template is read once; the WebSocket URL is
// rebound whenever the WS listener settles on its final port.
type Injector struct {
	template string

	mu    sync.RWMutex
	wsURL string
}

// NewInjector uses the built-in client script.
func NewInjector() *Injector {
	return &Injector{template: defaultTemplate}
}

// NewInjectorFromFile reads a custom script template from disk.
func NewInjectorFromFile(path string) (*Injector, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryConfig, "read injected script template").
			WithContext("path", path).
			Build()
	}
	if !strings.Contains(string(data), wsURLToken) {
		return nil, ferrors.ConfigError("injected script template has no WebSocket URL placeholder").
			WithContext("path", path).
			WithContext("placeholder", wsURLToken).
			Build()
	}
	return &Injector{template: string(data)}, nil
}

// SetWSURL binds the WebSocket URL clients connect to, e.g. ws://127.0.0.1:3001/abc.
func (i *Injector) SetWSURL(u string) {
	i.mu.Lock()
	i.wsURL = u
	i.mu.Unlock()
}

// WSURL returns the currently bound WebSocket URL.
func (i *Injector) WSURL() string {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.wsURL
}

// Script returns the client JavaScript with the WebSocket URL substituted.
func (i *Injector) Script() string {
	return strings.ReplaceAll(i.template, wsURLToken, i.WSURL())
}

// Tag is the markup prepended to every injectable response.
func (i *Injector) Tag() string {
	return fmt.Sprintf("<script type=\"text/javascript\" src=\"%s\"></script>\n", ScriptPath)
}
