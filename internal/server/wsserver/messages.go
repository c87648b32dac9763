package wsserver

import "encoding/json"

// Command names on the wire.
const (
	CommandReload             = "reload"
	CommandURLCheck           = "urlCheck"
	CommandFoundNonInjectable = "foundNonInjectable"
)

// ServerMessage is sent from the server to browsers.
type ServerMessage struct {
	Command string `json:"command"`
	Path    string `json:"path,omitempty"`
}

func reloadMessage() ServerMessage { return ServerMessage{Command: CommandReload} }

func nonInjectableMessage(path string) ServerMessage {
	return ServerMessage{Command: CommandFoundNonInjectable, Path: path}
}

// ClientMessage is any message a browser may send.
type ClientMessage interface {
	isClientMessage()
}

// URLCheck asks whether the page at URL can run the live-reload client.
type URLCheck struct {
	URL string
}

func (URLCheck) isClientMessage() {}

type wireClientMessage struct {
	Command string `json:"command"`
	URL     string `json:"url"`
}

// ParseClientMessage decodes a browser message. Unknown commands yield (nil, nil) so callers
// can ignore them; malformed JSON is an error.
func ParseClientMessage(data []byte) (ClientMessage, error) {
	var wire wireClientMessage
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, err
	}
	switch wire.Command {
	case CommandURLCheck:
		if wire.URL == "" {
			return nil, nil
		}
		return URLCheck{URL: wire.URL}, nil
	default:
		return nil, nil
	}
}
