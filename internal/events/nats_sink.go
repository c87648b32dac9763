package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	ferrors "git.home.luguber.info/inful/livepreview/internal/foundation/errors"
	"git.home.luguber.info/inful/livepreview/internal/logfields"
)

// Publisher is the subset of *nats.Conn the sink uses.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// Envelope is the JSON document written to NATS.
type Envelope struct {
	Kind string    `json:"kind"`
	Time time.Time `json:"time"`
	Data Event     `json:"data"`
}

// NATSSink forwards bus events to <prefix>.<kind> subjects.
type NATSSink struct {
	pub    Publisher
	prefix string
	logger *slog.Logger
	now    func() time.Time
}

// ConnectNATS dials url with reconnects enabled.
func ConnectNATS(url string) (*nats.Conn, error) {
	conn, err := nats.Connect(url,
		nats.Name("livepreview"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryNetwork, "failed to connect to NATS").
			WithContext("url", url).
			Build()
	}
	return conn, nil
}

func NewNATSSink(pub Publisher, prefix string, logger *slog.Logger) *NATSSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &NATSSink{pub: pub, prefix: prefix, logger: logger, now: time.Now}
}

// Subject returns the subject an event is published on.
func (s *NATSSink) Subject(evt Event) string {
	return s.prefix + "." + evt.Kind()
}

// Forward publishes a single event.
func (s *NATSSink) Forward(evt Event) error {
	data, err := json.Marshal(Envelope{Kind: evt.Kind(), Time: s.now().UTC(), Data: evt})
	if err != nil {
		return ferrors.WrapError(err, ferrors.CategoryInternal, "failed to encode event").Build()
	}
	if err := s.pub.Publish(s.Subject(evt), data); err != nil {
		return ferrors.WrapError(err, ferrors.CategoryNetwork, "failed to publish event").
			WithContext("subject", s.Subject(evt)).
			Build()
	}
	return nil
}

// Run forwards every bus event until ctx is done or the bus closes.
func (s *NATSSink) Run(ctx context.Context, bus *Bus) {
	ch, unsubscribe := Subscribe[Event](bus, 64)
	defer unsubscribe()
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-ch:
			if !ok {
				return
			}
			if err := s.Forward(evt); err != nil {
				s.logger.Warn("Event forward failed", slog.String("kind", evt.Kind()), logfields.Error(err))
			}
		}
	}
}
