// Package retry provides the backoff policy used for start-up connections to external services.
package retry

import (
	"context"
	"time"

	ferrors "git.home.luguber.info/inful/livepreview/internal/foundation/errors"
)

// Mode selects how the delay grows between attempts.
type Mode string

const (
	Fixed       Mode = "fixed"
	Linear      Mode = "linear"
	Exponential Mode = "exponential"
)

// Policy encapsulates retry/backoff settings for transient failures.
// It is immutable after construction.
type Policy struct {
	Mode       Mode
	Initial    time.Duration // base delay
	Max        time.Duration // cap for growth
	MaxRetries int           // maximum retry attempts after the first failure
}

// DefaultPolicy is exponential from 500ms, capped at 5s, with 3 retries.
func DefaultPolicy() Policy {
	return Policy{Mode: Exponential, Initial: 500 * time.Millisecond, Max: 5 * time.Second, MaxRetries: 3}
}

// NewPolicy builds a policy; zero or unknown values fall back to defaults.
func NewPolicy(mode Mode, initial, maxDuration time.Duration, maxRetries int) Policy {
	p := DefaultPolicy()
	if maxRetries >= 0 {
		p.MaxRetries = maxRetries
	}
	if initial > 0 {
		p.Initial = initial
	}
	if maxDuration > 0 {
		p.Max = maxDuration
	}
	switch mode {
	case Fixed, Linear, Exponential:
		p.Mode = mode
	}
	if p.Initial > p.Max {
		p.Initial = p.Max
	}
	return p
}

// Delay returns the wait before retry n (1-based).
func (p Policy) Delay(n int) time.Duration {
	if n <= 0 {
		return 0
	}
	var d time.Duration
	switch p.Mode {
	case Fixed:
		return p.Initial
	case Exponential:
		if n > 32 {
			return p.Max
		}
		d = p.Initial << (n - 1)
		if d <= 0 {
			return p.Max
		}
	default:
		d = time.Duration(n) * p.Initial
	}
	if d > p.Max {
		return p.Max
	}
	return d
}

func (p Policy) Validate() error {
	if p.Initial <= 0 || p.Max <= 0 {
		return ferrors.ValidationError("retry delays must be positive").
			WithContext("initial", p.Initial.String()).
			WithContext("max", p.Max.String()).
			Build()
	}
	if p.MaxRetries < 0 {
		return ferrors.ValidationError("max retries cannot be negative").Build()
	}
	return nil
}

// Do calls fn until it succeeds, the retries are exhausted or ctx is done. The last error from
// fn is returned.
func Do(ctx context.Context, p Policy, fn func() error) error {
	if err := p.Validate(); err != nil {
		return err
	}
	var err error
	for attempt := 0; ; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		if attempt >= p.MaxRetries {
			return err
		}
		t := time.NewTimer(p.Delay(attempt + 1))
		select {
		case <-ctx.Done():
			t.Stop()
			return err
		case <-t.C:
		}
	}
}
