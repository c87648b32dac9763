// Package netutil binds preview listeners with the port collision and bad host recovery rules
// shared by the HTTP and WebSocket servers.
package netutil

import (
	"context"
	"errors"
	"net"
	"strconv"
	"syscall"
	"time"

	ferrors "git.home.luguber.info/inful/livepreview/internal/foundation/errors"
	"git.home.luguber.info/inful/livepreview/internal/metrics"
)

// ProbeTimeout bounds each free-port probe.
const ProbeTimeout = 500 * time.Millisecond

// LoopbackHost is the fallback when the configured host cannot be bound.
const LoopbackHost = "127.0.0.1"

// Attempt describes one bind attempt.
type Attempt struct {
	Host    string
	Port    int
	Outcome metrics.BindOutcome
	Err     error
}

// ListenConfig drives Listen.
type ListenConfig struct {
	Host string
	Port int
	// OnAttempt observes every bind attempt, including the final one.
	OnAttempt func(Attempt)
}

// Bound is a listener together with where it actually landed.
type Bound struct {
	net.Listener
	Host string
	Port int
}

// Listen binds host:port. An address in use moves to the next port; an address that is not
// available on this machine falls back to the loopback host on the same port. Any other error
// stops the attempt and is returned as a bind error. There is no upper bound on port retries
// below the end of the port space.
func Listen(ctx context.Context, cfg ListenConfig) (*Bound, error) {
	host, port := cfg.Host, cfg.Port
	if host == "" {
		host = LoopbackHost
	}
	report := func(a Attempt) {
		if cfg.OnAttempt != nil {
			cfg.OnAttempt(a)
		}
	}

	var lc net.ListenConfig
	for {
		if err := ctx.Err(); err != nil {
			return nil, ferrors.WrapError(err, ferrors.CategoryRuntime, "listen canceled").Build()
		}
		ln, err := lc.Listen(ctx, "tcp4", net.JoinHostPort(host, strconv.Itoa(port)))
		if err == nil {
			actual := port
			if tcp, ok := ln.Addr().(*net.TCPAddr); ok {
				actual = tcp.Port
			}
			report(Attempt{Host: host, Port: actual, Outcome: metrics.BindOK})
			return &Bound{Listener: ln, Host: host, Port: actual}, nil
		}

		switch {
		case errors.Is(err, syscall.EADDRINUSE):
			report(Attempt{Host: host, Port: port, Outcome: metrics.BindInUse, Err: err})
			port++
		case isBadHost(err) && host != LoopbackHost:
			report(Attempt{Host: host, Port: port, Outcome: metrics.BindHostFallback, Err: err})
			host = LoopbackHost
		default:
			report(Attempt{Host: host, Port: port, Outcome: metrics.BindFailed, Err: err})
			return nil, ferrors.WrapError(err, ferrors.CategoryBind, "failed to bind listener").
				WithContext("host", host).
				WithContext("port", port).
				Fatal().
				Build()
		}
	}
}

func isBadHost(err error) bool {
	if errors.Is(err, syscall.EADDRNOTAVAIL) {
		return true
	}
	var dnsErr *net.DNSError
	return errors.As(err, &dnsErr)
}

// Occupied reports whether something accepts connections on host:port. A refused or timed
// out connection means the port is free.
func Occupied(host string, port int, timeout time.Duration) bool {
	conn, err := net.DialTimeout("tcp4", net.JoinHostPort(host, strconv.Itoa(port)), timeout)
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}

// FindFreePort probes upward from start and returns the first port nothing answers on.
func FindFreePort(ctx context.Context, host string, start int, timeout time.Duration) (int, error) {
	if host == "" {
		host = LoopbackHost
	}
	for port := start; port <= 65535; port++ {
		if err := ctx.Err(); err != nil {
			return 0, ferrors.WrapError(err, ferrors.CategoryRuntime, "port probe canceled").Build()
		}
		if !Occupied(host, port, timeout) {
			return port, nil
		}
	}
	return 0, ferrors.BindError("no free port above start").
		WithContext("host", host).
		WithContext("start", start).
		Build()
}
