package helpers

import (
	"bytes"
	"net"
	"strconv"
	"sync"
	"testing"
)

// FreePort returns a loopback port that, together with the port above it, was bindable a moment
// ago. Tests skip when the kernel hands out a port at the very top of the range.
func FreePort(t *testing.T) int {
	t.Helper()
	for range 10 {
		ln, err := net.Listen("tcp4", "127.0.0.1:0")
		if err != nil {
			t.Fatalf("listen: %v", err)
		}
		port := ln.Addr().(*net.TCPAddr).Port
		_ = ln.Close()
		if port >= 65000 {
			continue
		}
		next, err := net.Listen("tcp4", net.JoinHostPort("127.0.0.1", strconv.Itoa(port+1)))
		if err != nil {
			continue
		}
		_ = next.Close()
		return port
	}
	t.Skip("no free port pair available")
	return 0
}

// SyncBuffer is a bytes.Buffer safe for one writer goroutine and concurrent readers.
type SyncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *SyncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *SyncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
