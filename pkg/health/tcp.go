package health

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"strings"
	"time"
)

// SSHBannerPrefix is what an SSH daemon sends first on a new connection
const SSHBannerPrefix = "SSH-"

// TCPChecker dials an address and optionally expects a banner line
type TCPChecker struct {
	// Address is the TCP address to connect to (e.g., "10.0.0.4:22")
	Address string

	// Timeout bounds the dial and the banner read (default: 5 seconds)
	Timeout time.Duration

	// Banner, when set, is the prefix the first line from the peer must carry
	Banner string
}

// NewTCPChecker creates a new TCP health checker
func NewTCPChecker(address string) *TCPChecker {
	return &TCPChecker{
		Address: address,
		Timeout: 5 * time.Second,
	}
}

// Check dials the address and, if a banner is expected, reads one line
func (t *TCPChecker) Check(ctx context.Context) Result {
	start := time.Now()
	fail := func(format string, args ...any) Result {
		return Result{Message: fmt.Sprintf(format, args...), Duration: time.Since(start)}
	}

	dialer := &net.Dialer{Timeout: t.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", t.Address)
	if err != nil {
		return fail("connection failed: %v", err)
	}
	defer conn.Close()

	if t.Banner != "" {
		_ = conn.SetReadDeadline(time.Now().Add(t.Timeout))
		line, err := bufio.NewReader(conn).ReadString('\n')
		if err != nil && line == "" {
			return fail("no banner from %s: %v", t.Address, err)
		}
		if !strings.HasPrefix(line, t.Banner) {
			return fail("unexpected banner from %s: %q", t.Address, strings.TrimSpace(line))
		}
	}

	return Result{
		Healthy:  true,
		Message:  fmt.Sprintf("TCP connection to %s successful", t.Address),
		Duration: time.Since(start),
	}
}

// WithTimeout sets the connection timeout
func (t *TCPChecker) WithTimeout(timeout time.Duration) *TCPChecker {
	t.Timeout = timeout
	return t
}

// WithBanner requires the peer to greet with the given prefix
func (t *TCPChecker) WithBanner(prefix string) *TCPChecker {
	t.Banner = prefix
	return t
}
