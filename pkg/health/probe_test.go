package health

import (
	"context"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/glestaris/ice/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func listen(t *testing.T) (string, int) {
	t.Helper()
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = lis.Close() })
	go func() {
		for {
			conn, err := lis.Accept()
			if err != nil {
				return
			}
			_ = conn.Close()
		}
	}()
	return "127.0.0.1", lis.Addr().(*net.TCPAddr).Port
}

func closedPort(t *testing.T) int {
	t.Helper()
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := lis.Addr().(*net.TCPAddr).Port
	require.NoError(t, lis.Close())
	return port
}

func TestTCPChecker(t *testing.T) {
	host, port := listen(t)

	result := NewTCPChecker(net.JoinHostPort(host, strconv.Itoa(port))).Check(context.Background())
	assert.True(t, result.Healthy)

	result = NewTCPChecker(net.JoinHostPort(host, strconv.Itoa(closedPort(t)))).
		WithTimeout(time.Second).
		Check(context.Background())
	assert.False(t, result.Healthy)
	assert.Contains(t, result.Message, "connection failed")
}

func TestTCPCheckerBanner(t *testing.T) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer lis.Close()
	go func() {
		for {
			conn, err := lis.Accept()
			if err != nil {
				return
			}
			_, _ = conn.Write([]byte("SSH-2.0-OpenSSH_9.6\r\n"))
			_ = conn.Close()
		}
	}()

	addr := lis.Addr().String()
	result := NewTCPChecker(addr).WithBanner(SSHBannerPrefix).Check(context.Background())
	assert.True(t, result.Healthy, result.Message)

	result = NewTCPChecker(addr).WithBanner("HTTP/").Check(context.Background())
	assert.False(t, result.Healthy)
	assert.Contains(t, result.Message, "unexpected banner")
}

// scriptedChecker answers with the given outcomes in order, then fails
type scriptedChecker struct {
	outcomes []bool
	calls    int
}

func (c *scriptedChecker) Check(ctx context.Context) Result {
	c.calls++
	if c.calls <= len(c.outcomes) && c.outcomes[c.calls-1] {
		return Result{Healthy: true, Message: "ok"}
	}
	return Result{Message: "refused"}
}

func TestProbeOne(t *testing.T) {
	cfg := Config{Retries: 3, Interval: time.Millisecond}

	tests := []struct {
		name      string
		outcomes  []bool
		reachable bool
		failures  int
		calls     int
	}{
		{name: "first attempt", outcomes: []bool{true}, reachable: true, calls: 1},
		{name: "after one failure", outcomes: []bool{false, true}, reachable: true, failures: 1, calls: 2},
		{name: "never", reachable: false, failures: 3, calls: 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checker := &scriptedChecker{outcomes: tt.outcomes}
			r := probeOne(context.Background(), checker, cfg)
			assert.Equal(t, tt.reachable, r.Reachable)
			assert.Equal(t, tt.failures, r.Failures)
			assert.Equal(t, tt.calls, checker.calls)
		})
	}
}

func TestProbeOneStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	checker := &scriptedChecker{}
	r := probeOne(ctx, checker, Config{Retries: 5, Interval: time.Hour})
	assert.False(t, r.Reachable)
	assert.Equal(t, 1, checker.calls)
	assert.Equal(t, context.Canceled.Error(), r.Last.Message)
}

func TestProbe(t *testing.T) {
	host, port := listen(t)

	instances := []*types.Instance{
		{PublicIPAddr: host, SSHPort: port},
		{PublicIPAddr: host, SSHPort: closedPort(t)},
	}

	results := Probe(context.Background(), instances, ProbeConfig{Config: Config{
		Interval: 10 * time.Millisecond,
		Timeout:  time.Second,
		Retries:  2,
	}})
	require.Len(t, results, 2)

	assert.Same(t, instances[0], results[0].Instance)
	assert.True(t, results[0].Reachable)
	assert.Equal(t, types.InstanceStatusRunning, results[0].SuggestedStatus())

	assert.False(t, results[1].Reachable)
	assert.Equal(t, 2, results[1].Failures)
	assert.Contains(t, results[1].Last.Message, "connection failed")
	assert.Equal(t, types.InstanceStatusUnreachable, results[1].SuggestedStatus())
}

func TestSSHAddressDefaultsPort(t *testing.T) {
	assert.Equal(t, "host.example.com:22", sshAddress(&types.Instance{
		PublicIPAddr:     "1.2.3.4",
		PublicReverseDNS: "host.example.com",
	}))
}
