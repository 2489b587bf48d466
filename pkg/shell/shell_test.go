package shell

import (
	"bytes"
	"context"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/glestaris/ice/pkg/api"
	"github.com/glestaris/ice/pkg/client"
	"github.com/glestaris/ice/pkg/health"
	"github.com/glestaris/ice/pkg/session"
	"github.com/glestaris/ice/pkg/storage"
	"github.com/glestaris/ice/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func echo(_ context.Context, out io.Writer, args []string) error {
	_, err := io.WriteString(out, strings.Join(args, " ")+"\n")
	return err
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()

	require.NoError(t, r.Register(&Command{Name: "echo", Aliases: []string{"e"}, Usage: "echo", Handler: echo}))

	err := r.Register(&Command{Name: "echo", Handler: echo})
	assert.ErrorIs(t, err, ErrDuplicateCommand)
	err = r.Register(&Command{Name: "other", Aliases: []string{"h"}, Handler: echo})
	assert.ErrorIs(t, err, ErrDuplicateCommand, "alias clashes with help")
	_, ok := r.Lookup("other")
	assert.False(t, ok, "rejected commands are not partially registered")

	assert.Error(t, r.Register(&Command{Name: "nohandler"}))

	cmd, ok := r.Lookup("e")
	require.True(t, ok)
	assert.Equal(t, "echo", cmd.Name)

	var out bytes.Buffer
	require.NoError(t, r.Dispatch(context.Background(), &out, "  echo a   b "))
	assert.Equal(t, "a b\n", out.String())

	assert.NoError(t, r.Dispatch(context.Background(), &out, "   "))
	assert.ErrorIs(t, r.Dispatch(context.Background(), &out, "nope"), ErrUnknownCommand)

	names := []string{}
	for _, c := range r.Commands() {
		names = append(names, c.Name)
	}
	assert.Equal(t, []string{"echo", "help"}, names)
}

func TestHelp(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(&Command{Name: "echo", Usage: "echo <words>", Help: "Print words", Handler: echo}))

	var out bytes.Buffer
	require.NoError(t, r.Dispatch(context.Background(), &out, "h"))
	assert.Contains(t, out.String(), "echo <words>")
	assert.Contains(t, out.String(), "exit")

	out.Reset()
	require.NoError(t, r.Dispatch(context.Background(), &out, "help echo"))
	assert.Contains(t, out.String(), "Print words")

	assert.ErrorIs(t, r.Dispatch(context.Background(), &out, "help nope"), ErrUnknownCommand)
}

func TestShellLoop(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{name: "eof", input: "echo one\n", expected: []string{"$> one"}},
		{name: "exit", input: "echo one\nexit\necho two\n", expected: []string{"one"}},
		{name: "quit", input: "quit\necho two\n", expected: nil},
		{name: "errors continue", input: "bogus\necho after\n", expected: []string{"error: bogus: unknown command", "after"}},
		{name: "handler exit", input: "stop\necho two\n", expected: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRegistry()
			require.NoError(t, r.Register(&Command{Name: "echo", Handler: echo}))
			require.NoError(t, r.Register(&Command{Name: "stop", Handler: func(context.Context, io.Writer, []string) error {
				return ErrExit
			}}))

			var out bytes.Buffer
			sh := New(r, strings.NewReader(tt.input), &out)
			require.NoError(t, sh.Run(context.Background()))

			for _, s := range tt.expected {
				assert.Contains(t, out.String(), s)
			}
			assert.NotContains(t, out.String(), "two")
		})
	}
}

func TestShellStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sh := New(NewRegistry(), strings.NewReader("help\n"), io.Discard)
	assert.ErrorIs(t, sh.Run(ctx), context.Canceled)
}

func TestRender(t *testing.T) {
	inst := &types.Instance{
		Entity:       types.Entity{ID: "abc123"},
		SessionID:    "s1",
		PublicIPAddr: "1.2.3.4",
		SSHUsername:  "ubuntu",
		Networks:     []types.Network{{Addr: "10.0.0.4", Iface: "eth0"}},
		Tags:         map[string]string{"b": "2", "a": "1"},
	}

	out := RenderInstances([]*types.Instance{inst})
	assert.Contains(t, out, "abc123")
	assert.Contains(t, out, "ubuntu@1.2.3.4")
	assert.Contains(t, out, "eth0:10.0.0.4")
	assert.Contains(t, out, "a=1,b=2")
	assert.Contains(t, out, "unknown")

	out = RenderInstance(inst)
	assert.Contains(t, out, "session_id")
	assert.Contains(t, out, "s1")

	out = RenderSessions([]*types.Session{{Entity: types.Entity{ID: "s1"}, ClientIPAddr: "9.9.9.9"}})
	assert.Contains(t, out, "9.9.9.9")
	assert.Contains(t, out, "CLIENT IP")
}

func newSessionShell(t *testing.T) (*Registry, *session.Manager, storage.Store) {
	t.Helper()
	store, err := storage.Open(storage.BackendBolt, t.TempDir())
	require.NoError(t, err)

	ts := httptest.NewServer(api.NewServer(store, nil, api.Config{}).Handler())
	t.Cleanup(func() {
		ts.Close()
		_ = store.Close()
	})

	c, err := client.NewFromEndpoint(ts.URL, client.Config{Timeout: 5 * time.Second})
	require.NoError(t, err)

	m := session.NewManager(c)
	r := NewRegistry()
	require.NoError(t, Install(r, m, health.ProbeConfig{Config: health.Config{Timeout: time.Second, Retries: 1}}))
	return r, m, store
}

func TestSessionCommands(t *testing.T) {
	r, m, store := newSessionShell(t)
	ctx := context.Background()

	run := func(line string) (string, error) {
		var out bytes.Buffer
		err := r.Dispatch(ctx, &out, line)
		return out.String(), err
	}

	_, err := run("ls")
	assert.ErrorIs(t, err, session.ErrNoSession)

	out, err := run("ping")
	require.NoError(t, err)
	assert.Equal(t, "pong\n", out)

	out, err = run("my-ip")
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1\n", out)

	out, err = run("start retain")
	require.NoError(t, err)
	sess := m.Current()
	require.NotNil(t, sess)
	assert.Equal(t, sess.ID+"\n", out)
	assert.True(t, m.Retained())

	inst := &types.Instance{SessionID: sess.ID, PublicIPAddr: "1.2.3.4", SSHUsername: "ubuntu"}
	require.NoError(t, store.CreateInstance(inst))

	out, err = run("hosts")
	require.NoError(t, err)
	assert.Equal(t, "ubuntu@1.2.3.4\n", out)

	out, err = run("instances")
	require.NoError(t, err)
	assert.Contains(t, out, inst.ID)

	out, err = run("show " + inst.ID)
	require.NoError(t, err)
	assert.Contains(t, out, "1.2.3.4")

	out, err = run("sessions")
	require.NoError(t, err)
	assert.Contains(t, out, sess.ID)

	out, err = run("user-data role=server")
	require.NoError(t, err)
	assert.Contains(t, out, "--tag role=server")

	out, err = run("del " + inst.ID)
	require.NoError(t, err)
	assert.Equal(t, "deleted 1 instance(s)\n", out)

	_, err = run("del")
	assert.Error(t, err)

	require.NoError(t, m.Close())
	_, err = store.GetSession(sess.ID)
	assert.NoError(t, err, "retained session survives close")
}
