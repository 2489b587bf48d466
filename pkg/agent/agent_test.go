package agent

import (
	"context"
	"errors"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/glestaris/ice/pkg/api"
	"github.com/glestaris/ice/pkg/client"
	"github.com/glestaris/ice/pkg/storage"
	"github.com/glestaris/ice/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	rsaKey         = "ssh-rsa AAAAB3NzaC1yc2EAAAADAQABAAABAQCZctWoc5olEQ2ta7+RSiZBxF162nrj2lXC8b0ZcVT1R95V2pioy//EbXMRoY168o4Klh2XraPbNTEjy8oZY1RSEd1sSAngvd56B5Vk5J7FAmIOdO2D+qUoT38ZV7bPObYE4V0tPZuq11sN0ITLI1uFBaqXclpdgE/rw4I45bIE3jVekfN4KqrUY2RgJPuoL26QrcfTZ7ihMm4NmJHtcY7aDEobrOEYY5GGrHcubpJypfun6m7nNm6nyfO/FJVPbQsvw1QiX91Zt9knRK9HoKdLb//H4nG+FNXUW1043ZUxWWJx1tfgmw3nPm6lQFZOgE/fJ22sO56tadwcclvUPQ6n experimenter@lab"
	rsaFingerprint = "5b:27:6a:d5:18:53:6b:13:ea:47:88:dd:81:c6:56:3b"

	ed25519Key         = "ssh-ed25519 AAAAC3NzaC1lZDI1NTE5AAAAIH5iJyzCkRAE89QRyuCaGICZJ4BiXD2J60fsghfNnQoS ops@lab"
	ed25519Fingerprint = "52:92:cd:ef:69:95:83:f6:af:ff:42:a2:6e:89:44:18"

	ipAddrOutput = `1: lo    inet 127.0.0.1/8 scope host lo\       valid_lft forever preferred_lft forever
2: eth0    inet 172.31.5.10/20 brd 172.31.15.255 scope global dynamic eth0\       valid_lft 3012sec preferred_lft 3012sec
3: docker0    inet 172.17.0.1/16 brd 172.17.255.255 scope global docker0\       valid_lft forever preferred_lft forever
`
)

type fakeRunner struct {
	outputs map[string]string
	errs    map[string]error
	calls   []string
}

func (r *fakeRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := strings.Join(append([]string{name}, args...), " ")
	r.calls = append(r.calls, cmd)
	if err := r.errs[cmd]; err != nil {
		return nil, err
	}
	return []byte(r.outputs[cmd]), nil
}

type fakeResolver map[string]string

func (f fakeResolver) LookupAddr(ctx context.Context, addr string) ([]string, error) {
	if name, ok := f[addr]; ok {
		return []string{name + "."}, nil
	}
	return nil, errors.New("no PTR record")
}

func env(vars map[string]string) func(string) string {
	return func(k string) string { return vars[k] }
}

// writeAccounts creates a passwd file whose users own the given
// authorized_keys contents; an empty content means no .ssh directory
func writeAccounts(t *testing.T, users [][2]string) string {
	t.Helper()
	root := t.TempDir()
	var passwd strings.Builder
	passwd.WriteString("root:x:0:0:root:/:/bin/sh\n")
	for i, u := range users {
		home := filepath.Join(root, u[0])
		require.NoError(t, os.MkdirAll(home, 0755))
		if u[1] != "" {
			require.NoError(t, os.MkdirAll(filepath.Join(home, ".ssh"), 0700))
			require.NoError(t, os.WriteFile(filepath.Join(home, ".ssh", "authorized_keys"), []byte(u[1]), 0600))
		}
		passwd.WriteString(u[0] + ":x:" + string(rune('1'+i)) + "000:1000::" + home + ":/bin/sh\n")
	}
	path := filepath.Join(root, "passwd")
	require.NoError(t, os.WriteFile(path, []byte(passwd.String()), 0644))
	return path
}

func newRegistry(t *testing.T) (string, storage.Store) {
	t.Helper()
	store, err := storage.Open(storage.BackendBolt, t.TempDir())
	require.NoError(t, err)

	ts := httptest.NewServer(api.NewServer(store, nil, api.Config{}).Handler())
	t.Cleanup(func() {
		ts.Close()
		_ = store.Close()
	})
	return ts.URL, store
}

func TestSelfRegistrationEndToEnd(t *testing.T) {
	endpoint, store := newRegistry(t)

	session := &types.Session{ClientIPAddr: "80.10.100.200"}
	session.ID = "abc123"
	require.NoError(t, store.CreateSession(session))

	passwd := writeAccounts(t, [][2]string{
		{"nokeys", ""},
		{"experimenter", "# managed by provisioning\n" + rsaKey + "\n"},
		{"ops", ed25519Key + "\n"},
	})
	runner := &fakeRunner{outputs: map[string]string{
		"ip -o -f inet addr show": ipAddrOutput,
	}}
	breadcrumb := filepath.Join(t.TempDir(), "ice", "instance_id")

	a := New(Config{
		Endpoint:       endpoint,
		SessionID:      "abc123",
		Tags:           map[string]string{"role": "server"},
		BreadcrumbPath: breadcrumb,
	},
		WithRunner(runner),
		WithUID(0),
		WithPasswdPath(passwd),
		WithEnv(env(nil)),
		WithResolver(fakeResolver{"127.0.0.1": "vm-1.us-east-1.cloud.example.org"}),
	)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	result, err := a.Register(ctx)
	require.NoError(t, err)
	assert.False(t, result.Skipped)

	instances, err := store.ListInstancesBySession("abc123")
	require.NoError(t, err)
	require.Len(t, instances, 1)

	got := instances[0]
	assert.Equal(t, "abc123", got.SessionID)
	assert.Equal(t, []types.Network{
		{Addr: "172.31.5.10/20", Iface: "eth0", BcastAddr: "172.31.15.255"},
		{Addr: "172.17.0.1/16", Iface: "docker0", BcastAddr: "172.17.255.255"},
	}, got.Networks)
	assert.Equal(t, "experimenter", got.SSHUsername)
	assert.Equal(t, rsaFingerprint, got.SSHAuthorizedFingerprint)
	assert.Equal(t, "127.0.0.1", got.PublicIPAddr)
	assert.Equal(t, "vm-1.us-east-1.cloud.example.org", got.PublicReverseDNS)
	assert.Equal(t, "us-east-1", got.VPCID)
	assert.Equal(t, "cloud.example.org", got.CloudID)
	assert.Equal(t, map[string]string{"role": "server"}, got.Tags)

	id, err := ReadBreadcrumb(breadcrumb)
	require.NoError(t, err)
	assert.Equal(t, got.ID, id)
	assert.Equal(t, got.ID, result.Instance.ID)
}

func TestRegisterTwiceCreatesTwoInstances(t *testing.T) {
	endpoint, store := newRegistry(t)
	session := &types.Session{ClientIPAddr: "80.10.100.200"}
	require.NoError(t, store.CreateSession(session))

	runner := &fakeRunner{outputs: map[string]string{"ip -o -f inet addr show": ipAddrOutput}}
	breadcrumb := filepath.Join(t.TempDir(), "instance_id")
	cfg := Config{Endpoint: endpoint, SessionID: session.ID, BreadcrumbPath: breadcrumb}
	opts := []Option{WithRunner(runner), WithUID(0), WithPasswdPath(writeAccounts(t, nil)), WithEnv(env(nil)), WithResolver(fakeResolver{})}

	for i := 0; i < 2; i++ {
		_, err := New(cfg, opts...).Register(context.Background())
		require.NoError(t, err)
	}
	instances, err := store.ListInstancesBySession(session.ID)
	require.NoError(t, err)
	assert.Len(t, instances, 2)

	// with the breadcrumb check a third run is a no-op
	cfg.SkipIfRegistered = true
	result, err := New(cfg, opts...).Register(context.Background())
	require.NoError(t, err)
	assert.True(t, result.Skipped)

	instances, err = store.ListInstancesBySession(session.ID)
	require.NoError(t, err)
	assert.Len(t, instances, 2)
}

func TestSkipIfRegisteredIgnoresOtherSessions(t *testing.T) {
	endpoint, store := newRegistry(t)
	old := &types.Session{ClientIPAddr: "1.1.1.1"}
	require.NoError(t, store.CreateSession(old))
	current := &types.Session{ClientIPAddr: "2.2.2.2"}
	require.NoError(t, store.CreateSession(current))

	previous := &types.Instance{SessionID: old.ID, PublicIPAddr: "3.3.3.3"}
	require.NoError(t, store.CreateInstance(previous))
	breadcrumb := filepath.Join(t.TempDir(), "instance_id")
	require.NoError(t, WriteBreadcrumb(breadcrumb, previous.ID))

	runner := &fakeRunner{outputs: map[string]string{"ip -o -f inet addr show": ipAddrOutput}}
	result, err := New(Config{
		Endpoint:         endpoint,
		SessionID:        current.ID,
		BreadcrumbPath:   breadcrumb,
		SkipIfRegistered: true,
	}, WithRunner(runner), WithUID(0), WithPasswdPath(writeAccounts(t, nil)), WithEnv(env(nil)), WithResolver(fakeResolver{})).Register(context.Background())
	require.NoError(t, err)
	assert.False(t, result.Skipped)
	assert.NotEqual(t, previous.ID, result.Instance.ID)
}

func TestRegisterFailures(t *testing.T) {
	endpoint, store := newRegistry(t)
	session := &types.Session{ClientIPAddr: "80.10.100.200"}
	require.NoError(t, store.CreateSession(session))

	tests := []struct {
		name    string
		cfg     Config
		uid     int
		env     map[string]string
		runner  *fakeRunner
		errIs   error
		errText string
	}{
		{
			name: "no sudo",
			cfg:  Config{Endpoint: endpoint, SessionID: session.ID},
			uid:  1000,
			runner: &fakeRunner{errs: map[string]error{
				"sudo -n whoami": errors.New("a password is required"),
			}},
			errIs: ErrNotPrivileged,
		},
		{
			name:   "missing endpoint",
			cfg:    Config{SessionID: session.ID},
			runner: &fakeRunner{},
			errIs:  ErrMissingArgument,
		},
		{
			name:   "missing session",
			cfg:    Config{Endpoint: endpoint},
			runner: &fakeRunner{},
			errIs:  ErrMissingArgument,
		},
		{
			name: "network discovery fails",
			cfg:  Config{Endpoint: endpoint, SessionID: session.ID},
			runner: &fakeRunner{errs: map[string]error{
				"ip -o -f inet addr show": errors.New("ip: not found"),
			}},
			errText: "failed to list network interfaces",
		},
		{
			name:    "unknown session",
			cfg:     Config{Endpoint: endpoint, SessionID: "nope"},
			runner:  &fakeRunner{outputs: map[string]string{"ip -o -f inet addr show": ipAddrOutput}},
			errText: "registration rejected",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.cfg.BreadcrumbPath = filepath.Join(t.TempDir(), "instance_id")
			a := New(tt.cfg,
				WithRunner(tt.runner),
				WithUID(tt.uid),
				WithEnv(env(tt.env)),
				WithPasswdPath(writeAccounts(t, nil)),
				WithResolver(fakeResolver{}),
			)

			_, err := a.Register(context.Background())
			require.Error(t, err)
			if tt.errIs != nil {
				assert.ErrorIs(t, err, tt.errIs)
			}
			if tt.errText != "" {
				assert.Contains(t, err.Error(), tt.errText)
			}

			id, err := ReadBreadcrumb(tt.cfg.BreadcrumbPath)
			require.NoError(t, err)
			assert.Empty(t, id)
		})
	}
}

func TestRegisterValidationErrorSurfacesIssues(t *testing.T) {
	reg := &stubRegistry{submitErr: &client.APIError{
		StatusCode: 422,
		Body:       []byte(`{"_issues": {"public_ip_addr": "must be of ip type"}}`),
	}}
	runner := &fakeRunner{outputs: map[string]string{"ip -o -f inet addr show": ""}}

	_, err := New(Config{SessionID: "s"},
		WithRegistry(reg),
		WithRunner(runner),
		WithUID(0),
		WithEnv(env(nil)),
		WithPasswdPath(writeAccounts(t, nil)),
		WithResolver(fakeResolver{}),
	).Register(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "Validation error: `public_ip_addr`: must be of ip type")
}

func TestArgumentsFromEnvironment(t *testing.T) {
	reg := &stubRegistry{ip: "198.51.100.9"}
	runner := &fakeRunner{outputs: map[string]string{"sudo -n whoami": "root\n"}}

	result, err := New(Config{BreadcrumbPath: filepath.Join(t.TempDir(), "id")},
		WithRegistry(reg),
		WithRunner(runner),
		WithUID(1000),
		WithEnv(env(map[string]string{
			EnvSessionID: "from-env",
			EnvCloudID:   "openstack",
			EnvVPCID:     "lab-net",
		})),
		WithPasswdPath(writeAccounts(t, nil)),
		WithResolver(fakeResolver{}),
	).Register(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "from-env", result.Instance.SessionID)
	assert.Equal(t, "openstack", result.Instance.CloudID)
	assert.Equal(t, "lab-net", result.Instance.VPCID)
	assert.Equal(t, "198.51.100.9", result.Instance.PublicIPAddr)
	assert.Empty(t, result.Instance.Networks)
	assert.Empty(t, result.Instance.SSHUsername)
	assert.Contains(t, runner.calls, "sudo -n ip -o -f inet addr show")
}

type stubRegistry struct {
	ip        string
	submitErr error
	submitted []*types.Instance
}

func (s *stubRegistry) GetMyIP() (string, error) {
	if s.ip == "" {
		return "", errors.New("unreachable")
	}
	return s.ip, nil
}

func (s *stubRegistry) SubmitInstance(instance *types.Instance) (string, error) {
	if s.submitErr != nil {
		return "", s.submitErr
	}
	s.submitted = append(s.submitted, instance)
	instance.ID = "stub-id"
	return instance.ID, nil
}

func (s *stubRegistry) GetInstance(id string) (*types.Instance, error) {
	return nil, &client.APIError{StatusCode: 404}
}
