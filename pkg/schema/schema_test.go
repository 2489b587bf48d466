package schema

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sessionsResolver(ids ...string) Resolver {
	known := make(map[string]bool)
	for _, id := range ids {
		known[id] = true
	}
	return ResolverFunc(func(resource, id string) (bool, error) {
		return resource == "sessions" && known[id], nil
	})
}

func validInstance() map[string]any {
	return map[string]any{
		"session_id":     "sess-1",
		"public_ip_addr": "54.10.20.30",
		"networks": []any{
			map[string]any{"addr": "10.0.0.5/24", "iface": "eth0", "bcast_addr": "10.0.0.255"},
		},
	}
}

func TestIsIPv4(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"127.0.0.1", true},
		{"255.255.255.255", true},
		{"0.0.0.0", true},
		{"127.x.0.1", false},
		{"127.900.0.1", false},
		{"127.0.0.256", false},
		{"127.0.0", false},
		{"::1", false},
		{"", false},
		{"10.0.0.1/24", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, IsIPv4(tt.input))
		})
	}
}

func TestIsIPv4OrCIDR(t *testing.T) {
	assert.True(t, IsIPv4OrCIDR("10.0.0.5"))
	assert.True(t, IsIPv4OrCIDR("10.0.0.5/24"))
	assert.False(t, IsIPv4OrCIDR("10.0.0.5/33"))
	assert.False(t, IsIPv4OrCIDR("fe80::1/64"))
	assert.False(t, IsIPv4OrCIDR("eth0"))
}

func TestValidateSession(t *testing.T) {
	tests := []struct {
		name   string
		doc    map[string]any
		issues map[string]string
	}{
		{
			name:   "valid",
			doc:    map[string]any{"client_ip_addr": "80.10.100.200"},
			issues: map[string]string{},
		},
		{
			name:   "missing ip",
			doc:    map[string]any{},
			issues: map[string]string{"client_ip_addr": "required field"},
		},
		{
			name:   "bad ip",
			doc:    map[string]any{"client_ip_addr": "127.x.0.1"},
			issues: map[string]string{"client_ip_addr": "must be of ip type"},
		},
		{
			name:   "wrong type",
			doc:    map[string]any{"client_ip_addr": 42.0},
			issues: map[string]string{"client_ip_addr": "must be of ip type"},
		},
		{
			name: "unknown field",
			doc:  map[string]any{"client_ip_addr": "1.2.3.4", "owner": "me"},
			issues: map[string]string{
				"owner": "unknown field",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			issues, err := Validate(tt.doc, SessionSchema, nil)
			require.NoError(t, err)
			assert.Equal(t, tt.issues, map[string]string(issues))
		})
	}
}

func TestValidateInstanceAppliesDefaults(t *testing.T) {
	doc := validInstance()

	issues, err := Validate(doc, InstanceSchema, sessionsResolver("sess-1"))
	require.NoError(t, err)
	assert.Empty(t, issues)

	assert.Equal(t, "root", doc["ssh_username"])
	assert.Equal(t, 22, doc["ssh_port"])
	assert.Equal(t, "running", doc["status"])
	assert.Equal(t, 0, doc["failed_pings_count"])
}

func TestValidateInstanceMalformedPublicIP(t *testing.T) {
	for _, ip := range []string{"127.x.0.1", "127.900.0.1"} {
		t.Run(ip, func(t *testing.T) {
			doc := validInstance()
			doc["public_ip_addr"] = ip

			issues, err := Validate(doc, InstanceSchema, sessionsResolver("sess-1"))
			require.NoError(t, err)
			assert.Equal(t, "must be of ip type", issues["public_ip_addr"])
		})
	}
}

func TestValidateInstanceReportsAllIssues(t *testing.T) {
	doc := map[string]any{
		"session_id":     "missing",
		"public_ip_addr": "300.1.1.1",
		"ssh_port":       "twenty-two",
		"networks": []any{
			map[string]any{"iface": "eth0", "bcast_addr": "10.0.0.x"},
			"eth1",
		},
		"tags":   map[string]any{"role": "sender", "rank": 3.0},
		"status": "exploded",
	}

	issues, err := Validate(doc, InstanceSchema, sessionsResolver("sess-1"))
	require.NoError(t, err)

	assert.Equal(t, map[string]string{
		"session_id":            "value 'missing' must exist in resource 'sessions', field '_id'",
		"public_ip_addr":        "must be of ip type",
		"ssh_port":              "must be of integer type",
		"networks.0.addr":       "required field",
		"networks.0.bcast_addr": "must be of ip type",
		"networks.1":            "must be of dict type",
		"tags.rank":             "must be of string type",
		"status":                "unallowed value exploded",
	}, map[string]string(issues))
}

func TestValidateIntegerBounds(t *testing.T) {
	tests := []struct {
		name  string
		port  any
		issue string
	}{
		{name: "lowest", port: 1},
		{name: "highest", port: 65535.0},
		{name: "zero", port: 0.0, issue: "must be between 1 and 65535"},
		{name: "too high", port: 65536.0, issue: "must be between 1 and 65535"},
		{name: "negative", port: int64(-1), issue: "must be between 1 and 65535"},
		{name: "fraction", port: 22.5, issue: "must be of integer type"},
		{name: "beyond int", port: 1e300, issue: "must be of integer type"},
		{name: "two to the 63", port: 9223372036854775808.0, issue: "must be of integer type"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := validInstance()
			doc["ssh_port"] = tt.port

			issues, err := Validate(doc, InstanceSchema, sessionsResolver("sess-1"))
			require.NoError(t, err)
			if tt.issue == "" {
				assert.Empty(t, issues)
				return
			}
			assert.Equal(t, map[string]string{"ssh_port": tt.issue}, map[string]string(issues))
		})
	}
}

func TestValidateResolverError(t *testing.T) {
	boom := errors.New("store unavailable")
	r := ResolverFunc(func(string, string) (bool, error) { return false, boom })

	_, err := Validate(validInstance(), InstanceSchema, r)
	assert.ErrorIs(t, err, boom)
}

func TestValidateNullOptionalFieldDropped(t *testing.T) {
	doc := validInstance()
	doc["cloud_id"] = nil

	issues, err := Validate(doc, InstanceSchema, sessionsResolver("sess-1"))
	require.NoError(t, err)
	assert.Empty(t, issues)
	_, present := doc["cloud_id"]
	assert.False(t, present)
}
