package types

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
)

// Server-assigned document fields. They are never part of the transport form
// a client submits on create.
const (
	FieldID      = "_id"
	FieldCreated = "_created"
	FieldUpdated = "_updated"
	FieldETag    = "_etag"
)

// Resource names as used in URLs and data relations
const (
	ResourceSessions  = "sessions"
	ResourceInstances = "instances"
)

// Entity holds the metadata the registry assigns to every stored document
type Entity struct {
	ID      string    `json:"_id,omitempty"`
	Created time.Time `json:"_created,omitzero"`
	Updated time.Time `json:"_updated,omitzero"`
	ETag    string    `json:"_etag,omitempty"` // informational, never enforced
}

// Meta returns the entity metadata
func (e *Entity) Meta() *Entity {
	return e
}

// Document is implemented by every registry entity
type Document interface {
	Meta() *Entity
}

// Session represents one experimentation campaign
type Session struct {
	Entity
	ClientIPAddr string `json:"client_ip_addr"`
}

// Network is one IPv4 address discovered on an instance
type Network struct {
	Addr      string `json:"addr"`
	Iface     string `json:"iface,omitempty"`
	BcastAddr string `json:"bcast_addr,omitempty"`
}

// InstanceStatus is informational; the registry never transitions it
type InstanceStatus string

const (
	InstanceStatusUnknown     InstanceStatus = "unknown"
	InstanceStatusRunning     InstanceStatus = "running"
	InstanceStatusUnreachable InstanceStatus = "unreachable"
	InstanceStatusBanned      InstanceStatus = "banned"
)

// Default SSH settings applied by the registry when a registration omits them
const (
	DefaultSSHUsername = "root"
	DefaultSSHPort     = 22
)

// Instance represents one provisioned VM registered under a session.
// Zero-valued optional fields are left out of the wire document, so the
// registry applies its defaults to them. An SSH port of 0 is therefore
// never stored.
type Instance struct {
	Entity
	SessionID string    `json:"session_id"`
	Networks  []Network `json:"networks,omitempty"`

	PublicIPAddr     string `json:"public_ip_addr,omitempty"`
	PublicReverseDNS string `json:"public_reverse_dns,omitempty"`

	CloudID string `json:"cloud_id,omitempty"`
	VPCID   string `json:"vpc_id,omitempty"`

	SSHUsername              string `json:"ssh_username,omitempty"`
	SSHPort                  int    `json:"ssh_port,omitempty"`
	SSHAuthorizedFingerprint string `json:"ssh_authorized_fingerprint,omitempty"`

	Tags map[string]string `json:"tags,omitempty"`

	Status           InstanceStatus `json:"status,omitempty"`
	FailedPingsCount int            `json:"failed_pings_count,omitempty"`
}

// AddNetwork appends a network in discovery order
func (i *Instance) AddNetwork(addr, iface, bcast string) {
	i.Networks = append(i.Networks, Network{Addr: addr, Iface: iface, BcastAddr: bcast})
}

// Host returns the address operators should use to reach the instance,
// preferring the reverse DNS name
func (i *Instance) Host() string {
	if i.PublicReverseDNS != "" {
		return i.PublicReverseDNS
	}
	return i.PublicIPAddr
}

// ParseTags turns key=value words into a tag map. A word without '=' or
// with an empty key is rejected.
func ParseTags(words []string) (map[string]string, error) {
	tags := make(map[string]string, len(words))
	for _, w := range words {
		k, v, ok := strings.Cut(w, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid tag %q, expected key=value", w)
		}
		tags[k] = v
	}
	return tags, nil
}

// HostString returns user@host as consumed by SSH fan-out tooling
func (i *Instance) HostString() string {
	user := i.SSHUsername
	if user == "" {
		user = DefaultSSHUsername
	}
	return user + "@" + i.Host()
}

// ToDocument converts an entity into its transport form: every user supplied
// field, none of the server-assigned ones.
func ToDocument(v Document) (map[string]any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode document: %w", err)
	}
	doc := make(map[string]any)
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode document: %w", err)
	}
	for _, key := range []string{FieldID, FieldCreated, FieldUpdated, FieldETag} {
		delete(doc, key)
	}
	return doc, nil
}

// FromDocument decodes a validated document into an entity
func FromDocument(doc map[string]any, v Document) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode document: %w", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to decode document: %w", err)
	}
	return nil
}

// Issues maps an offending field to a human readable reason
type Issues map[string]string

// Fields returns the offending field names in sorted order
func (is Issues) Fields() []string {
	fields := make([]string, 0, len(is))
	for f := range is {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	return fields
}

// String renders issues as "`field`: reason" pairs
func (is Issues) String() string {
	parts := make([]string, 0, len(is))
	for _, f := range is.Fields() {
		parts = append(parts, fmt.Sprintf("`%s`: %s", f, is[f]))
	}
	return strings.Join(parts, ", ")
}

// ValidationError reports every schema violation found in a document
type ValidationError struct {
	Resource string
	Issues   Issues
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error on %s: %s", e.Resource, e.Issues.String())
}
