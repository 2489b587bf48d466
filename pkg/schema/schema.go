package schema

import (
	"fmt"
	"math"
	"net/netip"
	"sort"
	"strconv"

	"github.com/glestaris/ice/pkg/types"
)

// Type names a field type. The names appear verbatim in validation messages.
type Type string

const (
	TypeString    Type = "string"
	TypeInteger   Type = "integer"
	TypeIP        Type = "ip"
	TypeNetAddr   Type = "netaddr" // IPv4 address or IPv4 CIDR
	TypeObjectID  Type = "objectid"
	TypeList      Type = "list"
	TypeDict      Type = "dict"
	TypeStringMap Type = "stringmap"
)

// Relation declares that a field references a document in another resource
type Relation struct {
	Resource string
	Field    string
}

// Field describes a single document field
type Field struct {
	Type     Type
	Required bool
	Default  any
	Allowed  []string
	Relation *Relation

	// Min and Max bound integer fields when set
	Min *int
	Max *int

	// Elem describes list elements; Schema describes dict members
	Elem   *Field
	Schema Schema
}

// Schema maps field names to their descriptors
type Schema map[string]Field

// Resolver answers data relation lookups during validation
type Resolver interface {
	Exists(resource, id string) (bool, error)
}

// ResolverFunc adapts a function to the Resolver interface
type ResolverFunc func(resource, id string) (bool, error)

// Exists implements Resolver
func (f ResolverFunc) Exists(resource, id string) (bool, error) {
	return f(resource, id)
}

// SessionSchema is the schema of the sessions resource
var SessionSchema = Schema{
	"client_ip_addr": {Type: TypeIP, Required: true},
}

var networkSchema = Schema{
	"addr":       {Type: TypeNetAddr, Required: true},
	"iface":      {Type: TypeString},
	"bcast_addr": {Type: TypeIP},
}

// InstanceSchema is the schema of the instances resource
var InstanceSchema = Schema{
	"session_id": {
		Type:     TypeObjectID,
		Required: true,
		Relation: &Relation{Resource: types.ResourceSessions, Field: types.FieldID},
	},
	"networks": {
		Type: TypeList,
		Elem: &Field{Type: TypeDict, Schema: networkSchema},
	},
	"public_ip_addr":             {Type: TypeIP, Required: true},
	"public_reverse_dns":         {Type: TypeString},
	"cloud_id":                   {Type: TypeString},
	"vpc_id":                     {Type: TypeString},
	"ssh_username":               {Type: TypeString, Default: types.DefaultSSHUsername},
	"ssh_port":                   {Type: TypeInteger, Default: types.DefaultSSHPort, Min: bound(1), Max: bound(65535)},
	"ssh_authorized_fingerprint": {Type: TypeString},
	"tags":                       {Type: TypeStringMap},
	"status": {
		Type:    TypeString,
		Default: string(types.InstanceStatusRunning),
		Allowed: []string{
			string(types.InstanceStatusUnknown),
			string(types.InstanceStatusRunning),
			string(types.InstanceStatusUnreachable),
			string(types.InstanceStatusBanned),
		},
	},
	"failed_pings_count": {Type: TypeInteger, Default: 0, Min: bound(0)},
}

// Validate checks doc against s, collecting every issue rather than stopping
// at the first one. Defaults are filled into doc for absent optional fields.
// A resolver error aborts validation since it says nothing about the
// document itself.
func Validate(doc map[string]any, s Schema, r Resolver) (types.Issues, error) {
	issues := types.Issues{}
	if err := validateDict("", doc, s, r, issues); err != nil {
		return nil, err
	}
	return issues, nil
}

func validateDict(prefix string, doc map[string]any, s Schema, r Resolver, issues types.Issues) error {
	for key := range doc {
		if _, ok := s[key]; !ok {
			issues[prefix+key] = "unknown field"
		}
	}

	names := make([]string, 0, len(s))
	for name := range s {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		field := s[name]
		value, present := doc[name]
		if !present || value == nil {
			if field.Required {
				issues[prefix+name] = "required field"
			} else if field.Default != nil {
				doc[name] = field.Default
			} else if present {
				delete(doc, name)
			}
			continue
		}
		if err := validateValue(prefix+name, value, field, r, issues); err != nil {
			return err
		}
	}
	return nil
}

func validateValue(path string, value any, field Field, r Resolver, issues types.Issues) error {
	switch field.Type {
	case TypeString:
		if _, ok := value.(string); !ok {
			issues[path] = badType(field.Type)
			return nil
		}
	case TypeInteger:
		n, ok := integerValue(value)
		if !ok {
			issues[path] = badType(field.Type)
			return nil
		}
		if (field.Min != nil && n < *field.Min) || (field.Max != nil && n > *field.Max) {
			issues[path] = rangeIssue(field)
			return nil
		}
	case TypeIP:
		s, ok := value.(string)
		if !ok || !IsIPv4(s) {
			issues[path] = badType(field.Type)
			return nil
		}
	case TypeNetAddr:
		s, ok := value.(string)
		if !ok || !IsIPv4OrCIDR(s) {
			issues[path] = badType(field.Type)
			return nil
		}
	case TypeObjectID:
		s, ok := value.(string)
		if !ok || s == "" {
			issues[path] = badType(field.Type)
			return nil
		}
	case TypeStringMap:
		m, ok := value.(map[string]any)
		if !ok {
			issues[path] = badType(field.Type)
			return nil
		}
		for k, v := range m {
			if _, ok := v.(string); !ok {
				issues[path+"."+k] = badType(TypeString)
			}
		}
		return nil
	case TypeDict:
		m, ok := value.(map[string]any)
		if !ok {
			issues[path] = badType(field.Type)
			return nil
		}
		return validateDict(path+".", m, field.Schema, r, issues)
	case TypeList:
		list, ok := value.([]any)
		if !ok {
			issues[path] = badType(field.Type)
			return nil
		}
		if field.Elem == nil {
			return nil
		}
		for i, elem := range list {
			if err := validateValue(path+"."+strconv.Itoa(i), elem, *field.Elem, r, issues); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("schema field %s has unsupported type %q", path, field.Type)
	}

	if len(field.Allowed) > 0 {
		s, _ := value.(string)
		if !contains(field.Allowed, s) {
			issues[path] = fmt.Sprintf("unallowed value %v", value)
			return nil
		}
	}

	if field.Relation != nil && r != nil {
		id := value.(string)
		ok, err := r.Exists(field.Relation.Resource, id)
		if err != nil {
			return fmt.Errorf("failed to resolve %s: %w", path, err)
		}
		if !ok {
			issues[path] = fmt.Sprintf("value '%s' must exist in resource '%s', field '%s'",
				id, field.Relation.Resource, field.Relation.Field)
		}
	}
	return nil
}

func badType(t Type) string {
	return fmt.Sprintf("must be of %s type", t)
}

func rangeIssue(field Field) string {
	switch {
	case field.Min != nil && field.Max != nil:
		return fmt.Sprintf("must be between %d and %d", *field.Min, *field.Max)
	case field.Min != nil:
		return fmt.Sprintf("must be at least %d", *field.Min)
	default:
		return fmt.Sprintf("must be at most %d", *field.Max)
	}
}

func bound(n int) *int {
	return &n
}

// integerValue converts a decoded JSON number to an int. Fractional values
// and values outside the int range are rejected.
func integerValue(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int32:
		return int(n), true
	case int64:
		if int64(int(n)) != n {
			return 0, false
		}
		return int(n), true
	case float64:
		// float64(math.MaxInt) rounds up to 2^63 on 64-bit platforms
		if n != math.Trunc(n) || n < math.MinInt || n >= -float64(math.MinInt) {
			return 0, false
		}
		return int(n), true
	default:
		return 0, false
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// IsIPv4 reports whether s is a dotted-quad IPv4 address
func IsIPv4(s string) bool {
	addr, err := netip.ParseAddr(s)
	if err != nil {
		return false
	}
	return addr.Is4()
}

// IsIPv4OrCIDR reports whether s is an IPv4 address, optionally with a prefix
// length
func IsIPv4OrCIDR(s string) bool {
	if IsIPv4(s) {
		return true
	}
	prefix, err := netip.ParsePrefix(s)
	if err != nil {
		return false
	}
	return prefix.Addr().Is4()
}
