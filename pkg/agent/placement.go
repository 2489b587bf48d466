package agent

import (
	"context"
	"net"
	"strings"
)

// Environment variables read by the agent
const (
	EnvAPIEndpoint = "ICE_API_ENDPOINT"
	EnvSessionID   = "ICE_SESSION_ID"
	EnvCloudID     = "ICE_CLOUD_ID"
	EnvVPCID       = "ICE_VPC_ID"
)

// Resolver performs reverse DNS lookups
type Resolver interface {
	LookupAddr(ctx context.Context, addr string) ([]string, error)
}

// ReverseDNS returns the first PTR name of ip without the trailing dot, or
// an empty string when there is none
func ReverseDNS(ctx context.Context, resolver Resolver, ip string) string {
	names, err := resolver.LookupAddr(ctx, ip)
	if err != nil || len(names) == 0 {
		return ""
	}
	return strings.TrimSuffix(names[0], ".")
}

// CloudHints returns the placement of the instance. Values from the
// environment win; missing ones are derived from the reverse DNS domain:
//
//	ec2-52-1-2-3.eu-west-1.compute.amazonaws.com
//	  vpc_id   = eu-west-1
//	  cloud_id = compute.amazonaws.com
func CloudHints(getenv func(string) string, reverseDNS string) (cloudID, vpcID string) {
	cloudID = getenv(EnvCloudID)
	vpcID = getenv(EnvVPCID)
	if cloudID != "" && vpcID != "" {
		return cloudID, vpcID
	}

	labels := strings.Split(strings.TrimSuffix(reverseDNS, "."), ".")
	if len(labels) < 3 || net.ParseIP(reverseDNS) != nil {
		return cloudID, vpcID
	}
	domain := labels[1:]

	var derivedCloud, derivedVPC string
	if len(domain) >= 3 {
		derivedVPC = domain[0]
		derivedCloud = strings.Join(domain[1:], ".")
	} else {
		derivedCloud = strings.Join(domain, ".")
	}

	if cloudID == "" {
		cloudID = derivedCloud
	}
	if vpcID == "" {
		vpcID = derivedVPC
	}
	return cloudID, vpcID
}
