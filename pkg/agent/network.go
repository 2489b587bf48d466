package agent

import (
	"bufio"
	"context"
	"fmt"
	"strings"

	"github.com/glestaris/ice/pkg/schema"
	"github.com/glestaris/ice/pkg/types"
)

// DiscoverNetworks lists the IPv4 addresses of the host in the order the
// kernel reports them. A failing command is an error; no matching lines
// yield an empty list.
func DiscoverNetworks(ctx context.Context, runner Runner, uid int) ([]types.Network, error) {
	name, args := privileged(uid, "ip", "-o", "-f", "inet", "addr", "show")
	out, err := runner.Run(ctx, name, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list network interfaces: %w", err)
	}
	return ParseIPAddrOutput(string(out)), nil
}

// ParseIPAddrOutput parses the one-line-per-address output of
// `ip -o -f inet addr show`:
//
//	2: eth0    inet 172.31.5.10/20 brd 172.31.15.255 scope global eth0\ ...
//
// Loopback (scope host) addresses and unparseable lines are skipped.
func ParseIPAddrOutput(out string) []types.Network {
	networks := []types.Network{}

	scanner := bufio.NewScanner(strings.NewReader(out))
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 4 || !strings.HasSuffix(fields[0], ":") || fields[2] != "inet" {
			continue
		}

		network := types.Network{
			Iface: strings.SplitN(fields[1], "@", 2)[0],
			Addr:  fields[3],
		}
		if !schema.IsIPv4OrCIDR(network.Addr) {
			continue
		}

		scope := ""
		for i := 4; i < len(fields)-1; i++ {
			switch fields[i] {
			case "brd":
				network.BcastAddr = fields[i+1]
			case "scope":
				scope = fields[i+1]
			}
		}
		if scope == "host" {
			continue
		}
		if network.BcastAddr != "" && !schema.IsIPv4(network.BcastAddr) {
			network.BcastAddr = ""
		}
		networks = append(networks, network)
	}
	return networks
}
