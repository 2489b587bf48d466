package shell

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/glestaris/ice/pkg/health"
	"github.com/glestaris/ice/pkg/types"
)

const (
	colorHeader  = "#8BE9FD"
	colorBorder  = "#6272A4"
	colorHealthy = "#50FA7B"
	colorFailed  = "#FF5555"
)

var (
	headerStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color(colorHeader)).Bold(true).Padding(0, 1)
	cellStyle    = lipgloss.NewStyle().Padding(0, 1)
	borderStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color(colorBorder))
	healthyStyle = lipgloss.NewStyle().Foreground(lipgloss.Color(colorHealthy))
	failedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color(colorFailed))
)

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(borderStyle).
		Headers(headers...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.UTC().Format(time.RFC3339)
}

func formatTags(tags map[string]string) string {
	keys := make([]string, 0, len(tags))
	for k := range tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+"="+tags[k])
	}
	return strings.Join(pairs, ",")
}

func formatNetworks(networks []types.Network) string {
	addrs := make([]string, 0, len(networks))
	for _, n := range networks {
		if n.Iface != "" {
			addrs = append(addrs, n.Iface+":"+n.Addr)
		} else {
			addrs = append(addrs, n.Addr)
		}
	}
	return strings.Join(addrs, " ")
}

// RenderSessions renders sessions as a table
func RenderSessions(sessions []*types.Session) string {
	t := newTable("ID", "CLIENT IP", "CREATED")
	for _, s := range sessions {
		t.Row(s.ID, s.ClientIPAddr, formatTime(s.Created))
	}
	return t.Render()
}

// RenderInstances renders instances as a table
func RenderInstances(instances []*types.Instance) string {
	t := newTable("ID", "HOST", "SSH", "NETWORKS", "STATUS", "TAGS")
	for _, i := range instances {
		status := string(i.Status)
		if status == "" {
			status = string(types.InstanceStatusUnknown)
		}
		t.Row(i.ID, i.Host(), i.HostString(), formatNetworks(i.Networks), status, formatTags(i.Tags))
	}
	return t.Render()
}

// RenderInstance renders one instance as a two-column field table
func RenderInstance(i *types.Instance) string {
	t := newTable("FIELD", "VALUE")
	t.Row("id", i.ID)
	t.Row("session_id", i.SessionID)
	t.Row("public_ip_addr", i.PublicIPAddr)
	t.Row("public_reverse_dns", i.PublicReverseDNS)
	t.Row("cloud_id", i.CloudID)
	t.Row("vpc_id", i.VPCID)
	t.Row("ssh", i.HostString())
	t.Row("ssh_port", fmt.Sprint(i.SSHPort))
	t.Row("ssh_authorized_fingerprint", i.SSHAuthorizedFingerprint)
	t.Row("networks", formatNetworks(i.Networks))
	t.Row("tags", formatTags(i.Tags))
	t.Row("status", string(i.Status))
	t.Row("failed_pings_count", fmt.Sprint(i.FailedPingsCount))
	t.Row("created", formatTime(i.Created))
	t.Row("updated", formatTime(i.Updated))
	return t.Render()
}

// RenderProbes renders SSH reachability results
func RenderProbes(results []health.ProbeResult) string {
	t := newTable("ID", "HOST", "STATUS", "FAILURES", "LATENCY", "MESSAGE")
	for _, r := range results {
		status := string(r.SuggestedStatus())
		if r.Reachable {
			status = healthyStyle.Render(status)
		} else {
			status = failedStyle.Render(status)
		}
		t.Row(
			r.Instance.ID,
			r.Instance.Host(),
			status,
			fmt.Sprint(r.Failures),
			r.Last.Duration.Round(time.Millisecond).String(),
			r.Last.Message,
		)
	}
	return t.Render()
}
