package main

import (
	"fmt"

	"github.com/glestaris/ice/pkg/health"
	"github.com/glestaris/ice/pkg/shell"
	"github.com/spf13/cobra"
)

var instCmd = &cobra.Command{
	Use:     "inst",
	Aliases: []string{"instance"},
	Short:   "Manage the instances of a session",
}

var instListCmd = &cobra.Command{
	Use:     "ls",
	Aliases: []string{"list"},
	Short:   "List instances (of --session-id, or all with --all)",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		all, _ := cmd.Flags().GetBool("all")
		if all {
			c, err := newClient(cmd)
			if err != nil {
				return err
			}
			instances, err := c.ListInstances("")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), shell.RenderInstances(instances))
			return nil
		}

		m, err := attachedManager(cmd)
		if err != nil {
			return err
		}
		instances, err := m.Instances()
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), shell.RenderInstances(instances))
		return nil
	},
}

var instShowCmd = &cobra.Command{
	Use:   "show INSTANCE_ID",
	Short: "Show one instance",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient(cmd)
		if err != nil {
			return err
		}
		inst, err := c.GetInstance(args[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), shell.RenderInstance(inst))
		return nil
	},
}

var instDeleteCmd = &cobra.Command{
	Use:     "del INSTANCE_ID...",
	Aliases: []string{"rm"},
	Short:   "Delete instances of the current session",
	Long: `Delete instances of the session named by --session-id. Instances of
other sessions are refused and nothing is deleted.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := attachedManager(cmd)
		if err != nil {
			return err
		}
		if err := m.DeleteInstances(args...); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Deleted %d instance(s)\n", len(args))
		return nil
	},
}

var instProbeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Check SSH reachability of the session's instances",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := attachedManager(cmd)
		if err != nil {
			return err
		}
		instances, err := m.Instances()
		if err != nil {
			return err
		}

		cfg, err := probeConfig(cmd)
		if err != nil {
			return err
		}
		results := health.Probe(cmd.Context(), instances, cfg)
		fmt.Fprintln(cmd.OutOrStdout(), shell.RenderProbes(results))

		for _, r := range results {
			if !r.Reachable {
				return fmt.Errorf("%d of %d instance(s) unreachable", countUnhealthy(results), len(results))
			}
		}
		return nil
	},
}

func countUnhealthy(results []health.ProbeResult) int {
	n := 0
	for _, r := range results {
		if !r.Reachable {
			n++
		}
	}
	return n
}

func probeConfig(cmd *cobra.Command) (health.ProbeConfig, error) {
	cfg := health.ProbeConfig{Config: health.DefaultConfig()}
	cfg.Retries, _ = cmd.Flags().GetInt("retries")
	cfg.Timeout, _ = cmd.Flags().GetDuration("probe-timeout")
	cfg.Interval, _ = cmd.Flags().GetDuration("interval")
	cfg.RequireBanner, _ = cmd.Flags().GetBool("banner")
	if cfg.Retries < 1 {
		return cfg, fmt.Errorf("--retries must be at least 1")
	}
	return cfg, nil
}

func addProbeFlags(cmd *cobra.Command) {
	defaults := health.DefaultConfig()
	cmd.Flags().Int("retries", defaults.Retries, "Attempts before an instance counts as unreachable")
	cmd.Flags().Duration("probe-timeout", defaults.Timeout, "Timeout of each connection attempt")
	cmd.Flags().Duration("interval", defaults.Interval, "Pause between attempts")
	cmd.Flags().Bool("banner", true, "Require an SSH identification banner")
}

func init() {
	instListCmd.Flags().Bool("all", false, "List instances of every session")
	addProbeFlags(instProbeCmd)

	instCmd.AddCommand(instListCmd)
	instCmd.AddCommand(instShowCmd)
	instCmd.AddCommand(instDeleteCmd)
	instCmd.AddCommand(instProbeCmd)
}
