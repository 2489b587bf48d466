package main

import (
	"fmt"
	"os"

	"github.com/glestaris/ice/pkg/client"
	"github.com/glestaris/ice/pkg/session"
	"github.com/glestaris/ice/pkg/shell"
	"github.com/glestaris/ice/pkg/types"
	"github.com/spf13/cobra"
)

var userDataCmd = &cobra.Command{
	Use:   "user-data [KEY=VALUE...]",
	Short: "Print the bootstrap script that registers a VM to the session",
	Long: `Print the cloud-init user-data script for new VMs. The script downloads
ice-agent and registers the VM to --session-id with the given tags.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		tags, err := types.ParseTags(args)
		if err != nil {
			return err
		}
		m, err := attachedManager(cmd)
		if err != nil {
			return err
		}
		script, err := m.UserData(tags)
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), script)
		return nil
	},
}

var myIPCmd = &cobra.Command{
	Use:   "my-ip",
	Short: "Print this host's address as seen by the registry",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient(cmd)
		if err != nil {
			return err
		}
		ip, err := c.GetMyIP()
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), ip)
		return nil
	},
}

var pingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Check that the registry is reachable",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient(cmd)
		if err != nil {
			return err
		}
		attempts, _ := cmd.Flags().GetInt("attempts")
		if !c.PingWithRetries(attempts) {
			return fmt.Errorf("registry at %s is not responding", c.Endpoint())
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ %s is up\n", c.Endpoint())
		return nil
	},
}

var hostsCmd = &cobra.Command{
	Use:   "hosts",
	Short: "Print user@host of every instance in the session",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := attachedManager(cmd)
		if err != nil {
			return err
		}
		hosts, err := m.Hosts()
		if err != nil {
			return err
		}
		for _, h := range hosts {
			fmt.Fprintln(cmd.OutOrStdout(), h)
		}
		return nil
	},
}

var shellCmd = &cobra.Command{
	Use:   "shell",
	Short: "Start the interactive shell",
	Long: `Start the interactive shell. With --session-id the shell attaches to
that session and leaves it in place on exit; otherwise a new session is
started and closed on exit unless --retain is given or 'retain' is run.`,
	Args: cobra.NoArgs,
	RunE: runShell,
}

func init() {
	pingCmd.Flags().Int("attempts", int(pingTimeout/client.PingInterval), "Readiness probes before giving up")
	shellCmd.Flags().Bool("retain", false, "Keep the new session after exit")
	addProbeFlags(shellCmd)
}

func runShell(cmd *cobra.Command, args []string) (err error) {
	c, err := newClient(cmd)
	if err != nil {
		return err
	}
	if !c.PingWithRetries(int(pingTimeout / client.PingInterval)) {
		return fmt.Errorf("registry at %s is not responding", c.Endpoint())
	}

	m := session.NewManager(c)
	defer func() {
		if closeErr := m.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	id, _ := cmd.Flags().GetString("session-id")
	if id != "" {
		if _, err := m.Attach(id); err != nil {
			return err
		}
	} else {
		if _, err := m.Start(); err != nil {
			return err
		}
		if retain, _ := cmd.Flags().GetBool("retain"); retain {
			if err := m.Retain(); err != nil {
				return err
			}
		}
	}

	probe, err := probeConfig(cmd)
	if err != nil {
		return err
	}

	registry := shell.NewRegistry()
	if err := shell.Install(registry, m, probe); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Session %s on %s. Type 'help' for commands.\n", m.Current().ID, c.Endpoint())
	sh := shell.New(registry, os.Stdin, cmd.OutOrStdout())
	return sh.Run(cmd.Context())
}
