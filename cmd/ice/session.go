package main

import (
	"fmt"

	"github.com/glestaris/ice/pkg/session"
	"github.com/glestaris/ice/pkg/shell"
	"github.com/glestaris/ice/pkg/types"
	"github.com/spf13/cobra"
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Manage sessions",
}

var sessionStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Create a session and print its id",
	Long: `Create a session owned by this host and print its id.

The session outlives this command; export its id as ICE_SESSION_ID and
close it with 'ice session close' when done, or use 'ice shell' to have
it closed on exit.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient(cmd)
		if err != nil {
			return err
		}
		m := session.NewManager(c)
		sess, err := m.Start()
		if err != nil {
			return err
		}
		if err := m.Retain(); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), sess.ID)
		return m.Close()
	},
}

var sessionShowCmd = &cobra.Command{
	Use:   "show [SESSION_ID]",
	Short: "Show a session (default: --session-id)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient(cmd)
		if err != nil {
			return err
		}
		id, _ := cmd.Flags().GetString("session-id")
		if len(args) == 1 {
			id = args[0]
		}
		if id == "" {
			return fmt.Errorf("session id required")
		}
		sess, err := c.GetSession(id)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), shell.RenderSessions([]*types.Session{sess}))
		return nil
	},
}

var sessionListCmd = &cobra.Command{
	Use:     "ls",
	Aliases: []string{"list"},
	Short:   "List sessions",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient(cmd)
		if err != nil {
			return err
		}
		var where map[string]any
		if ip, _ := cmd.Flags().GetString("client-ip"); ip != "" {
			where = map[string]any{"client_ip_addr": ip}
		}
		sessions, err := c.ListSessions(where)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), shell.RenderSessions(sessions))
		return nil
	},
}

var sessionCloseCmd = &cobra.Command{
	Use:   "close [SESSION_ID]",
	Short: "Delete a session and all its instances",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient(cmd)
		if err != nil {
			return err
		}
		id, _ := cmd.Flags().GetString("session-id")
		if len(args) == 1 {
			id = args[0]
		}
		if id == "" {
			return fmt.Errorf("session id required")
		}
		if err := c.DeleteSession(id); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Session %s closed\n", id)
		return nil
	},
}

func init() {
	sessionListCmd.Flags().String("client-ip", "", "Only sessions started from this address")

	sessionCmd.AddCommand(sessionStartCmd)
	sessionCmd.AddCommand(sessionShowCmd)
	sessionCmd.AddCommand(sessionListCmd)
	sessionCmd.AddCommand(sessionCloseCmd)
}
