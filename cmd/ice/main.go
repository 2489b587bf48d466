package main

import (
	"fmt"
	"os"
	"time"

	"github.com/glestaris/ice/pkg/client"
	"github.com/glestaris/ice/pkg/config"
	"github.com/glestaris/ice/pkg/log"
	"github.com/glestaris/ice/pkg/session"
	"github.com/spf13/cobra"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "ice",
	Short: "ice - operator CLI for experiment sessions",
	Long: `ice manages experimentation sessions and the cloud instances
registered to them.

The registry address comes from registry.yaml (client section),
ICE_REGISTRY_HOST / ICE_REGISTRY_PORT, or the flags below.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level, _ := cmd.Flags().GetString("log-level")
		log.Init(log.Config{Level: log.ParseLevel(level), Output: os.Stderr})
	},
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"ice version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.PersistentFlags().String("host", "", "Registry host (default from config, localhost)")
	rootCmd.PersistentFlags().Int("port", 0, "Registry port (default from config, 5000)")
	rootCmd.PersistentFlags().Duration("timeout", client.DefaultTimeout, "Timeout of each registry call")
	rootCmd.PersistentFlags().String("session-id", os.Getenv("ICE_SESSION_ID"), "Session to operate on (env ICE_SESSION_ID)")
	rootCmd.PersistentFlags().String("log-level", "warn", "Log level: debug, info, warn, error")

	rootCmd.AddCommand(sessionCmd)
	rootCmd.AddCommand(instCmd)
	rootCmd.AddCommand(userDataCmd)
	rootCmd.AddCommand(myIPCmd)
	rootCmd.AddCommand(pingCmd)
	rootCmd.AddCommand(hostsCmd)
	rootCmd.AddCommand(shellCmd)
}

// newClient builds a registry client from config, env and flags
func newClient(cmd *cobra.Command) (*client.Client, error) {
	cfg, err := config.LoadClient(os.Getenv)
	if err != nil {
		return nil, err
	}
	if v, _ := cmd.Flags().GetString("host"); v != "" {
		cfg.Host = v
	}
	if v, _ := cmd.Flags().GetInt("port"); v != 0 {
		cfg.Port = v
	}
	timeout, _ := cmd.Flags().GetDuration("timeout")

	return client.New(client.Config{
		Host:      cfg.Host,
		Port:      cfg.Port,
		Timeout:   timeout,
		UserAgent: "ice-client/" + Version,
	}), nil
}

// attachedManager returns a manager attached to --session-id. Commands run
// as one-shot processes, so the session is always retained.
func attachedManager(cmd *cobra.Command) (*session.Manager, error) {
	c, err := newClient(cmd)
	if err != nil {
		return nil, err
	}
	id, _ := cmd.Flags().GetString("session-id")
	if id == "" {
		return nil, fmt.Errorf("--session-id or ICE_SESSION_ID is required")
	}

	m := session.NewManager(c)
	if _, err := m.Attach(id); err != nil {
		return nil, err
	}
	return m, nil
}

// pingTimeout bounds how long commands wait for a registry that is still
// starting
const pingTimeout = 3 * time.Second
