package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/glestaris/ice/pkg/agent"
	"github.com/glestaris/ice/pkg/log"
	"github.com/glestaris/ice/pkg/types"
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
	Use:           "ice-agent",
	Short:         "Register this VM with an ice registry",
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var registerSelfCmd = &cobra.Command{
	Use:   "register-self",
	Short: "Discover this host and register it as an instance",
	Long: `Discover the networks, SSH identity and public address of this host and
register it as an instance of a session.

The endpoint and session id may also come from ICE_API_ENDPOINT and
ICE_SESSION_ID. Requires root or passwordless sudo.`,
	Args: cobra.NoArgs,
	RunE: runRegisterSelf,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "ice-agent version %s\nCommit: %s\nBuilt: %s\n", Version, Commit, BuildTime)
	},
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"ice-agent version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	registerSelfCmd.Flags().String("api-endpoint", "", "Registry URL, e.g. http://10.0.0.1:5000")
	registerSelfCmd.Flags().String("session-id", "", "Session to register under")
	registerSelfCmd.Flags().StringArray("tag", nil, "Instance tag as key=value (repeatable)")
	registerSelfCmd.Flags().String("breadcrumb", agent.DefaultBreadcrumbPath, "File recording the registered instance id")
	registerSelfCmd.Flags().Bool("skip-if-registered", false, "Exit without registering if the breadcrumb names an instance of this session")
	registerSelfCmd.Flags().BoolP("verbose", "v", false, "Log discovery details")

	rootCmd.AddCommand(registerSelfCmd)
	rootCmd.AddCommand(versionCmd)
}

func runRegisterSelf(cmd *cobra.Command, args []string) error {
	endpoint, _ := cmd.Flags().GetString("api-endpoint")
	sessionID, _ := cmd.Flags().GetString("session-id")
	tagWords, _ := cmd.Flags().GetStringArray("tag")
	breadcrumb, _ := cmd.Flags().GetString("breadcrumb")
	skip, _ := cmd.Flags().GetBool("skip-if-registered")
	verbose, _ := cmd.Flags().GetBool("verbose")

	level := log.WarnLevel
	if verbose {
		level = log.DebugLevel
	}
	log.Init(log.Config{Level: level, Output: os.Stderr})

	tags, err := types.ParseTags(tagWords)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := agent.New(agent.Config{
		Endpoint:         endpoint,
		SessionID:        sessionID,
		Tags:             tags,
		BreadcrumbPath:   breadcrumb,
		SkipIfRegistered: skip,
	}, agent.WithUserAgent("ice-agent/"+Version))

	result, err := a.Register(ctx)
	if err != nil {
		return err
	}

	if result.Skipped {
		fmt.Fprintf(cmd.OutOrStdout(), "already registered as %s\n", result.Instance.ID)
		return nil
	}
	fmt.Fprintln(cmd.OutOrStdout(), result.Instance.ID)
	return nil
}
