package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

type globalOptions struct {
	logLevel  string
	logFormat string
}

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "mnsd: %s\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	g := &globalOptions{}
	root := &cobra.Command{
		Use:   "mnsd",
		Short: "MAP message notification service",
		Long: `mnsd accepts MAP event-report pushes from message servers and routes
each report to the listener registered for its MAS instance id.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&g.logLevel, "log-level", "", "Log level: debug|info|warn|error (default info)")
	root.PersistentFlags().StringVar(&g.logFormat, "log-format", "", "Log format: json|console (default json)")

	root.AddCommand(
		serveCmd(g),
		sendCmd(g),
		versionCmd(),
	)
	return root
}
