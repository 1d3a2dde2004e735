// Contextpack assembles token-budgeted context from local documents.
//
// Usage:
//
//	# Print the context for a query over a directory of notes
//	contextpack build --query "renewable energy" ./notes
//
//	# Serve the HTTP API and ingest new files as they appear
//	contextpack serve --watch ./notes
//
// Configuration comes from --config (YAML or TOML) and CONTEXTPACK_*
// environment variables.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

// configPath is the optional configuration file.
var configPath string

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "contextpack",
		Short: "Token-budgeted context assembly",
		Long: `contextpack chunks documents, removes near-duplicate passages, ranks the
rest against a query and packs the best chunks into a fixed token budget.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "configuration file (.yaml, .yml or .toml)")

	root.AddCommand(newBuildCmd())
	root.AddCommand(newServeCmd())
	root.AddCommand(newVersionCmd())
	return root
}
