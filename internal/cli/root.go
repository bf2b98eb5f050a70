package cli

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	flagConfig   string
	flagLogLevel string
)

// defaultConfig returns the config path, checking COSCHED_CONFIG first.
func defaultConfig() string {
	if p := os.Getenv("COSCHED_CONFIG"); p != "" {
		return p
	}
	return "./cosched.yaml"
}

// NewRootCmd creates the root cobra command for the schedhost CLI.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "schedhost",
		Short:        "schedhost runs configured tasks on a cooperative scheduler",
		Long:         "schedhost registers the tasks from a config file on a fixed-capacity cooperative scheduler and steps it from a single loop.",
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVarP(&flagConfig, "config", "c", defaultConfig(), "Config file, JSON or YAML (or COSCHED_CONFIG env)")
	root.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "Override logging.level (trace, debug, info, warn, error)")

	root.AddCommand(
		newRunCmd(),
		newCheckCmd(),
		newJournalCmd(),
	)
	return root
}
