package cmd

import (
	"os"

	"github.com/spf13/cobra"
	"github.com/gwsandbox/gwsandbox-ctl/internal/logging"
)

var (
	verbose    bool
	jsonOutput bool
	configPath string
)

var rootCmd = &cobra.Command{
	Use:   "gwsandbox-ctl",
	Short: "Ignition gateway sandbox controller",
	Long: `gwsandbox-ctl provisions isolated Ignition gateway environments on a
single host using docker or podman compose.

Each environment is:
  - Described by a definition (clean or restore from a .gwbk backup)
  - Rendered to a compose manifest under the state directory
  - Driven through created, running, stopped and deleted states
  - Reachable on its own allocated host ports`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logging.Setup(verbose, jsonOutput, os.Stderr)
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config.toml (default $GWSANDBOX_CONFIG or /etc/gwsandbox/config.toml)")
	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

// Helper aliases for user-facing output (delegates to logging package)
var (
	logInfo    = logging.UserInfo
	logSuccess = logging.UserSuccess
	logWarning = logging.UserWarning
)
