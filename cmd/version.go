package cmd

import (
	"fmt"
	goruntime "runtime"

	"github.com/spf13/cobra"
)

// Version is set at build time with -ldflags "-X .../cmd.Version=...".
var Version = "dev"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "gwsandbox-ctl %s (%s/%s, %s)\n",
			Version, goruntime.GOOS, goruntime.GOARCH, goruntime.Version())
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
