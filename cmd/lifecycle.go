package cmd

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/gwsandbox/gwsandbox-ctl/internal/orchestrator"
)

var startCmd = &cobra.Command{
	Use:   "start <environment>",
	Short: "Start an environment",
	Long: `Start the gateway workload of an environment.

Without --wait the command returns once the runtime has accepted the
project. With --wait it blocks until the gateway reports RUNNING or the
timeout elapses.`,
	Args: cobra.ExactArgs(1),
	RunE: runStart,
}

var stopCmd = &cobra.Command{
	Use:   "stop <environment>",
	Short: "Stop a running environment",
	Args:  cobra.ExactArgs(1),
	RunE:  runStop,
}

var deleteCmd = &cobra.Command{
	Use:     "delete <environment>",
	Aliases: []string{"rm"},
	Short:   "Delete an environment and its rendered artifacts",
	Long: `Delete an environment.

A running environment must be stopped first. Host inputs under the
environments root are never touched.`,
	Args: cobra.ExactArgs(1),
	RunE: runDelete,
}

var (
	startWait    bool
	startTimeout time.Duration
)

func init() {
	startCmd.Flags().BoolVarP(&startWait, "wait", "w", false, "Wait for the gateway to become ready")
	startCmd.Flags().DurationVar(&startTimeout, "timeout", 0, "Maximum time to wait (default from config)")
	rootCmd.AddCommand(startCmd, stopCmd, deleteCmd)
}

func runStart(cmd *cobra.Command, args []string) error {
	a, err := currentApp()
	if err != nil {
		return err
	}
	id, err := resolveID(cmd.Context(), a.Orchestrator, args[0])
	if err != nil {
		return err
	}

	if startWait {
		logInfo("Waiting for %s to become ready...", args[0])
	}
	v, err := a.Orchestrator.Start(cmd.Context(), id, orchestrator.StartOptions{
		Wait:    startWait,
		Timeout: startTimeout,
	})
	if err != nil {
		return err
	}
	if jsonOutput {
		return printJSON(cmd.OutOrStdout(), v)
	}
	logSuccess("Environment %s is %s", v.Name, v.Status)
	logInfo("Gateway: %s", v.GatewayURL)
	return nil
}

func runStop(cmd *cobra.Command, args []string) error {
	a, err := currentApp()
	if err != nil {
		return err
	}
	id, err := resolveID(cmd.Context(), a.Orchestrator, args[0])
	if err != nil {
		return err
	}

	v, err := a.Orchestrator.Stop(cmd.Context(), id)
	if err != nil {
		return err
	}
	if jsonOutput {
		return printJSON(cmd.OutOrStdout(), v)
	}
	logSuccess("Environment %s is %s", v.Name, v.Status)
	return nil
}

func runDelete(cmd *cobra.Command, args []string) error {
	a, err := currentApp()
	if err != nil {
		return err
	}
	id, err := resolveID(cmd.Context(), a.Orchestrator, args[0])
	if err != nil {
		return err
	}

	v, err := a.Orchestrator.Delete(cmd.Context(), id)
	if err != nil {
		return err
	}
	if jsonOutput {
		return printJSON(cmd.OutOrStdout(), v)
	}
	logSuccess("Deleted environment %s", v.Name)
	return nil
}
