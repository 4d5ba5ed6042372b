package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var logsCmd = &cobra.Command{
	Use:   "logs <environment>",
	Short: "Follow the gateway's log output",
	Long: `Follow the log output of a running environment until interrupted or
until the workload's log stream ends.`,
	Args: cobra.ExactArgs(1),
	RunE: runLogs,
}

func init() {
	rootCmd.AddCommand(logsCmd)
}

func runLogs(cmd *cobra.Command, args []string) error {
	a, err := currentApp()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	id, err := resolveID(ctx, a.Orchestrator, args[0])
	if err != nil {
		return err
	}
	sub, err := a.Orchestrator.StreamLogs(ctx, id)
	if err != nil {
		return err
	}
	defer sub.Close()

	out := cmd.OutOrStdout()
	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-sub.Lines():
			if !ok {
				return nil
			}
			fmt.Fprintln(out, line)
		}
	}
}
