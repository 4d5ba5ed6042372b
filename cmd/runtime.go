package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/gwsandbox/gwsandbox-ctl/internal/runtime"
	"github.com/gwsandbox/gwsandbox-ctl/internal/system"
)

var runtimeCmd = &cobra.Command{
	Use:   "runtime",
	Short: "Check the container runtime",
	Args:  cobra.NoArgs,
	RunE:  runRuntime,
}

type runtimeReport struct {
	Driver    string   `json:"driver"`
	Reachable bool     `json:"reachable"`
	Error     string   `json:"error,omitempty"`
	Available []string `json:"available"`
}

func init() {
	rootCmd.AddCommand(runtimeCmd)
}

func runRuntime(cmd *cobra.Command, args []string) error {
	a, err := currentApp()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
	defer cancel()

	report := runtimeReport{
		Driver:    a.Driver.Name(),
		Available: runtime.Available(system.DefaultExecutor()),
	}
	if report.Available == nil {
		report.Available = []string{}
	}
	if err := a.Driver.Ping(ctx); err != nil {
		report.Error = err.Error()
	} else {
		report.Reachable = true
	}

	if jsonOutput {
		return printJSON(cmd.OutOrStdout(), report)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Driver:    %s\n", report.Driver)
	if report.Reachable {
		fmt.Fprintf(out, "Status:    %s\n", formatStatus("running"))
	} else {
		fmt.Fprintf(out, "Status:    %s (%s)\n", formatStatus("error"), report.Error)
	}
	fmt.Fprintf(out, "Available: %s\n", dash(strings.Join(report.Available, ", ")))
	return nil
}
