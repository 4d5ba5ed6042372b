package cmd

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/gwsandbox/gwsandbox-ctl/internal/health"
	"github.com/gwsandbox/gwsandbox-ctl/internal/registry"
)

var lsCmd = &cobra.Command{
	Use:     "ls",
	Aliases: []string{"list"},
	Short:   "List environments",
	Args:    cobra.NoArgs,
	RunE:    runLs,
}

func init() {
	rootCmd.AddCommand(lsCmd)
}

func runLs(cmd *cobra.Command, args []string) error {
	a, err := currentApp()
	if err != nil {
		return err
	}

	views := a.Orchestrator.List(cmd.Context())
	if jsonOutput {
		return printJSON(cmd.OutOrStdout(), views)
	}
	if len(views) == 0 {
		logInfo("No environments")
		return nil
	}

	now := time.Now()
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tSTATUS\tHTTP\tURL\tUPTIME")
	for _, v := range views {
		uptime := "-"
		if v.Status == registry.StatusRunning {
			uptime = health.FormatUptime(v.Uptime(now))
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\n",
			shortID(v.ID), v.Name, formatStatus(v.Status), v.Ports.HTTP, v.GatewayURL, uptime)
	}
	return w.Flush()
}
