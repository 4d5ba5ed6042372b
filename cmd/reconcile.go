package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/gwsandbox/gwsandbox-ctl/internal/orchestrator"
)

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Repair records that drifted from the runtime",
	Long: `Compare every environment record with the runtime's live status.

Running environments whose workload is gone are marked as error, and
interrupted starts and stops are resolved. Records touched recently are
skipped unless --all is given.`,
	Args: cobra.NoArgs,
	RunE: runReconcile,
}

var reconcileAll bool

func init() {
	reconcileCmd.Flags().BoolVarP(&reconcileAll, "all", "a", false, "Check every record regardless of age")
	rootCmd.AddCommand(reconcileCmd)
}

func runReconcile(cmd *cobra.Command, args []string) error {
	a, err := currentApp()
	if err != nil {
		return err
	}

	results := a.Orchestrator.Reconcile(cmd.Context(), orchestrator.ReconcileOptions{All: reconcileAll})
	if jsonOutput {
		if results == nil {
			results = []orchestrator.ReconcileResult{}
		}
		return printJSON(cmd.OutOrStdout(), results)
	}

	changed := 0
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tFROM\tTO\tOBSERVED\tNOTE")
	for _, r := range results {
		note := r.Skipped
		if r.Error != "" {
			note = r.Error
		}
		if r.Changed() {
			changed++
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			shortID(r.ID), r.From, r.To, dash(string(r.Observed)), note)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	if changed == 0 {
		logSuccess("No drift found in %d environment(s)", len(results))
	} else {
		logWarning("Repaired %d of %d environment(s)", changed, len(results))
	}
	return nil
}
