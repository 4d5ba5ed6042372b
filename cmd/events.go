package cmd

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/gwsandbox/gwsandbox-ctl/internal/audit"
)

var eventsCmd = &cobra.Command{
	Use:   "events <environment>",
	Short: "Show the lifecycle history of an environment",
	Args:  cobra.ExactArgs(1),
	RunE:  runEvents,
}

var eventsLimit int

func init() {
	eventsCmd.Flags().IntVarP(&eventsLimit, "limit", "n", 0, "Show only the most recent N events")
	rootCmd.AddCommand(eventsCmd)
}

func runEvents(cmd *cobra.Command, args []string) error {
	a, err := currentApp()
	if err != nil {
		return err
	}

	// The history of a deleted environment outlives its record, so an
	// unresolvable reference is tried as a literal id.
	id, err := resolveID(cmd.Context(), a.Orchestrator, args[0])
	if err != nil {
		id = args[0]
	}
	events, err := a.Orchestrator.Events(cmd.Context(), id)
	if err != nil {
		return err
	}
	if eventsLimit > 0 && len(events) > eventsLimit {
		events = events[len(events)-eventsLimit:]
	}
	if events == nil {
		events = []audit.Event{}
	}

	if jsonOutput {
		return printJSON(cmd.OutOrStdout(), events)
	}
	if len(events) == 0 {
		logInfo("No events for %s", args[0])
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tEVENT\tFROM\tTO\tDETAILS")
	for _, e := range events {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			e.Timestamp.Local().Format(time.DateTime), e.Type, dash(e.From), dash(e.To), e.Details)
	}
	return w.Flush()
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
