package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var showCmd = &cobra.Command{
	Use:   "show <environment>",
	Short: "Show one environment",
	Long: `Show the stored state of one environment.

The environment may be given by id, by a unique id prefix of at least
four characters, or by name.`,
	Args: cobra.ExactArgs(1),
	RunE: runShow,
}

func init() {
	rootCmd.AddCommand(showCmd)
}

func runShow(cmd *cobra.Command, args []string) error {
	a, err := currentApp()
	if err != nil {
		return err
	}
	id, err := resolveID(cmd.Context(), a.Orchestrator, args[0])
	if err != nil {
		return err
	}
	v, err := a.Orchestrator.Get(cmd.Context(), id)
	if err != nil {
		return err
	}
	if jsonOutput {
		return printJSON(cmd.OutOrStdout(), v)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "ID:       %s\n", v.ID)
	fmt.Fprintf(out, "Name:     %s\n", v.Name)
	fmt.Fprintf(out, "Status:   %s\n", formatStatus(v.Status))
	fmt.Fprintf(out, "Mode:     %s\n", v.Summary.Mode)
	fmt.Fprintf(out, "Image:    %s\n", v.Summary.Image)
	fmt.Fprintf(out, "URL:      %s\n", v.GatewayURL)
	fmt.Fprintf(out, "Ports:    http=%d https=%d\n", v.Ports.HTTP, v.Ports.HTTPS)
	if len(v.Summary.Projects) > 0 {
		fmt.Fprintf(out, "Projects: %s\n", strings.Join(v.Summary.Projects, ", "))
	}
	if v.Summary.Backup != "" {
		fmt.Fprintf(out, "Backup:   %s\n", v.Summary.Backup)
	}
	fmt.Fprintf(out, "Manifest: %s\n", v.Artifacts.Manifest)
	if v.LastError != "" {
		fmt.Fprintf(out, "Error:    %s\n", v.LastError)
	}
	return nil
}
