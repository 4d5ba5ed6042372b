package cmd

import (
	"github.com/spf13/cobra"

	"github.com/gwsandbox/gwsandbox-ctl/internal/definition"
	"github.com/gwsandbox/gwsandbox-ctl/internal/errors"
)

var createCmd = &cobra.Command{
	Use:   "create [name]",
	Short: "Create a gateway environment",
	Long: `Create a gateway environment from a definition file or from flags.

The environment is rendered and registered in the created state; use
"gwsandbox-ctl start" to launch it.

Examples:
  gwsandbox-ctl create -f line-a.yaml
  gwsandbox-ctl create line-a --project projects/line-a
  gwsandbox-ctl create plant --mode restore --backup backups/plant.gwbk`,
	Args: cobra.MaximumNArgs(1),
	RunE: runCreate,
}

var (
	createFile      string
	createMode      string
	createBackup    string
	createProjects  []string
	createTagExport string
	createEdition   string
	createTimezone  string
	createImageTag  string
	createHTTPPort  int
	createHTTPSPort int
	createModules   []string
)

func init() {
	createCmd.Flags().StringVarP(&createFile, "file", "f", "", "Definition file (YAML or JSON)")
	createCmd.Flags().StringVar(&createMode, "mode", "", "Initialization mode: clean or restore")
	createCmd.Flags().StringVar(&createBackup, "backup", "", "Gateway backup (.gwbk) under the environments root")
	createCmd.Flags().StringArrayVar(&createProjects, "project", nil, "Project directory under the environments root (repeatable)")
	createCmd.Flags().StringVar(&createTagExport, "tags", "", "Tag export (.json or .xml) under the environments root")
	createCmd.Flags().StringVar(&createEdition, "edition", "", "Gateway edition: standard, edge or maker")
	createCmd.Flags().StringVar(&createTimezone, "timezone", "", "Gateway timezone")
	createCmd.Flags().StringVar(&createImageTag, "image-tag", "", "Gateway image tag")
	createCmd.Flags().IntVar(&createHTTPPort, "http-port", 0, "Host HTTP port (default: allocated)")
	createCmd.Flags().IntVar(&createHTTPSPort, "https-port", 0, "Host HTTPS port (default: allocated)")
	createCmd.Flags().StringSliceVar(&createModules, "modules", nil, "Comma-separated module identifiers to enable")
	rootCmd.AddCommand(createCmd)
}

func runCreate(cmd *cobra.Command, args []string) error {
	def, err := definitionFromFlags(cmd, args)
	if err != nil {
		return err
	}

	a, err := currentApp()
	if err != nil {
		return err
	}

	view, err := a.Orchestrator.Create(cmd.Context(), *def)
	if err != nil {
		return err
	}

	if jsonOutput {
		return printJSON(cmd.OutOrStdout(), view)
	}
	logSuccess("Created environment %s (%s)", view.Name, view.ID)
	logInfo("Gateway will listen on %s once started", view.GatewayURL)
	return nil
}

// definitionFromFlags loads the definition file, if any, and overlays
// explicitly set flags on top of it.
func definitionFromFlags(cmd *cobra.Command, args []string) (*definition.Definition, error) {
	def := &definition.Definition{}
	if createFile != "" {
		loaded, err := definition.Load(createFile)
		if err != nil {
			return nil, err
		}
		def = loaded
	}

	if len(args) == 1 {
		def.Name = args[0]
	}
	if def.Name == "" {
		return nil, errors.InvalidDefinition("environment name is required (argument or name in the definition file)")
	}

	flags := cmd.Flags()
	if flags.Changed("mode") {
		def.Mode = definition.Mode(createMode)
	}
	if flags.Changed("backup") {
		def.Backup = createBackup
	}
	if flags.Changed("project") {
		def.Projects = createProjects
	}
	if flags.Changed("tags") {
		def.TagExport = createTagExport
	}
	if flags.Changed("edition") {
		def.Gateway.Edition = createEdition
	}
	if flags.Changed("timezone") {
		def.Gateway.Timezone = createTimezone
	}
	if flags.Changed("image-tag") {
		def.Image.Tag = createImageTag
	}
	if flags.Changed("http-port") {
		def.Gateway.HTTPPort = createHTTPPort
	}
	if flags.Changed("https-port") {
		def.Gateway.HTTPSPort = createHTTPSPort
	}
	if flags.Changed("modules") {
		def.Gateway.ModulesEnabled = createModules
	}
	return def, nil
}
