package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/dataimport/internal/definition"
)

func newListCmd(global *globalOptions) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the import definitions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(global)
			if err != nil {
				return err
			}
			return runList(cfg.Import.DefinitionsDir, asJSON, cmd.OutOrStdout())
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print one JSON object per definition")
	return cmd
}

func runList(dir string, asJSON bool, out io.Writer) error {
	catalog, err := definition.LoadDir(dir)
	if catalog == nil {
		return withCode(exitUsage, err)
	}
	if err != nil {
		return withCode(exitValidation, err)
	}

	if asJSON {
		for _, def := range catalog.All() {
			if err := writeJSONLine(out, def); err != nil {
				return err
			}
		}
		return nil
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "GROUP\tKEY\tSOURCE\tROOT\tFIELDS")
	for _, def := range catalog.All() {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\n", def.Group, def.Key, def.Source.Kind, def.Root, len(def.Mappings))
	}
	return tw.Flush()
}
