package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/dataimport/internal/application"
)

func newResetCmd(global *globalOptions) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Delete every imported item from the target store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return withCode(exitUsage, fmt.Errorf("reset deletes all imported content; pass --yes to confirm"))
			}
			cfg, err := loadConfig(global)
			if err != nil {
				return err
			}
			if !cfg.Database.Enabled() {
				return withCode(exitUsage, fmt.Errorf("reset needs DATABASE_URL; the in-memory store holds nothing between runs"))
			}

			app, err := application.Open(cmd.Context(), cfg)
			if err != nil {
				return withCode(exitDB, err)
			}
			defer app.Close()

			if err := app.Reset(cmd.Context()); err != nil {
				return withCode(exitDB, err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "imported content removed")
			return nil
		},
	}

	cmd.Flags().BoolVar(&yes, "yes", false, "Confirm the reset")
	return cmd
}
