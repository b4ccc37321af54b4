package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/dataimport/internal/application"
	"github.com/JonMunkholm/dataimport/internal/config"
	"github.com/JonMunkholm/dataimport/internal/core"
)

type runOptions struct {
	printLog     bool
	progress     bool
	failOnErrors bool
}

func newRunCmd(global *globalOptions) *cobra.Command {
	var opts runOptions

	cmd := &cobra.Command{
		Use:   "run <definition-key>",
		Short: "Run one import and print its summary as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(global)
			if err != nil {
				return err
			}
			return runImport(cmd.Context(), cfg, args[0], opts, cmd.OutOrStdout())
		},
	}

	cmd.Flags().BoolVar(&opts.printLog, "log", false, "Print the run log entries before the summary")
	cmd.Flags().BoolVar(&opts.progress, "progress", false, "Report progress on stderr")
	cmd.Flags().BoolVar(&opts.failOnErrors, "fail-on-errors", false, "Exit non-zero when rows or fields failed")
	return cmd
}

func runImport(ctx context.Context, cfg *config.Config, key string, opts runOptions, out io.Writer) error {
	app, err := application.Open(ctx, cfg)
	if err != nil {
		return withCode(exitDB, err)
	}
	defer app.Close()

	if _, ok := app.Catalog.Get(key); !ok {
		return withCode(exitUsage, fmt.Errorf("unknown definition %q in %s", key, cfg.Import.DefinitionsDir))
	}

	runID, err := app.Jobs.Start(ctx, key)
	if err != nil {
		return withCode(exitRunFailed, err)
	}

	if opts.progress {
		ch, err := app.Jobs.Subscribe(runID)
		if err == nil {
			go func() {
				for p := range ch {
					fmt.Fprintf(os.Stderr, "%s: %d/%d (%d%%)\n", key, p.Current, p.Total, p.Percent())
				}
			}()
		}
	}

	summary, err := app.Jobs.Result(ctx, runID)
	if err != nil {
		// Interrupted: stop the run and report what it did.
		_ = app.Jobs.Cancel(runID)
		summary, err = app.Jobs.Result(context.Background(), runID)
		if err != nil {
			return withCode(exitRunFailed, err)
		}
	}

	if opts.printLog {
		entries, err := app.Jobs.Log(runID)
		if err != nil {
			return withCode(exitRunFailed, err)
		}
		for _, e := range entries {
			if err := writeJSONLine(out, e); err != nil {
				return err
			}
		}
	}
	if err := writeJSONLine(out, summary); err != nil {
		return err
	}

	switch summary.Status {
	case core.RunAborted:
		return withCode(exitRunFailed, fmt.Errorf("run %s of %s aborted", runID, key))
	case core.RunCancelled:
		return withCode(exitCancelled, fmt.Errorf("run %s of %s cancelled", runID, key))
	case core.RunCompletedWithErrors:
		if opts.failOnErrors {
			return withCode(exitRunFailed, fmt.Errorf("run %s of %s completed with errors", runID, key))
		}
	}
	return nil
}
