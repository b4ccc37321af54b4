package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/dataimport/internal/config"
	"github.com/JonMunkholm/dataimport/internal/logging"
)

type globalOptions struct {
	envFile        string
	definitionsDir string
	baseDir        string
}

func newRootCmd() *cobra.Command {
	var opts globalOptions

	cmd := &cobra.Command{
		Use:           "importer",
		Short:         "Run and manage data import definitions",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "Environment file loaded when present")
	cmd.PersistentFlags().StringVar(&opts.definitionsDir, "definitions", "", "Definitions directory (overrides IMPORT_DEFINITIONS_DIR)")
	cmd.PersistentFlags().StringVar(&opts.baseDir, "base-dir", "", "Base directory for source files (overrides IMPORT_BASE_DIR)")

	cmd.AddCommand(newRunCmd(&opts))
	cmd.AddCommand(newValidateCmd())
	cmd.AddCommand(newListCmd(&opts))
	cmd.AddCommand(newResetCmd(&opts))
	return cmd
}

// loadConfig reads the environment and applies flag overrides. Logs go to
// stderr so stdout stays machine readable.
func loadConfig(opts *globalOptions) (*config.Config, error) {
	if opts.envFile != "" {
		if _, err := os.Stat(opts.envFile); err == nil {
			if err := godotenv.Overload(opts.envFile); err != nil {
				return nil, withCode(exitUsage, fmt.Errorf("load %s: %w", opts.envFile, err))
			}
		}
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, withCode(exitUsage, err)
	}
	if opts.definitionsDir != "" {
		cfg.Import.DefinitionsDir = opts.definitionsDir
	}
	if opts.baseDir != "" {
		cfg.Import.BaseDir = opts.baseDir
	}

	slog.SetDefault(logging.New(os.Stderr, cfg.Logging.Level, cfg.Logging.Format))
	return cfg, nil
}

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		code := exitCode(err)
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(code)
	}
}
