package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/dataimport/internal/definition"
)

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <file-or-dir>...",
		Short: "Check import definitions without running them",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(args, cmd.OutOrStdout())
		},
	}
}

func runValidate(paths []string, out io.Writer) error {
	var failed int
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return withCode(exitUsage, err)
		}

		if !info.IsDir() {
			def, err := definition.Load(path)
			if err != nil {
				failed++
				fmt.Fprintf(out, "FAIL %s\n%v\n", path, err)
				continue
			}
			fmt.Fprintf(out, "ok   %s (%s)\n", def.Key, path)
			continue
		}

		catalog, err := definition.LoadDir(path)
		if catalog == nil {
			return withCode(exitUsage, err)
		}
		for _, def := range catalog.All() {
			fmt.Fprintf(out, "ok   %s (%s)\n", def.Key, def.Path)
		}
		if err != nil {
			failed += len(unjoin(err))
			fmt.Fprintf(out, "FAIL %s\n%v\n", path, err)
		}
	}

	if failed > 0 {
		return withCode(exitValidation, fmt.Errorf("%d definition(s) invalid", failed))
	}
	return nil
}

// unjoin splits an errors.Join result into its parts.
func unjoin(err error) []error {
	var joined interface{ Unwrap() []error }
	if errors.As(err, &joined) {
		return joined.Unwrap()
	}
	return []error{err}
}
