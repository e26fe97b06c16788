package main

import (
	"errors"
	"fmt"
	"sort"

	"github.com/aretw0/doorman/pkg/adapters/file"
	"github.com/aretw0/doorman/pkg/twiml"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate [file]",
	Short: "Check every script in a scripts file",
	Long:  `Parses the scripts file and checks that every step of every caller, including nested gatherDigits branches, can be rendered.`,
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		path := cfg.ScriptsPath
		if len(args) > 0 {
			path = args[0]
		}

		if err := runValidate(cmd, path); err != nil {
			return fmt.Errorf("validation failed: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Scripts are valid! ✅")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, path string) error {
	scripts, err := file.Load(path)
	if err != nil {
		return err
	}

	callers := make([]string, 0, len(scripts))
	for caller := range scripts {
		callers = append(callers, caller)
	}
	sort.Strings(callers)

	var errs []error
	for _, caller := range callers {
		if err := twiml.Validate(scripts[caller]); err != nil {
			fmt.Fprintf(cmd.OutOrStdout(), "✗ %s\n%v\n", caller, err)
			errs = append(errs, fmt.Errorf("caller %s: %w", caller, err))
			continue
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ %s (%d steps)\n", caller, len(scripts[caller]))
	}
	return errors.Join(errs...)
}
