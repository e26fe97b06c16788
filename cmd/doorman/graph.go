package main

import (
	"fmt"

	"github.com/aretw0/doorman/internal/presentation/graph"
	"github.com/aretw0/doorman/pkg/adapters/file"
	"github.com/spf13/cobra"
)

var graphCmd = &cobra.Command{
	Use:   "graph <caller>",
	Short: "Print a caller's script as a Mermaid flowchart",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		scripts, err := file.Load(cfg.ScriptsPath)
		if err != nil {
			return err
		}
		script, ok := scripts[args[0]]
		if !ok {
			return fmt.Errorf("no script for caller %q in %s", args[0], cfg.ScriptsPath)
		}
		fmt.Fprint(cmd.OutOrStdout(), graph.GenerateMermaid(args[0], script))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(graphCmd)
}
