package main

import (
	"fmt"
	"strings"

	"github.com/aretw0/doorman"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of doorman",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "doorman version %s\n", strings.TrimSpace(doorman.Version))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
