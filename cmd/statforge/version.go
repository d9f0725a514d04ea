package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aretw0/statforge"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of statforge",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "statforge version %s\n", strings.TrimSpace(statforge.Version))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
