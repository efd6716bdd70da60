package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aretw0/aoide"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of aoide",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "aoide version %s\n", aoide.Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
