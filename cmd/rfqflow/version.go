package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aretw0/rfqflow"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of rfqflow",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "rfqflow version %s\n", strings.TrimSpace(rfqflow.Version))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
