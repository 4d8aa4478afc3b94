package main

import (
	"github.com/spf13/cobra"

	"github.com/studyhub/studyhub/src/internal/config"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	// Version needs no configuration
	PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
	Run: func(cmd *cobra.Command, _ []string) {
		cmd.Printf("studyhub %s (commit %s, built %s, %s)\n",
			config.Version, config.GitCommit, config.BuildDate, config.GoVersion)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
