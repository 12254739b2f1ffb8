package main

import (
	"os"

	"github.com/spf13/cobra"
)

const version = "0.3.1"

var rootCmd = &cobra.Command{
	Use:   "redactcli",
	Short: "Offline PII detection and redaction",
	Long:  "redactcli runs the EscalateSafe detection engine against local text without touching any helpdesk or tracker.",
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print redactcli version",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Printf("redactcli version %s\n", version)
	},
}

func main() {
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(redactCmd)
	rootCmd.AddCommand(versionCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
