package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/frozoai/escalatesafe/internal/redaction"
)

var flagReport bool

var redactCmd = &cobra.Command{
	Use:   "redact",
	Short: "Redact PII entities and print the sanitized text",
	RunE: func(cmd *cobra.Command, args []string) error {
		text, err := readInput(args)
		if err != nil {
			return err
		}

		detector := redaction.NewDetector(redaction.DefaultRegistry())
		detections := detector.Analyze(text, detectionConfig())
		redacted, report := redaction.NewRedactor().Redact(text, detections)

		if !flagReport {
			fmt.Fprintln(cmd.OutOrStdout(), redacted)
			return nil
		}
		return writeOutput(cmd.OutOrStdout(), map[string]any{
			"redacted_text": redacted,
			"report":        report,
		})
	},
}

func init() {
	addDetectionFlags(redactCmd)
	redactCmd.Flags().BoolVar(&flagReport, "report", false, "Include the detection report in the output")
}
