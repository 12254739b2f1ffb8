package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/frozoai/escalatesafe/internal/redaction"
)

// Shared detection flags
var (
	flagFile      string
	flagThreshold float64
	flagRegional  bool
	flagTypes     string
	flagOutput    string
)

func addDetectionFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&flagFile, "file", "f", "", "Input file path (default: stdin)")
	cmd.Flags().Float64Var(&flagThreshold, "threshold", redaction.DefaultConfidenceThreshold, "Confidence threshold (0..1)")
	cmd.Flags().BoolVar(&flagRegional, "regional", false, "Enable regional entity types (Indian PAN, GSTIN)")
	cmd.Flags().StringVar(&flagTypes, "types", "", "Restrict to entity types (comma-separated)")
	cmd.Flags().StringVarP(&flagOutput, "output", "o", "json", "Output format (json, yaml)")
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Detect PII entities in text and print the findings",
	RunE: func(cmd *cobra.Command, args []string) error {
		text, err := readInput(args)
		if err != nil {
			return err
		}

		detector := redaction.NewDetector(redaction.DefaultRegistry())
		detections := detector.Analyze(text, detectionConfig())
		if detections == nil {
			detections = redaction.DetectionResult{}
		}
		return writeOutput(cmd.OutOrStdout(), map[string]any{
			"total":      len(detections),
			"detections": detections,
		})
	},
}

func init() {
	addDetectionFlags(analyzeCmd)
}

func detectionConfig() redaction.Config {
	cfg := redaction.Config{
		ConfidenceThreshold:    redaction.Threshold(flagThreshold),
		EnableRegionalEntities: flagRegional,
	}
	if flagTypes != "" {
		for _, t := range strings.Split(flagTypes, ",") {
			if t = strings.TrimSpace(t); t != "" {
				cfg.EnabledEntityTypes = append(cfg.EnabledEntityTypes, t)
			}
		}
	}
	return cfg
}

// readInput takes text from the first positional arg, --file, or stdin.
func readInput(args []string) (string, error) {
	if len(args) > 0 {
		return strings.Join(args, " "), nil
	}
	if flagFile != "" {
		b, err := os.ReadFile(flagFile)
		if err != nil {
			return "", err
		}
		return string(b), nil
	}
	b, err := io.ReadAll(os.Stdin)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func writeOutput(w io.Writer, v any) error {
	switch flagOutput {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml":
		return yaml.NewEncoder(w).Encode(v)
	default:
		return fmt.Errorf("unknown output format: %s", flagOutput)
	}
}
