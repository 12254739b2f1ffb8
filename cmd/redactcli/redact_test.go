package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/frozoai/escalatesafe/internal/redaction"
)

func resetFlags() {
	flagFile = ""
	flagThreshold = redaction.DefaultConfidenceThreshold
	flagRegional = false
	flagTypes = ""
	flagOutput = "json"
	flagReport = false
}

func TestRedactCommand(t *testing.T) {
	resetFlags()
	var buf bytes.Buffer
	redactCmd.SetOut(&buf)

	if err := redactCmd.RunE(redactCmd, []string{"mail john@example.com or call +1-555-123-4567"}); err != nil {
		t.Fatalf("run: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "[EMAIL_ADDRESS_REDACTED]") || !strings.Contains(out, "[PHONE_NUMBER_REDACTED]") {
		t.Errorf("output = %q", out)
	}
	if strings.Contains(out, "john@example.com") {
		t.Errorf("raw PII in output: %q", out)
	}
}

func TestAnalyzeCommandJSON(t *testing.T) {
	resetFlags()
	var buf bytes.Buffer
	analyzeCmd.SetOut(&buf)

	if err := analyzeCmd.RunE(analyzeCmd, []string{"mail john@example.com"}); err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.Contains(buf.String(), `"EMAIL_ADDRESS"`) {
		t.Errorf("output = %q", buf.String())
	}
}

func TestAnalyzeCommandNoDetections(t *testing.T) {
	resetFlags()
	var buf bytes.Buffer
	analyzeCmd.SetOut(&buf)

	if err := analyzeCmd.RunE(analyzeCmd, []string{"nothing sensitive here"}); err != nil {
		t.Fatalf("run: %v", err)
	}
	// Empty result is an empty array, not null.
	if !strings.Contains(buf.String(), `"detections": []`) {
		t.Errorf("output = %q", buf.String())
	}
	if !strings.Contains(buf.String(), `"total": 0`) {
		t.Errorf("output = %q", buf.String())
	}
}

func TestAnalyzeCommandRegionalFlag(t *testing.T) {
	resetFlags()
	flagRegional = true
	var buf bytes.Buffer
	analyzeCmd.SetOut(&buf)

	if err := analyzeCmd.RunE(analyzeCmd, []string{"PAN ABCDE1234F"}); err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.Contains(buf.String(), `"INDIAN_PAN"`) {
		t.Errorf("output = %q", buf.String())
	}
}
