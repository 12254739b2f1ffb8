package redaction

import (
	"fmt"
	"sort"
	"strings"
)

// lowConfidenceWarnThreshold is the ceiling of the warn band: kept matches
// scoring below it are flagged in the report. They are still redacted; the
// always-redact policy never depends on the warn band.
const lowConfidenceWarnThreshold = 0.7

// Warning flags one kept match inside the warn band.
type Warning struct {
	EntityType string  `json:"entity_type"`
	Score      float64 `json:"score"`
	Start      int     `json:"start"`
	End        int     `json:"end"`
}

// Report summarizes one redaction pass. EntityCounts always sums to
// TotalDetections.
type Report struct {
	TotalDetections       int            `json:"total_detections"`
	EntityCounts          map[string]int `json:"entity_counts"`
	LowConfidenceCount    int            `json:"low_confidence_count"`
	LowConfidenceWarnings []Warning      `json:"low_confidence_warnings,omitempty"`
}

// Policy maps entity types to placeholder templates. Types without an
// override get the standard [<ENTITY_TYPE>_REDACTED] form.
type Policy struct {
	templates map[string]string
}

func NewPolicy(custom map[string]string) Policy {
	return Policy{templates: custom}
}

func (p Policy) Template(entityType string) string {
	if t, ok := p.templates[entityType]; ok {
		return t
	}
	return fmt.Sprintf("[%s_REDACTED]", entityType)
}

// Redactor substitutes detected spans with placeholder tokens. Pure function
// of (text, detections); no I/O, idempotent.
type Redactor struct {
	policy Policy
}

func NewRedactor() *Redactor { return &Redactor{policy: NewPolicy(nil)} }

func NewRedactorWithPolicy(p Policy) *Redactor { return &Redactor{policy: p} }

// Redact replaces every detected span with its placeholder and returns the
// sanitized text plus the machine-readable report. Substitution runs from the
// highest start offset to the lowest so earlier offsets stay valid while
// later ones are rewritten. Text outside detected spans is preserved
// byte-for-byte.
func (r *Redactor) Redact(text string, detections DetectionResult) (string, *Report) {
	report := buildReport(detections)
	if len(detections) == 0 {
		return text, report
	}

	ordered := make([]EntityMatch, len(detections))
	copy(ordered, detections)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Start > ordered[j].Start })

	var b strings.Builder
	out := text
	for _, m := range ordered {
		if m.Start < 0 || m.End > len(out) || m.Start >= m.End {
			continue
		}
		b.Reset()
		b.WriteString(out[:m.Start])
		b.WriteString(r.policy.Template(m.EntityType))
		b.WriteString(out[m.End:])
		out = b.String()
	}
	return out, report
}

func buildReport(detections DetectionResult) *Report {
	report := &Report{
		TotalDetections: len(detections),
		EntityCounts:    make(map[string]int, 4),
	}
	for _, m := range detections {
		report.EntityCounts[m.EntityType]++
		if m.Confidence < lowConfidenceWarnThreshold {
			report.LowConfidenceCount++
			report.LowConfidenceWarnings = append(report.LowConfidenceWarnings, Warning{
				EntityType: m.EntityType,
				Score:      m.Confidence,
				Start:      m.Start,
				End:        m.End,
			})
		}
	}
	return report
}
