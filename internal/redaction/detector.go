package redaction

import (
	"log"
	"sort"
	"strings"
)

// Detector runs the recognizer set over an input text and merges the results.
// It owns no state across calls: Analyze is a pure function of (text, config)
// and the registry assembled at construction.
type Detector struct {
	registry *Registry
}

func NewDetector(registry *Registry) *Detector {
	if registry == nil {
		registry = DefaultRegistry()
	}
	return &Detector{registry: registry}
}

// Analyze detects entity spans in text. Overlaps across recognizers resolve
// to the higher confidence, then the longer span, then the recognizer that
// was registered first. Matches below the confidence threshold or outside the
// enabled entity types are dropped after merging. The result is ordered by
// ascending start offset.
func (d *Detector) Analyze(text string, cfg Config) DetectionResult {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	type candidate struct {
		EntityMatch
		order int // registration index, merge tie-breaker
	}

	var candidates []candidate
	for order, rec := range d.registry.enabled(cfg.EnableRegionalEntities) {
		for _, m := range safeMatch(rec, text) {
			if m.Start < 0 || m.End > len(text) || m.Start >= m.End {
				continue
			}
			if m.Confidence < 0 {
				m.Confidence = 0
			} else if m.Confidence > 1 {
				m.Confidence = 1
			}
			candidates = append(candidates, candidate{EntityMatch: m, order: order})
		}
	}
	if len(candidates) == 0 {
		return nil
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.Confidence != b.Confidence {
			return a.Confidence > b.Confidence
		}
		if al, bl := a.End-a.Start, b.End-b.Start; al != bl {
			return al > bl
		}
		if a.order != b.order {
			return a.order < b.order
		}
		return a.Start < b.Start
	})

	var merged []EntityMatch
	for _, c := range candidates {
		overlaps := false
		for _, k := range merged {
			if c.Start < k.End && k.Start < c.End {
				overlaps = true
				break
			}
		}
		if !overlaps {
			merged = append(merged, c.EntityMatch)
		}
	}

	threshold := cfg.threshold()
	enabled := cfg.enabledSet()
	result := merged[:0]
	for _, m := range merged {
		if m.Confidence < threshold || !enabled[m.EntityType] {
			continue
		}
		result = append(result, m)
	}
	if len(result) == 0 {
		return nil
	}

	sort.Slice(result, func(i, j int) bool { return result[i].Start < result[j].Start })
	return DetectionResult(result)
}

// safeMatch isolates recognizer faults: one recognizer blowing up on
// malformed input must not abort the whole analysis.
func safeMatch(rec Recognizer, text string) (matches []EntityMatch) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("redaction: recognizer %s panicked, skipping: %v", rec.Name(), r)
			matches = nil
		}
	}()
	return rec.Match(text)
}
