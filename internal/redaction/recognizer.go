package redaction

import (
	"regexp"
	"sort"
)

// Recognizer detects entity spans in a text. Implementations must be safe for
// concurrent use and deterministic for a fixed input: no sampling, no network
// I/O, no shared mutable state.
type Recognizer interface {
	Name() string
	Match(text string) []EntityMatch
}

type registryEntry struct {
	rec      Recognizer
	regional bool
}

// Registry holds the recognizer set in registration order. Registration order
// is the final tie-breaker when the Detector merges overlapping matches, so
// the registry is assembled once at process start and never mutated after.
type Registry struct {
	entries []registryEntry
}

func NewRegistry() *Registry { return &Registry{} }

// Register appends a recognizer to the core group.
func (g *Registry) Register(rec Recognizer) {
	g.entries = append(g.entries, registryEntry{rec: rec})
}

// RegisterRegional appends a recognizer that only runs when the config enables
// region-specific entities.
func (g *Registry) RegisterRegional(rec Recognizer) {
	g.entries = append(g.entries, registryEntry{rec: rec, regional: true})
}

func (g *Registry) enabled(regional bool) []Recognizer {
	out := make([]Recognizer, 0, len(g.entries))
	for _, e := range g.entries {
		if e.regional && !regional {
			continue
		}
		out = append(out, e.rec)
	}
	return out
}

// DefaultRegistry assembles the built-in recognizer set.
func DefaultRegistry() *Registry {
	g := NewRegistry()
	g.Register(NewEmailRecognizer())
	g.Register(NewPhoneRecognizer())
	g.Register(NewCreditCardRecognizer())
	g.Register(NewAPIKeyRecognizer())
	g.Register(NewNERRecognizer())
	g.RegisterRegional(NewIndianPANRecognizer())
	g.RegisterRegional(NewIndianGSTINRecognizer())
	return g
}

// Pattern pairs a compiled regex with the confidence assigned to its matches.
type Pattern struct {
	Name  string
	Regex *regexp.Regexp
	Score float64
}

// PatternRecognizer matches a fixed entity type via a list of patterns. An
// optional validate hook may rescore or reject a raw match (Luhn checks,
// minimum digit counts).
type PatternRecognizer struct {
	name       string
	entityType string
	patterns   []Pattern
	validate   func(span string, score float64) (float64, bool)
}

func NewPatternRecognizer(name, entityType string, patterns []Pattern) *PatternRecognizer {
	return &PatternRecognizer{name: name, entityType: entityType, patterns: patterns}
}

func (r *PatternRecognizer) Name() string { return r.name }

func (r *PatternRecognizer) Match(text string) []EntityMatch {
	var raw []EntityMatch
	for _, p := range r.patterns {
		for _, loc := range p.Regex.FindAllStringIndex(text, -1) {
			score := p.Score
			if r.validate != nil {
				adjusted, ok := r.validate(text[loc[0]:loc[1]], score)
				if !ok {
					continue
				}
				score = adjusted
			}
			raw = append(raw, EntityMatch{
				EntityType:       r.entityType,
				Start:            loc[0],
				End:              loc[1],
				Confidence:       score,
				SourceRecognizer: r.name,
			})
		}
	}
	return dedupeWithin(raw)
}

// dedupeWithin enforces the invariant that spans from one recognizer never
// overlap: on overlap the higher score wins, then the longer span, then the
// lower start offset.
func dedupeWithin(matches []EntityMatch) []EntityMatch {
	if len(matches) < 2 {
		return matches
	}
	sort.SliceStable(matches, func(i, j int) bool {
		a, b := matches[i], matches[j]
		if a.Confidence != b.Confidence {
			return a.Confidence > b.Confidence
		}
		if al, bl := a.End-a.Start, b.End-b.Start; al != bl {
			return al > bl
		}
		return a.Start < b.Start
	})
	var kept []EntityMatch
	for _, m := range matches {
		overlaps := false
		for _, k := range kept {
			if m.Start < k.End && k.Start < m.End {
				overlaps = true
				break
			}
		}
		if !overlaps {
			kept = append(kept, m)
		}
	}
	sort.Slice(kept, func(i, j int) bool { return kept[i].Start < kept[j].Start })
	return kept
}
