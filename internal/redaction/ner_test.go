package redaction

import "testing"

func findMatch(matches []EntityMatch, text, span string) *EntityMatch {
	for i := range matches {
		if text[matches[i].Start:matches[i].End] == span {
			return &matches[i]
		}
	}
	return nil
}

func TestNERPersonDetection(t *testing.T) {
	rec := NewNERRecognizer()

	tests := []struct {
		name      string
		text      string
		span      string
		wantScore float64
	}{
		{"two token run", "I spoke with Jane Smith yesterday", "Jane Smith", 0.7},
		{"cue word boosts", "Contact John Doe about the outage", "John Doe", 0.85},
		{"honorific single token", "Mr Patel asked for an update", "Patel", 0.8},
		{"cue single token", "regards Priya", "Priya", 0.65},
		{"three token name", "Escalated by Maria Del Carmen this morning", "Maria Del Carmen", 0.85},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			matches := rec.Match(tt.text)
			m := findMatch(matches, tt.text, tt.span)
			if m == nil {
				t.Fatalf("span %q not found in %v", tt.span, matches)
			}
			if m.EntityType != EntityPerson {
				t.Errorf("entity type = %q, want %q", m.EntityType, EntityPerson)
			}
			if m.Confidence != tt.wantScore {
				t.Errorf("confidence = %v, want %v", m.Confidence, tt.wantScore)
			}
		})
	}
}

func TestNERCommonWordsNeverMatch(t *testing.T) {
	rec := NewNERRecognizer()
	texts := []string{
		"Please Thank You",
		"The Ticket Was Closed On Monday",
		"Urgent Support Issue",
	}
	for _, text := range texts {
		for _, m := range rec.Match(text) {
			t.Errorf("unexpected match %q in %q", text[m.Start:m.End], text)
		}
	}
}

func TestNERLocationDetection(t *testing.T) {
	rec := NewNERRecognizer()

	tests := []struct {
		name      string
		text      string
		span      string
		wantScore float64
	}{
		{"gazetteer hit", "Shipping address is London somewhere", "London", 0.8},
		{"cue boosts", "The customer is in Mumbai right now", "Mumbai", 0.85},
		{"two word place", "Our office in San Francisco is closed", "San Francisco", 0.85},
		{"three word place", "Visited New York City last week", "New York City", 0.8},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			matches := rec.Match(tt.text)
			m := findMatch(matches, tt.text, tt.span)
			if m == nil {
				t.Fatalf("span %q not found in %v", tt.span, matches)
			}
			if m.EntityType != EntityLocation {
				t.Errorf("entity type = %q, want %q", m.EntityType, EntityLocation)
			}
			if m.Confidence != tt.wantScore {
				t.Errorf("confidence = %v, want %v", m.Confidence, tt.wantScore)
			}
		})
	}
}

func TestNERLocationWinsOverPerson(t *testing.T) {
	rec := NewNERRecognizer()
	text := "Meet them in New Delhi tomorrow"
	matches := rec.Match(text)
	m := findMatch(matches, text, "New Delhi")
	if m == nil || m.EntityType != EntityLocation {
		t.Fatalf("want New Delhi as LOCATION, got %v", matches)
	}
	for _, got := range matches {
		if got.EntityType == EntityPerson && got.Start < m.End && m.Start < got.End {
			t.Errorf("overlapping PERSON span %q", text[got.Start:got.End])
		}
	}
}

func TestNERDeterministic(t *testing.T) {
	rec := NewNERRecognizer()
	text := "Contact John Doe in Berlin, regards Priya"
	first := rec.Match(text)
	for i := 0; i < 10; i++ {
		again := rec.Match(text)
		if len(again) != len(first) {
			t.Fatalf("run %d: %d matches, want %d", i, len(again), len(first))
		}
		for j := range again {
			if again[j] != first[j] {
				t.Fatalf("run %d: match %d differs: %+v vs %+v", i, j, again[j], first[j])
			}
		}
	}
}

func TestTokenizeOffsets(t *testing.T) {
	text := "Hi, John!"
	toks := tokenize(text)
	if len(toks) != 2 {
		t.Fatalf("got %d tokens, want 2", len(toks))
	}
	if toks[1].text != "John" || text[toks[1].start:toks[1].end] != "John" {
		t.Errorf("token = %+v", toks[1])
	}
}
