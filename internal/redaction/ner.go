package redaction

import "strings"

// NERRecognizer is the statistical recognizer behind PERSON and LOCATION. It
// scores capitalized token sequences using contextual cue words and a location
// gazetteer. Inference is fully deterministic: identical text always yields
// identical spans and scores.
type NERRecognizer struct{}

func NewNERRecognizer() *NERRecognizer { return &NERRecognizer{} }

func (r *NERRecognizer) Name() string { return "ner" }

// commonWords are capitalized tokens that never contribute to a name span.
var commonWords = map[string]bool{
	"the": true, "a": true, "an": true, "i": true, "we": true, "you": true,
	"he": true, "she": true, "it": true, "they": true, "this": true,
	"that": true, "these": true, "those": true, "please": true, "hello": true,
	"hi": true, "hey": true, "thanks": true, "thank": true, "regards": true,
	"best": true, "dear": true, "sincerely": true, "contact": true,
	"from": true, "to": true, "at": true, "on": true, "in": true, "for": true,
	"with": true, "and": true, "or": true, "but": true, "if": true,
	"not": true, "is": true, "are": true, "was": true, "were": true,
	"be": true, "been": true, "our": true, "your": true, "my": true,
	"his": true, "her": true, "its": true, "their": true, "team": true,
	"support": true, "ticket": true, "order": true, "issue": true,
	"customer": true, "agent": true, "urgent": true, "also": true,
	"monday": true, "tuesday": true, "wednesday": true, "thursday": true,
	"friday": true, "saturday": true, "sunday": true,
	"january": true, "february": true, "march": true, "april": true,
	"may": true, "june": true, "july": true, "august": true,
	"september": true, "october": true, "november": true, "december": true,
}

// personCues precede a name often enough to raise model certainty.
var personCues = map[string]bool{
	"contact": true, "dear": true, "regards": true, "thanks": true,
	"from": true, "hi": true, "hello": true, "attn": true, "cc": true,
	"agent": true, "name": true, "sincerely": true, "by": true,
}

var honorifics = map[string]bool{
	"mr": true, "mrs": true, "ms": true, "dr": true, "prof": true,
}

// locationCues are prepositions that typically introduce a place.
var locationCues = map[string]bool{
	"in": true, "at": true, "from": true, "near": true, "to": true,
}

// gazetteer of common place names, lowercased. Multi-word entries are looked
// up as token sequences up to three tokens long.
var gazetteer = map[string]bool{
	"new york": true, "new york city": true, "london": true, "paris": true,
	"berlin": true, "tokyo": true, "singapore": true, "sydney": true,
	"toronto": true, "chicago": true, "boston": true, "seattle": true,
	"austin": true, "dallas": true, "denver": true, "miami": true,
	"san francisco": true, "los angeles": true, "california": true,
	"texas": true, "florida": true, "washington": true, "mumbai": true,
	"delhi": true, "new delhi": true, "bangalore": true, "bengaluru": true,
	"chennai": true, "hyderabad": true, "pune": true, "kolkata": true,
	"india": true, "germany": true, "france": true, "japan": true,
	"canada": true, "australia": true, "england": true, "ireland": true,
	"united states": true, "united kingdom": true, "usa": true, "uk": true,
	"amsterdam": true, "dublin": true, "madrid": true, "barcelona": true,
}

const maxGazetteerWords = 3

type token struct {
	text  string
	start int
	end   int
}

// tokenize splits text into alphabetic tokens with byte offsets.
func tokenize(text string) []token {
	var toks []token
	start := -1
	for i := 0; i < len(text); i++ {
		c := text[i]
		isLetter := (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
		if isLetter && start < 0 {
			start = i
		}
		if !isLetter && start >= 0 {
			toks = append(toks, token{text: text[start:i], start: start, end: i})
			start = -1
		}
	}
	if start >= 0 {
		toks = append(toks, token{text: text[start:], start: start, end: len(text)})
	}
	return toks
}

func isCapitalized(s string) bool {
	if len(s) < 2 || s[0] < 'A' || s[0] > 'Z' {
		return false
	}
	for i := 1; i < len(s); i++ {
		if s[i] < 'a' || s[i] > 'z' {
			return false
		}
	}
	return true
}

func isUpperAcronym(s string) bool {
	if len(s) < 2 || len(s) > 3 {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < 'A' || s[i] > 'Z' {
			return false
		}
	}
	return true
}

func (r *NERRecognizer) Match(text string) []EntityMatch {
	toks := tokenize(text)
	if len(toks) == 0 {
		return nil
	}

	consumed := make([]bool, len(toks))
	var matches []EntityMatch

	// Locations first: gazetteer hits win their tokens outright, so a place
	// name is never half-claimed as a person.
	for i := 0; i < len(toks); i++ {
		if consumed[i] {
			continue
		}
		for n := maxGazetteerWords; n >= 1; n-- {
			if i+n > len(toks) {
				continue
			}
			parts := make([]string, 0, n)
			plausible := true
			for k := i; k < i+n; k++ {
				t := toks[k].text
				if !isCapitalized(t) && !isUpperAcronym(t) {
					plausible = false
					break
				}
				parts = append(parts, strings.ToLower(t))
			}
			if !plausible || !gazetteer[strings.Join(parts, " ")] {
				continue
			}
			score := 0.8
			if i > 0 && locationCues[strings.ToLower(toks[i-1].text)] {
				score = 0.85
			}
			matches = append(matches, EntityMatch{
				EntityType:       EntityLocation,
				Start:            toks[i].start,
				End:              toks[i+n-1].end,
				Confidence:       score,
				SourceRecognizer: r.Name(),
			})
			for k := i; k < i+n; k++ {
				consumed[k] = true
			}
			i += n - 1
			break
		}
	}

	// Person spans: maximal runs of capitalized non-common tokens. Honorifics
	// stay outside the run so they act as a cue for the token after them.
	for i := 0; i < len(toks); i++ {
		low := strings.ToLower(toks[i].text)
		if consumed[i] || !isCapitalized(toks[i].text) || commonWords[low] || honorifics[low] {
			continue
		}
		j := i
		for j < len(toks) && !consumed[j] && isCapitalized(toks[j].text) &&
			!commonWords[strings.ToLower(toks[j].text)] && !honorifics[strings.ToLower(toks[j].text)] {
			j++
		}
		runLen := j - i

		var prev string
		if i > 0 {
			prev = strings.ToLower(toks[i-1].text)
		}

		var score float64
		switch {
		case runLen >= 2 && runLen <= 4:
			score = 0.7
			if personCues[prev] || honorifics[prev] {
				score = 0.85
			}
		case runLen == 1 && honorifics[prev]:
			score = 0.8
		case runLen == 1 && personCues[prev]:
			score = 0.65
		default:
			i = j - 1
			continue
		}

		matches = append(matches, EntityMatch{
			EntityType:       EntityPerson,
			Start:            toks[i].start,
			End:              toks[j-1].end,
			Confidence:       score,
			SourceRecognizer: r.Name(),
		})
		for k := i; k < j; k++ {
			consumed[k] = true
		}
		i = j - 1
	}

	return dedupeWithin(matches)
}
