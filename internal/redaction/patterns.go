package redaction

import "regexp"

// minPhoneDigits is the floor below which a numeric run is never reported as a
// phone number, so order numbers and short codes do not trip the detector.
const minPhoneDigits = 7

// NewEmailRecognizer matches standard local@domain forms.
func NewEmailRecognizer() *PatternRecognizer {
	return NewPatternRecognizer("email", EntityEmailAddress, []Pattern{
		{Name: "email", Regex: regexp.MustCompile(`[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}`), Score: 1.0},
	})
}

// NewPhoneRecognizer matches international and local phone formats with -, .,
// space and parenthesized separators.
func NewPhoneRecognizer() *PatternRecognizer {
	r := NewPatternRecognizer("phone", EntityPhoneNumber, []Pattern{
		{Name: "intl_dashed", Regex: regexp.MustCompile(`\+\d{1,3}-\d{3}-\d{3}-\d{4}\b`), Score: 0.9},
		{Name: "us_parens", Regex: regexp.MustCompile(`\(\d{3}\)\s*\d{3}-\d{4}\b`), Score: 0.9},
		{Name: "us_dots", Regex: regexp.MustCompile(`\b\d{3}\.\d{3}\.\d{4}\b`), Score: 0.85},
		{Name: "us_spaces", Regex: regexp.MustCompile(`\b\d{3}\s\d{3}\s\d{4}\b`), Score: 0.85},
		{Name: "intl_spaced", Regex: regexp.MustCompile(`\+\d{1,3}(?:\s\d{2,5}){2,4}\b`), Score: 0.85},
		{Name: "generic", Regex: regexp.MustCompile(`\b\d{3}-\d{3}-\d{4}\b`), Score: 0.8},
	})
	r.validate = func(span string, score float64) (float64, bool) {
		if digitCount(span) < minPhoneDigits {
			return 0, false
		}
		return score, true
	}
	return r
}

// NewCreditCardRecognizer matches 13-19 digit sequences optionally grouped by
// spaces or dashes. Numbers passing the Luhn checksum are reported at high
// confidence; failures are still reported, but below the default threshold.
func NewCreditCardRecognizer() *PatternRecognizer {
	r := NewPatternRecognizer("credit_card", EntityCreditCard, []Pattern{
		{Name: "cc_grouped", Regex: regexp.MustCompile(`\b\d(?:[ -]?\d){12,18}\b`), Score: 0.6},
	})
	r.validate = func(span string, _ float64) (float64, bool) {
		digits := stripSeparators(span)
		if len(digits) < 13 || len(digits) > 19 {
			return 0, false
		}
		if luhnValid(digits) {
			return 0.95, true
		}
		return 0.4, true
	}
	return r
}

// NewAPIKeyRecognizer matches opaque secret shapes: bearer tokens, JWTs,
// key/token assignments, auth header values, long random and hex runs. Recall
// is deliberately favored over precision here.
func NewAPIKeyRecognizer() *PatternRecognizer {
	return NewPatternRecognizer("api_key", EntityAPIKey, []Pattern{
		{Name: "bearer_token", Regex: regexp.MustCompile(`(?i)\bbearer\s+[A-Za-z0-9\-._~+/]{16,}=*`), Score: 0.9},
		{Name: "jwt_token", Regex: regexp.MustCompile(`\beyJ[A-Za-z0-9_-]{10,}\.[A-Za-z0-9_-]{10,}\.[A-Za-z0-9_-]{10,}`), Score: 0.95},
		{Name: "key_assignment", Regex: regexp.MustCompile(`(?i)(api[_-]?key|apikey|api[_-]?token|secret|token|password|passwd)\s*[=:]\s*["']?[A-Za-z0-9\-._~+/]{20,}["']?`), Score: 0.85},
		{Name: "auth_header", Regex: regexp.MustCompile(`(?i)(authorization|x-api-key)\s*:\s*[A-Za-z0-9\-._~+/]{20,}`), Score: 0.85},
		{Name: "long_random", Regex: regexp.MustCompile(`\b[A-Za-z0-9]{40,}\b`), Score: 0.6},
		{Name: "hex_key", Regex: regexp.MustCompile(`\b[a-fA-F0-9]{32,}\b`), Score: 0.65},
	})
}

// NewIndianPANRecognizer matches the Indian PAN format (5 letters, 4 digits,
// 1 letter). Regional; disabled unless the tenant opts in.
func NewIndianPANRecognizer() *PatternRecognizer {
	return NewPatternRecognizer("indian_pan", EntityIndianPAN, []Pattern{
		{Name: "pan", Regex: regexp.MustCompile(`\b[A-Z]{5}[0-9]{4}[A-Z]\b`), Score: 0.9},
	})
}

// NewIndianGSTINRecognizer matches the 15 character Indian GSTIN format.
func NewIndianGSTINRecognizer() *PatternRecognizer {
	return NewPatternRecognizer("indian_gstin", EntityIndianGSTIN, []Pattern{
		{Name: "gstin", Regex: regexp.MustCompile(`\b[0-9]{2}[A-Z]{5}[0-9]{4}[A-Z][0-9][Z][0-9A-Z]\b`), Score: 0.9},
	})
}

func digitCount(s string) int {
	n := 0
	for _, c := range s {
		if c >= '0' && c <= '9' {
			n++
		}
	}
	return n
}

func stripSeparators(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		if s[i] >= '0' && s[i] <= '9' {
			out = append(out, s[i])
		}
	}
	return string(out)
}

// luhnValid runs the Luhn checksum over a digit string.
func luhnValid(digits string) bool {
	sum := 0
	double := false
	for i := len(digits) - 1; i >= 0; i-- {
		d := int(digits[i] - '0')
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}
	return sum%10 == 0
}
