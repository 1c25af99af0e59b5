// Package phone provides canonicalization of Kenyan mobile numbers and
// extraction of phone-shaped substrings from free statement text.
package phone

import (
	"regexp"
	"strings"
)

// Canonical form is 254XXXXXXXXX: the country code followed by the 9-digit
// subscriber number, no plus sign.
const (
	countryCode     = "254"
	canonicalLength = 12
)

var (
	nonDigits = regexp.MustCompile(`\D`)

	// Permissive scan for mobile numbers in free text: optional country code
	// or trunk zero, then a 7x/1x prefix and seven more digits.
	phonePattern = regexp.MustCompile(`(?:\+?254|0)?(?:7\d|1\d)\d{7}`)
)

// Normalize converts a raw phone number to canonical 254XXXXXXXXX form.
// It returns the empty string when the input is not a recognizable number.
// Normalize is idempotent: feeding its output back in returns the same value.
func Normalize(raw string) string {
	digits := nonDigits.ReplaceAllString(raw, "")

	switch {
	case len(digits) == 10 && strings.HasPrefix(digits, "0"):
		return countryCode + digits[1:]
	case len(digits) == 9:
		return countryCode + digits
	case len(digits) == canonicalLength && strings.HasPrefix(digits, countryCode):
		return digits
	default:
		return ""
	}
}

// Extract scans free text for phone-shaped substrings and returns each match
// in canonical form, deduplicated, in order of first appearance. The result
// is never nil.
func Extract(text string) []string {
	phones := []string{}
	if text == "" {
		return phones
	}

	seen := make(map[string]bool)
	for _, match := range phonePattern.FindAllString(text, -1) {
		normalized := Normalize(match)
		if normalized == "" || seen[normalized] {
			continue
		}
		seen[normalized] = true
		phones = append(phones, normalized)
	}
	return phones
}

// Suffix returns the last n digits of a canonical phone number, or the whole
// number when it is shorter than n.
func Suffix(canonical string, n int) string {
	if len(canonical) <= n {
		return canonical
	}
	return canonical[len(canonical)-n:]
}

// NormalizeName lower-cases a person's name and collapses runs of whitespace,
// making name comparisons insensitive to extraction noise.
func NormalizeName(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}

// NameTokens splits a normalized name into tokens longer than two characters,
// the pieces worth fuzzy-matching individually.
func NameTokens(name string) []string {
	tokens := []string{}
	for _, tok := range strings.Fields(NormalizeName(name)) {
		if len(tok) > 2 {
			tokens = append(tokens, tok)
		}
	}
	return tokens
}
