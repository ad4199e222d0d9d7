// CLAUDE:SUMMARY Volatility heuristic — discounts machine-generated identifiers and class tokens.
package selector

import (
	"regexp"
	"strings"
	"unicode"
)

// Patterns that mark a token as machine-generated: framework style
// hashes, UUID shapes, long hex runs, build fingerprints. Tokens
// matching any of these are never used in generated selectors.
var volatilePatterns = []*regexp.Regexp{
	regexp.MustCompile(`^css-[a-z0-9]+$`),              // emotion / styled-components
	regexp.MustCompile(`^sc-[a-zA-Z]+$`),               // styled-components
	regexp.MustCompile(`^jsx-[0-9]+$`),                 // styled-jsx
	regexp.MustCompile(`^svelte-[a-z0-9]+$`),           // svelte scoping
	regexp.MustCompile(`^[a-zA-Z]+_[a-zA-Z0-9]{5,}$`),  // CSS-modules "name_hash"
	regexp.MustCompile(`__[a-zA-Z0-9]{5,}$`),           // BEM-ish suffix hashes
	regexp.MustCompile(`^[0-9a-f]{8}(-[0-9a-f]{4}){3}-[0-9a-f]{12}$`), // UUID
	regexp.MustCompile(`^[0-9a-f]{8,}$`),               // bare hex run
	regexp.MustCompile(`[0-9]{6,}`),                    // long numeric run anywhere
}

// IsVolatile reports whether an identifier or class token looks
// machine-generated and likely to change between loads.
func IsVolatile(token string) bool {
	if token == "" {
		return true
	}
	lower := strings.ToLower(token)
	for _, re := range volatilePatterns {
		if re.MatchString(lower) {
			return true
		}
	}
	// Short random-looking strings: no vowels, mixed with digits.
	if len(token) <= 8 && looksRandom(token) {
		return true
	}
	// High digit density in a long token.
	if len(token) >= 8 {
		digits := 0
		for _, r := range token {
			if unicode.IsDigit(r) {
				digits++
			}
		}
		if digits*3 >= len(token) {
			return true
		}
	}
	return false
}

// looksRandom flags short consonant/digit jumbles like "x7Qz9" that
// carry no semantic signal.
func looksRandom(token string) bool {
	hasDigit := false
	hasVowel := false
	for _, r := range strings.ToLower(token) {
		switch {
		case unicode.IsDigit(r):
			hasDigit = true
		case strings.ContainsRune("aeiouy", r):
			hasVowel = true
		case r == '-' || r == '_':
		case !unicode.IsLetter(r):
			return true
		}
	}
	return hasDigit && !hasVowel
}

// StableClasses filters class tokens through the volatility heuristic,
// capped at max entries.
func StableClasses(classes []string, max int) []string {
	var out []string
	for _, c := range classes {
		if IsVolatile(c) {
			continue
		}
		out = append(out, c)
		if len(out) == max {
			break
		}
	}
	return out
}
