// Package phone canonicalizes contact phone numbers. Every lookup and
// every insert must go through Normalize first; raw input is never a
// contact identity.
package phone

import (
	"regexp"
	"strings"
)

var validRe = regexp.MustCompile(`^\+?[1-9]\d{9,14}$`)

// Normalize strips everything except digits and a single leading "+".
// Interior "+" signs are collapsed. A bare national-looking number
// (>=10 digits, nonzero first digit) gets a "+" prefixed so it compares
// equal to its E.164 form. Idempotent.
func Normalize(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}

	plus := strings.HasPrefix(raw, "+")

	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	if digits == "" {
		return ""
	}

	if !plus && len(digits) >= 10 && digits[0] != '0' {
		plus = true
	}
	if plus {
		return "+" + digits
	}
	return digits
}

// IsValid reports whether a normalized number looks like a routable
// E.164-ish number (10 to 15 digits, nonzero first digit).
func IsValid(normalized string) bool {
	return validRe.MatchString(normalized)
}
