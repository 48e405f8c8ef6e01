// Package validation holds the pure intake validators used by the wizard
// gating predicate. They return booleans only and are cheap enough to run
// on every gating check.
package validation

import (
	"regexp"
	"strings"
)

var emailRe = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

const (
	minPhoneDigits = 10
	maxPhoneDigits = 15
)

// IsValidEmail reports whether s looks like an email address: something
// before the @, something after it, and a dot in the domain part.
func IsValidEmail(s string) bool {
	return emailRe.MatchString(s)
}

// IsValidPhone reports whether s contains 10 to 15 digits once every
// non-digit character (spaces, dashes, parentheses, a leading +) is
// stripped.
func IsValidPhone(s string) bool {
	n := len(DigitsOnly(s))
	return n >= minPhoneDigits && n <= maxPhoneDigits
}

// DigitsOnly strips everything but ASCII digits.
func DigitsOnly(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
