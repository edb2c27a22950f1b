package normalize

import (
	"regexp"
	"strings"
)

var phoneRe = regexp.MustCompile(`(\+?\d[\d\s/()\-]{5,}\d)`)

// NormalizePhone canonicalizes a phone value: keep digits and slashes
// (optionally a leading +), collapse a string made of two identical
// concatenated halves into one half, and truncate an obvious tel+fax
// concatenation to the first plausible number.
func NormalizePhone(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	leadPlus := strings.HasPrefix(value, "+")

	var filtered strings.Builder
	for _, ch := range value {
		if (ch >= '0' && ch <= '9') || ch == '/' {
			filtered.WriteRune(ch)
		}
	}
	digits := strings.ReplaceAll(filtered.String(), "/", "")

	// Collapse exact duplicate halves like 78623647862364.
	if n := len(digits); n > 0 && n%2 == 0 {
		half := n / 2
		if digits[:half] == digits[half:] {
			return plus(leadPlus) + digits[:half]
		}
	}

	// If tel+fax got concatenated, keep the first part.
	if len(digits) >= 14 {
		if strings.HasPrefix(digits, "0") {
			return plus(leadPlus) + digits[:10]
		}
		return plus(leadPlus) + digits[:7]
	}

	return plus(leadPlus) + filtered.String()
}

func plus(lead bool) string {
	if lead {
		return "+"
	}
	return ""
}

// phoneFromLines returns the first phone-shaped token on a line explicitly
// labeled as a phone/fax line. Unlabeled digit runs are too often insurance
// or practice identifiers.
func phoneFromLines(lines []string) string {
	for _, line := range lines {
		if !phoneLabelRe.MatchString(line) {
			continue
		}
		if m := phoneRe.FindString(line); m != "" {
			return strings.TrimSpace(m)
		}
	}
	return ""
}

var phoneLabelRe = regexp.MustCompile(`(?i)\b(tel|telefon|phone|fax)\b`)
