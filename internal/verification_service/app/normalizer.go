package app

import "strings"

// DefaultCountryCode is the fallback prefix for 10-digit numbers when the
// caller does not supply one.
const DefaultCountryCode = "+1"

// NormalizeResult is the outcome of filtering and deduplicating one upload's
// candidates. Total counts only candidates that survived the filter, so
// Total == len(Unique) + Duplicates always holds.
type NormalizeResult struct {
	Unique     []string
	Total      int
	Duplicates int
}

// Normalize filters blank and non-numeric candidates, then deduplicates the
// rest by trimmed exact string equality, keeping the first occurrence.
// Formatting to a dial string happens later, per number, at validation time.
func Normalize(candidates []string) NormalizeResult {
	seen := make(map[string]struct{}, len(candidates))
	var unique []string
	total := 0

	for _, candidate := range candidates {
		trimmed := strings.TrimSpace(candidate)
		if !isNumericCandidate(trimmed) {
			continue
		}
		total++
		if _, ok := seen[trimmed]; ok {
			continue
		}
		seen[trimmed] = struct{}{}
		unique = append(unique, trimmed)
	}

	return NormalizeResult{
		Unique:     unique,
		Total:      total,
		Duplicates: total - len(unique),
	}
}

// FormatPhone turns a candidate into a dial-ready international number.
// 10 digits get the default country code prefixed; 11-13 digits keep their
// own prefix behind a leading "+". Any other length is unformattable and
// yields "".
func FormatPhone(raw, defaultCountryCode string) string {
	if defaultCountryCode == "" {
		defaultCountryCode = DefaultCountryCode
	}
	if !strings.HasPrefix(defaultCountryCode, "+") {
		defaultCountryCode = "+" + defaultCountryCode
	}
	digits := digitsOnly(raw)
	switch {
	case len(digits) == 10:
		return defaultCountryCode + digits
	case len(digits) >= 11 && len(digits) <= 13:
		return "+" + digits
	default:
		return ""
	}
}

// isNumericCandidate reports whether a candidate is a phone-like value:
// non-empty and nothing but digits once common formatting characters are
// stripped. "12a34" is rejected; "(123) 456-7890" is accepted.
func isNumericCandidate(s string) bool {
	if s == "" {
		return false
	}
	sawDigit := false
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			sawDigit = true
		case strings.ContainsRune("+-(). ", r):
			// formatting only
		default:
			return false
		}
	}
	return sawDigit
}

func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
