package utils

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// FoldAccents strips combining marks, so "PRÓXIMA" becomes "PROXIMA".
func FoldAccents(input string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, input)
	if err != nil {
		return input
	}
	return out
}

// NormalizeCommand upper-cases and accent-folds chat input for command matching.
func NormalizeCommand(input string) string {
	return strings.ToUpper(strings.TrimSpace(FoldAccents(input)))
}

// LastDigits returns the trailing n digits of an address, used to tell apart
// participants who share a display name.
func LastDigits(address string, n int) string {
	if i := strings.IndexByte(address, '@'); i >= 0 {
		address = address[:i]
	}
	digits := make([]rune, 0, len(address))
	for _, r := range address {
		if unicode.IsDigit(r) {
			digits = append(digits, r)
		}
	}
	if len(digits) > n {
		digits = digits[len(digits)-n:]
	}
	return string(digits)
}
