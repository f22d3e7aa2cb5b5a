// Package encoding cleans free-text user input before it is stored
// server-side. Field devices send notes typed on a mix of mobile keyboards,
// so composed/decomposed Unicode forms vary between devices.
package encoding

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// CleanText returns s in NFC form with control characters stripped (newlines
// and tabs survive) and surrounding whitespace trimmed.
func CleanText(s string) string {
	s = norm.NFC.String(s)
	s = strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)
	return strings.TrimSpace(s)
}
