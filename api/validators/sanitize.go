package validators

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// SanitizeString NFC-normalizes free text, drops control characters, folds
// whitespace runs into one space and keeps at most maxRunes runes. maxRunes
// of zero or less means no limit.
func SanitizeString(input string, maxRunes int) string {
	var b strings.Builder
	b.Grow(len(input))
	space := false
	n := 0
	for _, r := range norm.NFC.String(strings.TrimSpace(input)) {
		if unicode.IsSpace(r) {
			space = true
			continue
		}
		if unicode.IsControl(r) {
			continue
		}
		if space && b.Len() > 0 {
			if maxRunes > 0 && n >= maxRunes {
				break
			}
			b.WriteByte(' ')
			n++
		}
		space = false
		if maxRunes > 0 && n >= maxRunes {
			break
		}
		b.WriteRune(r)
		n++
	}
	return strings.TrimSpace(b.String())
}
