package helpers

import (
	"strings"
	"unicode/utf8"
)

// SanitizeUTF8 strips NUL bytes and invalid UTF-8 sequences from a string.
// PostgreSQL text columns reject NUL (0x00) even though it is a valid code
// point, and malformed byte sequences fail the server's encoding check on
// insert. Strings that are already clean are returned unchanged.
func SanitizeUTF8(s string) string {
	if utf8.ValidString(s) && !strings.ContainsRune(s, 0) {
		return s
	}

	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		if r == utf8.RuneError && size <= 1 {
			// Invalid byte, drop it and resync on the next one.
			i++
			continue
		}
		if r != 0 {
			b.WriteRune(r)
		}
		i += size
	}
	return b.String()
}
