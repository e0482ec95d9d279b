package mount

import "strings"

// unmangle decodes octal-escape sequences (\OOO, three octal digits)
// produced by the kernel and by mount(8) to hide whitespace and
// backslashes inside whitespace-delimited fields. It is applied to
// every path-like or otherwise whitespace-bearing field after
// tokenization.
//
// The transformation never grows the string (each 4-byte \OOO
// sequence collapses to one byte), so it simply builds a new,
// shorter-or-equal string rather than rewriting in place.
func unmangle(s string) string {
	if !strings.ContainsRune(s, '\\') {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+3 < len(s) && isOctalDigit(s[i+1]) && isOctalDigit(s[i+2]) && isOctalDigit(s[i+3]) {
			d1 := s[i+1] - '0'
			d2 := s[i+2] - '0'
			d3 := s[i+3] - '0'
			b.WriteByte(64*d1 + 8*d2 + d3)
			i += 3
			continue
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

func isOctalDigit(c byte) bool {
	return c >= '0' && c <= '7'
}
