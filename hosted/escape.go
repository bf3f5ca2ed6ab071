package hosted

import (
	"fmt"
	"strconv"
	"strings"
)

// escapedChars may not appear in a directory name on some filesystem we
// support. Each is written as '%' followed by its decimal code point.
const escapedChars = `<>:"\/|?*%`

// EscapeOrigin turns a registry URL into a name usable as a single
// directory on every platform.
func EscapeOrigin(origin string) string {
	var b strings.Builder
	b.Grow(len(origin))
	for _, r := range origin {
		if strings.ContainsRune(escapedChars, r) {
			b.WriteByte('%')
			b.WriteString(strconv.Itoa(int(r)))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// UnescapeOrigin reverses EscapeOrigin.
//
// No two-digit code of an escaped character is a prefix of '|' (124), the
// only three-digit one, so every escape decodes one way.
func UnescapeOrigin(dir string) (string, error) {
	var b strings.Builder
	b.Grow(len(dir))
	for i := 0; i < len(dir); i++ {
		if dir[i] != '%' {
			b.WriteByte(dir[i])
			continue
		}
		rest := dir[i+1:]
		if strings.HasPrefix(rest, "124") {
			b.WriteByte('|')
			i += 3
			continue
		}
		if len(rest) >= 2 {
			if code, err := strconv.Atoi(rest[:2]); err == nil && code >= 10 && code < 128 && strings.IndexByte(escapedChars, byte(code)) >= 0 {
				b.WriteByte(byte(code))
				i += 2
				continue
			}
		}
		return "", fmt.Errorf("invalid escape at offset %d in %q", i, dir)
	}
	return b.String(), nil
}
