package filesystem

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// IsValidPath reports whether p is acceptable as a store-relative path.
// It checks that the path:
//   - is not empty, ".", or "/"
//   - is relative and does not end with "/"
//   - has no ".." or "." segments and no empty segments
//   - has no backslashes, control characters, or whitespace other than space
//   - is valid UTF-8
func IsValidPath(p string) bool {
	if p == "" || p == "/" || p == "." {
		return false
	}
	if p[0] == '/' || strings.HasSuffix(p, "/") {
		return false
	}
	if !utf8.ValidString(p) || strings.ContainsRune(p, '\\') {
		return false
	}

	for _, seg := range strings.Split(p, "/") {
		if seg == "" || seg == "." || seg == ".." {
			return false
		}
	}

	for _, r := range p {
		if r < 0x20 || r == 0x7f || (unicode.IsSpace(r) && r != ' ') {
			return false
		}
	}

	return true
}
