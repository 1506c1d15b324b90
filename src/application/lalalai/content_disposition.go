package lalalai

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

const upperhex = "0123456789ABCDEF"

// MakeContentDisposition builds the header the upload endpoint reads the
// file name from. Non-ASCII names use the RFC 5987 extended notation.
func MakeContentDisposition(name string, disposition string) string {
	if isASCII(name) {
		return fmt.Sprintf(`%s; filename="%s"`, disposition, name)
	}

	return fmt.Sprintf("%s; filename*=utf-8''%s", disposition, percentEncode(name))
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= utf8.RuneSelf {
			return false
		}
	}

	return true
}

// percentEncode escapes every byte outside the unreserved set of RFC 3986.
func percentEncode(s string) string {
	var builder strings.Builder
	builder.Grow(len(s) * 3)

	for i := 0; i < len(s); i++ {
		b := s[i]
		if isUnreserved(b) {
			builder.WriteByte(b)
			continue
		}

		builder.WriteByte('%')
		builder.WriteByte(upperhex[b>>4])
		builder.WriteByte(upperhex[b&0x0F])
	}

	return builder.String()
}

func isUnreserved(b byte) bool {
	switch {
	case 'a' <= b && b <= 'z', 'A' <= b && b <= 'Z', '0' <= b && b <= '9':
		return true
	case b == '-', b == '.', b == '_', b == '~':
		return true
	default:
		return false
	}
}
