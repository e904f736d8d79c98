package classfile

import (
	"errors"
	"unicode/utf8"
)

var errBadUtf8 = errors.New("invalid modified UTF-8")

// decodeModifiedUTF8 converts the modified UTF-8 of a Utf8 entry into a Go
// string. Supplementary characters arrive as surrogate pairs and are joined;
// an unpaired surrogate is kept in its three-byte form so that re-encoding
// reproduces the input.
func decodeModifiedUTF8(b []byte) (string, error) {
	ascii := true
	for _, c := range b {
		if c == 0 || c >= 0x80 {
			ascii = false
			break
		}
	}
	if ascii {
		return string(b), nil
	}

	out := make([]byte, 0, len(b))
	for i := 0; i < len(b); {
		c := b[i]
		switch {
		case c != 0 && c < 0x80:
			out = append(out, c)
			i++
		case c&0xE0 == 0xC0:
			if i+1 >= len(b) || b[i+1]&0xC0 != 0x80 {
				return "", errBadUtf8
			}
			r := rune(c&0x1F)<<6 | rune(b[i+1]&0x3F)
			out = utf8.AppendRune(out, r)
			i += 2
		case c&0xF0 == 0xE0:
			if i+2 >= len(b) || b[i+1]&0xC0 != 0x80 || b[i+2]&0xC0 != 0x80 {
				return "", errBadUtf8
			}
			u := rune(c&0x0F)<<12 | rune(b[i+1]&0x3F)<<6 | rune(b[i+2]&0x3F)
			i += 3
			if u >= 0xD800 && u <= 0xDBFF && i+2 < len(b) && b[i] == 0xED && b[i+1]&0xF0 == 0xB0 && b[i+2]&0xC0 == 0x80 {
				lo := rune(b[i+1]&0x3F)<<6 | rune(b[i+2]&0x3F) | 0xD000
				out = utf8.AppendRune(out, 0x10000+(u-0xD800)<<10+(lo-0xDC00))
				i += 3
				continue
			}
			if u >= 0xD800 && u <= 0xDFFF {
				out = append(out, b[i-3], b[i-2], b[i-1])
				continue
			}
			out = utf8.AppendRune(out, u)
		default:
			return "", errBadUtf8
		}
	}
	return string(out), nil
}

// appendModifiedUTF8 appends the modified UTF-8 form of s.
func appendModifiedUTF8(dst []byte, s string) []byte {
	for i := 0; i < len(s); {
		c := s[i]
		if c != 0 && c < 0x80 {
			dst = append(dst, c)
			i++
			continue
		}
		r, size := utf8.DecodeRuneInString(s[i:])
		if r == utf8.RuneError && size == 1 {
			if c == 0xED && i+2 < len(s) && s[i+1]&0xE0 == 0xA0 && s[i+2]&0xC0 == 0x80 {
				dst = append(dst, s[i], s[i+1], s[i+2])
				i += 3
				continue
			}
		}
		i += size
		switch {
		case r == 0:
			dst = append(dst, 0xC0, 0x80)
		case r < 0x800:
			dst = append(dst, byte(0xC0|r>>6), byte(0x80|r&0x3F))
		case r < 0x10000:
			dst = append(dst, byte(0xE0|r>>12), byte(0x80|(r>>6)&0x3F), byte(0x80|r&0x3F))
		default:
			r -= 0x10000
			hi := 0xD800 + (r >> 10)
			lo := 0xDC00 + (r & 0x3FF)
			dst = append(dst, byte(0xE0|hi>>12), byte(0x80|(hi>>6)&0x3F), byte(0x80|hi&0x3F))
			dst = append(dst, byte(0xE0|lo>>12), byte(0x80|(lo>>6)&0x3F), byte(0x80|lo&0x3F))
		}
	}
	return dst
}

// modifiedUTF8Len returns the encoded length of s.
func modifiedUTF8Len(s string) int {
	return len(appendModifiedUTF8(nil, s))
}
