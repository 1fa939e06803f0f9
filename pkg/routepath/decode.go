package routepath

import (
	"errors"
	"strings"
	"unicode/utf8"
)

// Decoding errors.
var (
	ErrInvalidPercentEscape = errors.New("routepath: invalid percent escape sequence")
	ErrInvalidUTF8          = errors.New("routepath: percent escapes do not form valid UTF-8")
)

// uriReserved are the characters whose escapes DecodeURI leaves intact.
const uriReserved = ";/?:@&=+$,#"

// DecodeURI decodes percent escapes in a whole URI path while keeping the
// escapes of reserved delimiters such as %2F, so decoding never changes how
// the path splits into segments.
func DecodeURI(s string) (string, error) {
	return decode(s, true)
}

// DecodeURIComponent decodes every percent escape in s.
func DecodeURIComponent(s string) (string, error) {
	return decode(s, false)
}

func decode(s string, keepReserved bool) (string, error) {
	if !strings.Contains(s, "%") {
		return s, nil
	}
	var b strings.Builder
	b.Grow(len(s))
	decoded := make([]byte, 0, 4)
	flush := func() error {
		if len(decoded) == 0 {
			return nil
		}
		if !utf8.Valid(decoded) {
			return ErrInvalidUTF8
		}
		b.Write(decoded)
		decoded = decoded[:0]
		return nil
	}
	for i := 0; i < len(s); {
		if s[i] != '%' {
			if err := flush(); err != nil {
				return "", err
			}
			b.WriteByte(s[i])
			i++
			continue
		}
		if i+2 >= len(s) || !isHexDigit(s[i+1]) || !isHexDigit(s[i+2]) {
			return "", ErrInvalidPercentEscape
		}
		c := unhex(s[i+1])<<4 | unhex(s[i+2])
		if keepReserved && c < utf8.RuneSelf && strings.IndexByte(uriReserved, c) >= 0 {
			if err := flush(); err != nil {
				return "", err
			}
			b.WriteString(s[i : i+3])
		} else {
			decoded = append(decoded, c)
		}
		i += 3
	}
	if err := flush(); err != nil {
		return "", err
	}
	return b.String(), nil
}

// SafeDecodeURI decodes a pathname, returning it unchanged with a warning
// when it holds malformed escapes.
func SafeDecodeURI(value string) string {
	out, err := DecodeURI(value)
	if err != nil {
		logger.Warn("URL path could not be decoded, using it as is",
			"path", value, "error", err)
		return value
	}
	return out
}

// SafeDecodeComponent decodes a captured parameter value, returning it
// unchanged with a warning when it holds malformed escapes.
func SafeDecodeComponent(value, param string) string {
	out, err := DecodeURIComponent(value)
	if err != nil {
		logger.Warn("URL param could not be decoded, using it as is",
			"param", param, "value", value, "error", err)
		return value
	}
	return out
}

func isHexDigit(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

func unhex(c byte) byte {
	switch {
	case c >= '0' && c <= '9':
		return c - '0'
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10
	default:
		return c - 'A' + 10
	}
}
