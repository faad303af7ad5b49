package tree

import "bytes"

var (
	tokenNaN      = []byte("NaN")
	tokenInfinity = []byte("Infinity")
	tokenNull     = []byte("null")
)

// ReplaceNonFinite rewrites the bare NaN, Infinity and -Infinity tokens
// that lenient JSON encoders emit for non-finite floats into JSON null, so
// the payload can go through the strict encoding/json decoder. Text inside
// string literals is never touched. The input is returned as is when there
// is nothing to rewrite.
func ReplaceNonFinite(data []byte) []byte {
	if !bytes.Contains(data, tokenNaN) && !bytes.Contains(data, tokenInfinity) {
		return data
	}

	out := make([]byte, 0, len(data))
	inString := false
	escaped := false

	for i := 0; i < len(data); i++ {
		c := data[i]

		if inString {
			out = append(out, c)

			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}

			continue
		}

		switch {
		case c == '"':
			inString = true
		case bytes.HasPrefix(data[i:], tokenNaN):
			out = append(out, tokenNull...)
			i += len(tokenNaN) - 1

			continue
		case bytes.HasPrefix(data[i:], tokenInfinity):
			out = append(out, tokenNull...)
			i += len(tokenInfinity) - 1

			continue
		case c == '-' && bytes.HasPrefix(data[i+1:], tokenInfinity):
			out = append(out, tokenNull...)
			i += len(tokenInfinity)

			continue
		}

		out = append(out, c)
	}

	return out
}
