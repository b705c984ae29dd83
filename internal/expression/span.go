package expression

// Sentinels returned by MatchSpan.
const (
	// SpanUnterminated means the text ended before the opener was closed.
	SpanUnterminated = -1
	// SpanEmpty means there is no delimited span at the cursor: either the
	// byte before start is not an opening delimiter or the span has zero
	// width. Callers advance one character and keep scanning.
	SpanEmpty = -2
)

var closerFor = map[byte]byte{
	'(': ')',
	'{': '}',
	'[': ']',
}

func isOpener(b byte) bool {
	_, ok := closerFor[b]
	return ok
}

func isCloser(b byte) bool {
	return b == ')' || b == '}' || b == ']'
}

// MatchSpan finds the closer matching the opener at text[start-1]. start is
// one past the opener. The returned index points at the closing delimiter,
// so text[start:end] is the inner span. Delimiters inside single or double
// quoted literals are ignored. A closer that does not match the innermost
// open delimiter makes the span unterminated.
func MatchSpan(text string, start int) int {
	if start <= 0 || start > len(text) || !isOpener(text[start-1]) {
		return SpanEmpty
	}
	if start < len(text) && text[start] == closerFor[text[start-1]] {
		return SpanEmpty
	}

	stack := []byte{closerFor[text[start-1]]}
	for i := start; i < len(text); i++ {
		ch := text[i]
		switch {
		case ch == '\'' || ch == '"':
			end := skipQuoted(text, i)
			if end < 0 {
				return SpanUnterminated
			}
			i = end
		case isOpener(ch):
			stack = append(stack, closerFor[ch])
		case isCloser(ch):
			if stack[len(stack)-1] != ch {
				return SpanUnterminated
			}
			stack = stack[:len(stack)-1]
			if len(stack) == 0 {
				return i
			}
		}
	}
	return SpanUnterminated
}

// skipQuoted returns the index of the quote closing the literal that opens
// at text[i], or -1. Backslash escapes the next byte.
func skipQuoted(text string, i int) int {
	quote := text[i]
	for j := i + 1; j < len(text); j++ {
		switch text[j] {
		case '\\':
			j++
		case quote:
			return j
		}
	}
	return -1
}

// SplitTopLevel splits s on sep where sep appears outside any bracket pair
// and outside quoted literals. Parts are returned untrimmed.
func SplitTopLevel(s string, sep byte) []string {
	var parts []string
	depth := 0
	last := 0
	for i := 0; i < len(s); i++ {
		ch := s[i]
		switch {
		case ch == '\'' || ch == '"':
			if end := skipQuoted(s, i); end >= 0 {
				i = end
			}
		case isOpener(ch):
			depth++
		case isCloser(ch):
			if depth > 0 {
				depth--
			}
		case ch == sep && depth == 0:
			parts = append(parts, s[last:i])
			last = i + 1
		}
	}
	return append(parts, s[last:])
}
