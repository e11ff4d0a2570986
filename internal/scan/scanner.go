package scan

type Token struct {
	Text   string
	Offset int
}

type JoinKind int

const (
	JoinNone JoinKind = iota
	JoinSequential
	JoinParallel
)

// Element is one note clause inside a token, e.g. "E" in "C+E_G".
type Element struct {
	Text   string
	Join   JoinKind
	Offset int
}

// IsBreak reports whether b ends a token. The measure bar is accepted as a
// separator and otherwise ignored.
func IsBreak(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r' || b == '|'
}

// MatchBracket returns the index of the ']' closing the '[' at s[open], or
// -1 when there is none. A '[' met first leaves the bracket unmatched.
func MatchBracket(s string, open int) int {
	for i := open + 1; i < len(s); i++ {
		switch s[i] {
		case ']':
			return i
		case '[':
			return -1
		}
	}
	return -1
}

// NextToken returns the token starting at or after cursor and the cursor
// just past the breaking character that ended it. ok is false once the input
// is exhausted.
func NextToken(src string, cursor int) (Token, int, bool) {
	if cursor < 0 {
		cursor = 0
	}
	i := cursor
	for i < len(src) && IsBreak(src[i]) {
		i++
	}
	if i >= len(src) {
		return Token{}, len(src), false
	}
	start := i
	for i < len(src) && !IsBreak(src[i]) {
		if src[i] == '[' {
			if end := MatchBracket(src, i); end >= 0 {
				i = end + 1
				continue
			}
		}
		i++
	}
	tok := Token{Text: src[start:i], Offset: start}
	if i < len(src) {
		i++
	}
	return tok, i, true
}

// Tokens scans every token in src.
func Tokens(src string) []Token {
	var out []Token
	cursor := 0
	for {
		tok, next, ok := NextToken(src, cursor)
		if !ok {
			return out
		}
		out = append(out, tok)
		cursor = next
	}
}

// SplitElements cuts a note token at top-level '+' and '_' joins. Joins
// inside a matched bracket pair are part of the element text.
func SplitElements(token string) []Element {
	var out []Element
	start := 0
	join := JoinNone
	i := 0
	for i < len(token) {
		switch token[i] {
		case '[':
			if end := MatchBracket(token, i); end >= 0 {
				i = end + 1
				continue
			}
		case '+', '_':
			out = append(out, Element{Text: token[start:i], Join: join, Offset: start})
			if token[i] == '+' {
				join = JoinParallel
			} else {
				join = JoinSequential
			}
			start = i + 1
		}
		i++
	}
	out = append(out, Element{Text: token[start:], Join: join, Offset: start})
	return out
}
