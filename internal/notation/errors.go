package notation

import "fmt"

type ErrorCode int

const (
	CodeUnknownToken ErrorCode = iota + 1
	CodeUnmatchedBracket
	CodeEmptyBracket
	CodeUnknownMacro
	CodeBadNumber
	CodeBadTuplet
	CodeMissingVelocity
	CodeTrailingCharacters
	CodeBadDirective
)

type Category int

const (
	// LexicalAnomaly is recoverable: the clause is ignored and a default used.
	LexicalAnomaly Category = iota + 1
	// GrammarAnomaly rejects the token.
	GrammarAnomaly
)

func (c ErrorCode) Category() Category {
	if c == CodeUnknownToken {
		return GrammarAnomaly
	}
	return LexicalAnomaly
}

func (c ErrorCode) String() string {
	switch c {
	case CodeUnknownToken:
		return "unknown token"
	case CodeUnmatchedBracket:
		return "unmatched bracket"
	case CodeEmptyBracket:
		return "empty bracket"
	case CodeUnknownMacro:
		return "unknown macro"
	case CodeBadNumber:
		return "bad number"
	case CodeBadTuplet:
		return "bad tuplet"
	case CodeMissingVelocity:
		return "missing velocity"
	case CodeTrailingCharacters:
		return "trailing characters"
	case CodeBadDirective:
		return "bad directive"
	}
	return fmt.Sprintf("code %d", int(c))
}

// ParseError is delivered through the parser's error subscription. Token is
// the offending substring, empty when there is none.
type ParseError struct {
	Code    ErrorCode
	Message string
	Token   string
	Offset  int
}

func (e *ParseError) Error() string {
	if e.Token == "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s (%q at %d)", e.Code, e.Message, e.Token, e.Offset)
}
