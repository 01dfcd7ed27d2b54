package extraction

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

type tokenKind int

const (
	tokWord tokenKind = iota
	tokNumber
	tokSpace
	tokLParen
	tokRParen
	tokOther
)

// token is a lexeme with its byte span in the source text.
type token struct {
	kind  tokenKind
	text  string
	start int
	end   int
}

func (t token) is(kind tokenKind) bool { return t.kind == kind }

func (t token) word(w string) bool { return t.kind == tokWord && strings.EqualFold(t.text, w) }

// lex splits text into letter runs, ASCII digit runs, whitespace runs,
// parentheses and single other runes.
func lex(text string) []token {
	var tokens []token
	for i := 0; i < len(text); {
		r, size := utf8.DecodeRuneInString(text[i:])
		start := i
		var kind tokenKind
		switch {
		case unicode.IsLetter(r):
			kind = tokWord
			i = scan(text, i, unicode.IsLetter)
		case r >= '0' && r <= '9':
			kind = tokNumber
			i = scan(text, i, func(r rune) bool { return r >= '0' && r <= '9' })
		case unicode.IsSpace(r):
			kind = tokSpace
			i = scan(text, i, unicode.IsSpace)
		case r == '(':
			kind, i = tokLParen, i+size
		case r == ')':
			kind, i = tokRParen, i+size
		default:
			kind, i = tokOther, i+size
		}
		tokens = append(tokens, token{kind: kind, text: text[start:i], start: start, end: i})
	}
	return tokens
}

func scan(text string, i int, accept func(rune) bool) int {
	for i < len(text) {
		r, size := utf8.DecodeRuneInString(text[i:])
		if !accept(r) {
			break
		}
		i += size
	}
	return i
}

// cursor walks a token slice.
type cursor struct {
	tokens []token
	pos    int
}

func (c *cursor) peek() (token, bool) {
	if c.pos >= len(c.tokens) {
		return token{}, false
	}
	return c.tokens[c.pos], true
}

// accept consumes the next token if it is of kind.
func (c *cursor) accept(kind tokenKind) (token, bool) {
	t, ok := c.peek()
	if !ok || !t.is(kind) {
		return token{}, false
	}
	c.pos++
	return t, true
}

func (c *cursor) skipSpace() {
	c.accept(tokSpace)
}

// normalizeSpace collapses whitespace runs to a single space and trims.
func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
