package extraction

import (
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/poiesic/examscribe/core"
)

// minContentLength is the shortest normalized question text kept.
const minContentLength = 6

var ordinals = map[string]string{
	"one": "1", "two": "2", "three": "3", "four": "4", "five": "5",
	"six": "6", "seven": "7", "eight": "8", "nine": "9", "ten": "10",
}

var romans = []string{"i", "ii", "iii", "iv", "v", "vi", "vii", "viii", "ix", "x"}

// romanValue returns 1..10 for a lowercase roman numeral up to x, 0 otherwise.
func romanValue(s string) int {
	for n, r := range romans {
		if s == r {
			return n + 1
		}
	}
	return 0
}

// Structured extracts questions from papers using
//
//	header := "QUESTION" number "(" digits "MARK" ["S"] ")"
//	number := digits | ONE..TEN
//
// A header opens a span that runs to the next "QUESTION <number>" boundary.
// Within a span, labels such as "a)" and "ii)" mark sub-parts; each leaf
// becomes one question numbered header+letter+roman, e.g. "3bii".
type Structured struct{}

// NewStructured returns a structured extractor.
func NewStructured() *Structured { return &Structured{} }

// span is the body of one marked question header.
type span struct {
	number string
	marks  string
	body   []token
}

// Extract implements Extractor.
func (s *Structured) Extract(text string) []core.Question {
	var questions []core.Question
	for _, sp := range splitSpans(lex(text)) {
		questions = append(questions, sp.questions(text)...)
	}
	return questions
}

// splitSpans finds every boundary and keeps the spans opened by a header
// carrying a marks annotation.
func splitSpans(tokens []token) []span {
	var spans []span
	var current *span
	c := &cursor{tokens: tokens}
	for c.pos < len(tokens) {
		at := c.pos
		number, ok := boundary(c)
		if !ok {
			c.pos = at + 1
			if current != nil {
				current.body = append(current.body, tokens[at])
			}
			continue
		}
		if current != nil {
			spans = append(spans, *current)
			current = nil
		}
		if marks, ok := marksAnnotation(c); ok {
			current = &span{number: number, marks: marks}
		}
	}
	if current != nil {
		spans = append(spans, *current)
	}
	return spans
}

// boundary consumes `"QUESTION" space number` and returns the number with
// ordinals converted to digits. The cursor is left untouched on failure.
func boundary(c *cursor) (string, bool) {
	start := c.pos
	t, ok := c.peek()
	if !ok || !t.word("question") {
		return "", false
	}
	c.pos++
	if _, ok := c.accept(tokSpace); !ok {
		c.pos = start
		return "", false
	}
	t, ok = c.peek()
	switch {
	case ok && t.is(tokNumber):
		c.pos++
		return canonicalInt(t.text), true
	case ok && t.is(tokWord):
		if digits, found := ordinals[strings.ToLower(t.text)]; found {
			c.pos++
			return digits, true
		}
	}
	c.pos = start
	return "", false
}

// marksAnnotation consumes `"(" digits "MARK"["S"] ")"` with optional
// interior whitespace and returns the digits. The cursor is left untouched
// on failure.
func marksAnnotation(c *cursor) (string, bool) {
	start := c.pos
	c.skipSpace()
	if _, ok := c.accept(tokLParen); !ok {
		c.pos = start
		return "", false
	}
	c.skipSpace()
	num, ok := c.accept(tokNumber)
	if !ok {
		c.pos = start
		return "", false
	}
	c.skipSpace()
	word, ok := c.accept(tokWord)
	if !ok || !(word.word("mark") || word.word("marks")) {
		c.pos = start
		return "", false
	}
	c.skipSpace()
	if _, ok := c.accept(tokRParen); !ok {
		c.pos = start
		return "", false
	}
	return canonicalInt(num.text), true
}

func canonicalInt(digits string) string {
	n, err := strconv.Atoi(digits)
	if err != nil {
		return digits
	}
	return strconv.Itoa(n)
}

// firstMarks returns the first marks annotation inside tokens, "0" if none.
func firstMarks(tokens []token) string {
	c := &cursor{tokens: tokens}
	for c.pos < len(tokens) {
		if marks, ok := marksAnnotation(c); ok {
			return marks
		}
		c.pos++
	}
	return "0"
}

// label is a sub-part marker found in a span body.
type label struct {
	letter string // "a".."z", empty for romans directly under the header
	roman  string // "i".."x", empty for letter parts
	at     int    // token index of the label word
	next   int    // token index just past ")"
}

// part is a leaf question inside a span.
type part struct {
	suffix string
	body   []token
}

func (sp span) questions(source string) []core.Question {
	labels := findLabels(sp.body)
	if len(labels) == 0 {
		content := normalizeSpace(textOf(source, sp.body))
		if utf8.RuneCountInString(content) < minContentLength {
			return nil
		}
		return []core.Question{{Number: sp.number, Text: content, Marks: sp.marks}}
	}

	var questions []core.Question
	for _, p := range leaves(sp.body, labels) {
		content := normalizeSpace(textOf(source, p.body))
		if utf8.RuneCountInString(content) < minContentLength {
			continue
		}
		questions = append(questions, core.Question{
			Number: sp.number + p.suffix,
			Text:   content,
			Marks:  firstMarks(p.body),
		})
	}
	return questions
}

// findLabels walks candidate "x)" markers in order and keeps those that fit
// the letter/roman hierarchy. Letters must strictly increase; romans must
// continue the sequence i, ii, iii... within the current letter part, or
// directly under the header when the first label is "i".
func findLabels(body []token) []label {
	var (
		labels    []label
		letter    string
		lastRoman int
	)
	for n := 0; n+1 < len(body); n++ {
		t := body[n]
		if !t.is(tokWord) || !body[n+1].is(tokRParen) {
			continue
		}
		if n > 0 && !body[n-1].is(tokSpace) && !body[n-1].is(tokLParen) {
			continue
		}
		name := strings.ToLower(t.text)
		rv := romanValue(name)
		isRoman := rv != 0 && rv == lastRoman+1 && (letter != "" || lastRoman > 0 || len(labels) == 0)
		isLetter := utf8.RuneCountInString(name) == 1 && name >= "a" && name <= "z" && name > letter

		if isRoman && isLetter && lastRoman == 0 && letter == "h" {
			// "i)" right after "h)" is ambiguous: it opens roman parts of h
			// only when h has no text of its own yet.
			isRoman = !hasText(body[labels[len(labels)-1].next:n])
		}

		switch {
		case isRoman:
			lastRoman = rv
			labels = append(labels, label{letter: letter, roman: name, at: n, next: n + 2})
		case isLetter:
			letter = name
			lastRoman = 0
			labels = append(labels, label{letter: name, at: n, next: n + 2})
		default:
			continue
		}
		n++
	}
	return labels
}

func hasText(tokens []token) bool {
	for _, t := range tokens {
		if !t.is(tokSpace) && !t.is(tokLParen) {
			return true
		}
	}
	return false
}

// leaves turns labels into leaf parts. A letter part that has roman children
// contributes only through them.
func leaves(body []token, labels []label) []part {
	var parts []part
	for n, l := range labels {
		end := len(body)
		if n+1 < len(labels) {
			end = labels[n+1].at
			// A label preceded by "(" owns the parenthesis.
			if end > 0 && body[end-1].is(tokLParen) {
				end--
			}
		}
		if l.roman == "" && n+1 < len(labels) && labels[n+1].roman != "" && labels[n+1].letter == l.letter {
			continue
		}
		parts = append(parts, part{suffix: l.letter + l.roman, body: body[l.next:end]})
	}
	return parts
}

// textOf returns the source text covered by tokens.
func textOf(source string, tokens []token) string {
	if len(tokens) == 0 {
		return ""
	}
	var sb strings.Builder
	for _, t := range tokens {
		sb.WriteString(source[t.start:t.end])
	}
	return sb.String()
}
