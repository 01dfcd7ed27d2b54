package extraction

import (
	"testing"

	"github.com/poiesic/examscribe/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func numbers(questions []core.Question) []string {
	out := make([]string, len(questions))
	for i, q := range questions {
		out[i] = q.Number
	}
	return out
}

func TestStructuredLetterAndRomanParts(t *testing.T) {
	text := "QUESTION ONE (10 MARKS) What is X? a) define Y b) i) compare Y and Z"

	questions := NewStructured().Extract(text)

	require.Len(t, questions, 2)
	assert.Equal(t, core.Question{Number: "1a", Text: "define Y", Marks: "0"}, questions[0])
	assert.Equal(t, core.Question{Number: "1bi", Text: "compare Y and Z", Marks: "0"}, questions[1])
}

func TestStructuredWholeQuestionUsesHeaderMarks(t *testing.T) {
	text := "QUESTION 2 (15 MARKS)\nDiscuss the causes of the\n   First World War."

	questions := NewStructured().Extract(text)

	require.Len(t, questions, 1)
	assert.Equal(t, "2", questions[0].Number)
	assert.Equal(t, "Discuss the causes of the First World War.", questions[0].Text)
	assert.Equal(t, "15", questions[0].Marks)
}

func TestStructuredLeafMarksAnnotation(t *testing.T) {
	text := `QUESTION THREE (20 MARKS)
a) Define entropy. (4 marks)
b) Explain the second law.
   i) State it in words (2 Marks)
   ii) Give an everyday example (6 marks) and justify (3 marks)
c) Derive the Carnot efficiency (8 marks)`

	questions := NewStructured().Extract(text)

	assert.Equal(t, []string{"3a", "3bi", "3bii", "3c"}, numbers(questions))
	marks := make([]string, len(questions))
	for i, q := range questions {
		marks[i] = q.Marks
	}
	assert.Equal(t, []string{"4", "2", "6", "8"}, marks)
	assert.Equal(t, "Define entropy. (4 marks)", questions[0].Text)
}

func TestStructuredMultipleHeaders(t *testing.T) {
	text := "question one (5 marks) Describe photosynthesis. " +
		"QUESTION TWO (5 MARK) Describe respiration in cells. " +
		"QUESTION 10 (1 MARKS) Name one enzyme."

	questions := NewStructured().Extract(text)

	assert.Equal(t, []string{"1", "2", "10"}, numbers(questions))
	assert.Equal(t, "Describe photosynthesis.", questions[0].Text)
	assert.Equal(t, "1", questions[2].Marks)
}

func TestStructuredBoundaryWithoutMarksEndsSpan(t *testing.T) {
	text := "QUESTION 1 (10 MARKS) Explain inflation. QUESTION 2 Explain deflation. QUESTION 3 (5 MARKS) Define GDP now."

	questions := NewStructured().Extract(text)

	require.Len(t, questions, 2)
	assert.Equal(t, "1", questions[0].Number)
	assert.Equal(t, "Explain inflation.", questions[0].Text)
	assert.Equal(t, "3", questions[1].Number)
}

func TestStructuredDropsShortContent(t *testing.T) {
	text := "QUESTION 1 (2 MARKS) a) Yes b) Explain why the sky is blue"

	questions := NewStructured().Extract(text)

	assert.Equal(t, []string{"1b"}, numbers(questions))
}

func TestStructuredNoHeaders(t *testing.T) {
	assert.Empty(t, NewStructured().Extract("1. What is the capital of France?"))
	assert.Empty(t, NewStructured().Extract(""))
	assert.Empty(t, NewStructured().Extract("QUESTION (10 MARKS) orphan text here"))
}

func TestStructuredRomansDirectlyUnderHeader(t *testing.T) {
	text := "QUESTION 4 (6 MARKS) i) List three primes ii) List three squares iii) List three cubes"

	questions := NewStructured().Extract(text)

	assert.Equal(t, []string{"4i", "4ii", "4iii"}, numbers(questions))
}

func TestStructuredMixedCaseLabels(t *testing.T) {
	text := "QUESTION 5 (8 MARKS) A) Outline the method B) II) wrong order I) State the aim II) State the result"

	questions := NewStructured().Extract(text)

	// "II)" before any "I)" is out of sequence and not a label.
	assert.Equal(t, []string{"5a", "5bi", "5bii"}, numbers(questions))
	assert.Equal(t, "State the aim", questions[1].Text)
}

func TestStructuredLettersMustIncrease(t *testing.T) {
	text := "QUESTION 6 (4 MARKS) a) Compare plan a) and plan b) in detail c) Recommend one"

	questions := NewStructured().Extract(text)

	// The second "a)" is prose, "b)" then continues the sequence.
	assert.Equal(t, []string{"6a", "6b", "6c"}, numbers(questions))
	assert.Equal(t, "Compare plan a) and plan", questions[0].Text)
}

func TestStructuredLetterIAfterH(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{
			name: "h with text then i is a letter",
			text: "QUESTION 7 (9 MARKS) g) Define voltage h) Define current i) Define resistance",
			want: []string{"7g", "7h", "7i"},
		},
		{
			name: "empty h then i is a roman",
			text: "QUESTION 7 (9 MARKS) g) Define voltage h) i) Define current ii) Define resistance",
			want: []string{"7g", "7hi", "7hii"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, numbers(NewStructured().Extract(tt.text)))
		})
	}
}

func TestStructuredRomanPastVIII(t *testing.T) {
	text := "QUESTION 8 (10 MARKS) a) i) one item ii) two items iii) three items iv) four items v) five items " +
		"vi) six items vii) seven items viii) eight items ix) nine items x) ten items"

	questions := NewStructured().Extract(text)

	require.Len(t, questions, 10)
	assert.Equal(t, "8aix", questions[8].Number)
	assert.Equal(t, "8ax", questions[9].Number)
}

func TestStructuredParenthesizedLabels(t *testing.T) {
	text := "QUESTION 9 (4 MARKS) (a) State Ohm's law (b) Apply it to a circuit"

	questions := NewStructured().Extract(text)

	require.Equal(t, []string{"9a", "9b"}, numbers(questions))
	assert.Equal(t, "State Ohm's law", questions[0].Text)
}

func TestLex(t *testing.T) {
	tokens := lex("Q1 (10 marks)é")
	kinds := make([]tokenKind, len(tokens))
	for i, tok := range tokens {
		kinds[i] = tok.kind
	}
	assert.Equal(t, []tokenKind{tokWord, tokNumber, tokSpace, tokLParen, tokNumber, tokSpace, tokWord, tokRParen, tokWord}, kinds)
	assert.Equal(t, "marks", tokens[6].text)
	assert.Equal(t, "é", tokens[8].text)
}

func TestRomanValue(t *testing.T) {
	assert.Equal(t, 1, romanValue("i"))
	assert.Equal(t, 9, romanValue("ix"))
	assert.Equal(t, 10, romanValue("x"))
	assert.Equal(t, 0, romanValue("xi"))
	assert.Equal(t, 0, romanValue("a"))
}
