package extraction

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/poiesic/examscribe/core"
)

// minHeuristicLength is the capture length a question must exceed.
const minHeuristicLength = 10

// Line shapes recognized as questions, tried in order. Each captures the
// text up to the first "?".
var heuristicPatterns = []*regexp.Regexp{
	// "1. What ...?", "2 (a) Why ...?"
	regexp.MustCompile(`(?i)^\s*\d+\.?\s*(?:\([a-z]\))?\s*(.*?\?)`),
	// "Question 3: How ...?"
	regexp.MustCompile(`(?i)^\s*Question\s+\d+:?\s*(.*?\?)`),
	// "A. Which ...?"
	regexp.MustCompile(`(?i)^\s*[a-z]\.\s*(.*?\?)`),
}

// Heuristic extracts question-like sentences from unstructured text.
// Questions are numbered Q1, Q2, ... in document order without marks.
type Heuristic struct{}

// NewHeuristic returns a heuristic extractor.
func NewHeuristic() *Heuristic { return &Heuristic{} }

// Extract implements Extractor.
func (h *Heuristic) Extract(text string) []core.Question {
	seen := make(map[string]bool)
	var questions []core.Question
	for _, line := range strings.Split(text, "\n") {
		for _, pattern := range heuristicPatterns {
			m := pattern.FindStringSubmatch(line)
			if m == nil {
				continue
			}
			capture := strings.TrimSpace(m[1])
			if utf8.RuneCountInString(capture) <= minHeuristicLength || seen[capture] {
				continue
			}
			seen[capture] = true
			questions = append(questions, core.Question{
				Number: fmt.Sprintf("Q%d", len(questions)+1),
				Text:   capture,
			})
		}
	}
	return questions
}
