package generation

import (
	"context"
	"fmt"

	"github.com/poiesic/examscribe/ai"
	"github.com/poiesic/examscribe/core"
	"github.com/poiesic/examscribe/search"
)

const (
	// DefaultContextLimit is how many runes of the document direct mode sends.
	DefaultContextLimit = 3000
	// Temperature keeps answers focused and reproducible.
	Temperature = 0.3

	directMaxTokens    = 1500
	retrievalMaxTokens = 500
)

// prompter builds the prompt for one question.
type prompter interface {
	prompt(ctx context.Context, q core.Question, doc *core.Document, collection string) (string, ai.GenerateOptions, error)
}

type directPrompter struct {
	limit int
}

func (p directPrompter) prompt(_ context.Context, q core.Question, doc *core.Document, _ string) (string, ai.GenerateOptions, error) {
	prompt := fmt.Sprintf(`You are an expert academic assistant providing concise answers for examination questions.

Document Content:
%s

Question: %s
Marks: %s

Instructions:
1. Provide a focused, direct answer appropriate for the marks allocated
2. For questions worth 2-4 marks, give concise bullet points or brief explanations
3. For questions worth more marks, provide detailed explanations with examples
4. Base your answer on the document content when relevant, supplement with general knowledge
5. Keep answers well-structured and examination-appropriate
6. Format as plain text suitable for JSON

Answer:`, truncateRunes(doc.Text, p.limit), q.Text, q.Marks)
	return prompt, ai.GenerateOptions{Temperature: Temperature, MaxTokens: directMaxTokens}, nil
}

type retrievalPrompter struct {
	retriever *search.Retriever
	topK      int
}

func (p retrievalPrompter) prompt(ctx context.Context, q core.Question, _ *core.Document, collection string) (string, ai.GenerateOptions, error) {
	hits, err := p.retriever.Retrieve(ctx, collection, q.Text, p.topK)
	if err != nil {
		return "", ai.GenerateOptions{}, fmt.Errorf("retrieve context: %w", err)
	}

	prompt := fmt.Sprintf(`You are an expert academic assistant tasked with providing comprehensive answers to examination questions.

Context from the document:
%s

Question:
%s

Instructions:
1. Provide a detailed, well-structured answer based on the given context
2. If the context doesn't contain sufficient information, use your knowledge to provide a reasonable answer
3. Structure your answer with clear explanations and examples where appropriate
4. Keep the answer focused and relevant to the question
5. Use bullet points or numbered lists only when necessary for clarity

Answer:`, search.Context(hits), q.Text)
	return prompt, ai.GenerateOptions{Temperature: Temperature, MaxTokens: retrievalMaxTokens}, nil
}

// truncateRunes returns at most n runes of s.
func truncateRunes(s string, n int) string {
	if n <= 0 {
		return s
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
