package generation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/poiesic/examscribe/ai"
	"github.com/poiesic/examscribe/ai/mock"
	"github.com/poiesic/examscribe/core"
	"github.com/poiesic/examscribe/search"
	"github.com/poiesic/examscribe/storage/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func questions(n int) []core.Question {
	qs := make([]core.Question, n)
	for i := range qs {
		qs[i] = core.Question{
			Number: fmt.Sprintf("%d.a", i+1),
			Text:   fmt.Sprintf("Explain concept number %d", i+1),
			Marks:  "3",
		}
	}
	return qs
}

func TestNewAnswererRequiresDependencies(t *testing.T) {
	_, err := NewDirectAnswerer(nil)
	assert.ErrorIs(t, err, ErrGeneratorRequired)

	_, err = NewRetrievalAnswerer(mock.NewMockGenerator(), nil)
	assert.ErrorIs(t, err, ErrRetrieverRequired)

	_, err = NewDirectAnswerer(mock.NewMockGenerator(), WithContextLimit(0))
	assert.Error(t, err)
	_, err = NewDirectAnswerer(mock.NewMockGenerator(), WithTopK(-1))
	assert.Error(t, err)
}

func TestAnswerPreservesOrder(t *testing.T) {
	gen := mock.NewMockGenerator()
	gen.GenerateFunc = func(_ context.Context, prompt string, _ ai.GenerateOptions) (string, error) {
		// Earlier questions finish last.
		for i := 1; i <= 8; i++ {
			if strings.Contains(prompt, fmt.Sprintf("concept number %d\n", i)) {
				time.Sleep(time.Duration(9-i) * time.Millisecond)
				return fmt.Sprintf("answer %d", i), nil
			}
		}
		return "", errors.New("unexpected prompt")
	}

	a, err := NewDirectAnswerer(gen, WithPoolSize(4))
	require.NoError(t, err)
	defer a.Release()

	qs := questions(8)
	answers := a.Answer(context.Background(), qs, core.NewDocument("Some study material."), "")
	require.Len(t, answers, len(qs))
	for i, ans := range answers {
		assert.Equal(t, qs[i].Number, ans.QuestionNumber)
		assert.Equal(t, qs[i].Text, ans.Question)
		assert.Equal(t, "3", ans.Marks)
		assert.Equal(t, fmt.Sprintf("answer %d", i+1), ans.Text)
		assert.False(t, ans.Failed())
	}
}

func TestAnswerFailureYieldsPlaceholder(t *testing.T) {
	gen := mock.NewMockGenerator()
	gen.GenerateFunc = func(_ context.Context, prompt string, _ ai.GenerateOptions) (string, error) {
		if strings.Contains(prompt, "concept number 2\n") {
			return "", errors.New("rate limited")
		}
		return "fine", nil
	}

	a, err := NewDirectAnswerer(gen)
	require.NoError(t, err)
	defer a.Release()

	answers := a.Answer(context.Background(), questions(3), core.NewDocument("text"), "")
	require.Len(t, answers, 3)

	failed := 0
	for _, ans := range answers {
		if ans.Failed() {
			failed++
		}
	}
	assert.Equal(t, 1, failed)
	assert.Equal(t, "Error generating answer: rate limited", answers[1].Text)
	assert.Equal(t, "2.a", answers[1].QuestionNumber)
	assert.Equal(t, "fine", answers[0].Text)
	assert.Equal(t, "fine", answers[2].Text)
}

func TestAnswerEmptyQuestions(t *testing.T) {
	a, err := NewDirectAnswerer(mock.NewMockGenerator())
	require.NoError(t, err)
	defer a.Release()

	answers := a.Answer(context.Background(), nil, core.NewDocument("text"), "")
	assert.Empty(t, answers)
}

func TestDirectPromptUsesDocumentPrefix(t *testing.T) {
	gen := mock.NewMockGenerator()
	a, err := NewDirectAnswerer(gen, WithContextLimit(20))
	require.NoError(t, err)
	defer a.Release()

	doc := core.NewDocument("0123456789abcdefghijTAIL-NOT-SENT")
	q := core.Question{Number: "1.a", Text: "Define entropy", Marks: "4"}
	answers := a.Answer(context.Background(), []core.Question{q}, doc, "")
	require.Len(t, answers, 1)
	assert.True(t, strings.HasPrefix(answers[0].Text, "Mock answer"))

	prompts := gen.Prompts()
	require.Len(t, prompts, 1)
	assert.Contains(t, prompts[0], "Document Content:\n0123456789abcdefghij\n")
	assert.NotContains(t, prompts[0], "TAIL")
	assert.Contains(t, prompts[0], "Question: Define entropy")
	assert.Contains(t, prompts[0], "Marks: 4")

	opts := gen.Options()
	require.Len(t, opts, 1)
	assert.Equal(t, ai.GenerateOptions{Temperature: 0.3, MaxTokens: 1500}, opts[0])
}

func newRetriever(t *testing.T, embedder *mock.MockEmbedder, texts ...string) *search.Retriever {
	t.Helper()
	index, err := badger.NewMemoryIndex()
	require.NoError(t, err)
	t.Cleanup(func() { index.Close() })

	ctx := context.Background()
	require.NoError(t, index.EnsureCollection(ctx, "client_test", embedder.Dimension()))
	points := make([]core.Point, len(texts))
	for i, text := range texts {
		points[i] = core.Point{Vector: mock.Vector(text, embedder.Dimension()), Text: text, DocumentID: "doc", ChunkIndex: i}
	}
	require.NoError(t, index.Upsert(ctx, "client_test", points))

	r, err := search.NewRetriever(index, embedder)
	require.NoError(t, err)
	return r
}

func TestRetrievalPromptUsesTopHits(t *testing.T) {
	embedder := mock.NewMockEmbedderWithDimension(16)
	q := core.Question{Number: "1", Text: "What is osmosis", Marks: "2"}
	retriever := newRetriever(t, embedder, q.Text, "chunk one", "chunk two", "chunk three", "chunk four")

	gen := mock.NewMockGenerator()
	a, err := NewRetrievalAnswerer(gen, retriever)
	require.NoError(t, err)
	defer a.Release()

	answers := a.Answer(context.Background(), []core.Question{q}, core.NewDocument("unused"), "client_test")
	require.Len(t, answers, 1)
	assert.False(t, answers[0].Failed())

	prompts := gen.Prompts()
	require.Len(t, prompts, 1)
	// The chunk identical to the question ranks first.
	assert.Contains(t, prompts[0], "Context from the document:\nWhat is osmosis\n")
	assert.Contains(t, prompts[0], "Question:\nWhat is osmosis\n")
	assert.NotContains(t, prompts[0], "unused")

	block := prompts[0][strings.Index(prompts[0], "Context from the document:\n"):strings.Index(prompts[0], "\n\nQuestion:")]
	assert.Equal(t, 3, strings.Count(block, "\n"))

	assert.Equal(t, ai.GenerateOptions{Temperature: 0.3, MaxTokens: 500}, gen.Options()[0])
}

func TestRetrievalFailureYieldsPlaceholder(t *testing.T) {
	embedder := mock.NewMockEmbedderWithDimension(16)
	retriever := newRetriever(t, embedder, "chunk")
	embedder.EmbedTextFunc = func(context.Context, string) ([]float32, error) {
		return nil, errors.New("embedding service down")
	}

	gen := mock.NewMockGenerator()
	a, err := NewRetrievalAnswerer(gen, retriever)
	require.NoError(t, err)
	defer a.Release()

	answers := a.Answer(context.Background(), questions(2), core.NewDocument("x"), "client_test")
	require.Len(t, answers, 2)
	for _, ans := range answers {
		assert.True(t, ans.Failed())
		assert.ErrorIs(t, ans.Err, core.ErrExternalService)
		assert.True(t, strings.HasPrefix(ans.Text, "Error generating answer: "))
	}
	assert.Zero(t, gen.CallCount())
}

func TestAnswerBoundsConcurrency(t *testing.T) {
	var inFlight, peak atomic.Int32
	gen := mock.NewMockGenerator()
	gen.GenerateFunc = func(context.Context, string, ai.GenerateOptions) (string, error) {
		n := inFlight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		inFlight.Add(-1)
		return "ok", nil
	}

	a, err := NewDirectAnswerer(gen, WithPoolSize(2))
	require.NoError(t, err)
	defer a.Release()

	answers := a.Answer(context.Background(), questions(10), core.NewDocument("x"), "")
	assert.Len(t, answers, 10)
	assert.LessOrEqual(t, peak.Load(), int32(2))
}

type recordingMonitor struct {
	total    atomic.Int32
	finished atomic.Int32
	done     atomic.Int32
}

func (m *recordingMonitor) Start(total int) { m.total.Store(int32(total)) }
func (m *recordingMonitor) QuestionFinished(core.Answer, time.Duration) {
	m.finished.Add(1)
}
func (m *recordingMonitor) Finish([]core.Answer) { m.done.Add(1) }

func TestAnswerNotifiesMonitors(t *testing.T) {
	first, second := &recordingMonitor{}, &recordingMonitor{}
	a, err := NewDirectAnswerer(mock.NewMockGenerator(), WithMonitor(Monitors(first, second)))
	require.NoError(t, err)
	defer a.Release()

	a.Answer(context.Background(), questions(5), core.NewDocument("x"), "")
	for _, m := range []*recordingMonitor{first, second} {
		assert.Equal(t, int32(5), m.total.Load())
		assert.Equal(t, int32(5), m.finished.Load())
		assert.Equal(t, int32(1), m.done.Load())
	}
}

func TestTruncateRunes(t *testing.T) {
	tests := []struct {
		in   string
		n    int
		want string
	}{
		{"hello", 3, "hel"},
		{"hello", 10, "hello"},
		{"héllo", 2, "hé"},
		{"hello", 0, "hello"},
		{"", 5, ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, truncateRunes(tt.in, tt.n))
	}
}
