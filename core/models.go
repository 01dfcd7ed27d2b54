package core

import (
	"github.com/google/uuid"
)

// Document is a single uploaded exam paper. It is owned by one processing run.
type Document struct {
	ID   string
	Text string // Normalized text extracted from the upload
}

// NewDocument creates a Document with a freshly generated identifier.
func NewDocument(text string) *Document {
	return &Document{
		ID:   NewID(),
		Text: text,
	}
}

// NewID returns a random UUID string. Used for documents and indexed points.
func NewID() string {
	return uuid.NewString()
}

// Chunk is a bounded segment of document text used as the unit of embedding.
type Chunk struct {
	DocumentID string
	Index      int // Position in the document's chunk sequence
	Text       string
}

// Point is a vector stored in a collection along with its payload.
type Point struct {
	ID         string
	Vector     []float32
	Text       string
	DocumentID string
	ChunkIndex int
}

// SearchHit is a single nearest-neighbor result.
type SearchHit struct {
	Text       string  `json:"text"`
	Score      float32 `json:"score"`
	DocumentID string  `json:"document_id"`
}

// Question is an addressable question extracted from an exam paper.
type Question struct {
	Number string // Hierarchical number, e.g. "1", "3bii" or "Q2"
	Text   string
	Marks  string // Decimal marks allocation; "0" when unannotated, empty when unknown
}

// Answer is the generated answer for one Question.
type Answer struct {
	QuestionNumber string `json:"question_number"`
	Question       string `json:"question"`
	Text           string `json:"answer"`
	Marks          string `json:"marks,omitempty"`
	Err            error  `json:"-"` // Set when Text is an error placeholder
}

// Failed reports whether the answer is an error placeholder.
func (a *Answer) Failed() bool {
	return a.Err != nil
}

// Result is the outcome of processing one document.
type Result struct {
	Message        string   `json:"message"`
	DocumentID     string   `json:"document_id"`
	Strategy       string   `json:"strategy"`
	QuestionsCount int      `json:"questions_count"`
	Answers        []Answer `json:"questions_answers"`
	FilePath       string   `json:"pdf_path,omitempty"`
}
