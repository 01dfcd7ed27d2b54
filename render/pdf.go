package render

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/poiesic/examscribe/core"
	"github.com/unidoc/unipdf/v3/creator"
	"github.com/unidoc/unipdf/v3/model"
)

// ErrNotFound is returned by Find when no rendered file matches.
var ErrNotFound = errors.New("rendered document not found")

const timestampLayout = "20060102_150405"

// Renderer materializes answers for a document.
type Renderer interface {
	Render(answers []core.Answer, documentID string) (string, error)
}

// PDFRenderer renders answers as an A4 marking scheme.
type PDFRenderer struct {
	outputDir string
	now       func() time.Time
	logger    *slog.Logger
}

// Option configures a PDFRenderer.
type Option func(*PDFRenderer)

// WithClock overrides the time used in file names.
func WithClock(now func() time.Time) Option {
	return func(r *PDFRenderer) {
		if now != nil {
			r.now = now
		}
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(r *PDFRenderer) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewPDFRenderer creates a renderer writing into outputDir.
func NewPDFRenderer(outputDir string, opts ...Option) (*PDFRenderer, error) {
	if strings.TrimSpace(outputDir) == "" {
		return nil, fmt.Errorf("%w: output directory is required", core.ErrRender)
	}
	r := &PDFRenderer{outputDir: outputDir, now: time.Now, logger: slog.Default()}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With("component", "pdf-renderer")
	return r, nil
}

// FileName returns the name a document rendered at t is stored under.
func FileName(documentID string, t time.Time) string {
	return fmt.Sprintf("answer_scheme_%s_%s.pdf", documentID, t.Format(timestampLayout))
}

// Render writes the marking scheme and returns its path.
func (r *PDFRenderer) Render(answers []core.Answer, documentID string) (string, error) {
	if err := os.MkdirAll(r.outputDir, 0o755); err != nil {
		return "", fmt.Errorf("%w: create output directory: %w", core.ErrRender, err)
	}
	path := filepath.Join(r.outputDir, FileName(documentID, r.now()))

	c, err := build(answers, documentID)
	if err != nil {
		return "", fmt.Errorf("%w: %w", core.ErrRender, err)
	}
	if err := c.WriteToFile(path); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("%w: write %s: %w", core.ErrRender, path, err)
	}

	r.logger.Info("rendered marking scheme", "document_id", documentID, "answers", len(answers), "path", path)
	return path, nil
}

func build(answers []core.Answer, documentID string) (*creator.Creator, error) {
	bold, err := model.NewStandard14Font(model.HelveticaBoldName)
	if err != nil {
		return nil, err
	}
	regular, err := model.NewStandard14Font(model.HelveticaName)
	if err != nil {
		return nil, err
	}

	c := creator.New()
	c.SetPageSize(creator.PageSizeA4)
	c.NewPage()

	title := c.NewParagraph("MARKING SCHEME")
	title.SetFont(bold)
	title.SetFontSize(18)
	title.SetColor(creator.ColorRGBFrom8bit(0, 0, 139))
	title.SetTextAlignment(creator.TextAlignmentCenter)
	title.SetMargins(0, 0, 0, 20)
	if err := c.Draw(title); err != nil {
		return nil, err
	}

	subtitle := c.NewParagraph("Document ID: " + documentID)
	subtitle.SetFont(regular)
	subtitle.SetFontSize(10)
	subtitle.SetMargins(0, 0, 0, 30)
	if err := c.Draw(subtitle); err != nil {
		return nil, err
	}

	for _, a := range answers {
		heading := c.NewParagraph(a.QuestionNumber + ": " + a.Question)
		heading.SetFont(bold)
		heading.SetFontSize(14)
		heading.SetColor(creator.ColorRGBFrom8bit(139, 0, 0))
		heading.SetMargins(20, 0, 0, 10)
		if err := c.Draw(heading); err != nil {
			return nil, err
		}

		body := c.NewParagraph(a.Text)
		body.SetFont(regular)
		body.SetFontSize(11)
		body.SetMargins(40, 20, 0, 35)
		if err := c.Draw(body); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Find returns the first rendered PDF in dir whose name contains
// documentID.
func Find(dir, documentID string) (string, error) {
	if documentID == "" || strings.ContainsAny(documentID, `/\`) || strings.Contains(documentID, "..") {
		return "", ErrNotFound
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", ErrNotFound
		}
		return "", err
	}
	for _, e := range entries {
		name := e.Name()
		if e.Type().IsRegular() && strings.HasSuffix(name, ".pdf") && strings.Contains(name, documentID) {
			return filepath.Join(dir, name), nil
		}
	}
	return "", ErrNotFound
}
