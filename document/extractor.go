// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package document

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/poiesic/examscribe/core"
	"github.com/unidoc/unipdf/v3/extractor"
	"github.com/unidoc/unipdf/v3/model"
)

// signature opens every PDF file.
var signature = []byte("%PDF-")

// ErrNotPDF is returned by Sniff for input without a PDF signature.
var ErrNotPDF = errors.New("not a PDF document")

// TextExtractor extracts plain text from raw document bytes.
type TextExtractor interface {
	Extract(raw []byte) (string, error)
}

// PDFExtractor reads text from PDF documents page by page.
type PDFExtractor struct {
	logger *slog.Logger
}

// Option configures a PDFExtractor.
type Option func(*PDFExtractor)

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *PDFExtractor) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// NewPDFExtractor creates a PDF text extractor.
func NewPDFExtractor(opts ...Option) *PDFExtractor {
	p := &PDFExtractor{logger: slog.Default()}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.With("component", "pdf-extractor")
	return p
}

// Sniff reports whether raw starts with the PDF signature, ignoring
// leading whitespace.
func Sniff(raw []byte) error {
	if !bytes.HasPrefix(bytes.TrimLeft(raw, " \t\r\n"), signature) {
		return ErrNotPDF
	}
	return nil
}

// Extract returns the text of every page joined by newlines and trimmed.
// Pages whose text cannot be read are skipped. Malformed input and
// documents without any text are core.ErrExtraction.
func (p *PDFExtractor) Extract(raw []byte) (string, error) {
	if len(raw) == 0 {
		return "", fmt.Errorf("%w: empty document", core.ErrExtraction)
	}
	if err := Sniff(raw); err != nil {
		return "", fmt.Errorf("%w: %w", core.ErrExtraction, err)
	}

	reader, err := model.NewPdfReader(bytes.NewReader(raw))
	if err != nil {
		return "", fmt.Errorf("%w: open pdf: %w", core.ErrExtraction, err)
	}
	pages, err := reader.GetNumPages()
	if err != nil {
		return "", fmt.Errorf("%w: count pages: %w", core.ErrExtraction, err)
	}

	var sb strings.Builder
	for i := 1; i <= pages; i++ {
		page, err := reader.GetPage(i)
		if err != nil {
			p.logger.Warn("skipping unreadable page", "page", i, "err", err)
			continue
		}
		ex, err := extractor.New(page)
		if err != nil {
			p.logger.Warn("skipping page", "page", i, "err", err)
			continue
		}
		text, err := ex.ExtractText()
		if err != nil {
			p.logger.Warn("failed to extract page text", "page", i, "err", err)
			continue
		}
		sb.WriteString(text)
		sb.WriteString("\n")
	}

	text := strings.TrimSpace(sb.String())
	if text == "" {
		return "", fmt.Errorf("%w: no text in %d pages", core.ErrExtraction, pages)
	}
	p.logger.Debug("extracted text", "pages", pages, "chars", len(text))
	return text, nil
}

// Normalize trims every line, drops blank lines and joins the rest with
// single newlines.
func Normalize(text string) string {
	lines := strings.Split(text, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if line = strings.TrimSpace(line); line != "" {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n")
}
