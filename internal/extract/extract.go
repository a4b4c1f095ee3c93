// Package extract converts fetched bytes into plain text plus a structural
// summary, dispatching on the source's declared type. PDF pages with no
// usable embedded text fall back to OCR; HTML is stripped to its main
// content region and rendered as lightweight markup.
package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/Sawyer0/compliance-copilot-assistant/internal/fetch"
	"github.com/Sawyer0/compliance-copilot-assistant/internal/ocr"
	"github.com/Sawyer0/compliance-copilot-assistant/internal/registry"
)

// ErrNoContent means nothing at all could be recovered from the payload.
// Partial recovery is success with warnings, never this error.
var ErrNoContent = errors.New("no extractable content")

// MinPageChars is the embedded-text density threshold: a PDF page with
// fewer non-whitespace characters than this is treated as image-only and
// sent to the OCR stage.
const MinPageChars = 32

// MaxOCRPages bounds OCR work per document; rasterizing and recognizing
// a page is orders of magnitude more expensive than text extraction.
const MaxOCRPages = 10

// Content is the result of extracting one fetched endpoint.
type Content struct {
	Text     string
	Title    string
	Pages    int
	Sections int
	OCRUsed  bool
	Warnings []string
	// Links are candidate document URLs found on index-style pages
	// (document_library, web_scraper). They are reported, never fetched.
	Links []string
	// Endpoint is the relative path this content came from.
	Endpoint string
}

// Extractor dispatches extraction by source type.
type Extractor struct {
	// MinPageChars overrides the package default when > 0.
	MinPageChars int
	// MaxOCRPages overrides the package default when > 0.
	MaxOCRPages int
	// OCR is the fallback engine for image-only PDF pages. Nil uses the
	// engine compiled into this build.
	OCR ocr.Engine
}

func (e *Extractor) minPageChars() int {
	if e.MinPageChars > 0 {
		return e.MinPageChars
	}
	return MinPageChars
}

func (e *Extractor) maxOCRPages() int {
	if e.MaxOCRPages > 0 {
		return e.MaxOCRPages
	}
	return MaxOCRPages
}

func (e *Extractor) engine() ocr.Engine {
	if e.OCR != nil {
		return e.OCR
	}
	return ocr.New()
}

var pdfMagic = []byte("%PDF-")

// Extract converts res into Content according to def's source type. The
// switch is exhaustive over registry.SourceType; registry validation
// guarantees no other value reaches here.
func (e *Extractor) Extract(ctx context.Context, def *registry.Definition, endpoint string, res *fetch.Result) (*Content, error) {
	if len(res.Body) == 0 {
		return nil, ErrNoContent
	}
	switch def.SourceType {
	case registry.StaticPDF:
		if !bytes.HasPrefix(res.Body, pdfMagic) {
			return nil, fmt.Errorf("source %s declares static_pdf but payload is not a PDF (content type %q)", def.ID, res.ContentType)
		}
		c, err := e.extractPDF(ctx, res.Body)
		if err != nil {
			return nil, err
		}
		c.Endpoint = endpoint
		return c, nil
	case registry.StaticHTML, registry.WebScraper, registry.DocumentLibrary:
		if bytes.HasPrefix(res.Body, pdfMagic) {
			return nil, fmt.Errorf("source %s declares %s but payload is a PDF", def.ID, def.SourceType)
		}
		c, err := e.extractHTML(res.Body, res.ContentType, res.FinalURL, def.SourceType.IsIndex())
		if err != nil {
			return nil, err
		}
		c.Endpoint = endpoint
		return c, nil
	default:
		return nil, fmt.Errorf("unhandled source type %q", def.SourceType)
	}
}

// density counts non-whitespace characters.
func density(s string) int {
	n := 0
	for _, r := range s {
		if !unicode.IsSpace(r) {
			n++
		}
	}
	return n
}

// pageMarker separates concatenated pages so structural position stays
// recoverable downstream.
func pageMarker(n int) string {
	return fmt.Sprintf("--- page %d ---", n)
}

func joinPages(pages []string) string {
	var b strings.Builder
	for i, p := range pages {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(pageMarker(i + 1))
		b.WriteString("\n")
		b.WriteString(strings.TrimSpace(p))
	}
	return b.String()
}
