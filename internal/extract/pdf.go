package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/rs/zerolog/log"

	"github.com/Sawyer0/compliance-copilot-assistant/internal/ocr"
)

// extractPDF pulls embedded text per page, falling back to OCR for pages
// whose text density is below the threshold. Page order is preserved and
// pages are joined with explicit boundary markers.
func (e *Extractor) extractPDF(ctx context.Context, body []byte) (*Content, error) {
	reader, err := pdf.NewReader(bytes.NewReader(body), int64(len(body)))
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}

	c := &Content{Pages: reader.NumPage()}
	engine := e.engine()
	threshold := e.minPageChars()
	ocrBudget := e.maxOCRPages()

	pages := make([]string, 0, c.Pages)
	recovered := 0
	for i := 1; i <= c.Pages; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		var text string
		page := reader.Page(i)
		if !page.V.IsNull() {
			t, err := page.GetPlainText(nil)
			if err != nil {
				c.Warnings = append(c.Warnings, fmt.Sprintf("page %d: embedded text unreadable: %v", i, err))
			} else {
				text = t
			}
		}

		if density(text) < threshold {
			text = e.ocrPage(ctx, body, i, text, c, engine, &ocrBudget)
		}

		if density(text) > 0 {
			recovered++
		}
		pages = append(pages, text)
	}

	if recovered == 0 {
		return nil, fmt.Errorf("%w: no page yielded text across %d pages", ErrNoContent, c.Pages)
	}
	c.Text = joinPages(pages)
	c.Sections = c.Pages
	return c, nil
}

// ocrPage attempts the OCR stage for one low-density page. It never fails
// the document: an unusable engine or an empty recognition result is
// recorded as a warning and the embedded text (possibly empty) stands.
func (e *Extractor) ocrPage(ctx context.Context, body []byte, pageNum int, embedded string, c *Content, engine ocr.Engine, budget *int) string {
	if !engine.Available() {
		c.Warnings = append(c.Warnings, fmt.Sprintf("page %d: below text threshold and OCR unavailable", pageNum))
		return embedded
	}
	if *budget <= 0 {
		c.Warnings = append(c.Warnings, fmt.Sprintf("page %d: below text threshold; OCR page budget spent", pageNum))
		return embedded
	}
	*budget--

	text, err := engine.PageText(ctx, body, pageNum-1)
	if err != nil {
		if errors.Is(err, ocr.ErrUnavailable) {
			c.Warnings = append(c.Warnings, fmt.Sprintf("page %d: below text threshold and OCR unavailable", pageNum))
		} else {
			c.Warnings = append(c.Warnings, fmt.Sprintf("page %d: OCR failed: %v", pageNum, err))
		}
		return embedded
	}
	if strings.TrimSpace(text) == "" {
		c.Warnings = append(c.Warnings, fmt.Sprintf("page %d: OCR recovered no text", pageNum))
		return embedded
	}

	log.Debug().Int("page", pageNum).Int("chars", len(text)).Msg("ocr recovered page text")
	c.OCRUsed = true
	c.Warnings = append(c.Warnings, fmt.Sprintf("page %d: embedded text below threshold; recovered via OCR", pageNum))
	return text
}
