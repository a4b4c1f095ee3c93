//go:build cgo

package ocr

import (
	"context"
	"fmt"

	"github.com/gen2brain/go-fitz"
	"github.com/otiai10/gosseract/v2"
)

// Tesseract rasterizes pages through MuPDF and recognizes them with the
// system tesseract library.
type Tesseract struct {
	// Language is the tesseract language code. Empty means "eng".
	Language string
}

// New returns the OCR engine for this build.
func New() Engine { return &Tesseract{} }

func (t *Tesseract) Available() bool { return true }

func (t *Tesseract) PageText(ctx context.Context, pdf []byte, page int) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	doc, err := fitz.NewFromMemory(pdf)
	if err != nil {
		return "", fmt.Errorf("open pdf for raster: %w", err)
	}
	defer doc.Close()

	if page < 0 || page >= doc.NumPage() {
		return "", fmt.Errorf("page %d out of range (%d pages)", page, doc.NumPage())
	}
	png, err := doc.ImagePNG(page, rasterDPI)
	if err != nil {
		return "", fmt.Errorf("rasterize page %d: %w", page, err)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	client := gosseract.NewClient()
	defer client.Close()
	lang := t.Language
	if lang == "" {
		lang = "eng"
	}
	if err := client.SetLanguage(lang); err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if err := client.SetImageFromBytes(png); err != nil {
		return "", fmt.Errorf("load raster: %w", err)
	}
	text, err := client.Text()
	if err != nil {
		return "", fmt.Errorf("recognize page %d: %w", page, err)
	}
	return text, nil
}
