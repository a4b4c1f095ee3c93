//go:build !cgo

package ocr

import "context"

// Tesseract is a stub for builds without cgo.
type Tesseract struct {
	Language string
}

// New returns the OCR engine for this build. Without cgo it can only
// report ErrUnavailable.
func New() Engine { return &Tesseract{} }

func (t *Tesseract) Available() bool { return false }

func (t *Tesseract) PageText(context.Context, []byte, int) (string, error) {
	return "", ErrUnavailable
}
