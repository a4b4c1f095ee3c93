package ocr

import (
	"context"
	"errors"
)

// ErrUnavailable means no OCR engine is compiled in or the tesseract
// runtime is missing on this host.
var ErrUnavailable = errors.New("ocr engine unavailable")

// Engine recovers text from one page of a PDF document.
type Engine interface {
	// PageText rasterizes the given zero-based page of the PDF and runs
	// character recognition over the image.
	PageText(ctx context.Context, pdf []byte, page int) (string, error)
	// Available reports whether the engine can actually run on this host.
	Available() bool
}

// rasterDPI doubles the default 72 dpi; recognition quality drops sharply
// on lower-resolution rasters of scanned regulatory filings.
const rasterDPI = 144
