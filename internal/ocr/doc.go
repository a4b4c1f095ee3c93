// Package ocr recovers text from image-only PDF pages by rasterizing them
// with MuPDF and running Tesseract. Both bindings need cgo; builds without
// cgo get a stub engine that reports ErrUnavailable so callers degrade to
// a warning instead of failing extraction.
package ocr
