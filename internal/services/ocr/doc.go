// Package ocr wraps the poppler and tesseract command line tools used to pull
// text out of scanned PDFs. Every invocation runs under its own deadline.
package ocr
