package extract

import (
	"context"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"

	"archivist/internal/services"
)

// Method records which path produced the text.
type Method string

const (
	MethodNative Method = "native"
	MethodOCR    Method = "ocr"
)

// TextTools is implemented by ocr.Client.
type TextTools interface {
	NativeText(ctx context.Context, pdfPath string) (string, error)
	OCRText(ctx context.Context, pdfPath string) (string, error)
}

// Text is the outcome of one extraction.
type Text struct {
	Content string
	Method  Method
}

// Extractor applies the native-then-OCR policy.
type Extractor struct {
	tools     TextTools
	minNative int
}

// NewExtractor builds an extractor. Native text with at most minNative
// characters after trimming triggers OCR.
func NewExtractor(tools TextTools, minNative int) *Extractor {
	if minNative < 0 {
		minNative = 0
	}
	return &Extractor{tools: tools, minNative: minNative}
}

// Extract returns the normalized text of pdfPath. A native-layer failure is
// not fatal; OCR is attempted instead. When OCR yields nothing the short
// native text is kept if there is any. Under WithForcedOCR the native layer
// is not consulted.
func (e *Extractor) Extract(ctx context.Context, pdfPath string) (Text, error) {
	if forcedOCR(ctx) {
		return e.scan(ctx, pdfPath)
	}
	native, nativeErr := e.tools.NativeText(ctx, pdfPath)
	if ctx.Err() != nil {
		return Text{}, ctx.Err()
	}
	native = Normalize(native)
	if nativeErr == nil && utf8.RuneCountInString(native) > e.minNative {
		return Text{Content: native, Method: MethodNative}, nil
	}

	scanned, err := e.tools.OCRText(ctx, pdfPath)
	if err != nil {
		return Text{}, err
	}
	if scanned = Normalize(scanned); scanned != "" {
		return Text{Content: scanned, Method: MethodOCR}, nil
	}
	if native != "" {
		return Text{Content: native, Method: MethodNative}, nil
	}
	if nativeErr != nil {
		return Text{}, nativeErr
	}
	return Text{}, services.Wrap(services.ErrValidation, "extract", "extract text", "no text recovered from pdf", nil)
}

func (e *Extractor) scan(ctx context.Context, pdfPath string) (Text, error) {
	scanned, err := e.tools.OCRText(ctx, pdfPath)
	if err != nil {
		return Text{}, err
	}
	if scanned = Normalize(scanned); scanned == "" {
		return Text{}, services.Wrap(services.ErrValidation, "extract", "ocr", "ocr recovered no text", nil)
	}
	return Text{Content: scanned, Method: MethodOCR}, nil
}

// Normalize converts text to NFC, drops NUL bytes and form feeds left by
// page breaks, and trims surrounding whitespace.
func Normalize(text string) string {
	if text == "" {
		return ""
	}
	if !utf8.ValidString(text) {
		text = strings.ToValidUTF8(text, "�")
	}
	text = strings.NewReplacer("\x00", "", "\f", "\n").Replace(text)
	return strings.TrimSpace(norm.NFC.String(text))
}
