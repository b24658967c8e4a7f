// Package extract turns PDFs into searchable text.
//
// The native text layer is tried first; documents whose layer holds too
// little text are rasterized and run through OCR. Output is normalized to
// Unicode NFC. StreamHandler fuses download and extract for the stream stage
// and never keeps the PDF.
package extract
