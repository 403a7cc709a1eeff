package extract

import (
	"bytes"
	"context"
	"fmt"
	"os"

	"github.com/ledongthuc/pdf"
)

// PDFExtractor pulls the embedded text layer out of a PDF.
type PDFExtractor struct{}

type pdfResult struct {
	text string
	err  error
}

// Extract reads the whole file into memory and returns its plain text.
// The parser cannot be interrupted, so when ctx ends first Extract returns
// and the parse finishes in the background with its result discarded.
func (PDFExtractor) Extract(ctx context.Context, path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("%w: read pdf: %v", ErrExtraction, err)
	}
	return parseWithContext(ctx, data, textFromPDF)
}

func parseWithContext(ctx context.Context, data []byte, parse func([]byte) (string, error)) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("%w: %v", ErrExtraction, err)
	}
	done := make(chan pdfResult, 1)
	go func() {
		text, err := parse(data)
		done <- pdfResult{text: text, err: err}
	}()
	select {
	case r := <-done:
		return r.text, r.err
	case <-ctx.Done():
		return "", fmt.Errorf("%w: %v", ErrExtraction, ctx.Err())
	}
}

func textFromPDF(data []byte) (text string, err error) {
	// The parser panics on some malformed inputs instead of returning an error.
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("%w: pdf parser: %v", ErrExtraction, r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("%w: open pdf: %v", ErrExtraction, err)
	}
	plain, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("%w: read pdf text: %v", ErrExtraction, err)
	}
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(plain); err != nil {
		return "", fmt.Errorf("%w: read pdf text: %v", ErrExtraction, err)
	}
	return buf.String(), nil
}
