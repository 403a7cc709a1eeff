// Package extract turns uploaded documents into plain text, routing each file
// to the PDF text-layer reader or the OCR engine based on its MIME type.
package extract

import (
	"context"
	"mime"
	"strings"
	"time"

	"go.uber.org/zap"
)

const mimePDF = "application/pdf"

// TextExtractor is what the upload pipeline depends on.
type TextExtractor interface {
	ExtractText(ctx context.Context, path, mimeType string) (string, error)
}

type pdfTextReader interface {
	Extract(ctx context.Context, path string) (string, error)
}

// Dispatcher selects the extraction strategy for a file.
type Dispatcher struct {
	pdf       pdfTextReader
	newWorker WorkerFactory
	timeout   time.Duration
	log       *zap.Logger
}

// Option customizes a Dispatcher.
type Option func(*Dispatcher)

// WithWorkerFactory replaces the OCR worker factory.
func WithWorkerFactory(f WorkerFactory) Option {
	return func(d *Dispatcher) { d.newWorker = f }
}

// WithPDFReader replaces the PDF text reader.
func WithPDFReader(r pdfTextReader) Option {
	return func(d *Dispatcher) { d.pdf = r }
}

// WithTimeout bounds a single extraction; zero disables the bound.
func WithTimeout(t time.Duration) Option {
	return func(d *Dispatcher) { d.timeout = t }
}

// NewDispatcher builds a Dispatcher using ledongthuc/pdf and tesseract workers.
func NewDispatcher(cfg OCRConfig, runner Runner, log *zap.Logger, opts ...Option) *Dispatcher {
	if log == nil {
		log = zap.NewNop()
	}
	d := &Dispatcher{
		pdf:       PDFExtractor{},
		newWorker: TesseractFactory(cfg, runner),
		log:       log,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

var _ TextExtractor = (*Dispatcher)(nil)

// ExtractText returns the text of the file at path according to mimeType.
// PDFs are read through their text layer, image/* goes through OCR, and
// anything else fails with *UnsupportedFileTypeError.
func (d *Dispatcher) ExtractText(ctx context.Context, path, mimeType string) (string, error) {
	mt := NormalizeMimeType(mimeType)
	if mt != mimePDF && !strings.HasPrefix(mt, "image/") {
		return "", &UnsupportedFileTypeError{MimeType: mimeType}
	}

	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	start := time.Now()
	var (
		text string
		err  error
	)
	if mt == mimePDF {
		text, err = d.pdf.Extract(ctx, path)
	} else {
		text, err = d.recognize(ctx, path)
	}
	if err != nil {
		d.log.Error("extract.failed", zap.String("path", path), zap.String("mime", mt), zap.Error(err))
		return "", err
	}
	d.log.Info("extract.ok",
		zap.String("mime", mt),
		zap.Int("text_len", len(text)),
		zap.Int64("elapsed_ms", time.Since(start).Milliseconds()),
	)
	return text, nil
}

func (d *Dispatcher) recognize(ctx context.Context, path string) (string, error) {
	w, err := d.newWorker(ctx)
	if err != nil {
		return "", err
	}
	defer func() {
		if terr := w.Terminate(); terr != nil {
			d.log.Warn("extract.ocr_terminate_failed", zap.Error(terr))
		}
	}()
	return w.Recognize(ctx, path)
}

// NormalizeMimeType lower-cases a media type and drops its parameters.
func NormalizeMimeType(v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return ""
	}
	if mt, _, err := mime.ParseMediaType(v); err == nil {
		return mt
	}
	if i := strings.IndexByte(v, ';'); i >= 0 {
		v = v[:i]
	}
	return strings.ToLower(strings.TrimSpace(v))
}
