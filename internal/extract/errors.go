package extract

import (
	"errors"
	"fmt"
)

// ErrExtraction wraps every parser or OCR engine failure.
var ErrExtraction = errors.New("extraction failed")

// UnsupportedFileTypeError is returned for MIME types no extractor handles.
type UnsupportedFileTypeError struct {
	MimeType string
}

func (e *UnsupportedFileTypeError) Error() string {
	return fmt.Sprintf("unsupported file type: %q", e.MimeType)
}

// IsUnsupported reports whether err carries an UnsupportedFileTypeError.
func IsUnsupported(err error) bool {
	var ue *UnsupportedFileTypeError
	return errors.As(err, &ue)
}
