package extract

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
)

// Worker is one initialized OCR engine instance. Terminate must be called
// exactly once when the caller is done, whatever Recognize returned.
type Worker interface {
	Recognize(ctx context.Context, path string) (string, error)
	Terminate() error
}

// WorkerFactory initializes a Worker bound to a language model.
type WorkerFactory func(ctx context.Context) (Worker, error)

// OCRConfig configures tesseract workers.
type OCRConfig struct {
	Binary     string // binary name or absolute path; if empty -> "tesseract"
	Language   string // default "eng"
	ScratchDir string // parent of per-worker scratch dirs; empty -> os.TempDir()
}

// TesseractWorker drives the tesseract CLI. Each worker owns a private
// scratch directory for engine output that Terminate removes.
type TesseractWorker struct {
	bin    string
	lang   string
	runner Runner
	dir    string

	mu   sync.Mutex
	seq  int
	done bool
}

// NewTesseractWorker resolves the engine binary, checks the language model is
// installed and allocates the worker's scratch directory.
func NewTesseractWorker(ctx context.Context, cfg OCRConfig, runner Runner) (*TesseractWorker, error) {
	if cfg.Binary == "" {
		cfg.Binary = "tesseract"
	}
	if cfg.Language == "" {
		cfg.Language = "eng"
	}
	bin, err := runner.LookPath(cfg.Binary)
	if err != nil {
		return nil, fmt.Errorf("%w: ocr engine not available: %v", ErrExtraction, err)
	}

	// --list-langs prints to stdout on tesseract 4+, stderr on 3.x.
	out, errb, err := runner.Run(ctx, bin, "--list-langs")
	if err != nil {
		return nil, fmt.Errorf("%w: list ocr languages: %v", ErrExtraction, err)
	}
	if !hasLanguage(string(out)+"\n"+string(errb), cfg.Language) {
		return nil, fmt.Errorf("%w: ocr language %q is not installed", ErrExtraction, cfg.Language)
	}

	dir, err := os.MkdirTemp(cfg.ScratchDir, "ocr-worker-*")
	if err != nil {
		return nil, fmt.Errorf("%w: create ocr scratch dir: %v", ErrExtraction, err)
	}
	return &TesseractWorker{bin: bin, lang: cfg.Language, runner: runner, dir: dir}, nil
}

// Recognize runs the engine on the image at path and returns the recognized text.
func (w *TesseractWorker) Recognize(ctx context.Context, path string) (string, error) {
	w.mu.Lock()
	if w.done {
		w.mu.Unlock()
		return "", fmt.Errorf("%w: ocr worker terminated", ErrExtraction)
	}
	w.seq++
	outBase := filepath.Join(w.dir, "out-"+strconv.Itoa(w.seq))
	w.mu.Unlock()

	// tesseract <image> <outbase> -l <lang>  => <outbase>.txt
	_, errb, err := w.runner.Run(ctx, w.bin, path, outBase, "-l", w.lang)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", fmt.Errorf("%w: ocr: %v", ErrExtraction, ctxErr)
		}
		return "", fmt.Errorf("%w: ocr: %v: %s", ErrExtraction, err, truncate(strings.TrimSpace(string(errb)), 512))
	}

	outFile := outBase + ".txt"
	content, err := os.ReadFile(outFile)
	if err != nil {
		return "", fmt.Errorf("%w: read ocr output: %v", ErrExtraction, err)
	}
	_ = os.Remove(outFile)
	return string(content), nil
}

// Terminate releases the scratch directory. It is safe to call more than once.
func (w *TesseractWorker) Terminate() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.done {
		return nil
	}
	w.done = true
	if err := os.RemoveAll(w.dir); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove ocr scratch dir: %w", err)
	}
	return nil
}

// Dir exposes the scratch directory, mainly for tests.
func (w *TesseractWorker) Dir() string { return w.dir }

// TesseractFactory returns a WorkerFactory producing tesseract workers.
func TesseractFactory(cfg OCRConfig, runner Runner) WorkerFactory {
	return func(ctx context.Context) (Worker, error) {
		return NewTesseractWorker(ctx, cfg, runner)
	}
}

func hasLanguage(listing, lang string) bool {
	for _, line := range strings.Split(listing, "\n") {
		if strings.TrimSpace(line) == lang {
			return true
		}
	}
	return false
}
