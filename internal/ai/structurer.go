// Package ai reshapes extracted text into JSON through a remote chat model.
package ai

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"docjson/internal/config"
	"docjson/internal/model"
)

const (
	// FallbackKey holds the text excerpt of a fallback payload.
	FallbackKey = "fallbackText"
	// FallbackChars is the maximum excerpt length of a fallback payload.
	FallbackChars = 500
)

// Result is the outcome of one structuring attempt.
type Result struct {
	Document model.StructuredDocument
	// Fallback is set when Document is the fallback payload, not a model answer.
	Fallback bool
}

// Structurer converts text into a structured document.
type Structurer interface {
	// Structure never fails for upstream or parsing problems; it returns the
	// fallback payload instead. The only error returned is ErrConfiguration.
	Structure(ctx context.Context, text string) (Result, error)
}

// AIStructurer is the chat-completion backed Structurer.
type AIStructurer struct {
	completer  Completer
	validator  *SchemaValidator
	schemaMode string
	maxChars   int
	timeout    time.Duration
	hasKey     bool
	log        *zap.Logger
}

// NewStructurer wires a Completer with the prompt and validation settings.
func NewStructurer(cfg config.AIConfig, completer Completer, log *zap.Logger) (*AIStructurer, error) {
	if log == nil {
		log = zap.NewNop()
	}
	s := &AIStructurer{
		completer:  completer,
		schemaMode: cfg.SchemaMode,
		maxChars:   cfg.MaxInputChars,
		timeout:    cfg.Timeout,
		hasKey:     cfg.APIKey != "",
		log:        log,
	}
	if s.maxChars <= 0 {
		s.maxChars = 6000
	}
	if cfg.SchemaMode == config.SchemaModeFixed {
		v, err := NewSchemaValidator(FixedDocumentSchema())
		if err != nil {
			return nil, fmt.Errorf("build schema validator: %w", err)
		}
		s.validator = v
	}
	return s, nil
}

var _ Structurer = (*AIStructurer)(nil)

func (s *AIStructurer) Structure(ctx context.Context, text string) (Result, error) {
	if !s.hasKey {
		return Result{}, ErrConfiguration
	}

	doc, err := s.structure(ctx, text)
	if err != nil {
		if errors.Is(err, ErrConfiguration) {
			return Result{}, err
		}
		s.log.Warn("ai.structure.fallback", zap.Error(err), zap.Int("text_len", len(text)))
		return Result{Document: Fallback(text), Fallback: true}, nil
	}
	return Result{Document: doc}, nil
}

func (s *AIStructurer) structure(ctx context.Context, text string) (model.StructuredDocument, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	content, err := s.completer.Complete(ctx, BuildPrompt(text, s.schemaMode, s.maxChars))
	if err != nil {
		return nil, err
	}
	if content == "" {
		return nil, ErrEmptyResponse
	}

	obj, err := FirstJSONObject(content)
	if err != nil {
		return nil, err
	}
	if s.validator != nil {
		if err := s.validator.Validate(obj); err != nil {
			return nil, err
		}
	}
	return model.StructuredDocument(obj), nil
}

// Fallback is the guaranteed-safe payload carrying a prefix of text.
func Fallback(text string) model.StructuredDocument {
	return model.StructuredDocument{FallbackKey: TruncateRunes(text, FallbackChars)}
}
