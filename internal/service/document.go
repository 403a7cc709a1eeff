package service

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"docjson/internal/ai"
	"docjson/internal/extract"
	"docjson/internal/model"
	"docjson/internal/repository"
	"docjson/internal/storage"
)

var (
	ErrFileRequired        = errors.New("file required")
	ErrIDRequired          = errors.New("id is required")
	ErrInvalidArtifactName = errors.New("invalid filename")
	ErrNotFound            = errors.New("not found")
	ErrArtifactsDisabled   = errors.New("artifacts are disabled")
	ErrDatabaseDisabled    = errors.New("database is not configured")
)

// PreviewChars bounds text_preview in the upload response.
const PreviewChars = 500

var artifactNameRe = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}(\.[A-Za-z0-9]{1,10})?\.json$`)

// ValidArtifactName reports whether name is a generated artifact basename.
func ValidArtifactName(name string) bool {
	return artifactNameRe.MatchString(name)
}

// DocumentListResult is the service-level DTO for paginated processing records.
type DocumentListResult struct {
	Items []model.Document `json:"data"`
	Total int              `json:"total"`
}

// DocumentService defines the use cases of the conversion pipeline.
type DocumentService interface {
	// Process extracts text from an already stored upload, structures it when
	// AI is enabled, and optionally persists the response as an artifact.
	Process(ctx context.Context, f model.UploadedFile, requestID string) (*model.UploadResponse, error)

	// Download opens a persisted artifact by its basename.
	Download(ctx context.Context, name string) (io.ReadCloser, storage.ObjectInfo, error)

	// List returns processing records using limit/offset and a total count.
	List(ctx context.Context, limit, offset int) (*DocumentListResult, error)

	// Get returns a single processing record by its ID.
	Get(ctx context.Context, id string) (*model.Document, error)
}

// Options tunes the pipeline around its required collaborators.
type Options struct {
	// DeleteUploads removes the uploaded file once processing finished.
	DeleteUploads bool
	// DownloadPrefix is prepended to the artifact name to form download_url.
	DownloadPrefix string
	Metrics        *Metrics
	Logger         *zap.Logger
}

// documentService is a concrete implementation of DocumentService.
type documentService struct {
	extractor  extract.TextExtractor
	structurer ai.Structurer
	artifacts  storage.Storage
	repo       repository.DocumentRepository
	opts       Options
	log        *zap.Logger
}

// NewDocumentService constructs a new DocumentService.
// A nil structurer selects extraction-only mode, a nil artifact store turns
// off download_url, and a nil repository turns off processing records.
func NewDocumentService(
	extractor extract.TextExtractor,
	structurer ai.Structurer,
	artifacts storage.Storage,
	repo repository.DocumentRepository,
	opts Options,
) DocumentService {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	if opts.DownloadPrefix == "" {
		opts.DownloadPrefix = "/api/download/"
	}
	return &documentService{
		extractor:  extractor,
		structurer: structurer,
		artifacts:  artifacts,
		repo:       repo,
		opts:       opts,
		log:        log,
	}
}

func (s *documentService) Process(ctx context.Context, f model.UploadedFile, requestID string) (*model.UploadResponse, error) {
	if f.Path == "" {
		return nil, ErrFileRequired
	}
	if s.opts.DeleteUploads {
		defer s.removeUpload(f.Path)
	}

	mode := model.ModeExtractOnly
	if s.structurer != nil {
		mode = model.ModeStructured
	}
	filetype := extract.NormalizeMimeType(f.MimeType)

	ctx, span := otel.Tracer("docjson/service").Start(ctx, "document.process")
	defer span.End()
	span.SetAttributes(
		attribute.String("document.filetype", filetype),
		attribute.Int64("document.size", f.Size),
		attribute.String("document.mode", mode),
	)

	text, err := s.extractor.ExtractText(ctx, f.Path, f.MimeType)
	if err != nil {
		outcome := OutcomeError
		if extract.IsUnsupported(err) {
			outcome = OutcomeUnsupported
		}
		s.opts.Metrics.observe(filetype, mode, outcome)
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
		return nil, err
	}

	resp := &model.UploadResponse{
		SchemaVersion: model.ResponseSchemaVersion,
		Success:       true,
		RequestID:     requestID,
		Filename:      f.OriginalName,
		StoredName:    f.StoredName,
		Filetype:      filetype,
		Filesize:      f.Size,
		TextPreview:   ai.TruncateRunes(text, PreviewChars),
	}

	fallback := false
	if s.structurer == nil {
		data := strings.TrimSpace(text)
		resp.Data = &data
	} else {
		res, err := s.structurer.Structure(ctx, text)
		if err != nil {
			s.opts.Metrics.observe(filetype, mode, OutcomeError)
			span.RecordError(err)
			span.SetStatus(codes.Error, "structure")
			return nil, err
		}
		if res.Fallback {
			fallback = true
			s.opts.Metrics.fallback()
		}
		resp.StructuredData = res.Document
	}
	span.SetAttributes(attribute.Bool("document.fallback", fallback))

	artifactKey := ""
	if s.artifacts != nil && f.StoredName != "" {
		artifactKey = f.StoredName + ".json"
		resp.DownloadURL = s.opts.DownloadPrefix + artifactKey
		if err := s.persist(ctx, artifactKey, resp); err != nil {
			s.opts.Metrics.observe(filetype, mode, OutcomeError)
			span.RecordError(err)
			span.SetStatus(codes.Error, "persist")
			return nil, err
		}
	}

	s.record(ctx, &model.Document{
		ID:          uuid.NewString(),
		Filename:    f.OriginalName,
		StoredName:  f.StoredName,
		ContentType: filetype,
		Size:        f.Size,
		Mode:        mode,
		Fallback:    fallback,
		ArtifactKey: artifactKey,
		CreatedAt:   time.Now().UTC(),
	})

	s.opts.Metrics.observe(filetype, mode, OutcomeOK)
	s.log.Info("document.processed",
		zap.String("request_id", requestID),
		zap.String("stored_name", f.StoredName),
		zap.String("filetype", filetype),
		zap.String("mode", mode),
		zap.Bool("fallback", fallback),
	)
	return resp, nil
}

// persist writes the full response body before the caller replies, so the
// advertised download_url is valid as soon as the client sees it.
func (s *documentService) persist(ctx context.Context, key string, resp *model.UploadResponse) error {
	body, err := json.MarshalIndent(resp, "", "  ")
	if err != nil {
		return fmt.Errorf("encode artifact: %w", err)
	}
	_, err = s.artifacts.Put(ctx, key, bytes.NewReader(body), storage.PutObjectOptions{
		Size:        int64(len(body)),
		ContentType: "application/json",
		Metadata: map[string]string{
			"original-filename": resp.Filename,
		},
	})
	if err != nil {
		return fmt.Errorf("store artifact: %w", err)
	}
	return nil
}

func (s *documentService) record(ctx context.Context, doc *model.Document) {
	if s.repo == nil {
		return
	}
	if _, err := s.repo.Create(ctx, doc); err != nil {
		s.log.Error("document.record_failed", zap.String("stored_name", doc.StoredName), zap.Error(err))
	}
}

func (s *documentService) removeUpload(path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		s.log.Warn("upload.cleanup_failed", zap.String("path", path), zap.Error(err))
	}
}

func (s *documentService) Download(ctx context.Context, name string) (io.ReadCloser, storage.ObjectInfo, error) {
	if !ValidArtifactName(name) {
		return nil, storage.ObjectInfo{}, ErrInvalidArtifactName
	}
	if s.artifacts == nil {
		return nil, storage.ObjectInfo{}, ErrArtifactsDisabled
	}
	rc, info, err := s.artifacts.Get(ctx, name)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, storage.ObjectInfo{}, ErrNotFound
		}
		return nil, storage.ObjectInfo{}, fmt.Errorf("open artifact: %w", err)
	}
	return rc, info, nil
}

// List returns paginated records without exposing repository types.
func (s *documentService) List(ctx context.Context, limit, offset int) (*DocumentListResult, error) {
	if s.repo == nil {
		return nil, ErrDatabaseDisabled
	}
	if limit <= 0 {
		limit = 10
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	res, err := s.repo.List(ctx, repository.PageQuery{Limit: limit, Offset: offset})
	if err != nil {
		return nil, err
	}
	return &DocumentListResult{Items: res.Items, Total: res.Total}, nil
}

// Get returns a record by ID.
func (s *documentService) Get(ctx context.Context, id string) (*model.Document, error) {
	if s.repo == nil {
		return nil, ErrDatabaseDisabled
	}
	if id == "" {
		return nil, ErrIDRequired
	}
	doc, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return doc, nil
}
