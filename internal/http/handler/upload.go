package handler

import (
	"errors"
	"net/url"
	"os"
	"path/filepath"
	"regexp"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"docjson/internal/ai"
	"docjson/internal/extract"
	"docjson/internal/http/middleware"
	"docjson/internal/model"
	"docjson/internal/service"
)

var extRe = regexp.MustCompile(`^\.[A-Za-z0-9]{1,10}$`)

// storedExt keeps the client's extension only when it is short and alphanumeric,
// so generated names always satisfy the artifact name pattern.
func storedExt(filename string) string {
	ext := filepath.Ext(filename)
	if !extRe.MatchString(ext) {
		return ""
	}
	return ext
}

// UploadDocument stores the multipart "file" field under uploadDir as
// <uuid><ext> and runs it through the conversion pipeline.
//
// @Summary Convert a document to JSON
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "PDF or image"
// @Success 200 {object} model.UploadResponse
// @Failure 400 {object} errorPayload
// @Failure 500 {object} errorPayload
// @Router /api/upload [post]
func UploadDocument(docSvc service.DocumentService, uploadDir string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		fh, err := c.FormFile("file")
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "FILE_REQUIRED", "file required")
		}

		storedName := uuid.NewString() + storedExt(fh.Filename)
		path := filepath.Join(uploadDir, storedName)
		if err := c.SaveFile(fh, path); err != nil {
			_ = os.Remove(path)
			return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
		}

		ct := fh.Header.Get("Content-Type")
		if ct == "" {
			ct = "application/octet-stream"
		}

		resp, err := docSvc.Process(c.UserContext(), model.UploadedFile{
			Path:         path,
			StoredName:   storedName,
			OriginalName: filepath.Base(fh.Filename),
			MimeType:     ct,
			Size:         fh.Size,
		}, middleware.RequestIDFrom(c))
		if err != nil {
			return writeProcessError(c, err)
		}
		return c.Status(fiber.StatusOK).JSON(resp)
	}
}

func writeProcessError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, service.ErrFileRequired):
		return writeError(c, fiber.StatusBadRequest, "FILE_REQUIRED", "file required")
	case extract.IsUnsupported(err):
		return writeError(c, fiber.StatusBadRequest, "UNSUPPORTED_FILE_TYPE", "unsupported file type")
	case errors.Is(err, ai.ErrConfiguration):
		return writeError(c, fiber.StatusInternalServerError, "CONFIGURATION_ERROR", "service is misconfigured")
	case errors.Is(err, extract.ErrExtraction):
		return writeError(c, fiber.StatusInternalServerError, "EXTRACTION_FAILED", "text extraction failed")
	default:
		return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
	}
}

// DownloadArtifact streams a persisted result artifact as an attachment.
// It is mounted on a wildcard so names with separators reach the validator
// and are rejected with 400 instead of falling through to routing.
//
// @Summary Download a result artifact
// @Produce json
// @Param filename path string true "Artifact name, <stored_name>.json"
// @Success 200 {file} file
// @Failure 400 {object} errorPayload
// @Failure 404 {object} errorPayload
// @Router /api/download/{filename} [get]
func DownloadArtifact(docSvc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		name, err := url.PathUnescape(c.Params("*"))
		if err != nil || !service.ValidArtifactName(name) {
			return writeError(c, fiber.StatusBadRequest, "INVALID_FILENAME", "invalid filename")
		}

		rc, info, err := docSvc.Download(c.UserContext(), name)
		if err != nil {
			switch {
			case errors.Is(err, service.ErrInvalidArtifactName):
				return writeError(c, fiber.StatusBadRequest, "INVALID_FILENAME", "invalid filename")
			case errors.Is(err, service.ErrNotFound), errors.Is(err, service.ErrArtifactsDisabled):
				return writeError(c, fiber.StatusNotFound, "NOT_FOUND", "file not found")
			default:
				return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
			}
		}

		c.Attachment(name)
		if info.ContentType != "" {
			c.Set(fiber.HeaderContentType, info.ContentType)
		}
		size := -1
		if info.Size > 0 {
			size = int(info.Size)
		}
		return c.SendStream(rc, size)
	}
}
