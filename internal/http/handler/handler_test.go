package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"docjson/internal/ai"
	"docjson/internal/extract"
	"docjson/internal/http/middleware"
	"docjson/internal/model"
	"docjson/internal/service"
	serviceMocks "docjson/internal/service/mocks"
	"docjson/internal/storage"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func multipartBody(t *testing.T, filename, contentType string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, filename))
	h.Set("Content-Type", contentType)
	part, err := writer.CreatePart(h)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, writer.Close())
	return body, writer.FormDataContentType()
}

func TestRoot(t *testing.T) {
	app := fiber.New()
	app.Get("/", Root())

	resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	b, _ := io.ReadAll(resp.Body)
	assert.Equal(t, "Document to JSON Converter API running", string(b))
}

func TestHealthCheck(t *testing.T) {
	db, dbMock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer db.Close()

	app := fiber.New()
	app.Get("/health", HealthCheck(db))

	t.Run("healthy", func(t *testing.T) {
		dbMock.ExpectPing().WillReturnError(nil)

		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var body map[string]string
		json.NewDecoder(resp.Body).Decode(&body)
		assert.Equal(t, "healthy", body["status"])
	})

	t.Run("unhealthy", func(t *testing.T) {
		dbMock.ExpectPing().WillReturnError(errors.New("db error"))

		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

		var body errorPayload
		json.NewDecoder(resp.Body).Decode(&body)
		assert.Equal(t, "SERVICE_UNAVAILABLE", body.Error.Code)
	})

	t.Run("database disabled", func(t *testing.T) {
		app := fiber.New()
		app.Get("/health", HealthCheck(nil))

		resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/health", nil))
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var body map[string]string
		json.NewDecoder(resp.Body).Decode(&body)
		assert.Equal(t, "disabled", body["database"])
	})
}

func TestLivenessProbe(t *testing.T) {
	app := fiber.New()
	app.Get("/healthz", LivenessProbe())

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	resp, _ := app.Test(req)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestUploadDocument(t *testing.T) {
	dir := t.TempDir()
	mockSvc := new(serviceMocks.MockDocumentService)
	app := fiber.New()
	app.Use(middleware.RequestID())
	app.Post("/api/upload", UploadDocument(mockSvc, dir))

	t.Run("success", func(t *testing.T) {
		body, ct := multipartBody(t, "invoice.pdf", "application/pdf", []byte("%PDF-1.4"))

		data := "hello"
		expected := &model.UploadResponse{
			SchemaVersion: model.ResponseSchemaVersion,
			Success:       true,
			Filename:      "invoice.pdf",
			Filetype:      "application/pdf",
			Data:          &data,
		}
		mockSvc.On("Process", mock.Anything, mock.MatchedBy(func(f model.UploadedFile) bool {
			if f.OriginalName != "invoice.pdf" || f.MimeType != "application/pdf" || f.Size != 8 {
				return false
			}
			if !strings.HasSuffix(f.StoredName, ".pdf") || filepath.Dir(f.Path) != dir {
				return false
			}
			_, err := os.Stat(f.Path)
			return err == nil
		}), "rid-1").Return(expected, nil).Once()

		req := httptest.NewRequest(http.MethodPost, "/api/upload", body)
		req.Header.Set("Content-Type", ct)
		req.Header.Set(middleware.RequestIDHeader, "rid-1")
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var result model.UploadResponse
		json.NewDecoder(resp.Body).Decode(&result)
		assert.Equal(t, "1", result.SchemaVersion)
		require.NotNil(t, result.Data)
		assert.Equal(t, "hello", *result.Data)
		mockSvc.AssertExpectations(t)
	})

	t.Run("unsafe extension is dropped", func(t *testing.T) {
		body, ct := multipartBody(t, "scan.", "image/png", []byte("png"))

		mockSvc.On("Process", mock.Anything, mock.MatchedBy(func(f model.UploadedFile) bool {
			_, err := uuid.Parse(f.StoredName)
			return err == nil
		}), mock.Anything).Return(&model.UploadResponse{Success: true}, nil).Once()

		req := httptest.NewRequest(http.MethodPost, "/api/upload", body)
		req.Header.Set("Content-Type", ct)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		mockSvc.AssertExpectations(t)
	})

	t.Run("no file", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/upload", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		var res errorPayload
		json.NewDecoder(resp.Body).Decode(&res)
		assert.Equal(t, "FILE_REQUIRED", res.Error.Code)
		assert.Equal(t, "file required", res.Error.Message)
		assert.NotEmpty(t, res.RequestID)
	})

	errorCases := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"unsupported type", &extract.UnsupportedFileTypeError{MimeType: "text/plain"}, http.StatusBadRequest, "UNSUPPORTED_FILE_TYPE"},
		{"extraction failure", fmt.Errorf("%w: parse pdf: bad xref", extract.ErrExtraction), http.StatusInternalServerError, "EXTRACTION_FAILED"},
		{"configuration error", ai.ErrConfiguration, http.StatusInternalServerError, "CONFIGURATION_ERROR"},
		{"internal error", errors.New("disk full"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}
	for _, tc := range errorCases {
		t.Run(tc.name, func(t *testing.T) {
			body, ct := multipartBody(t, "notes.txt", "text/plain", []byte("hello"))
			mockSvc.On("Process", mock.Anything, mock.Anything, mock.Anything).Return(nil, tc.err).Once()

			req := httptest.NewRequest(http.MethodPost, "/api/upload", body)
			req.Header.Set("Content-Type", ct)
			resp, _ := app.Test(req)

			assert.Equal(t, tc.wantStatus, resp.StatusCode)
			var res errorPayload
			json.NewDecoder(resp.Body).Decode(&res)
			assert.Equal(t, tc.wantCode, res.Error.Code)
			assert.NotContains(t, res.Error.Message, "xref")
			mockSvc.AssertExpectations(t)
		})
	}
}

func TestDownloadArtifact(t *testing.T) {
	mockSvc := new(serviceMocks.MockDocumentService)
	app := fiber.New()
	app.Get("/api/download/*", DownloadArtifact(mockSvc))

	name := uuid.NewString() + ".pdf.json"

	t.Run("success", func(t *testing.T) {
		mockSvc.On("Download", mock.Anything, name).
			Return(io.NopCloser(strings.NewReader(`{"success":true}`)), storage.ObjectInfo{Size: 16, ContentType: "application/json"}, nil).Once()

		resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/api/download/"+name, nil))

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Contains(t, resp.Header.Get("Content-Disposition"), "attachment")
		assert.Contains(t, resp.Header.Get("Content-Disposition"), name)
		b, _ := io.ReadAll(resp.Body)
		assert.JSONEq(t, `{"success":true}`, string(b))
		mockSvc.AssertExpectations(t)
	})

	t.Run("not found", func(t *testing.T) {
		missing := uuid.NewString() + ".json"
		mockSvc.On("Download", mock.Anything, missing).Return(nil, storage.ObjectInfo{}, service.ErrNotFound).Once()

		resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/api/download/"+missing, nil))

		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		var res errorPayload
		json.NewDecoder(resp.Body).Decode(&res)
		assert.Equal(t, "NOT_FOUND", res.Error.Code)
		assert.Equal(t, "file not found", res.Error.Message)
		mockSvc.AssertExpectations(t)
	})

	for _, path := range []string{
		"/api/download/../../etc/passwd",
		"/api/download/..%2F..%2Fetc%2Fpasswd",
		"/api/download/nested/" + name,
		"/api/download/report.json",
	} {
		t.Run("rejects "+path, func(t *testing.T) {
			resp, _ := app.Test(httptest.NewRequest(http.MethodGet, path, nil))

			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			var res errorPayload
			json.NewDecoder(resp.Body).Decode(&res)
			assert.Equal(t, "INVALID_FILENAME", res.Error.Code)
		})
	}
	mockSvc.AssertNotCalled(t, "Download", mock.Anything, "report.json")
}

func TestListDocuments(t *testing.T) {
	mockSvc := new(serviceMocks.MockDocumentService)
	app := fiber.New()
	app.Get("/api/documents", ListDocuments(mockSvc))

	t.Run("success", func(t *testing.T) {
		expectedRes := &service.DocumentListResult{
			Items: []model.Document{{ID: uuid.New().String(), Filename: "test.pdf"}},
			Total: 1,
		}
		mockSvc.On("List", mock.Anything, 10, 0).Return(expectedRes, nil).Once()

		req := httptest.NewRequest(http.MethodGet, "/api/documents?limit=10&offset=0", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var result service.DocumentListResult
		json.NewDecoder(resp.Body).Decode(&result)
		assert.Len(t, result.Items, 1)
		assert.Equal(t, 1, result.Total)
		mockSvc.AssertExpectations(t)
	})

	t.Run("invalid limit", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/documents?limit=abc", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		var body errorPayload
		json.NewDecoder(resp.Body).Decode(&body)
		assert.Equal(t, "INVALID_LIMIT", body.Error.Code)
	})

	t.Run("database disabled", func(t *testing.T) {
		mockSvc.On("List", mock.Anything, 10, 0).Return(nil, service.ErrDatabaseDisabled).Once()

		resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/api/documents", nil))

		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
		mockSvc.AssertExpectations(t)
	})

	t.Run("service error", func(t *testing.T) {
		mockSvc.On("List", mock.Anything, 10, 0).Return(nil, errors.New("service error")).Once()

		req := httptest.NewRequest(http.MethodGet, "/api/documents", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
		mockSvc.AssertExpectations(t)
	})
}

func TestGetDocument(t *testing.T) {
	mockSvc := new(serviceMocks.MockDocumentService)
	app := fiber.New()
	app.Get("/api/documents/:id", GetDocument(mockSvc))

	t.Run("success", func(t *testing.T) {
		id := uuid.New().String()
		expectedDoc := &model.Document{ID: id, Filename: "test.pdf", Mode: model.ModeStructured}
		mockSvc.On("Get", mock.Anything, id).Return(expectedDoc, nil).Once()

		req := httptest.NewRequest(http.MethodGet, "/api/documents/"+id, nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var result model.Document
		json.NewDecoder(resp.Body).Decode(&result)
		assert.Equal(t, id, result.ID)
		assert.Equal(t, model.ModeStructured, result.Mode)
		mockSvc.AssertExpectations(t)
	})

	t.Run("not found", func(t *testing.T) {
		id := uuid.New().String()
		mockSvc.On("Get", mock.Anything, id).Return(nil, service.ErrNotFound).Once()

		req := httptest.NewRequest(http.MethodGet, "/api/documents/"+id, nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		var res errorPayload
		json.NewDecoder(resp.Body).Decode(&res)
		assert.Equal(t, "NOT_FOUND", res.Error.Code)
		mockSvc.AssertExpectations(t)
	})

	t.Run("invalid id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/documents/invalid-uuid", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		var res errorPayload
		json.NewDecoder(resp.Body).Decode(&res)
		assert.Equal(t, "INVALID_ID", res.Error.Code)
	})

	t.Run("service error", func(t *testing.T) {
		id := uuid.New().String()
		mockSvc.On("Get", mock.Anything, id).Return(nil, errors.New("db error")).Once()

		req := httptest.NewRequest(http.MethodGet, "/api/documents/"+id, nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
		mockSvc.AssertExpectations(t)
	})
}

func TestRouting(t *testing.T) {
	app := fiber.New(fiber.Config{
		ErrorHandler: ErrorHandler(nil),
	})

	mockSvc := new(serviceMocks.MockDocumentService)
	RegisterRoutes(app, nil, mockSvc, t.TempDir())

	t.Run("not found route", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/non-existent", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		var res errorPayload
		json.NewDecoder(resp.Body).Decode(&res)
		assert.Equal(t, "NOT_FOUND", res.Error.Code)
	})

	t.Run("method not allowed", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/health", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
		var res errorPayload
		json.NewDecoder(resp.Body).Decode(&res)
		assert.Equal(t, "METHOD_NOT_ALLOWED", res.Error.Code)
	})

	t.Run("payload too large", func(t *testing.T) {
		small := fiber.New(fiber.Config{ErrorHandler: ErrorHandler(nil), BodyLimit: 64})
		RegisterRoutes(small, nil, mockSvc, t.TempDir())

		body, ct := multipartBody(t, "big.pdf", "application/pdf", bytes.Repeat([]byte("x"), 1024))
		req := httptest.NewRequest(http.MethodPost, "/api/upload", body)
		req.Header.Set("Content-Type", ct)
		resp, err := small.Test(req)
		require.NoError(t, err)

		assert.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)
	})
}

func TestCORS(t *testing.T) {
	newApp := func(origins string) *fiber.App {
		app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler(nil)})
		app.Use(middleware.CORS(origins))
		app.Use(middleware.RequestID())
		RegisterRoutes(app, nil, new(serviceMocks.MockDocumentService), t.TempDir())
		return app
	}

	preflight := func(origin string) *http.Request {
		req := httptest.NewRequest(http.MethodOptions, "/api/upload", nil)
		req.Header.Set("Origin", origin)
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)
		req.Header.Set("Access-Control-Request-Headers", "Content-Type, X-Request-ID")
		return req
	}

	t.Run("preflight for upload with default origins", func(t *testing.T) {
		resp, err := newApp("*").Test(preflight("http://frontend.example"))
		require.NoError(t, err)

		assert.Equal(t, http.StatusNoContent, resp.StatusCode)
		assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
		assert.Contains(t, resp.Header.Get("Access-Control-Allow-Methods"), http.MethodPost)
		assert.Contains(t, resp.Header.Get("Access-Control-Allow-Headers"), middleware.RequestIDHeader)
	})

	t.Run("empty setting allows any origin", func(t *testing.T) {
		resp, err := newApp("").Test(preflight("http://frontend.example"))
		require.NoError(t, err)
		assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
	})

	t.Run("allow-list echoes a listed origin", func(t *testing.T) {
		resp, err := newApp("http://a.example, http://b.example").Test(preflight("http://b.example"))
		require.NoError(t, err)
		assert.Equal(t, "http://b.example", resp.Header.Get("Access-Control-Allow-Origin"))
	})

	t.Run("allow-list ignores an unlisted origin", func(t *testing.T) {
		resp, err := newApp("http://a.example").Test(preflight("http://evil.example"))
		require.NoError(t, err)
		assert.Empty(t, resp.Header.Get("Access-Control-Allow-Origin"))
	})

	t.Run("simple request exposes request id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
		req.Header.Set("Origin", "http://frontend.example")
		resp, err := newApp("*").Test(req)
		require.NoError(t, err)

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
		assert.Contains(t, resp.Header.Get("Access-Control-Expose-Headers"), middleware.RequestIDHeader)
		assert.NotEmpty(t, resp.Header.Get(middleware.RequestIDHeader))
	})
}

func TestStoredExt(t *testing.T) {
	cases := map[string]string{
		"invoice.pdf":      ".pdf",
		"scan.JPEG":        ".JPEG",
		"noext":            "",
		"trailing.":        "",
		"weird.p-d":        "",
		"long.abcdefghijk": "",
	}
	for in, want := range cases {
		assert.Equal(t, want, storedExt(in), in)
	}
}

func TestErrorHandler_UnknownError(t *testing.T) {
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler(nil)})
	app.Get("/boom", func(c *fiber.Ctx) error {
		return errors.New("secret internal detail")
	})

	resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/boom", nil))

	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	var res errorPayload
	json.NewDecoder(resp.Body).Decode(&res)
	assert.Equal(t, "INTERNAL_ERROR", res.Error.Code)
	assert.NotContains(t, res.Error.Message, "secret")
}
