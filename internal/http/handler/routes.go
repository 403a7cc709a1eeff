package handler

import (
	"database/sql"

	"github.com/gofiber/fiber/v2"

	"docjson/internal/service"
)

// RegisterRoutes attaches HTTP routes to the provided Fiber app.
// db may be nil when no database is configured.
func RegisterRoutes(app *fiber.App, db *sql.DB, docSvc service.DocumentService, uploadDir string) {
	app.Get("/", Root())
	app.Get("/health", HealthCheck(db))
	app.Get("/healthz", LivenessProbe())

	api := app.Group("/api")
	api.Post("/upload", UploadDocument(docSvc, uploadDir))
	api.Get("/download/*", DownloadArtifact(docSvc))
	api.Get("/documents", ListDocuments(docSvc))
	api.Get("/documents/:id", GetDocument(docSvc))
}
