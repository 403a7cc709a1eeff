package main

import (
	"context"
	"database/sql"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/contrib/otelfiber"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/swagger"
	_ "github.com/joho/godotenv/autoload"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"docjson/docs"
	"docjson/internal/ai"
	"docjson/internal/config"
	"docjson/internal/database"
	"docjson/internal/database/migration"
	"docjson/internal/extract"
	handlers "docjson/internal/http/handler"
	"docjson/internal/http/middleware"
	"docjson/internal/logger"
	"docjson/internal/otel"
	"docjson/internal/repository"
	"docjson/internal/repository/postgres"
	"docjson/internal/retention"
	"docjson/internal/service"
	"docjson/internal/storage"
)

// @title Document to JSON Converter API
// @version 1.0
// @BasePath /
func main() {
	// Load configuration from environment variables (.env auto-loaded if present)
	cfg := config.Load()
	log := logger.NewStdout(cfg.Location())
	defer func() { _ = log.Sync() }()

	if err := cfg.Validate(); err != nil {
		log.Fatal("config.invalid", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := otel.Init(ctx, log)
	if err != nil {
		log.Fatal("tracing.init_failed", zap.Error(err))
	}

	if err := os.MkdirAll(cfg.Upload.Dir, 0o755); err != nil {
		log.Fatal("upload_dir.create_failed", zap.String("dir", cfg.Upload.Dir), zap.Error(err))
	}

	// Processing history is optional; without DB_HOST the service runs stateless.
	var (
		db      *sql.DB
		docRepo repository.DocumentRepository
	)
	if cfg.Database.Enabled() {
		db, err = database.NewPostgres(ctx, cfg.Database, log)
		if err != nil {
			log.Fatal("database.connect_failed", zap.Error(err))
		}
		defer db.Close()
		if err := migration.EnsureMigrated(ctx, db, log, cfg.Database.Host); err != nil {
			log.Fatal("database.migrate_failed", zap.Error(err))
		}
		docRepo = postgres.NewDocumentPostgres(db)
	}

	var artifacts storage.Storage
	if cfg.Artifact.Enabled {
		artifacts, err = newArtifactStore(ctx, cfg)
		if err != nil {
			log.Fatal("artifacts.init_failed", zap.String("backend", cfg.Artifact.Backend), zap.Error(err))
		}
	}

	extractor := extract.NewDispatcher(extract.OCRConfig{
		Binary:   cfg.Extract.OCRBinary,
		Language: cfg.Extract.OCRLanguage,
	}, extract.ExecRunner{Log: log}, log, extract.WithTimeout(cfg.Extract.Timeout))

	var structurer ai.Structurer
	if cfg.AI.Enabled {
		s, err := ai.NewStructurer(cfg.AI, ai.NewClient(cfg.AI, nil, log), log)
		if err != nil {
			log.Fatal("ai.init_failed", zap.Error(err))
		}
		structurer = s
	}

	metrics, err := service.NewMetrics(prometheus.DefaultRegisterer)
	if err != nil {
		log.Fatal("metrics.register_failed", zap.Error(err))
	}

	docSvc := service.NewDocumentService(extractor, structurer, artifacts, docRepo, service.Options{
		DeleteUploads: cfg.Upload.DeleteAfterResponse,
		Metrics:       metrics,
		Logger:        log,
	})

	sweeper, err := retention.New(cfg.Upload.Dir, cfg.Upload.Retention, cfg.Upload.SweepSchedule, log)
	if err != nil {
		log.Fatal("retention.init_failed", zap.Error(err))
	}
	sweeper.Start()

	app := fiber.New(fiber.Config{
		ErrorHandler: handlers.ErrorHandler(log),
		BodyLimit:    cfg.Upload.MaxBytes,
	})

	promMiddleware, err := middleware.NewPrometheusMiddleware(prometheus.DefaultRegisterer)
	if err != nil {
		log.Fatal("metrics.register_failed", zap.Error(err))
	}

	// RequestID first so every later middleware and handler can read it.
	app.Use(middleware.RequestID())
	app.Use(middleware.CORS(cfg.CORSAllowOrigins))
	app.Use(otelfiber.Middleware())
	app.Use(middleware.Logger(log))
	app.Use(promMiddleware.Handler())

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	handlers.RegisterRoutes(app, db, docSvc, cfg.Upload.Dir)

	// Swagger UI with dynamic host and scheme
	app.Get("/swagger/*", func(c *fiber.Ctx) error {
		scheme := c.Protocol()
		if proto := c.Get("X-Forwarded-Proto"); proto != "" {
			scheme = strings.Split(proto, ",")[0]
		}

		docs.SwaggerInfo.Host = c.Get("Host")
		docs.SwaggerInfo.Schemes = []string{scheme}

		return swagger.HandlerDefault(c)
	})

	addr := ":" + cfg.Port
	listenErr := make(chan error, 1)
	go func() {
		log.Info("server.listening",
			zap.String("addr", addr),
			zap.Bool("ai_enabled", cfg.AI.Enabled),
			zap.Bool("artifacts_enabled", cfg.Artifact.Enabled),
			zap.Bool("database_enabled", cfg.Database.Enabled()),
		)
		listenErr <- app.Listen(addr)
	}()

	select {
	case err := <-listenErr:
		if err != nil {
			log.Error("server.listen_failed", zap.Error(err))
		}
	case <-ctx.Done():
		log.Info("server.shutting_down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error("server.shutdown_failed", zap.Error(err))
	}
	sweeper.Stop(shutdownCtx)
	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Error("tracing.shutdown_failed", zap.Error(err))
	}
	log.Info("server.stopped")
}

func newArtifactStore(ctx context.Context, cfg *config.AppConfig) (storage.Storage, error) {
	if cfg.Artifact.Backend == config.ArtifactBackendMinIO {
		return storage.NewMinIO(ctx, cfg.MinIO)
	}
	return storage.NewLocal(cfg.Artifact.ResultDir)
}
