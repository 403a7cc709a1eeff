package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// ErrConfiguration marks a deployment defect detected while validating configuration.
var ErrConfiguration = errors.New("configuration error")

const (
	SchemaModeFreeform = "freeform"
	SchemaModeFixed    = "fixed"

	ArtifactBackendLocal = "local"
	ArtifactBackendMinIO = "minio"
)

// DatabaseConfig holds PostgreSQL database connection settings.
type DatabaseConfig struct {
	Host               string
	Port               string
	User               string
	Password           string
	Name               string
	SSLMode            string
	MaxOpenConns       int
	MaxIdleConns       int
	ConnMaxLifetimeSec int
}

// Enabled reports whether a database has been configured at all.
func (c DatabaseConfig) Enabled() bool {
	return c.Host != ""
}

// MinIOConfig holds object storage settings for MinIO.
type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	// Prefix namespaces artifact objects inside a shared bucket.
	Prefix string
}

// UploadConfig controls where uploaded files land and how long they live.
type UploadConfig struct {
	Dir                 string
	MaxBytes            int
	Retention           time.Duration
	SweepSchedule       string
	DeleteAfterResponse bool
}

// ExtractConfig configures the text extractors.
type ExtractConfig struct {
	OCRBinary   string
	OCRLanguage string
	Timeout     time.Duration
}

// AIConfig configures the chat-completion backed structuring step.
type AIConfig struct {
	Enabled         bool
	APIKey          string
	BaseURL         string
	Model           string
	Timeout         time.Duration
	MaxInputChars   int
	SchemaMode      string
	RatePerSec      float64
	Burst           int
	BreakerFailures int
	BreakerCooldown time.Duration
}

// ArtifactConfig configures persistence of result artifacts.
type ArtifactConfig struct {
	Enabled   bool
	Backend   string
	ResultDir string
}

// AppConfig is the centralized configuration struct for the application.
// It is populated from environment variables. Sensitive values are not hardcoded.
type AppConfig struct {
	AppHost  string
	Port     string
	Timezone string
	// CORSAllowOrigins is the comma separated origin allow-list; "*" allows any.
	CORSAllowOrigins string
	Upload           UploadConfig
	Extract          ExtractConfig
	AI               AIConfig
	Artifact         ArtifactConfig
	Database         DatabaseConfig
	MinIO            MinIOConfig
}

// Load reads configuration from environment variables.
// A .env file can be auto-loaded by importing: _ "github.com/joho/godotenv/autoload"
// This function does not require a .env file; real environment variables take precedence.
func Load() *AppConfig {
	return &AppConfig{
		AppHost:          getEnv("APP_HOST", "localhost:5000"),
		Port:             getEnv("PORT", "5000"),
		Timezone:         getEnv("APP_TIMEZONE", "UTC"),
		CORSAllowOrigins: getEnv("CORS_ALLOW_ORIGINS", "*"),
		Upload: UploadConfig{
			Dir:                 getEnv("UPLOAD_DIR", "uploads"),
			MaxBytes:            getEnvInt("UPLOAD_MAX_BYTES", 20<<20),
			Retention:           getEnvDuration("UPLOAD_RETENTION", time.Hour),
			SweepSchedule:       getEnv("UPLOAD_SWEEP_SCHEDULE", "@every 10m"),
			DeleteAfterResponse: getEnvBool("UPLOAD_DELETE_AFTER_RESPONSE", true),
		},
		Extract: ExtractConfig{
			OCRBinary:   getEnv("OCR_BINARY", "tesseract"),
			OCRLanguage: getEnv("OCR_LANGUAGE", "eng"),
			Timeout:     getEnvDuration("EXTRACT_TIMEOUT", 60*time.Second),
		},
		AI: AIConfig{
			Enabled:         getEnvBool("AI_ENABLED", true),
			APIKey:          getEnv("HF_TOKEN", ""),
			BaseURL:         getEnv("AI_BASE_URL", "https://router.huggingface.co/v1"),
			Model:           getEnv("AI_MODEL", "deepseek-ai/DeepSeek-V3.2:novita"),
			Timeout:         getEnvDuration("AI_TIMEOUT", 60*time.Second),
			MaxInputChars:   getEnvInt("AI_MAX_INPUT_CHARS", 6000),
			SchemaMode:      getEnv("AI_SCHEMA_MODE", SchemaModeFreeform),
			RatePerSec:      getEnvFloat("AI_RATE_PER_SEC", 5),
			Burst:           getEnvInt("AI_BURST", 5),
			BreakerFailures: getEnvInt("AI_BREAKER_FAILURES", 5),
			BreakerCooldown: getEnvDuration("AI_BREAKER_COOLDOWN", 30*time.Second),
		},
		Artifact: ArtifactConfig{
			Enabled:   getEnvBool("ARTIFACTS_ENABLED", true),
			Backend:   getEnv("ARTIFACT_BACKEND", ArtifactBackendLocal),
			ResultDir: getEnv("RESULT_DIR", "results"),
		},
		Database: DatabaseConfig{
			Host:               getEnv("DB_HOST", ""),
			Port:               getEnv("DB_PORT", "5432"),
			User:               getEnv("DB_USER", ""),
			Password:           getEnv("DB_PASSWORD", ""),
			Name:               getEnv("DB_NAME", ""),
			SSLMode:            getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns:       getEnvInt("DB_MAX_OPEN_CONNS", 10),
			MaxIdleConns:       getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetimeSec: getEnvInt("DB_CONN_MAX_LIFETIME_SEC", 300),
		},
		MinIO: MinIOConfig{
			Endpoint:  getEnv("MINIO_ENDPOINT", ""),
			AccessKey: getEnv("MINIO_ACCESS_KEY", ""),
			SecretKey: getEnv("MINIO_SECRET_KEY", ""),
			Bucket:    getEnv("MINIO_BUCKET", ""),
			UseSSL:    getEnvBool("MINIO_USE_SSL", false),
			Prefix:    getEnv("MINIO_PREFIX", "results/"),
		},
	}
}

// Validate rejects configurations the service cannot run with.
// A missing AI credential while AI structuring is enabled is fatal at startup.
func (c *AppConfig) Validate() error {
	if c.AI.Enabled && c.AI.APIKey == "" {
		return fmt.Errorf("%w: HF_TOKEN is required when AI_ENABLED is true", ErrConfiguration)
	}
	switch c.AI.SchemaMode {
	case SchemaModeFreeform, SchemaModeFixed:
	default:
		return fmt.Errorf("%w: unknown AI_SCHEMA_MODE %q", ErrConfiguration, c.AI.SchemaMode)
	}
	switch c.Artifact.Backend {
	case ArtifactBackendLocal, ArtifactBackendMinIO:
	default:
		return fmt.Errorf("%w: unknown ARTIFACT_BACKEND %q", ErrConfiguration, c.Artifact.Backend)
	}
	if c.Upload.Dir == "" {
		return fmt.Errorf("%w: UPLOAD_DIR must not be empty", ErrConfiguration)
	}
	if c.Artifact.Enabled && c.Artifact.Backend == ArtifactBackendLocal {
		same, err := samePath(c.Upload.Dir, c.Artifact.ResultDir)
		if err != nil {
			return fmt.Errorf("%w: resolve RESULT_DIR: %v", ErrConfiguration, err)
		}
		// The retention sweeper purges UPLOAD_DIR; artifacts must never live there.
		if same {
			return fmt.Errorf("%w: RESULT_DIR must differ from UPLOAD_DIR", ErrConfiguration)
		}
	}
	return nil
}

func samePath(a, b string) (bool, error) {
	absA, err := filepath.Abs(a)
	if err != nil {
		return false, err
	}
	absB, err := filepath.Abs(b)
	if err != nil {
		return false, err
	}
	return absA == absB, nil
}

// Location resolves the configured timezone, falling back to UTC.
func (c *AppConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.Atoi(v)
		if err == nil {
			return i
		}
	}
	return def
}

func getEnvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err == nil {
			return f
		}
	}
	return def
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)
		if err == nil {
			return d
		}
	}
	return def
}
