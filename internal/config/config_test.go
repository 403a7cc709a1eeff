package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad(t *testing.T) {
	t.Setenv("DB_HOST", "test-host")
	t.Setenv("DB_MAX_OPEN_CONNS", "20")
	t.Setenv("MINIO_USE_SSL", "true")
	t.Setenv("HF_TOKEN", "hf_secret")
	t.Setenv("AI_TIMEOUT", "15s")
	t.Setenv("UPLOAD_DIR", "/tmp/up")

	cfg := Load()

	assert.Equal(t, "test-host", cfg.Database.Host)
	assert.True(t, cfg.Database.Enabled())
	assert.Equal(t, 20, cfg.Database.MaxOpenConns)
	assert.True(t, cfg.MinIO.UseSSL)
	assert.Equal(t, "hf_secret", cfg.AI.APIKey)
	assert.Equal(t, 15*time.Second, cfg.AI.Timeout)
	assert.Equal(t, "/tmp/up", cfg.Upload.Dir)
	assert.Equal(t, 6000, cfg.AI.MaxInputChars)
	assert.Equal(t, "deepseek-ai/DeepSeek-V3.2:novita", cfg.AI.Model)
	assert.Equal(t, ArtifactBackendLocal, cfg.Artifact.Backend)
	assert.Equal(t, "*", cfg.CORSAllowOrigins)
}

func TestAppConfig_Validate(t *testing.T) {
	base := func() *AppConfig {
		return &AppConfig{
			Upload:   UploadConfig{Dir: "uploads"},
			AI:       AIConfig{Enabled: true, APIKey: "k", SchemaMode: SchemaModeFreeform},
			Artifact: ArtifactConfig{Enabled: true, Backend: ArtifactBackendLocal, ResultDir: "results"},
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *AppConfig)
		wantErr bool
	}{
		{name: "valid", mutate: func(c *AppConfig) {}},
		{name: "missing credential", mutate: func(c *AppConfig) { c.AI.APIKey = "" }, wantErr: true},
		{name: "missing credential with ai disabled", mutate: func(c *AppConfig) {
			c.AI.APIKey = ""
			c.AI.Enabled = false
		}},
		{name: "unknown schema mode", mutate: func(c *AppConfig) { c.AI.SchemaMode = "strict" }, wantErr: true},
		{name: "unknown backend", mutate: func(c *AppConfig) { c.Artifact.Backend = "gcs" }, wantErr: true},
		{name: "empty upload dir", mutate: func(c *AppConfig) { c.Upload.Dir = "" }, wantErr: true},
		{name: "result dir equals upload dir", mutate: func(c *AppConfig) { c.Artifact.ResultDir = "uploads" }, wantErr: true},
		{name: "result dir resolves to upload dir", mutate: func(c *AppConfig) {
			c.Upload.Dir = "data/uploads"
			c.Artifact.ResultDir = "./data/../data/uploads/"
		}, wantErr: true},
		{name: "shared dir allowed with artifacts disabled", mutate: func(c *AppConfig) {
			c.Artifact.Enabled = false
			c.Artifact.ResultDir = "uploads"
		}},
		{name: "shared dir allowed with minio backend", mutate: func(c *AppConfig) {
			c.Artifact.Backend = ArtifactBackendMinIO
			c.Artifact.ResultDir = "uploads"
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := base()
			tt.mutate(c)
			err := c.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrConfiguration)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLocation(t *testing.T) {
	c := &AppConfig{Timezone: "Not/AZone"}
	assert.Equal(t, time.UTC, c.Location())

	c.Timezone = "UTC"
	assert.Equal(t, "UTC", c.Location().String())
}

func TestGetEnv(t *testing.T) {
	key := "TEST_ENV_VAR"
	os.Setenv(key, "value")
	defer os.Unsetenv(key)

	assert.Equal(t, "value", getEnv(key, "default"))
	assert.Equal(t, "default", getEnv("NON_EXISTENT", "default"))
}

func TestGetEnvBool(t *testing.T) {
	key := "TEST_BOOL_VAR"

	os.Setenv(key, "true")
	assert.True(t, getEnvBool(key, false))

	os.Setenv(key, "false")
	assert.False(t, getEnvBool(key, true))

	os.Setenv(key, "invalid")
	assert.True(t, getEnvBool(key, true))

	os.Unsetenv(key)
	assert.True(t, getEnvBool(key, true))
}

func TestGetEnvInt(t *testing.T) {
	key := "TEST_INT_VAR"

	os.Setenv(key, "123")
	assert.Equal(t, 123, getEnvInt(key, 0))

	os.Setenv(key, "invalid")
	assert.Equal(t, 10, getEnvInt(key, 10))

	os.Unsetenv(key)
	assert.Equal(t, 10, getEnvInt(key, 10))
}

func TestGetEnvDurationAndFloat(t *testing.T) {
	t.Setenv("TEST_DUR_VAR", "2m")
	assert.Equal(t, 2*time.Minute, getEnvDuration("TEST_DUR_VAR", time.Second))

	t.Setenv("TEST_DUR_VAR", "soon")
	assert.Equal(t, time.Second, getEnvDuration("TEST_DUR_VAR", time.Second))

	t.Setenv("TEST_FLOAT_VAR", "2.5")
	assert.Equal(t, 2.5, getEnvFloat("TEST_FLOAT_VAR", 1))

	t.Setenv("TEST_FLOAT_VAR", "x")
	assert.Equal(t, 1.0, getEnvFloat("TEST_FLOAT_VAR", 1))
}
