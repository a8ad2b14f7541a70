package config

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadFromFiles_Defaults(t *testing.T) {
	cfg, err := LoadFromFiles()
	require.NoError(t, err)

	assert.Equal(t, int64(10485760), cfg.Upload.MaxSizeBytes)
	assert.Equal(t, ".pdf", cfg.Upload.AcceptedExtension)
	assert.Equal(t, "application/pdf", cfg.Upload.AcceptedMediaType)
	assert.Equal(t, "explicit", cfg.Extraction.LineBreaks)
	assert.Equal(t, "0.0.0.0:8080", cfg.Server.Address())
	assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeoutDuration())
	assert.True(t, cfg.Auth.UsesDevSecrets())
}

func TestLoadFromFiles_FileThenEnv(t *testing.T) {
	path := writeConfig(t, `
[server]
port = 9090

[upload]
max_size_bytes = 2048

[extraction]
line_breaks = "geometry"

[storage]
driver = "memory"
`)
	t.Setenv("PDFTEXT_SERVER_PORT", "9191")
	t.Setenv("PDFTEXT_CORS_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("PDFTEXT_LOG_LEVEL", "DEBUG")

	cfg, err := LoadFromFiles(path)
	require.NoError(t, err)

	assert.Equal(t, 9191, cfg.Server.Port, "env overrides file")
	assert.Equal(t, int64(2048), cfg.Upload.MaxSizeBytes)
	assert.Equal(t, "geometry", cfg.Extraction.LineBreaks)
	assert.Equal(t, "memory", cfg.Storage.Driver)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORS.AllowedOrigins)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, ".pdf", cfg.Upload.AcceptedExtension, "unset keys keep defaults")
}

func TestLoadFromFiles_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		env     map[string]string
	}{
		{name: "unknown line break mode", content: "[extraction]\nline_breaks = \"fuzzy\"\n"},
		{name: "zero size limit", content: "[upload]\nmax_size_bytes = 0\n"},
		{name: "bad duration", content: "[server]\nread_timeout = \"soon\"\n"},
		{name: "sqlite without path", content: "[storage]\ndriver = \"sqlite\"\npath = \"\"\n"},
		{name: "short session secret", env: map[string]string{"PDFTEXT_SESSION_SECRET": "short"}},
		{name: "non-numeric port", env: map[string]string{"PDFTEXT_SERVER_PORT": "http"}},
		{name: "malformed toml", content: "[server\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			var paths []string
			if tt.content != "" {
				paths = append(paths, writeConfig(t, tt.content))
			}

			_, err := LoadFromFiles(paths...)
			assert.Error(t, err)
		})
	}
}

func TestLoadFromFiles_MissingFile(t *testing.T) {
	_, err := LoadFromFiles(filepath.Join(t.TempDir(), "absent.toml"))
	assert.Error(t, err)
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, LoggingConfig{Level: "warn", Format: "json"})

	logger.Info("hidden")
	logger.Warn("shown", "key", "value")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "shown", entry["msg"])
	assert.Equal(t, "value", entry["key"])
	assert.Equal(t, "pdf-text-service", entry["service"])
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLevel("debug"))
	assert.Equal(t, slog.LevelWarn, parseLevel("WARN"))
	assert.Equal(t, slog.LevelError, parseLevel("error"))
	assert.Equal(t, slog.LevelInfo, parseLevel("anything"))
}

func TestNewValidator_Duration(t *testing.T) {
	var v *validator.Validate
	require.NotPanics(t, func() { v = newValidator() })

	assert.NoError(t, v.Var("5s", "duration"))
	assert.Error(t, v.Var("soon", "duration"))
	assert.Error(t, v.Var("-1s", "duration"))
}
