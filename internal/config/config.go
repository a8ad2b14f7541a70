// Package config loads service configuration: defaults, then TOML files, then
// PDFTEXT_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
)

// Config represents the application configuration
type Config struct {
	Server     ServerConfig     `toml:"server"`
	Upload     UploadConfig     `toml:"upload"`
	Extraction ExtractionConfig `toml:"extraction"`
	Storage    StorageConfig    `toml:"storage"`
	Auth       AuthConfig       `toml:"auth"`
	Logging    LoggingConfig    `toml:"logging"`
	RateLimit  RateLimitConfig  `toml:"rate_limit"`
	CORS       CORSConfig       `toml:"cors"`
}

// ServerConfig holds the HTTP listener settings
type ServerConfig struct {
	Host            string `toml:"host"`
	Port            int    `toml:"port" validate:"min=1,max=65535"`
	ReadTimeout     string `toml:"read_timeout" validate:"duration"`  // e.g. "30s"
	WriteTimeout    string `toml:"write_timeout" validate:"duration"` // e.g. "60s"
	ShutdownTimeout string `toml:"shutdown_timeout" validate:"duration"`
}

// UploadConfig holds upload validation limits
type UploadConfig struct {
	MaxSizeBytes      int64  `toml:"max_size_bytes" validate:"gt=0"`
	AcceptedExtension string `toml:"accepted_extension" validate:"required,startswith=."`
	AcceptedMediaType string `toml:"accepted_media_type" validate:"required"`
	ReadChunkSize     int    `toml:"read_chunk_size" validate:"gt=0"`
}

// ExtractionConfig holds PDF parser options
type ExtractionConfig struct {
	LineBreaks        string  `toml:"line_breaks" validate:"oneof=explicit geometry"`
	GeometryTolerance float64 `toml:"geometry_tolerance" validate:"gt=0"` // points
	WordGap           float64 `toml:"word_gap" validate:"gt=0"`           // TJ adjustment, thousandths of an em
	RepairXref        bool    `toml:"repair_xref"`
}

// StorageConfig selects the record store
type StorageConfig struct {
	Driver string `toml:"driver" validate:"oneof=sqlite memory"`
	Path   string `toml:"path" validate:"required_if=Driver sqlite"`
}

// AuthConfig holds token and session cookie settings
type AuthConfig struct {
	JWTSecret     string `toml:"jwt_secret" validate:"required,min=16"`
	SessionSecret string `toml:"session_secret" validate:"required,min=32"`
	TokenDuration string `toml:"token_duration" validate:"duration"`
	CookieSecure  bool   `toml:"cookie_secure"`
}

// LoggingConfig holds log level and output format
type LoggingConfig struct {
	Level  string `toml:"level" validate:"oneof=debug info warn error"`
	Format string `toml:"format" validate:"oneof=text json"`
}

// RateLimitConfig holds the per-IP request budget for /api
type RateLimitConfig struct {
	Enabled           bool    `toml:"enabled"`
	RequestsPerSecond float64 `toml:"requests_per_second" validate:"gt=0"`
	Burst             int     `toml:"burst" validate:"gt=0"`
}

// CORSConfig holds the allowed browser origins
type CORSConfig struct {
	AllowedOrigins []string `toml:"allowed_origins" validate:"min=1"`
}

// NewDefaultConfig returns the configuration used when no file or env var overrides a value
func NewDefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     "30s",
			WriteTimeout:    "60s",
			ShutdownTimeout: "10s",
		},
		Upload: UploadConfig{
			MaxSizeBytes:      10 * 1024 * 1024,
			AcceptedExtension: ".pdf",
			AcceptedMediaType: "application/pdf",
			ReadChunkSize:     64 * 1024,
		},
		Extraction: ExtractionConfig{
			LineBreaks:        "explicit",
			GeometryTolerance: 2,
			WordGap:           250,
			RepairXref:        true,
		},
		Storage: StorageConfig{
			Driver: "sqlite",
			Path:   "./data/pdftext.db",
		},
		Auth: AuthConfig{
			// development values; startup warns when they are still in use
			JWTSecret:     DevJWTSecret,
			SessionSecret: DevSessionSecret,
			TokenDuration: "24h",
			CookieSecure:  false,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		RateLimit: RateLimitConfig{
			Enabled:           true,
			RequestsPerSecond: 5,
			Burst:             10,
		},
		CORS: CORSConfig{
			AllowedOrigins: []string{"http://localhost:3000"},
		},
	}
}

// Development secrets shipped in the defaults
const (
	DevJWTSecret     = "dev-jwt-secret-change-me"
	DevSessionSecret = "dev-session-secret-change-me-0000"
)

// LoadFromFiles loads configuration with priority: defaults < files (in order) < environment
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	if err := applyEnvOverrides(config); err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func applyEnvOverrides(config *Config) error {
	// Server configuration
	if host := os.Getenv("PDFTEXT_SERVER_HOST"); host != "" {
		config.Server.Host = host
	}
	if port := os.Getenv("PDFTEXT_SERVER_PORT"); port != "" {
		p, err := strconv.Atoi(port)
		if err != nil {
			return fmt.Errorf("PDFTEXT_SERVER_PORT: %w", err)
		}
		config.Server.Port = p
	}

	// Upload configuration
	if maxSize := os.Getenv("PDFTEXT_MAX_SIZE_BYTES"); maxSize != "" {
		n, err := strconv.ParseInt(maxSize, 10, 64)
		if err != nil {
			return fmt.Errorf("PDFTEXT_MAX_SIZE_BYTES: %w", err)
		}
		config.Upload.MaxSizeBytes = n
	}

	// Extraction configuration
	if mode := os.Getenv("PDFTEXT_LINE_BREAKS"); mode != "" {
		config.Extraction.LineBreaks = mode
	}

	// Storage configuration
	if driver := os.Getenv("PDFTEXT_STORAGE_DRIVER"); driver != "" {
		config.Storage.Driver = driver
	}
	if path := os.Getenv("PDFTEXT_STORAGE_PATH"); path != "" {
		config.Storage.Path = path
	}

	// Auth configuration
	if secret := os.Getenv("PDFTEXT_JWT_SECRET"); secret != "" {
		config.Auth.JWTSecret = secret
	}
	if secret := os.Getenv("PDFTEXT_SESSION_SECRET"); secret != "" {
		config.Auth.SessionSecret = secret
	}

	// Logging configuration
	if level := os.Getenv("PDFTEXT_LOG_LEVEL"); level != "" {
		config.Logging.Level = strings.ToLower(level)
	}
	if format := os.Getenv("PDFTEXT_LOG_FORMAT"); format != "" {
		config.Logging.Format = strings.ToLower(format)
	}

	// CORS configuration
	if origins := os.Getenv("PDFTEXT_CORS_ORIGINS"); origins != "" {
		var list []string
		for _, o := range strings.Split(origins, ",") {
			if o = strings.TrimSpace(o); o != "" {
				list = append(list, o)
			}
		}
		config.CORS.AllowedOrigins = list
	}
	return nil
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	err := v.RegisterValidation("duration", func(fl validator.FieldLevel) bool {
		d, err := time.ParseDuration(fl.Field().String())
		return err == nil && d > 0
	})
	if err != nil {
		panic(fmt.Sprintf("config: register duration validation: %v", err))
	}
	return v
}

// Validate checks the merged configuration
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// Address returns host:port for the HTTP listener
func (s ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// Durations are validated on load, so parse errors cannot occur here.

func (s ServerConfig) ReadTimeoutDuration() time.Duration { return mustDuration(s.ReadTimeout) }
func (s ServerConfig) WriteTimeoutDuration() time.Duration { return mustDuration(s.WriteTimeout) }
func (s ServerConfig) ShutdownTimeoutDuration() time.Duration { return mustDuration(s.ShutdownTimeout) }
func (a AuthConfig) TokenDurationValue() time.Duration { return mustDuration(a.TokenDuration) }

func mustDuration(s string) time.Duration {
	d, _ := time.ParseDuration(s)
	return d
}

// UsesDevSecrets reports whether either auth secret is still the shipped default
func (a AuthConfig) UsesDevSecrets() bool {
	return a.JWTSecret == DevJWTSecret || a.SessionSecret == DevSessionSecret
}
