package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
)

// Config holds all application configuration
type Config struct {
	Storage       StorageConfig
	Reference     ReferenceConfig
	PDF           PDFConfig
	Import        ImportConfig
	Observability ObservabilityConfig
	LogLevel      slog.Level
}

type StorageConfig struct {
	Path        string
	KeepUploads int // archived files kept per import kind, 0 = all
}

type ReferenceConfig struct {
	MapPath     string
	PDFPath     string
	RefreshCron string
}

type PDFConfig struct {
	Extractor        string
	PdfToTextPath    string
	DebugExtractPath string
}

type ImportConfig struct {
	CSVDelimiter      string
	CSVSourceEncoding string
	TenantRequired    []string
}

type ObservabilityConfig struct {
	MetricsEnabled bool
	MetricsPort    int
}

// Load reads configuration from environment variables, after loading a .env
// file from the working directory when there is one.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	storagePath := getEnv("STORAGE_PATH", "./storage")
	cfg := &Config{
		Storage: StorageConfig{
			Path:        storagePath,
			KeepUploads: getEnvAsInt("STORAGE_KEEP_UPLOADS", 0),
		},
		Reference: ReferenceConfig{
			MapPath:     getEnv("REFERENCE_MAP_PATH", filepath.Join(storagePath, "data", "seguro_map.json")),
			PDFPath:     getEnv("REFERENCE_PDF_PATH", ""),
			RefreshCron: getEnv("REFERENCE_REFRESH_CRON", "0 3 * * *"),
		},
		PDF: PDFConfig{
			Extractor:        getEnv("PDF_EXTRACTOR", "pdftotext"),
			PdfToTextPath:    getEnv("PDFTOTEXT_PATH", "pdftotext"),
			DebugExtractPath: getEnv("PDF_DEBUG_EXTRACT_PATH", ""),
		},
		Import: ImportConfig{
			CSVDelimiter:      getEnv("CSV_DELIMITER", ";"),
			CSVSourceEncoding: getEnv("CSV_SOURCE_ENCODING", "auto"),
			TenantRequired:    getEnvAsList("TENANT_REQUIRED_FIELDS"),
		},
		Observability: ObservabilityConfig{
			MetricsEnabled: getEnvAsBool("METRICS_ENABLED", true),
			MetricsPort:    getEnvAsInt("METRICS_PORT", 9090),
		},
	}

	level, err := parseLevel(getEnv("LOG_LEVEL", "info"))
	if err != nil {
		return nil, err
	}
	cfg.LogLevel = level

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the values that cannot be defaulted.
func (c *Config) Validate() error {
	switch c.PDF.Extractor {
	case "pdftotext", "native":
	default:
		return fmt.Errorf("PDF_EXTRACTOR must be pdftotext or native, got %q", c.PDF.Extractor)
	}
	if _, err := cron.ParseStandard(c.Reference.RefreshCron); err != nil {
		return fmt.Errorf("invalid REFERENCE_REFRESH_CRON %q: %w", c.Reference.RefreshCron, err)
	}
	if c.Storage.KeepUploads < 0 {
		return fmt.Errorf("invalid STORAGE_KEEP_UPLOADS %d", c.Storage.KeepUploads)
	}
	if c.Observability.MetricsPort <= 0 || c.Observability.MetricsPort > 65535 {
		return fmt.Errorf("invalid METRICS_PORT %d", c.Observability.MetricsPort)
	}
	return nil
}

func parseLevel(value string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(value)); err != nil {
		return 0, fmt.Errorf("invalid LOG_LEVEL %q: %w", value, err)
	}
	return level, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsList splits a comma separated variable, dropping blank items.
func getEnvAsList(key string) []string {
	var out []string
	for _, item := range strings.Split(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
