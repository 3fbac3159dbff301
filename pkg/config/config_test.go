package config

import (
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("STORAGE_PATH", "/srv/seguro")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "/srv/seguro", cfg.Storage.Path)
	assert.Equal(t, filepath.Join("/srv/seguro", "data", "seguro_map.json"), cfg.Reference.MapPath)
	assert.Equal(t, "0 3 * * *", cfg.Reference.RefreshCron)
	assert.Equal(t, "pdftotext", cfg.PDF.Extractor)
	assert.Equal(t, ";", cfg.Import.CSVDelimiter)
	assert.Equal(t, "auto", cfg.Import.CSVSourceEncoding)
	assert.Empty(t, cfg.Import.TenantRequired)
	assert.True(t, cfg.Observability.MetricsEnabled)
	assert.Equal(t, 9090, cfg.Observability.MetricsPort)
	assert.Zero(t, cfg.Storage.KeepUploads)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
}

func TestLoad_Overrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("REFERENCE_MAP_PATH", "/tmp/map.json")
	t.Setenv("PDF_EXTRACTOR", "native")
	t.Setenv("TENANT_REQUIRED_FIELDS", " segurado_nome, ,segurado_cpf_cnpj ")
	t.Setenv("METRICS_ENABLED", "false")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("STORAGE_KEEP_UPLOADS", "5")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "/tmp/map.json", cfg.Reference.MapPath)
	assert.Equal(t, "native", cfg.PDF.Extractor)
	assert.Equal(t, []string{"segurado_nome", "segurado_cpf_cnpj"}, cfg.Import.TenantRequired)
	assert.False(t, cfg.Observability.MetricsEnabled)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
	assert.Equal(t, 5, cfg.Storage.KeepUploads)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name, key, value string
	}{
		{"extractor", "PDF_EXTRACTOR", "tesseract"},
		{"cron", "REFERENCE_REFRESH_CRON", "every day"},
		{"port", "METRICS_PORT", "70000"},
		{"log level", "LOG_LEVEL", "loud"},
		{"retention", "STORAGE_KEEP_UPLOADS", "-1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Chdir(t.TempDir())
			t.Setenv(tt.key, tt.value)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
