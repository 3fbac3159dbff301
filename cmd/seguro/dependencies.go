package main

import (
	"fmt"
	"log/slog"

	"github.com/FACorreiaa/seguro-locacao/internal/domain/import/parser"
	importservice "github.com/FACorreiaa/seguro-locacao/internal/domain/import/service"
	"github.com/FACorreiaa/seguro-locacao/internal/domain/import/sniffer"
	"github.com/FACorreiaa/seguro-locacao/internal/domain/reference"
	"github.com/FACorreiaa/seguro-locacao/pkg/config"
	"github.com/FACorreiaa/seguro-locacao/pkg/metrics"
	"github.com/FACorreiaa/seguro-locacao/pkg/storage"
)

// Dependencies holds all application dependencies
type Dependencies struct {
	Config *config.Config
	Logger *slog.Logger

	FileStorage    storage.Storage
	ReferenceStore *reference.JSONStore
	Parser         *parser.Parser
	Extractor      parser.PDFTextExtractor
	Metrics        *metrics.Metrics

	ImportService *importservice.ImportService
}

// InitDependencies initializes all application dependencies
func InitDependencies(cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config: cfg,
		Logger: logger,
	}

	if err := deps.initStorage(); err != nil {
		return nil, fmt.Errorf("failed to init storage: %w", err)
	}

	if err := deps.initParsing(); err != nil {
		return nil, fmt.Errorf("failed to init parsers: %w", err)
	}

	deps.initServices()

	logger.Debug("all dependencies initialized successfully")

	return deps, nil
}

// initStorage opens the upload archive and the reference table file
func (d *Dependencies) initStorage() error {
	fileStorage, err := storage.NewLocalStorage(d.Config.Storage.Path)
	if err != nil {
		return err
	}
	d.FileStorage = fileStorage
	d.ReferenceStore = reference.NewJSONStore(d.Config.Reference.MapPath, d.Logger)
	return nil
}

// initParsing builds the spreadsheet parser and the PDF text extractor
func (d *Dependencies) initParsing() error {
	delimiter, err := sniffer.ParseDelimiter(d.Config.Import.CSVDelimiter)
	if err != nil {
		return fmt.Errorf("CSV_DELIMITER: %w", err)
	}
	encoding, err := sniffer.ParseEncoding(d.Config.Import.CSVSourceEncoding)
	if err != nil {
		return fmt.Errorf("CSV_SOURCE_ENCODING: %w", err)
	}

	cfg := parser.DefaultConfig()
	cfg.Delimiter = delimiter
	cfg.Encoding = encoding
	d.Parser = parser.NewParser(cfg)

	extractor, err := parser.NewPDFTextExtractor(d.Config.PDF.Extractor, d.Config.PDF.PdfToTextPath, d.Logger)
	if err != nil {
		return err
	}
	d.Extractor = extractor
	return nil
}

// initServices wires the import service
func (d *Dependencies) initServices() {
	d.Metrics = metrics.New()

	d.ImportService = importservice.NewImportService(d.Parser, d.ReferenceStore, d.Logger).
		WithExtractor(d.Extractor).
		WithUploads(d.FileStorage).
		WithUploadRetention(d.Config.Storage.KeepUploads).
		WithMetrics(d.Metrics).
		WithTenantRequired(d.Config.Import.TenantRequired)
}
