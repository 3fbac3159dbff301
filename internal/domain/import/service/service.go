// Package service orchestrates the spreadsheet and PDF imports: tenant and
// policy spreadsheets, in-place coverage fill of workbooks, and the premium
// reference table read from the insurer's PDF.
package service

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/FACorreiaa/seguro-locacao/internal/domain/import/parser"
	"github.com/FACorreiaa/seguro-locacao/internal/domain/reference"
	"github.com/FACorreiaa/seguro-locacao/pkg/storage"
)

const tracerName = "github.com/FACorreiaa/seguro-locacao/internal/domain/import/service"

// Upload is an input file as received from the user.
type Upload struct {
	Filename string
	Data     []byte
}

// ReferenceStore loads and replaces the premium reference table.
type ReferenceStore interface {
	Load(ctx context.Context) (*reference.Table, error)
	SaveRows(ctx context.Context, rows []reference.Row) (*reference.Table, error)
}

// Recorder receives import counters. A nil Recorder is replaced by a no-op.
type Recorder interface {
	RowsImported(kind string, n int)
	RowsPending(kind string, n int)
	TierLookup(outcome string)
	ReferenceRowsParsed(n int)
	ImportDuration(kind string, d time.Duration)
}

type noopRecorder struct{}

func (noopRecorder) RowsImported(string, int)             {}
func (noopRecorder) RowsPending(string, int)              {}
func (noopRecorder) TierLookup(string)                    {}
func (noopRecorder) ReferenceRowsParsed(int)              {}
func (noopRecorder) ImportDuration(string, time.Duration) {}

// ImportService orchestrates file imports against the reference table.
type ImportService struct {
	parser    *parser.Parser
	store     ReferenceStore
	extractor parser.PDFTextExtractor
	uploads   storage.Storage
	metrics   Recorder
	tracer    trace.Tracer
	logger    *slog.Logger

	tenantRequired []string
	keepUploads    int
}

// NewImportService creates a new import service
func NewImportService(p *parser.Parser, store ReferenceStore, logger *slog.Logger) *ImportService {
	if logger == nil {
		logger = slog.Default()
	}
	if p == nil {
		p = parser.NewParser(parser.DefaultConfig())
	}
	return &ImportService{
		parser:    p,
		store:     store,
		extractor: parser.NativePDFExtractor{},
		metrics:   noopRecorder{},
		tracer:    otel.Tracer(tracerName),
		logger:    logger,
	}
}

// WithExtractor sets the PDF text extractor used for reference imports.
func (s *ImportService) WithExtractor(extractor parser.PDFTextExtractor) *ImportService {
	if extractor != nil {
		s.extractor = extractor
	}
	return s
}

// WithUploads archives every processed input under its import kind.
func (s *ImportService) WithUploads(uploads storage.Storage) *ImportService {
	s.uploads = uploads
	return s
}

// WithUploadRetention keeps only the newest n archived files of each kind.
// Zero keeps everything.
func (s *ImportService) WithUploadRetention(n int) *ImportService {
	s.keepUploads = n
	return s
}

// WithMetrics sets the metrics recorder.
func (s *ImportService) WithMetrics(metrics Recorder) *ImportService {
	if metrics != nil {
		s.metrics = metrics
	}
	return s
}

// WithTenantRequired overrides the required tenant fields.
func (s *ImportService) WithTenantRequired(fields []string) *ImportService {
	s.tenantRequired = fields
	return s
}

// loadIndex returns the index of the current reference table, nil when the
// table is empty or no store is configured.
func (s *ImportService) loadIndex(ctx context.Context) (*reference.Index, error) {
	if s.store == nil {
		return nil, nil
	}
	t, err := s.store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load reference table: %w", err)
	}
	if t.Len() == 0 {
		s.logger.Warn("reference table is empty, coverages will not be filled")
		return nil, nil
	}
	return t.Index(), nil
}

func (s *ImportService) parse(ctx context.Context, kind string, file Upload) (*parser.Sheet, error) {
	s.archive(ctx, kind, file)

	sheet, err := s.parser.Parse(file.Data, file.Filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", file.Filename, err)
	}
	s.logger.Debug("spreadsheet parsed",
		slog.String("kind", kind),
		slog.String("file", file.Filename),
		slog.String("format", string(sheet.Format)),
		slog.Int("rows", len(sheet.Rows)),
		slog.String("fingerprint", sheet.Fingerprint),
	)
	return sheet, nil
}

// archive keeps a copy of the input. Failures are logged and never abort
// the import.
func (s *ImportService) archive(ctx context.Context, kind string, file Upload) {
	if s.uploads == nil {
		return
	}
	info, err := s.uploads.Upload(ctx, kind, file.Filename, contentType(file.Filename), bytes.NewReader(file.Data))
	if err != nil {
		s.logger.Warn("failed to archive upload",
			slog.String("kind", kind),
			slog.String("file", file.Filename),
			slog.Any("error", err),
		)
		return
	}
	s.logger.Debug("upload archived",
		slog.String("kind", kind),
		slog.String("id", info.ID.String()),
		slog.String("path", info.Path),
	)
	s.pruneUploads(ctx, kind)
}

// pruneUploads deletes the oldest archived files of kind beyond the
// retention limit.
func (s *ImportService) pruneUploads(ctx context.Context, kind string) {
	if s.keepUploads <= 0 {
		return
	}
	files, err := s.uploads.List(ctx, kind)
	if err != nil {
		s.logger.Warn("failed to list archived uploads", slog.String("kind", kind), slog.Any("error", err))
		return
	}
	for len(files) > s.keepUploads {
		old := files[0]
		files = files[1:]
		if err := s.uploads.Delete(ctx, kind, old.ID); err != nil {
			s.logger.Warn("failed to delete archived upload",
				slog.String("kind", kind),
				slog.String("id", old.ID.String()),
				slog.Any("error", err),
			)
			continue
		}
		s.logger.Debug("archived upload pruned", slog.String("kind", kind), slog.String("file", old.Name))
	}
}

func (s *ImportService) startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func (s *ImportService) recordLookups(rows []*PolicyRow) {
	for _, row := range rows {
		if row.Outcome != "" {
			s.metrics.TierLookup(string(row.Outcome))
		}
	}
}

func contentType(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv":
		return "text/csv"
	case ".xlsx":
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case ".xls":
		return "application/vnd.ms-excel"
	case ".pdf":
		return "application/pdf"
	}
	return "application/octet-stream"
}
