package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/FACorreiaa/seguro-locacao/internal/domain/import/pdftable"
	"github.com/FACorreiaa/seguro-locacao/internal/domain/reference"
)

const kindReference = "reference"

// ErrNoReferenceStore is returned when saving without a configured store.
var ErrNoReferenceStore = errors.New("no reference store configured")

// ImportReferencePDF extracts the reference tiers printed in the PDF at
// path. When debug is not nil the raw page text is dumped to it.
func (s *ImportService) ImportReferencePDF(ctx context.Context, path string, debug io.Writer) (rows []pdftable.RawRow, err error) {
	start := time.Now()
	ctx, span := s.startSpan(ctx, "ImportReferencePDF", attribute.String("file", path))
	defer func() { endSpan(span, err) }()

	if s.uploads != nil {
		if data, readErr := os.ReadFile(path); readErr == nil {
			s.archive(ctx, kindReference, Upload{Filename: filepath.Base(path), Data: data})
		}
	}

	pages, err := s.extractor.ExtractPages(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("failed to extract PDF text: %w", err)
	}

	rows, err = pdftable.ParseDebug(pages, debug)
	if err != nil {
		return nil, err
	}

	s.metrics.ReferenceRowsParsed(len(rows))
	s.metrics.ImportDuration(kindReference, time.Since(start))
	span.SetAttributes(attribute.Int("pages", len(pages)), attribute.Int("rows", len(rows)))

	s.logger.Info("reference PDF parsed",
		slog.String("file", path),
		slog.Int("pages", len(pages)),
		slog.Int("rows", len(rows)),
	)
	return rows, nil
}

// SaveReference replaces the stored reference table with rows.
func (s *ImportService) SaveReference(ctx context.Context, rows []pdftable.RawRow) (*reference.Table, error) {
	if s.store == nil {
		return nil, ErrNoReferenceStore
	}
	t, err := s.store.SaveRows(ctx, pdftable.Rows(rows))
	if err != nil {
		return nil, fmt.Errorf("failed to save reference table: %w", err)
	}
	if n := t.AmbiguousCount(); n > 0 {
		s.logger.Warn("reference table has premiums shared by several categories",
			slog.Int("ambiguous", n),
		)
	}
	return t, nil
}

// RefreshReference imports the PDF at path and saves the result. A PDF that
// yields no rows leaves the stored table untouched.
func (s *ImportService) RefreshReference(ctx context.Context, path string, debug io.Writer) (*reference.Table, error) {
	rows, err := s.ImportReferencePDF(ctx, path, debug)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		s.logger.Warn("reference PDF produced no rows, keeping current table", slog.String("file", path))
		return nil, nil
	}
	return s.SaveReference(ctx, rows)
}
