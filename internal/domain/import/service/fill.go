package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/FACorreiaa/seguro-locacao/internal/domain/import/parser"
)

const kindFill = "fill"

// ErrEmptyReference means there is no reference table to fill from.
var ErrEmptyReference = errors.New("reference table is empty")

// RowOutcome is the fill result of one workbook row.
type RowOutcome struct {
	Row     int
	Outcome Outcome
	Filled  []string
}

// FillResult is the outcome of FillWorkbook.
type FillResult struct {
	Rows        []RowOutcome
	CellsFilled int
}

// FillWorkbook fills the empty coverage cells of a workbook from the
// reference table and writes the result to out as XLSX. The workbook must
// have a credito_s_multa column.
func (s *ImportService) FillWorkbook(ctx context.Context, file Upload, out io.Writer) (result *FillResult, err error) {
	start := time.Now()
	ctx, span := s.startSpan(ctx, "FillWorkbook", attribute.String("file", file.Filename))
	defer func() { endSpan(span, err) }()

	sheet, err := s.parse(ctx, kindFill, file)
	if err != nil {
		return nil, err
	}
	index, err := s.loadIndex(ctx)
	if err != nil {
		return nil, err
	}
	if index == nil {
		return nil, ErrEmptyReference
	}

	pipeline := NewPipeline(FillProfile(), index)
	m, err := pipeline.MapHeaders(sheet.Headers)
	if err != nil {
		return nil, err
	}

	result = &FillResult{}
	var updates []parser.CellUpdate
	for i, cells := range sheet.Rows {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		row, ok := pipeline.ExtractRow(sheet.RowNumber(i), cells, m)
		if !ok {
			continue
		}
		pipeline.Fill(row)

		outcome := RowOutcome{Row: row.Number, Outcome: row.Outcome}
		for _, key := range row.Filled {
			col, ok := m.Column(key)
			if !ok {
				continue
			}
			updates = append(updates, parser.CellUpdate{Row: i, Col: col, Value: row.Get(key)})
			outcome.Filled = append(outcome.Filled, key)
		}
		result.Rows = append(result.Rows, outcome)
	}

	if err := parser.WriteFilled(out, file.Data, sheet, updates); err != nil {
		return nil, fmt.Errorf("failed to write filled workbook: %w", err)
	}
	result.CellsFilled = len(updates)

	for _, r := range result.Rows {
		s.metrics.TierLookup(string(r.Outcome))
	}
	s.metrics.RowsImported(kindFill, len(result.Rows))
	s.metrics.ImportDuration(kindFill, time.Since(start))
	span.SetAttributes(attribute.Int("cells_filled", result.CellsFilled))

	s.logger.Info("workbook filled",
		slog.String("file", file.Filename),
		slog.Int("rows", len(result.Rows)),
		slog.Int("cells", result.CellsFilled),
		slog.Duration("elapsed", time.Since(start)),
	)
	return result, nil
}
