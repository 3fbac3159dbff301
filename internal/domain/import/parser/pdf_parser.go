package parser

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"github.com/ledongthuc/pdf"
)

// ErrUnknownExtractor is returned for an unrecognized extractor name.
var ErrUnknownExtractor = errors.New("unknown PDF text extractor")

const (
	ExtractorPdfToText = "pdftotext"
	ExtractorNative    = "native"
)

// PDFTextExtractor returns the plain text of every page of a PDF, in page
// order. Pages without a text layer yield "".
type PDFTextExtractor interface {
	ExtractPages(ctx context.Context, path string) ([]string, error)
}

// NewPDFTextExtractor returns the extractor selected by name.
func NewPDFTextExtractor(name, pdftotextPath string, logger *slog.Logger) (PDFTextExtractor, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", ExtractorPdfToText:
		return NewPdfToTextExtractor(pdftotextPath, logger), nil
	case ExtractorNative:
		return NativePDFExtractor{}, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownExtractor, name)
}

// CommandRunner runs an external command. Tests substitute it.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) (stdout, stderr []byte, err error)
}

type execRunner struct {
	logger *slog.Logger
}

func (r execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	start := time.Now()

	cmd := exec.CommandContext(ctx, name, args...)
	var out, errb bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &errb

	err := cmd.Run()
	if err != nil {
		r.logger.Error("exec failed",
			slog.String("cmd", name),
			slog.Int64("duration_ms", time.Since(start).Milliseconds()),
			slog.String("stderr", truncate(errb.String(), 8<<10)),
			slog.Any("error", err),
		)
	} else {
		r.logger.Debug("exec ok",
			slog.String("cmd", name),
			slog.Int64("duration_ms", time.Since(start).Milliseconds()),
			slog.Int("stdout_bytes", out.Len()),
		)
	}
	return out.Bytes(), errb.Bytes(), err
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "...(truncated)"
}

// PdfToTextExtractor shells out to poppler's pdftotext in layout mode.
type PdfToTextExtractor struct {
	binary string
	runner CommandRunner
}

// NewPdfToTextExtractor creates an extractor running binary (default
// "pdftotext").
func NewPdfToTextExtractor(binary string, logger *slog.Logger) *PdfToTextExtractor {
	if binary == "" {
		binary = "pdftotext"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PdfToTextExtractor{binary: binary, runner: execRunner{logger: logger}}
}

// WithRunner replaces the command runner.
func (e *PdfToTextExtractor) WithRunner(runner CommandRunner) *PdfToTextExtractor {
	e.runner = runner
	return e
}

// ExtractPages runs pdftotext -layout and splits its output on form feeds.
func (e *PdfToTextExtractor) ExtractPages(ctx context.Context, path string) ([]string, error) {
	out, stderr, err := e.runner.Run(ctx, e.binary, "-layout", "-enc", "UTF-8", "-eol", "unix", path, "-")
	if err != nil {
		return nil, fmt.Errorf("failed to extract PDF text: %w: %s", err, strings.TrimSpace(string(stderr)))
	}
	return splitPages(string(out)), nil
}

// splitPages splits form-feed separated text. pdftotext terminates every page
// with a form feed, so a trailing empty segment is dropped.
func splitPages(text string) []string {
	pages := strings.Split(text, "\f")
	if len(pages) > 1 && strings.TrimSpace(pages[len(pages)-1]) == "" {
		pages = pages[:len(pages)-1]
	}
	return pages
}

// NativePDFExtractor reads the text layer in-process.
type NativePDFExtractor struct{}

// ExtractPages returns the plain text of each page.
func (NativePDFExtractor) ExtractPages(ctx context.Context, path string) ([]string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}
	defer f.Close()

	pages := make([]string, 0, r.NumPage())
	for i := 1; i <= r.NumPage(); i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page := r.Page(i)
		if page.V.IsNull() {
			pages = append(pages, "")
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("failed to read page %d: %w", i, err)
		}
		pages = append(pages, text)
	}
	return pages, nil
}
