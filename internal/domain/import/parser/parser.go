// Package parser reads spreadsheet uploads (CSV, XLSX, legacy XLS) into a
// header row plus data rows, writes filled workbooks, and extracts page text
// from PDF documents.
package parser

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/FACorreiaa/seguro-locacao/internal/domain/import/sniffer"
)

var (
	ErrNoHeaderRow       = errors.New("spreadsheet has no header row")
	ErrUnsupportedFormat = errors.New("unsupported spreadsheet format")
	ErrNoSheet           = errors.New("no suitable sheet found")
)

// Sheet is one worksheet: row 1 holds the headers, data starts at row 2.
type Sheet struct {
	Name        string
	Format      sniffer.Format
	Headers     []string
	Rows        [][]string
	Fingerprint string

	// Lines holds the 1-based source line of each data row when the reader
	// skips blank lines (CSV). Workbook readers keep blank rows and leave it
	// nil.
	Lines []int
}

// RowNumber returns the 1-based spreadsheet row of data row i.
func (s *Sheet) RowNumber(i int) int {
	if i >= 0 && i < len(s.Lines) {
		return s.Lines[i]
	}
	return i + 2
}

// Cell returns the value at data row i, column col, or "" when the row is
// shorter than col.
func (s *Sheet) Cell(i, col int) string {
	if i < 0 || i >= len(s.Rows) || col < 0 || col >= len(s.Rows[i]) {
		return ""
	}
	return s.Rows[i][col]
}

// ParserConfig configures spreadsheet reading.
type ParserConfig struct {
	Delimiter rune             // CSV delimiter, 0 = detect from the header line
	Encoding  sniffer.Encoding // CSV source encoding
	SheetName string           // XLSX/XLS sheet, "" = active sheet
}

// DefaultConfig returns the configuration of the exports produced by the
// property management systems: ';' delimited, Windows-1252 or UTF-8.
func DefaultConfig() ParserConfig {
	return ParserConfig{
		Delimiter: ';',
		Encoding:  sniffer.EncodingAuto,
	}
}

// Parser reads spreadsheets of any supported format.
type Parser struct {
	config ParserConfig
}

// NewParser creates a parser with the given configuration.
func NewParser(config ParserConfig) *Parser {
	if config.Encoding == "" {
		config.Encoding = sniffer.EncodingAuto
	}
	return &Parser{config: config}
}

// Parse sniffs the format of data and reads its first (or configured) sheet.
func (p *Parser) Parse(data []byte, filename string) (*Sheet, error) {
	info, err := sniffer.Inspect(data, filename, p.config.Delimiter)
	if err != nil {
		return nil, err
	}

	var sheet *Sheet
	switch info.Format {
	case sniffer.FormatCSV:
		sheet, err = p.parseCSV(data, info.Delimiter)
	case sniffer.FormatXLSX:
		sheet, err = p.ParseExcel(bytes.NewReader(data))
	case sniffer.FormatXLS:
		sheet, err = p.ParseXLS(bytes.NewReader(data))
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, info.Format)
	}
	if err != nil {
		return nil, err
	}
	return sheet, nil
}

// ParseCSV reads CSV text. The encoding is converted to UTF-8 first.
func (p *Parser) ParseCSV(r io.Reader) (*Sheet, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV: %w", err)
	}
	delimiter := p.config.Delimiter
	if delimiter == 0 {
		info, err := sniffer.Inspect(data, "", 0)
		if err != nil {
			return nil, err
		}
		delimiter = info.Delimiter
	}
	return p.parseCSV(data, delimiter)
}

func (p *Parser) parseCSV(data []byte, delimiter rune) (*Sheet, error) {
	decoded, err := sniffer.DecodeBytes(data, p.config.Encoding)
	if err != nil {
		return nil, err
	}

	reader := csv.NewReader(bytes.NewReader(decoded))
	reader.Comma = delimiter
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1

	var (
		records [][]string
		lines   []int
	)
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse CSV: %w", err)
		}
		line, _ := reader.FieldPos(0)
		records = append(records, record)
		lines = append(lines, line)
	}
	return newSheet("", sniffer.FormatCSV, records, lines)
}

// newSheet splits raw records into headers and data rows, trimming the
// header cells and stripping a stray BOM from the first one. lines, when
// given, holds the source line of every record.
func newSheet(name string, format sniffer.Format, records [][]string, lines []int) (*Sheet, error) {
	if len(records) == 0 || isBlank(records[0]) {
		return nil, ErrNoHeaderRow
	}

	headers := make([]string, len(records[0]))
	for i, h := range records[0] {
		headers[i] = strings.TrimSpace(h)
	}
	headers[0] = strings.TrimPrefix(headers[0], "\ufeff")

	sheet := &Sheet{
		Name:        name,
		Format:      format,
		Headers:     headers,
		Rows:        records[1:],
		Fingerprint: sniffer.Fingerprint(headers),
	}
	if len(lines) == len(records) {
		sheet.Lines = lines[1:]
	}
	return sheet, nil
}

func isBlank(record []string) bool {
	for _, cell := range record {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
