// Package sniffer identifies uploaded spreadsheet formats and repairs text
// encodings before the parsers see the data.
package sniffer

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

// Format is the container format of an uploaded file.
type Format string

const (
	FormatUnknown Format = ""
	FormatCSV     Format = "csv"
	FormatXLSX    Format = "xlsx"
	FormatXLS     Format = "xls"
	FormatPDF     Format = "pdf"
)

// Encoding names a source text encoding for CSV input.
type Encoding string

const (
	EncodingAuto        Encoding = "auto"
	EncodingUTF8        Encoding = "utf-8"
	EncodingWindows1252 Encoding = "windows-1252"
	EncodingISO88591    Encoding = "iso-8859-1"
)

var (
	ErrEmptyFile           = errors.New("file is empty")
	ErrUnsupportedEncoding = errors.New("unsupported encoding")
)

var (
	magicZip = []byte("PK\x03\x04")
	magicOLE = []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}
	magicPDF = []byte("%PDF")
	utf8BOM  = []byte{0xEF, 0xBB, 0xBF}
)

// FileInfo is the result of sniffing an upload.
type FileInfo struct {
	Format      Format
	Encoding    Encoding // CSV only
	Delimiter   rune     // CSV only
	Fingerprint string   // set by the reader once headers are known
}

// DetectFormat identifies a file by its magic bytes, falling back to the file
// extension. Anything that is not a known binary container is treated as CSV.
func DetectFormat(data []byte, filename string) Format {
	switch {
	case bytes.HasPrefix(data, magicZip):
		return FormatXLSX
	case bytes.HasPrefix(data, magicOLE):
		return FormatXLS
	case bytes.HasPrefix(data, magicPDF):
		return FormatPDF
	}

	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xlsx":
		return FormatXLSX
	case ".xls":
		return FormatXLS
	case ".pdf":
		return FormatPDF
	}
	return FormatCSV
}

// Inspect sniffs format, encoding and, for CSV, the delimiter of the first
// line. delimiter overrides detection when non-zero.
func Inspect(data []byte, filename string, delimiter rune) (*FileInfo, error) {
	if len(data) == 0 {
		return nil, ErrEmptyFile
	}

	info := &FileInfo{Format: DetectFormat(data, filename)}
	if info.Format != FormatCSV {
		return info, nil
	}

	info.Encoding = DetectEncoding(data)
	info.Delimiter = delimiter
	if info.Delimiter == 0 {
		decoded, err := DecodeBytes(data, info.Encoding)
		if err != nil {
			return nil, err
		}
		first, _, _ := bytes.Cut(decoded, []byte("\n"))
		info.Delimiter, _ = DetectDelimiter(string(first))
		if info.Delimiter == 0 {
			info.Delimiter = ';'
		}
	}
	return info, nil
}

// DetectEncoding reports UTF-8 for valid UTF-8 input (with or without BOM)
// and Windows-1252 otherwise.
func DetectEncoding(data []byte) Encoding {
	if utf8.Valid(bytes.TrimPrefix(data, utf8BOM)) {
		return EncodingUTF8
	}
	return EncodingWindows1252
}

// ParseEncoding maps a configuration value onto an Encoding.
func ParseEncoding(name string) (Encoding, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "auto":
		return EncodingAuto, nil
	case "utf-8", "utf8":
		return EncodingUTF8, nil
	case "windows-1252", "cp1252", "win1252":
		return EncodingWindows1252, nil
	case "iso-8859-1", "latin1", "latin-1":
		return EncodingISO88591, nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnsupportedEncoding, name)
}

// DecodeBytes strips a UTF-8 BOM and converts data from enc to UTF-8. With
// EncodingAuto the encoding is detected first.
func DecodeBytes(data []byte, enc Encoding) ([]byte, error) {
	data = bytes.TrimPrefix(data, utf8BOM)
	if enc == EncodingAuto {
		enc = DetectEncoding(data)
	}

	dec := decoderFor(enc)
	if dec == nil {
		if enc == EncodingUTF8 {
			return data, nil
		}
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedEncoding, enc)
	}

	out, _, err := transform.Bytes(dec.NewDecoder(), data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s input: %w", enc, err)
	}
	return out, nil
}

// NormalizeText converts a single cell to UTF-8. Valid UTF-8 is returned
// untouched; otherwise Windows-1252 is tried, then ISO-8859-1, and the raw
// value is kept when neither decodes cleanly.
func NormalizeText(s string) string {
	if utf8.ValidString(s) {
		return s
	}
	for _, enc := range []encoding.Encoding{charmap.Windows1252, charmap.ISO8859_1} {
		out, _, err := transform.String(enc.NewDecoder(), s)
		if err == nil && !strings.ContainsRune(out, utf8.RuneError) {
			return out
		}
	}
	return s
}

func decoderFor(enc Encoding) encoding.Encoding {
	switch enc {
	case EncodingWindows1252:
		return charmap.Windows1252
	case EncodingISO88591:
		return charmap.ISO8859_1
	}
	return nil
}

// DetectDelimiter returns the most frequent of ';', tab, ',' and '|' in line
// together with its count.
func DetectDelimiter(line string) (rune, int) {
	delimiters := []rune{';', '\t', ',', '|'}
	bestDelimiter := rune(0)
	bestCount := 0
	for _, d := range delimiters {
		count := strings.Count(line, string(d))
		if count > bestCount {
			bestCount = count
			bestDelimiter = d
		}
	}
	return bestDelimiter, bestCount
}

// ParseDelimiter maps a configuration value onto a delimiter rune. "auto"
// (or empty) yields 0.
func ParseDelimiter(value string) (rune, error) {
	switch strings.ToLower(value) {
	case "", "auto":
		return 0, nil
	case "tab", `\t`:
		return '\t', nil
	}
	r, size := utf8.DecodeRuneInString(value)
	if size != len(value) || r == utf8.RuneError || r == '"' || r == '\r' || r == '\n' {
		return 0, fmt.Errorf("invalid delimiter %q", value)
	}
	return r, nil
}

// Fingerprint hashes the letters and digits of a header row so a layout can
// be recognized across uploads.
func Fingerprint(headers []string) string {
	var normalized []string
	for _, h := range headers {
		clean := strings.Map(func(r rune) rune {
			if unicode.IsLetter(r) || unicode.IsDigit(r) {
				return unicode.ToLower(r)
			}
			return -1
		}, h)
		if clean != "" {
			normalized = append(normalized, clean)
		}
	}

	hash := sha256.Sum256([]byte(strings.Join(normalized, "|")))
	return hex.EncodeToString(hash[:])
}
