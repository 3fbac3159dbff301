package reference

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/goccy/go-json"

	"github.com/FACorreiaa/seguro-locacao/pkg/money"
)

var ErrMalformedTable = errors.New("reference table must be a JSON object")

const jsonIndent = "    "

// JSONStore persists a reference table as a flat JSON object keyed by
// canonical premium. Writers are serialized and each save replaces the file
// atomically, so readers never observe a partial table.
type JSONStore struct {
	path   string
	mu     sync.RWMutex
	logger *slog.Logger
}

// NewJSONStore creates a store backed by path.
func NewJSONStore(path string, logger *slog.Logger) *JSONStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &JSONStore{path: path, logger: logger}
}

// Path returns the backing file path.
func (s *JSONStore) Path() string {
	return s.path
}

// Load reads the table. A missing or empty file is an empty table.
func (s *JSONStore) Load(ctx context.Context) (*Table, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	data, err := os.ReadFile(s.path)
	s.mu.RUnlock()

	if errors.Is(err, fs.ErrNotExist) {
		return NewTable(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read reference table: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return NewTable(), nil
	}

	t, err := DecodeTable(data, s.logger)
	if err != nil {
		return nil, err
	}

	s.logger.Debug("reference table loaded",
		slog.String("path", s.path),
		slog.Int("entries", t.Len()),
		slog.Int("ambiguous", t.AmbiguousCount()),
	)
	return t, nil
}

// Save replaces the persisted table with t.
func (s *JSONStore) Save(ctx context.Context, t *Table) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := EncodeTable(t)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := writeFileAtomic(s.path, data); err != nil {
		return fmt.Errorf("failed to write reference table: %w", err)
	}

	s.logger.Info("reference table saved",
		slog.String("path", s.path),
		slog.Int("entries", t.Len()),
		slog.Int("ambiguous", t.AmbiguousCount()),
	)
	return nil
}

// SaveRows builds a table from rows and saves it, superseding the previous one.
func (s *JSONStore) SaveRows(ctx context.Context, rows []Row) (*Table, error) {
	t := TableFromRows(rows)
	if err := s.Save(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o775); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, path)
}

// ============================================================================
// Encoding
// ============================================================================

type entryJSON struct {
	Tipo                  string   `json:"tipo,omitempty"`
	Incendio              *string  `json:"incendio,omitempty"`
	IncendioConteudo      *string  `json:"incendio_conteudo,omitempty"`
	Vendaval              *string  `json:"vendaval,omitempty"`
	PerdaAluguel          *string  `json:"perda_aluguel,omitempty"`
	DanosEletricos        *string  `json:"danos_eletricos,omitempty"`
	ResponsabilidadeCivil *string  `json:"responsabilidade_civil,omitempty"`
	Ambiguous             bool     `json:"ambiguous,omitempty"`
	Categories            []string `json:"categories,omitempty"`
}

func (j *entryJSON) coverageSlot(f CoverageField) **string {
	switch f {
	case Fire:
		return &j.Incendio
	case FireContents:
		return &j.IncendioConteudo
	case Windstorm:
		return &j.Vendaval
	case LossOfRent:
		return &j.PerdaAluguel
	case ElectricalDamage:
		return &j.DanosEletricos
	case CivilLiability:
		return &j.ResponsabilidadeCivil
	default:
		return nil
	}
}

func toEntryJSON(e Entry) entryJSON {
	if e.IsAmbiguous() {
		j := entryJSON{Ambiguous: true}
		for _, c := range e.Categories() {
			j.Categories = append(j.Categories, string(c))
		}
		return j
	}

	row, _ := e.Row()
	j := entryJSON{Tipo: string(row.Category)}
	for _, f := range CoverageFields() {
		if amount, ok := row.Coverage.Get(f); ok {
			text := amount.String()
			*j.coverageSlot(f) = &text
		}
	}
	return j
}

// EncodeTable renders t flat, ordered by premium, indented, with non-ASCII
// text written literally.
func EncodeTable(t *Table) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')

	for i, premium := range t.Premiums() {
		e, _ := t.Get(premium)

		key, err := json.MarshalWithOption(premium.String(), json.DisableHTMLEscape())
		if err != nil {
			return nil, fmt.Errorf("failed to encode premium %s: %w", premium, err)
		}
		value, err := json.MarshalIndentWithOption(toEntryJSON(e), jsonIndent, jsonIndent, json.DisableHTMLEscape())
		if err != nil {
			return nil, fmt.Errorf("failed to encode entry %s: %w", premium, err)
		}

		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteString("\n" + jsonIndent)
		buf.Write(key)
		buf.WriteString(": ")
		buf.Write(value)
	}

	if t.Len() > 0 {
		buf.WriteByte('\n')
	}
	buf.WriteString("}\n")
	return buf.Bytes(), nil
}

// ============================================================================
// Decoding
// ============================================================================

// DecodeTable parses a persisted table. Flat entries and the legacy nested
// layout (category -> premium -> row) are both accepted; premium keys are
// normalized and keys that collide after flattening become ambiguous.
// Structurally malformed entries are skipped.
func DecodeTable(data []byte, logger *slog.Logger) (*Table, error) {
	if logger == nil {
		logger = slog.Default()
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("failed to decode reference table: %w", err)
	}
	top, ok := raw.(map[string]any)
	if !ok {
		return nil, ErrMalformedTable
	}

	d := tableDecoder{table: NewTable(), logger: logger}
	for _, key := range sortedKeys(top) {
		obj, ok := top[key].(map[string]any)
		if !ok {
			d.skip("entry is not an object", key)
			continue
		}

		if premium, err := money.Parse(key); err == nil {
			d.addEntry(premium, obj, "")
			continue
		}

		// Legacy layout: the key is a category label.
		for _, inner := range sortedKeys(obj) {
			rowObj, ok := obj[inner].(map[string]any)
			if !ok {
				d.skip("legacy entry is not an object", key+"/"+inner)
				continue
			}
			premium, err := money.Parse(inner)
			if err != nil {
				d.skip("invalid premium key", key+"/"+inner)
				continue
			}
			d.addEntry(premium, rowObj, Category(key))
		}
	}

	return d.table, nil
}

type tableDecoder struct {
	table  *Table
	logger *slog.Logger
}

func (d *tableDecoder) skip(reason, key string) {
	d.logger.Debug("skipping reference entry",
		slog.String("reason", reason),
		slog.String("key", key),
	)
}

func (d *tableDecoder) addEntry(premium money.Amount, obj map[string]any, outer Category) {
	if truthy(obj["ambiguous"]) {
		var cats []Category
		if list, ok := obj["categories"].([]any); ok {
			for _, item := range list {
				if s, ok := item.(string); ok {
					cats = append(cats, Category(s))
				}
			}
		}
		d.table.Add(premium, Ambiguous(cats...))
		return
	}

	label := firstString(obj, "categoria", "category")
	if label == "" && outer != "" {
		label = string(outer)
	}
	if label == "" {
		label = firstString(obj, "tipo")
	}
	if label == "" {
		d.skip("entry has no category", premium.String())
		return
	}

	row := Row{Category: Category(label), Premium: premium}
	for _, f := range CoverageFields() {
		text := scalarString(obj[f.Key()])
		if text == "" {
			continue
		}
		amount, err := money.Parse(text)
		if err != nil {
			d.logger.Debug("ignoring invalid coverage amount",
				slog.String("premium", premium.String()),
				slog.String("field", f.Key()),
				slog.Any("error", err),
			)
			continue
		}
		row.Coverage = row.Coverage.With(f, amount)
	}

	d.table.Add(premium, Resolved(row))
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func firstString(obj map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := obj[k].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

func scalarString(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case json.Number:
		return val.String()
	default:
		return ""
	}
}

func truthy(v any) bool {
	switch val := v.(type) {
	case bool:
		return val
	case json.Number:
		return val.String() != "0"
	case string:
		return val != "" && val != "0"
	default:
		return false
	}
}
