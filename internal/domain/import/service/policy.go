package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"go.opentelemetry.io/otel/attribute"

	"github.com/FACorreiaa/seguro-locacao/internal/domain/import/normalizer"
)

const kindPolicies = "policies"

// MsgPolicyIncomplete is reported for policy rows without a document or a
// valid policy date.
const MsgPolicyIncomplete = "CPF/CNPJ ou data da apólice ausente"

// PolicyRecord is one imported policy, ready to be stored or rendered.
type PolicyRecord struct {
	AgencyID int64  `json:"imobiliaria_id"`
	Document string `json:"cpf_cnpj_locatario"`
	Name     string `json:"segurado_nome,omitempty"`
	Address  string `json:"endereco"`
	// Date is yyyy-mm-dd.
	Date string `json:"data_apolice"`
	Hash string `json:"hash_apolice"`
	// ValidDocument reports whether the CPF/CNPJ check digits are correct.
	// Invalid documents are still imported.
	ValidDocument bool              `json:"documento_valido"`
	Fields        map[string]string `json:"-"`
}

// DateBR returns the policy date as dd/mm/yyyy.
func (p PolicyRecord) DateBR() string {
	return normalizer.FormatDateBR(p.Date)
}

// PolicyHash identifies a policy by agency, document, date and address.
func PolicyHash(agencyID int64, document, date, address string) string {
	sum := sha256.Sum256([]byte(strconv.FormatInt(agencyID, 10) + "|" + document + "|" + date + "|" + address))
	return hex.EncodeToString(sum[:])
}

// PolicySink receives imported policies. Persistence and document rendering
// live behind it.
type PolicySink interface {
	Put(ctx context.Context, record PolicyRecord) error
}

// JSONLinesSink writes each policy as one JSON line and drops repeated
// hashes.
type JSONLinesSink struct {
	mu   sync.Mutex
	enc  *json.Encoder
	seen map[string]bool
}

// NewJSONLinesSink creates a sink writing to w.
func NewJSONLinesSink(w io.Writer) *JSONLinesSink {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return &JSONLinesSink{enc: enc, seen: make(map[string]bool)}
}

// Put writes record unless a policy with the same hash was already written.
func (s *JSONLinesSink) Put(ctx context.Context, record PolicyRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.seen[record.Hash] {
		return nil
	}
	if err := s.enc.Encode(record); err != nil {
		return fmt.Errorf("failed to write policy: %w", err)
	}
	s.seen[record.Hash] = true
	return nil
}

// PolicyError is a policy row that was not imported.
type PolicyError struct {
	Row     int    `json:"row"`
	Message string `json:"message"`
}

// PolicyImportResult is the outcome of ImportPolicies.
type PolicyImportResult struct {
	Imported int
	Errors   []PolicyError
}

// ImportPolicies reads a policy spreadsheet for an agency and hands every
// complete row to sink. Rows without a document or a valid date are
// reported and skipped.
func (s *ImportService) ImportPolicies(ctx context.Context, file Upload, agencyID int64, sink PolicySink) (result *PolicyImportResult, err error) {
	start := time.Now()
	ctx, span := s.startSpan(ctx, "ImportPolicies",
		attribute.String("file", file.Filename),
		attribute.Int64("agency_id", agencyID),
	)
	defer func() { endSpan(span, err) }()

	if sink == nil {
		return nil, fmt.Errorf("policy sink is required")
	}

	sheet, err := s.parse(ctx, kindPolicies, file)
	if err != nil {
		return nil, err
	}

	pipeline := NewPipeline(PolicyProfile(), nil)
	rows, _, err := pipeline.Process(sheet)
	if err != nil {
		return nil, err
	}

	result = &PolicyImportResult{}
	for _, row := range rows {
		if row.Pending() {
			result.Errors = append(result.Errors, PolicyError{Row: row.Number, Message: MsgPolicyIncomplete})
			continue
		}

		record := PolicyRecord{
			AgencyID:      agencyID,
			Document:      row.Get("cpf_cnpj_locatario"),
			Name:          row.Get("segurado_nome"),
			Address:       row.Get("endereco"),
			Date:          row.Get("data_apolice"),
			ValidDocument: normalizer.ValidDocument(row.Get("cpf_cnpj_locatario")),
			Fields:        row.Fields,
		}
		record.Hash = PolicyHash(agencyID, record.Document, record.Date, record.Address)

		if !record.ValidDocument {
			s.logger.Warn("policy document has invalid check digits",
				slog.Int("row", row.Number),
				slog.String("kind", string(normalizer.ClassifyDocument(record.Document))),
			)
		}
		if err := sink.Put(ctx, record); err != nil {
			return nil, fmt.Errorf("failed to store policy from row %d: %w", row.Number, err)
		}
		result.Imported++
	}

	s.metrics.RowsImported(kindPolicies, result.Imported)
	s.metrics.RowsPending(kindPolicies, len(result.Errors))
	s.metrics.ImportDuration(kindPolicies, time.Since(start))
	span.SetAttributes(attribute.Int("imported", result.Imported))

	s.logger.Info("policies imported",
		slog.String("file", file.Filename),
		slog.Int64("agency_id", agencyID),
		slog.Int("imported", result.Imported),
		slog.Int("errors", len(result.Errors)),
	)
	return result, nil
}
