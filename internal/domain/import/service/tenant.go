package service

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
)

const kindTenants = "tenants"

// Insured is the policyholder block of a tenant.
type Insured struct {
	Name     string `json:"nome"`
	Type     string `json:"tipo"`
	Document string `json:"cpf_cnpj"`
	Address  string `json:"endereco"`
	District string `json:"bairro"`
	ZipCode  string `json:"cep"`
	City     string `json:"cidade"`
	State    string `json:"uf"`
}

// RiskLocation is the insured property.
type RiskLocation struct {
	Address       string `json:"endereco"`
	Number        string `json:"numero"`
	District      string `json:"bairro"`
	ZipCode       string `json:"cep"`
	City          string `json:"cidade"`
	State         string `json:"uf"`
	Questionnaire string `json:"questionario"`
}

// Coverages holds the coverage amounts as canonical decimal strings.
type Coverages struct {
	Fire             string `json:"incendio"`
	FireContents     string `json:"incendio_conteudo"`
	Windstorm        string `json:"vendaval"`
	LossOfRent       string `json:"perda_aluguel"`
	ElectricalDamage string `json:"danos_eletricos"`
	CivilLiability   string `json:"responsabilidade_civil"`
}

// Tenant is one imported locatário.
type Tenant struct {
	ID        string       `json:"id"`
	Insured   Insured      `json:"segurado"`
	Risk      RiskLocation `json:"risco"`
	Coverages Coverages    `json:"coberturas"`
}

// RowIssue lists the required fields a row lacks.
type RowIssue struct {
	Row     int      `json:"row"`
	Missing []string `json:"missing"`
}

// TenantImportResult is the outcome of ImportTenants. Rows with issues are
// still part of Tenants.
type TenantImportResult struct {
	JobID       uuid.UUID
	Fingerprint string
	RowsTotal   int
	RowsFilled  int
	Tenants     []Tenant
	Errors      []RowIssue
}

// ImportTenants reads a tenant spreadsheet, fills empty coverages from the
// reference table and reports the rows with missing data.
func (s *ImportService) ImportTenants(ctx context.Context, file Upload) (result *TenantImportResult, err error) {
	start := time.Now()
	ctx, span := s.startSpan(ctx, "ImportTenants", attribute.String("file", file.Filename))
	defer func() { endSpan(span, err) }()

	sheet, err := s.parse(ctx, kindTenants, file)
	if err != nil {
		return nil, err
	}
	index, err := s.loadIndex(ctx)
	if err != nil {
		return nil, err
	}

	profile := TenantProfile().WithRequired(s.tenantRequired)
	rows, _, err := NewPipeline(profile, index).Process(sheet)
	if err != nil {
		return nil, err
	}

	result = &TenantImportResult{
		JobID:       uuid.New(),
		Fingerprint: sheet.Fingerprint,
		RowsTotal:   len(rows),
		Tenants:     make([]Tenant, 0, len(rows)),
	}
	for _, row := range rows {
		if len(row.Filled) > 0 {
			result.RowsFilled++
		}
		if row.Pending() {
			result.Errors = append(result.Errors, RowIssue{Row: row.Number, Missing: row.Missing})
		}
		result.Tenants = append(result.Tenants, TenantFromRow(row))
	}

	s.recordLookups(rows)
	s.metrics.RowsImported(kindTenants, len(rows))
	s.metrics.RowsPending(kindTenants, len(result.Errors))
	s.metrics.ImportDuration(kindTenants, time.Since(start))
	span.SetAttributes(
		attribute.Int("rows", len(rows)),
		attribute.Int("pending", len(result.Errors)),
	)

	s.logger.Info("tenants imported",
		slog.String("job_id", result.JobID.String()),
		slog.String("file", file.Filename),
		slog.Int("rows", result.RowsTotal),
		slog.Int("filled", result.RowsFilled),
		slog.Int("pending", len(result.Errors)),
		slog.Duration("elapsed", time.Since(start)),
	)
	return result, nil
}

// TenantFromRow groups a tenant row's fields. The id is the id column, else
// the policyholder document, else row_<n>.
func TenantFromRow(row *PolicyRow) Tenant {
	f := row.Get
	return Tenant{
		ID: firstNonEmpty(f("id"), f("segurado_cpf_cnpj"), "row_"+strconv.Itoa(row.Number)),
		Insured: Insured{
			Name:     f("segurado_nome"),
			Type:     f("segurado_tipo"),
			Document: f("segurado_cpf_cnpj"),
			Address:  f("segurado_endereco"),
			District: f("segurado_bairro"),
			ZipCode:  f("segurado_cep"),
			City:     f("segurado_cidade"),
			State:    f("segurado_uf"),
		},
		Risk: RiskLocation{
			Address:       f("risco_endereco"),
			Number:        f("risco_numero"),
			District:      f("risco_bairro"),
			ZipCode:       f("risco_cep"),
			City:          f("risco_cidade"),
			State:         f("risco_uf"),
			Questionnaire: f("risco_questionario"),
		},
		Coverages: Coverages{
			Fire:             f("coberturas_incendio"),
			FireContents:     f("coberturas_incendio_conteudo"),
			Windstorm:        f("coberturas_vendaval"),
			LossOfRent:       f("coberturas_perda_aluguel"),
			ElectricalDamage: f("coberturas_danos_eletricos"),
			CivilLiability:   f("coberturas_responsabilidade_civil"),
		},
	}
}

// Summary is a one-line description of the result.
func (r *TenantImportResult) Summary() string {
	if len(r.Errors) == 0 {
		return fmt.Sprintf("%d tenants imported", len(r.Tenants))
	}
	return fmt.Sprintf("%d tenants imported, %d rows with missing fields", len(r.Tenants), len(r.Errors))
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
