package service

import (
	"github.com/FACorreiaa/seguro-locacao/internal/domain/import/header"
	"github.com/FACorreiaa/seguro-locacao/internal/domain/import/normalizer"
	"github.com/FACorreiaa/seguro-locacao/internal/domain/reference"
)

// CreditField is the column holding the insured credit of a row.
const CreditField = "credito_s_multa"

// FieldFallback copies Fallback into Field when Field is empty.
type FieldFallback struct {
	Field    string
	Fallback string
}

// Profile describes one kind of spreadsheet: how its headers are named,
// which fields it needs and which coverage columns can be filled.
type Profile struct {
	Name    string
	Aliases header.AliasTable

	// RequiredColumns must all be present in the header row, otherwise the
	// whole file is rejected.
	RequiredColumns []string
	// RequiredFields must be non-empty on each row, otherwise the row is
	// reported as pending.
	RequiredFields []string

	RiskFallbacks  []FieldFallback
	CreditField    string
	CoverageFields map[reference.CoverageField]string
	Normalizers    map[string]func(string) string
}

var tenantRequired = []string{
	"segurado_nome",
	"segurado_tipo",
	"segurado_cpf_cnpj",
	"segurado_endereco",
	"segurado_bairro",
	"segurado_cep",
	"segurado_cidade",
	"segurado_uf",
}

// TenantProfile is the locatário spreadsheet exported by the property
// management systems.
func TenantProfile() Profile {
	coverage := make(map[reference.CoverageField]string)
	for _, f := range reference.CoverageFields() {
		coverage[f] = "coberturas_" + f.Key()
	}

	return Profile{
		Name:            "tenants",
		Aliases:         header.TenantAliases(),
		RequiredColumns: append([]string(nil), tenantRequired...),
		RequiredFields:  append([]string(nil), tenantRequired...),
		RiskFallbacks: []FieldFallback{
			{Field: "risco_endereco", Fallback: "segurado_endereco"},
			{Field: "risco_numero", Fallback: "segurado_numero"},
			{Field: "risco_bairro", Fallback: "segurado_bairro"},
			{Field: "risco_cep", Fallback: "segurado_cep"},
			{Field: "risco_cidade", Fallback: "segurado_cidade"},
			{Field: "risco_uf", Fallback: "segurado_uf"},
		},
		CreditField:    CreditField,
		CoverageFields: coverage,
	}
}

// PolicyProfile is the apólice spreadsheet. Documents are reduced to digits
// and dates to yyyy-mm-dd while the row is read.
func PolicyProfile() Profile {
	return Profile{
		Name:           "policies",
		Aliases:        header.PolicyAliases(),
		RequiredFields: []string{"cpf_cnpj_locatario", "data_apolice"},
		Normalizers: map[string]func(string) string{
			"cpf_cnpj_locatario": normalizer.DocumentNumber,
			"data_apolice":       normalizer.NormalizeDate,
		},
	}
}

// FillProfile is the workbook processed in place: the credit column is
// mandatory and the coverage columns carry their bare names.
func FillProfile() Profile {
	coverage := make(map[reference.CoverageField]string)
	for _, f := range reference.CoverageFields() {
		coverage[f] = f.Key()
	}

	return Profile{
		Name:            "fill",
		RequiredColumns: []string{CreditField},
		CreditField:     CreditField,
		CoverageFields:  coverage,
	}
}

// WithRequired returns a copy of p whose required columns and row fields are
// replaced by fields. An empty list keeps the profile unchanged.
func (p Profile) WithRequired(fields []string) Profile {
	if len(fields) == 0 {
		return p
	}
	p.RequiredColumns = append([]string(nil), fields...)
	p.RequiredFields = append([]string(nil), fields...)
	return p
}
