package service

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/goccy/go-json"
	"github.com/gocarina/gocsv"
)

// ExportDelimiter separates the fields of exported CSV reports.
const ExportDelimiter = ';'

// WriteTenantsJSON writes tenants as an indented JSON array with non-ASCII
// text kept literal.
func WriteTenantsJSON(w io.Writer, tenants []Tenant) error {
	if tenants == nil {
		tenants = []Tenant{}
	}
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(tenants); err != nil {
		return fmt.Errorf("failed to encode tenants: %w", err)
	}
	return nil
}

// ReadTenantsJSON reads a file written by WriteTenantsJSON.
func ReadTenantsJSON(r io.Reader) ([]Tenant, error) {
	var tenants []Tenant
	if err := json.NewDecoder(r).Decode(&tenants); err != nil {
		return nil, fmt.Errorf("failed to decode tenants: %w", err)
	}
	return tenants, nil
}

type tenantCSVRow struct {
	ID               string `csv:"id"`
	Name             string `csv:"segurado_nome"`
	Type             string `csv:"segurado_tipo"`
	Document         string `csv:"segurado_cpf_cnpj"`
	Address          string `csv:"segurado_endereco"`
	District         string `csv:"segurado_bairro"`
	ZipCode          string `csv:"segurado_cep"`
	City             string `csv:"segurado_cidade"`
	State            string `csv:"segurado_uf"`
	RiskAddress      string `csv:"risco_endereco"`
	RiskNumber       string `csv:"risco_numero"`
	RiskDistrict     string `csv:"risco_bairro"`
	RiskZipCode      string `csv:"risco_cep"`
	RiskCity         string `csv:"risco_cidade"`
	RiskState        string `csv:"risco_uf"`
	Fire             string `csv:"coberturas_incendio"`
	FireContents     string `csv:"coberturas_incendio_conteudo"`
	Windstorm        string `csv:"coberturas_vendaval"`
	LossOfRent       string `csv:"coberturas_perda_aluguel"`
	ElectricalDamage string `csv:"coberturas_danos_eletricos"`
	CivilLiability   string `csv:"coberturas_responsabilidade_civil"`
}

// WriteTenantsCSV writes one ';' separated line per tenant, using the
// canonical column names as header.
func WriteTenantsCSV(w io.Writer, tenants []Tenant) error {
	rows := make([]tenantCSVRow, len(tenants))
	for i, t := range tenants {
		rows[i] = tenantCSVRow{
			ID:               t.ID,
			Name:             t.Insured.Name,
			Type:             t.Insured.Type,
			Document:         t.Insured.Document,
			Address:          t.Insured.Address,
			District:         t.Insured.District,
			ZipCode:          t.Insured.ZipCode,
			City:             t.Insured.City,
			State:            t.Insured.State,
			RiskAddress:      t.Risk.Address,
			RiskNumber:       t.Risk.Number,
			RiskDistrict:     t.Risk.District,
			RiskZipCode:      t.Risk.ZipCode,
			RiskCity:         t.Risk.City,
			RiskState:        t.Risk.State,
			Fire:             t.Coverages.Fire,
			FireContents:     t.Coverages.FireContents,
			Windstorm:        t.Coverages.Windstorm,
			LossOfRent:       t.Coverages.LossOfRent,
			ElectricalDamage: t.Coverages.ElectricalDamage,
			CivilLiability:   t.Coverages.CivilLiability,
		}
	}
	return marshalCSV(w, &rows)
}

type pendingCSVRow struct {
	Row     int    `csv:"linha"`
	Missing string `csv:"campos_ausentes"`
}

// WritePendingCSV writes the rows with missing fields, one per line.
func WritePendingCSV(w io.Writer, issues []RowIssue) error {
	rows := make([]pendingCSVRow, len(issues))
	for i, issue := range issues {
		rows[i] = pendingCSVRow{Row: issue.Row, Missing: strings.Join(issue.Missing, ", ")}
	}
	return marshalCSV(w, &rows)
}

func marshalCSV(w io.Writer, rows any) error {
	cw := csv.NewWriter(w)
	cw.Comma = ExportDelimiter
	if err := gocsv.MarshalCSV(rows, gocsv.NewSafeCSVWriter(cw)); err != nil {
		return fmt.Errorf("failed to write CSV: %w", err)
	}
	return nil
}
