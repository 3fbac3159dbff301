package service

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleTenants() []Tenant {
	return []Tenant{
		{
			ID:        "123.456.789-09",
			Insured:   Insured{Name: "João Souza", Document: "123.456.789-09", City: "São Paulo"},
			Risk:      RiskLocation{Address: "Rua A", City: "São Paulo"},
			Coverages: Coverages{Fire: "50000.00"},
		},
		{
			ID:      "row_3",
			Insured: Insured{Name: "Loja X", Document: "11.222.333/0001-81"},
		},
	}
}

func TestWriteTenantsJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteTenantsJSON(&buf, sampleTenants()))

	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "[\n    {"), "indented with four spaces")
	assert.Contains(t, out, `"nome": "João Souza"`, "non-ASCII kept literal")
	assert.Contains(t, out, `"incendio": "50000.00"`)

	back, err := ReadTenantsJSON(&buf)
	require.NoError(t, err)
	assert.Equal(t, sampleTenants(), back)
}

func TestWriteTenantsJSON_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteTenantsJSON(&buf, nil))
	assert.Equal(t, "[]\n", buf.String())
}

func TestWriteTenantsCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteTenantsCSV(&buf, sampleTenants()))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "id;segurado_nome;segurado_tipo;segurado_cpf_cnpj;"))
	assert.True(t, strings.HasSuffix(lines[0], ";coberturas_responsabilidade_civil"))
	assert.True(t, strings.HasPrefix(lines[1], "123.456.789-09;João Souza;;123.456.789-09;"))
	assert.Contains(t, lines[1], ";50000.00;")
}

func TestWritePendingCSV(t *testing.T) {
	var buf bytes.Buffer
	issues := []RowIssue{
		{Row: 5, Missing: []string{"segurado_cpf_cnpj", "risco_uf"}},
		{Row: 9, Missing: []string{"segurado_nome"}},
	}
	require.NoError(t, WritePendingCSV(&buf, issues))

	assert.Equal(t, "linha;campos_ausentes\n5;segurado_cpf_cnpj, risco_uf\n9;segurado_nome\n", buf.String())
}

func TestTenantImportResult_Summary(t *testing.T) {
	r := &TenantImportResult{Tenants: sampleTenants()}
	assert.Equal(t, "2 tenants imported", r.Summary())

	r.Errors = []RowIssue{{Row: 3}}
	assert.Equal(t, "2 tenants imported, 1 rows with missing fields", r.Summary())
}
