package service

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/seguro-locacao/internal/domain/import/header"
	"github.com/FACorreiaa/seguro-locacao/internal/domain/import/parser"
	"github.com/FACorreiaa/seguro-locacao/internal/domain/reference"
	"github.com/FACorreiaa/seguro-locacao/pkg/money"
)

func houseRow(premium, fire string) reference.Row {
	return reference.Row{
		Category: reference.ResidentialHouse,
		Premium:  money.MustParse(premium),
		Coverage: reference.Coverage{}.
			With(reference.Fire, money.MustParse(fire)).
			With(reference.LossOfRent, money.MustParse("3000.00")),
	}
}

func TestPipeline_MapHeaders(t *testing.T) {
	p := NewPipeline(TenantProfile(), nil)

	m, err := p.MapHeaders([]string{"Inquilino Nome", "Inquilino Pessoa", "Inquilino Doc", "Endereço", "Bairro", "CEP", "Cidade", "Estado"})
	require.NoError(t, err)
	col, ok := m.Column("segurado_endereco")
	require.True(t, ok)
	assert.Equal(t, 3, col)

	_, err = p.MapHeaders([]string{"segurado_nome"})
	var missing *header.MissingRequiredColumnsError
	require.True(t, errors.As(err, &missing))
	assert.Contains(t, missing.Missing, "segurado_cpf_cnpj")
	assert.NotContains(t, missing.Missing, "segurado_nome")
}

func TestPipeline_ExtractRow(t *testing.T) {
	p := NewPipeline(TenantProfile(), nil)
	m := header.NewResolver(header.TenantAliases()).Map([]string{"segurado_nome", "segurado_endereco", "risco_endereco", "segurado_cidade"})

	t.Run("trims and repairs legacy text", func(t *testing.T) {
		row, ok := p.ExtractRow(2, []string{"  Jo\xe3o ", "Rua A", "", "S\xe3o Paulo"}, m)
		require.True(t, ok)
		assert.Equal(t, "João", row.Get("segurado_nome"))
		assert.Equal(t, "São Paulo", row.Get("segurado_cidade"))
		assert.Equal(t, 2, row.Number)
	})

	t.Run("risk address falls back to the insured address", func(t *testing.T) {
		row, ok := p.ExtractRow(3, []string{"Ana", "Rua B", "", "Recife"}, m)
		require.True(t, ok)
		assert.Equal(t, "Rua B", row.Get("risco_endereco"))
		assert.Equal(t, "Recife", row.Get("risco_cidade"), "fallback applies to unmapped risk fields")
	})

	t.Run("explicit risk address is kept", func(t *testing.T) {
		row, ok := p.ExtractRow(4, []string{"Ana", "Rua B", "Rua C", ""}, m)
		require.True(t, ok)
		assert.Equal(t, "Rua C", row.Get("risco_endereco"))
	})

	t.Run("short row", func(t *testing.T) {
		row, ok := p.ExtractRow(5, []string{"Ana"}, m)
		require.True(t, ok)
		assert.Equal(t, "", row.Get("segurado_cidade"))
	})

	t.Run("blank row is skipped", func(t *testing.T) {
		_, ok := p.ExtractRow(6, []string{" ", "", "\t", ""}, m)
		assert.False(t, ok)
	})
}

func TestPipeline_ExtractRowNormalizers(t *testing.T) {
	p := NewPipeline(PolicyProfile(), nil)
	m := header.NewResolver(header.PolicyAliases()).Map([]string{"CPF", "Data", "Endereço"})

	row, ok := p.ExtractRow(2, []string{"529.982.247-25", "15/01/2024", "Rua A, 10"}, m)
	require.True(t, ok)
	assert.Equal(t, "52998224725", row.Get("cpf_cnpj_locatario"))
	assert.Equal(t, "2024-01-15", row.Get("data_apolice"))

	row, ok = p.ExtractRow(3, []string{"", "31/02/2024", ""}, m)
	require.True(t, ok, "a row with only an invalid date is not blank")
	assert.Equal(t, "", row.Get("data_apolice"))
	assert.Equal(t, []string{"cpf_cnpj_locatario", "data_apolice"}, p.Validate(row))
}

func TestPipeline_Fill(t *testing.T) {
	rows := []reference.Row{
		houseRow("150.00", "50000.00"),
		houseRow("300.00", "90000.00"),
		houseRow("400.00", "1.00"),
		houseRow("400.00", "2.00"),
	}
	index := reference.BuildIndex(rows)

	tests := []struct {
		name     string
		credit   string
		fire     string
		want     Outcome
		wantFire string
	}{
		{"resolved to ceiling tier", "120,97", "", "resolved", "50000.00"},
		{"credit just above a tier", "150.97", "", "resolved", "90000.00"},
		{"existing value kept", "120,97", "12345", "resolved", "12345"},
		{"fraction is not a category", "120,50", "", OutcomeUncategorized, ""},
		{"category without tiers", "120,96", "", "no_category", ""},
		{"above top tier", "1.000,97", "", "above_tiers", ""},
		{"ambiguous tier", "350,97", "", "ambiguous", ""},
		{"credit missing", "", "", OutcomeNoCredit, ""},
		{"credit unreadable", "abc", "", OutcomeInvalidCredit, ""},
	}

	p := NewPipeline(TenantProfile(), index)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			row := &PolicyRow{Number: 2, Fields: map[string]string{
				CreditField:           tt.credit,
				"coberturas_incendio": tt.fire,
			}}
			assert.Equal(t, tt.want, p.Fill(row))
			assert.Equal(t, tt.wantFire, row.Get("coberturas_incendio"))
		})
	}
}

func TestPipeline_FillRecordsFilledFields(t *testing.T) {
	p := NewPipeline(TenantProfile(), reference.BuildIndex([]reference.Row{houseRow("150.00", "50000.00")}))
	row := &PolicyRow{Fields: map[string]string{
		CreditField:                "100,97",
		"coberturas_perda_aluguel": "10",
	}}

	p.Fill(row)
	assert.Equal(t, []string{"coberturas_incendio"}, row.Filled)
	assert.Equal(t, "10", row.Get("coberturas_perda_aluguel"))
	assert.Equal(t, "", row.Get("coberturas_vendaval"), "coverages absent from the tier stay empty")
}

func TestPipeline_FillWithoutIndex(t *testing.T) {
	p := NewPipeline(TenantProfile(), nil)
	row := &PolicyRow{Fields: map[string]string{CreditField: "120,97"}}
	assert.Equal(t, OutcomeNoReference, p.Fill(row))
	assert.Empty(t, row.Filled)
}

func TestPipeline_Validate(t *testing.T) {
	p := NewPipeline(TenantProfile(), nil)

	complete := map[string]string{}
	for _, f := range tenantRequired {
		complete[f] = "x"
	}
	complete["segurado_numero"] = "10"
	row := &PolicyRow{Fields: complete}
	assert.Empty(t, p.Validate(row))
	assert.False(t, row.Pending())

	row = &PolicyRow{Fields: map[string]string{"segurado_nome": "Ana", "risco_numero": "5"}}
	missing := p.Validate(row)
	assert.True(t, row.Pending())
	assert.Equal(t, []string{
		"segurado_tipo", "segurado_cpf_cnpj", "segurado_endereco", "segurado_bairro",
		"segurado_cep", "segurado_cidade", "segurado_uf",
		"risco_endereco", "risco_bairro", "risco_cep", "risco_cidade", "risco_uf",
	}, missing)
}

func TestPipeline_WithRequired(t *testing.T) {
	p := NewPipeline(TenantProfile().WithRequired([]string{"segurado_nome"}), nil)

	_, err := p.MapHeaders([]string{"Nome do Inquilino", "segurado_nome"})
	require.NoError(t, err)

	assert.Equal(t, tenantRequired, TenantProfile().WithRequired(nil).RequiredColumns)
}

func TestPipeline_Process(t *testing.T) {
	sheet := &parser.Sheet{
		Headers: []string{"credito_s_multa", "incendio"},
		Rows: [][]string{
			{"120,97", ""},
			{"", ""},
			{"120,50", ""},
		},
	}

	p := NewPipeline(FillProfile(), reference.BuildIndex([]reference.Row{houseRow("150.00", "50000.00")}))
	rows, m, err := p.Process(sheet)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.True(t, m.Has("incendio"))

	assert.Equal(t, 2, rows[0].Number)
	assert.Equal(t, "50000.00", rows[0].Get("incendio"))
	assert.Equal(t, 4, rows[1].Number)
	assert.Equal(t, OutcomeUncategorized, rows[1].Outcome)

	_, _, err = p.Process(&parser.Sheet{Headers: []string{"incendio"}})
	assert.Error(t, err)
}
