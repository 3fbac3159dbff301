package reference

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/seguro-locacao/pkg/money"
)

func row(c Category, premium string, fire string) Row {
	r := Row{Category: c, Premium: money.MustParse(premium)}
	if fire != "" {
		r.Coverage = r.Coverage.With(Fire, money.MustParse(fire))
	}
	return r
}

func TestIndex_CeilingMatch(t *testing.T) {
	ix := BuildIndex([]Row{
		row(ResidentialHouse, "300.00", "90000"),
		row(ResidentialHouse, "100.00", "30000"),
		row(ResidentialHouse, "200.00", "60000"),
	})

	tests := []struct {
		name        string
		credit      int64
		wantPremium int64
		wantOK      bool
	}{
		{"below first tier", 5000, 10000, true},
		{"exact first tier", 10000, 10000, true},
		{"between tiers", 15000, 20000, true},
		{"exact last tier", 30000, 30000, true},
		{"above last tier", 30001, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ix.Match(ResidentialHouse, money.FromCents(tt.credit))
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.wantPremium, got.Premium.Cents())
			}
		})
	}
}

func TestIndex_SortsNumerically(t *testing.T) {
	ix := BuildIndex([]Row{
		row(ResidentialApartment, "1000.00", ""),
		row(ResidentialApartment, "150.00", ""),
		row(ResidentialApartment, "90.00", ""),
	})

	premiums := ix.Premiums(ResidentialApartment)
	require.Len(t, premiums, 3)
	assert.Equal(t, "90.00", premiums[0].String())
	assert.Equal(t, "150.00", premiums[1].String())
	assert.Equal(t, "1000.00", premiums[2].String())

	got, ok := ix.Match(ResidentialApartment, money.MustParse("200,00"))
	require.True(t, ok)
	assert.Equal(t, "1000.00", got.Premium.String())
}

func TestIndex_AbsentCategory(t *testing.T) {
	ix := BuildIndex([]Row{row(ResidentialHouse, "100.00", "")})

	res := ix.Lookup(CommercialTradeAndService, money.FromCents(100))
	assert.Equal(t, MatchNoCategory, res.Outcome)
	assert.False(t, res.Resolved())

	empty := BuildIndex(nil)
	_, ok := empty.Match(ResidentialHouse, money.FromCents(1))
	assert.False(t, ok)
}

func TestIndex_AmbiguitySuppression(t *testing.T) {
	ix := BuildIndex([]Row{
		row(ResidentialHouse, "100.00", "30000"),
		row(ResidentialHouse, "100.00", "35000"),
		row(ResidentialHouse, "200.00", "60000"),
		row(ResidentialApartment, "100.00", "20000"),
	})

	premiums := ix.Premiums(ResidentialHouse)
	require.Len(t, premiums, 2, "ambiguous premium stays in the tier list once")
	assert.Equal(t, int64(10000), premiums[0].Cents())

	for _, credit := range []string{"1,00", "99,97", "100,00"} {
		res := ix.Lookup(ResidentialHouse, money.MustParse(credit))
		assert.Equal(t, MatchAmbiguous, res.Outcome, credit)
		assert.Equal(t, "100.00", res.Premium.String())

		_, ok := ix.Match(ResidentialHouse, money.MustParse(credit))
		assert.False(t, ok, credit)
	}

	got, ok := ix.Match(ResidentialHouse, money.MustParse("150,00"))
	require.True(t, ok)
	assert.Equal(t, "200.00", got.Premium.String())

	other, ok := ix.Match(ResidentialApartment, money.MustParse("100,00"))
	require.True(t, ok, "same premium in another category is unaffected")
	fire, _ := other.Coverage.Get(Fire)
	assert.Equal(t, "20000.00", fire.String())
}

func TestIndex_ThirdDuplicateStaysAmbiguous(t *testing.T) {
	ix := BuildIndex([]Row{
		row(ResidentialHouse, "100.00", "1"),
		row(ResidentialHouse, "100.00", "2"),
		row(ResidentialHouse, "100.00", "3"),
	})

	e, ok := ix.Entry(ResidentialHouse, money.MustParse("100"))
	require.True(t, ok)
	assert.True(t, e.IsAmbiguous())
	assert.Equal(t, []Category{ResidentialHouse}, e.Categories())
}

func TestIndex_SkipsRowsWithoutCategory(t *testing.T) {
	ix := BuildIndex([]Row{{Premium: money.MustParse("10")}})
	assert.Empty(t, ix.Categories())
}

func TestMatchOutcome_String(t *testing.T) {
	assert.Equal(t, "resolved", MatchResolved.String())
	assert.Equal(t, "no_category", MatchNoCategory.String())
	assert.Equal(t, "above_tiers", MatchAboveTiers.String())
	assert.Equal(t, "ambiguous", MatchAmbiguous.String())
}
