package reference

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/seguro-locacao/pkg/money"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func fullRow(c Category, premium string) Row {
	r := Row{Category: c, Premium: money.MustParse(premium)}
	for i, f := range CoverageFields() {
		r.Coverage = r.Coverage.With(f, money.FromCents(int64(i+1)*1000000))
	}
	return r
}

func TestTableFromRows(t *testing.T) {
	table := TableFromRows([]Row{
		fullRow(ResidentialHouse, "150.00"),
		fullRow(ResidentialApartment, "150,00"),
		fullRow(ResidentialHouse, "200.00"),
		{Premium: money.MustParse("999")},
	})

	assert.Equal(t, 2, table.Len())
	assert.Equal(t, 1, table.AmbiguousCount())

	e, ok := table.Get(money.MustParse("150"))
	require.True(t, ok)
	assert.True(t, e.IsAmbiguous())
	assert.Equal(t, []Category{ResidentialHouse, ResidentialApartment}, e.Categories())

	rows := table.Rows()
	require.Len(t, rows, 1)
	assert.Equal(t, "200.00", rows[0].Premium.String())
}

func TestTable_IndexPlacesMarkers(t *testing.T) {
	table := TableFromRows([]Row{
		fullRow(ResidentialHouse, "150.00"),
		fullRow(ResidentialApartment, "150.00"),
		fullRow(ResidentialHouse, "300.00"),
	})
	table.Add(money.MustParse("50"), Ambiguous())

	ix := table.Index()

	res := ix.Lookup(ResidentialHouse, money.MustParse("120,97"))
	assert.Equal(t, MatchAmbiguous, res.Outcome)
	res = ix.Lookup(ResidentialApartment, money.MustParse("120,96"))
	assert.Equal(t, MatchAmbiguous, res.Outcome)

	got, ok := ix.Match(ResidentialHouse, money.MustParse("200"))
	require.True(t, ok)
	assert.Equal(t, "300.00", got.Premium.String())

	assert.Len(t, ix.Premiums(ResidentialHouse), 2, "marker without categories has no tier slot")
}

func TestEncodeTable(t *testing.T) {
	r := Row{Category: ResidentialHouse, Premium: money.MustParse("150")}
	r.Coverage = r.Coverage.With(Fire, money.MustParse("50000"))

	table := TableFromRows([]Row{r, fullRow(CommercialTradeAndService, "1000.00")})
	table.Add(money.MustParse("20"), Ambiguous(ResidentialApartment))

	data, err := EncodeTable(table)
	require.NoError(t, err)

	text := string(data)
	assert.Contains(t, text, `"tipo": "COMERCIAL: COMÉRCIO E SERVIÇO"`, "non-ASCII kept literally")
	assert.Contains(t, text, `"incendio": "50000.00"`)
	assert.Contains(t, text, `"ambiguous": true`)
	assert.NotContains(t, text, `\u00`)

	first := strings.Index(text, `"20.00"`)
	second := strings.Index(text, `"150.00"`)
	third := strings.Index(text, `"1000.00"`)
	assert.True(t, first < second && second < third, "keys ordered by premium value")

	empty, err := EncodeTable(NewTable())
	require.NoError(t, err)
	assert.Equal(t, "{}\n", string(empty))
}

func TestDecodeTable_Flat(t *testing.T) {
	data := `{
		"150.00": {"categoria": "RESIDENCIAL: CASA", "incendio": "50.000,00", "vendaval": 1200},
		"200":    {"tipo": "RESIDENCIAL: CASA", "incendio": null, "perda_aluguel": ""},
		"300.00": {"tipo": "RESIDENCIAL: CASA", "incendio": "n/a"},
		"abc":    "not an object",
		"400.00": {"incendio": "1"},
		"500.00": {"ambiguous": true}
	}`

	table, err := DecodeTable([]byte(data), discardLogger())
	require.NoError(t, err)

	assert.Equal(t, 4, table.Len())

	e, ok := table.Get(money.MustParse("150"))
	require.True(t, ok)
	r, ok := e.Row()
	require.True(t, ok)
	assert.Equal(t, ResidentialHouse, r.Category)
	fire, ok := r.Coverage.Get(Fire)
	require.True(t, ok)
	assert.Equal(t, "50000.00", fire.String())
	wind, ok := r.Coverage.Get(Windstorm)
	require.True(t, ok)
	assert.Equal(t, "1200.00", wind.String())

	e, _ = table.Get(money.MustParse("200"))
	r, _ = e.Row()
	assert.True(t, r.Coverage.IsEmpty())

	e, _ = table.Get(money.MustParse("300"))
	r, ok = e.Row()
	require.True(t, ok, "bad coverage text does not reject the row")
	_, ok = r.Coverage.Get(Fire)
	assert.False(t, ok)

	_, ok = table.Get(money.MustParse("400"))
	assert.False(t, ok, "entry without category is rejected")

	e, ok = table.Get(money.MustParse("500"))
	require.True(t, ok)
	assert.True(t, e.IsAmbiguous())
	assert.Empty(t, e.Categories())
}

func TestDecodeTable_LegacyNested(t *testing.T) {
	data := `{
		"RESIDENCIAL: CASA": {
			"150,00": {"incendio": "50000.00", "tipo": "ignored"},
			"300.00": {"incendio": "90000.00"}
		},
		"RESIDENCIAL: APARTAMENTO": {
			"150.00": {"incendio": "40000.00"},
			"90.00": {"categoria": "COMERCIAL: COMÉRCIO E SERVIÇO"},
			"bad": {"incendio": "1"}
		}
	}`

	table, err := DecodeTable([]byte(data), discardLogger())
	require.NoError(t, err)

	assert.Equal(t, 3, table.Len())

	e, ok := table.Get(money.MustParse("150"))
	require.True(t, ok)
	assert.True(t, e.IsAmbiguous(), "premium colliding after flattening")
	assert.ElementsMatch(t, []Category{ResidentialHouse, ResidentialApartment}, e.Categories())

	e, _ = table.Get(money.MustParse("300"))
	r, ok := e.Row()
	require.True(t, ok)
	assert.Equal(t, ResidentialHouse, r.Category, "outer key becomes the category")

	e, _ = table.Get(money.MustParse("90"))
	r, ok = e.Row()
	require.True(t, ok)
	assert.Equal(t, CommercialTradeAndService, r.Category, "inner categoria wins over outer key")
}

func TestDecodeTable_Errors(t *testing.T) {
	_, err := DecodeTable([]byte(`[1, 2]`), discardLogger())
	assert.ErrorIs(t, err, ErrMalformedTable)

	_, err = DecodeTable([]byte(`{"150.00":`), discardLogger())
	assert.Error(t, err)
}

func TestJSONStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewJSONStore(filepath.Join(t.TempDir(), "data", "seguro_map.json"), discardLogger())

	table := TableFromRows([]Row{
		fullRow(ResidentialHouse, "150.00"),
		fullRow(ResidentialHouse, "300.00"),
		fullRow(ResidentialApartment, "300.00"),
		fullRow(CommercialOfficeAndClinic, "1234.56"),
	})
	table.Add(money.MustParse("75"), Ambiguous())

	require.NoError(t, store.Save(ctx, table))

	loaded, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, table, loaded)

	again, err := EncodeTable(loaded)
	require.NoError(t, err)
	first, err := os.ReadFile(store.Path())
	require.NoError(t, err)
	assert.Equal(t, string(first), string(again), "re-encoding is byte-stable")
}

func TestJSONStore_MissingAndEmpty(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	missing := NewJSONStore(filepath.Join(dir, "nope.json"), discardLogger())
	table, err := missing.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, table.Len())

	path := filepath.Join(dir, "empty.json")
	require.NoError(t, os.WriteFile(path, []byte("  \n"), 0o644))
	table, err = NewJSONStore(path, discardLogger()).Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, table.Len())
}

func TestJSONStore_SaveRowsSupersedes(t *testing.T) {
	ctx := context.Background()
	store := NewJSONStore(filepath.Join(t.TempDir(), "seguro_map.json"), discardLogger())

	_, err := store.SaveRows(ctx, []Row{fullRow(ResidentialHouse, "100")})
	require.NoError(t, err)

	saved, err := store.SaveRows(ctx, []Row{fullRow(ResidentialApartment, "200")})
	require.NoError(t, err)
	assert.Equal(t, 1, saved.Len())

	loaded, err := store.Load(ctx)
	require.NoError(t, err)
	_, ok := loaded.Get(money.MustParse("100"))
	assert.False(t, ok, "no incremental merge")
}

func TestJSONStore_ConcurrentSaves(t *testing.T) {
	ctx := context.Background()
	store := NewJSONStore(filepath.Join(t.TempDir(), "seguro_map.json"), discardLogger())

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := store.SaveRows(ctx, []Row{fullRow(ResidentialHouse, fmt.Sprintf("%d00", i+1))})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	loaded, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, loaded.Len(), "last writer wins with a complete table")

	entries, err := os.ReadDir(filepath.Dir(store.Path()))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")
}

func TestJSONStore_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	store := NewJSONStore(filepath.Join(t.TempDir(), "seguro_map.json"), discardLogger())
	assert.ErrorIs(t, store.Save(ctx, NewTable()), context.Canceled)
	_, err := store.Load(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
