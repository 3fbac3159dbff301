package reference

import "github.com/FACorreiaa/seguro-locacao/pkg/money"

// CoverageField identifies one of the fixed coverages of a reference tier.
type CoverageField int

const (
	Fire CoverageField = iota
	FireContents
	Windstorm
	LossOfRent
	ElectricalDamage
	CivilLiability

	numCoverageFields
)

var coverageKeys = [numCoverageFields]string{
	Fire:             "incendio",
	FireContents:     "incendio_conteudo",
	Windstorm:        "vendaval",
	LossOfRent:       "perda_aluguel",
	ElectricalDamage: "danos_eletricos",
	CivilLiability:   "responsabilidade_civil",
}

// CoverageFields returns every coverage field in table order.
func CoverageFields() []CoverageField {
	fields := make([]CoverageField, numCoverageFields)
	for i := range fields {
		fields[i] = CoverageField(i)
	}
	return fields
}

// CoverageFieldByKey resolves a persisted key such as "vendaval".
func CoverageFieldByKey(key string) (CoverageField, bool) {
	for i, k := range coverageKeys {
		if k == key {
			return CoverageField(i), true
		}
	}
	return 0, false
}

// Key returns the field name used in spreadsheets and the JSON table.
func (f CoverageField) Key() string {
	if f < 0 || f >= numCoverageFields {
		return ""
	}
	return coverageKeys[f]
}

func (f CoverageField) String() string {
	return f.Key()
}

// Coverage is a fixed set of optional coverage amounts. It is a value type:
// With returns a modified copy and never mutates the receiver.
type Coverage struct {
	values [numCoverageFields]money.Amount
	set    [numCoverageFields]bool
}

// Get returns the amount of f, false when the coverage is empty.
func (c Coverage) Get(f CoverageField) (money.Amount, bool) {
	if f < 0 || f >= numCoverageFields || !c.set[f] {
		return money.Amount{}, false
	}
	return c.values[f], true
}

// With returns a copy of c with f set to amount.
func (c Coverage) With(f CoverageField, amount money.Amount) Coverage {
	if f < 0 || f >= numCoverageFields {
		return c
	}
	c.values[f] = amount
	c.set[f] = true
	return c
}

// IsEmpty reports whether no coverage is set.
func (c Coverage) IsEmpty() bool {
	for _, ok := range c.set {
		if ok {
			return false
		}
	}
	return true
}

// Row is one tier of a category's reference table.
type Row struct {
	Category Category
	Premium  money.Amount
	Coverage Coverage
}
