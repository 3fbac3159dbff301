package reference

import (
	"sort"

	"github.com/FACorreiaa/seguro-locacao/pkg/money"
)

// MatchOutcome explains the result of a tier lookup.
type MatchOutcome int

const (
	MatchResolved MatchOutcome = iota
	MatchNoCategory
	MatchAboveTiers
	MatchAmbiguous
)

func (o MatchOutcome) String() string {
	switch o {
	case MatchResolved:
		return "resolved"
	case MatchNoCategory:
		return "no_category"
	case MatchAboveTiers:
		return "above_tiers"
	case MatchAmbiguous:
		return "ambiguous"
	default:
		return "unknown"
	}
}

// MatchResult is the detailed outcome of Index.Lookup.
type MatchResult struct {
	Outcome MatchOutcome
	// Premium is the tier found by the ceiling search. Zero unless the outcome
	// is MatchResolved or MatchAmbiguous.
	Premium money.Amount
	Row     Row
}

// Resolved reports whether the lookup produced coverage data.
func (r MatchResult) Resolved() bool {
	return r.Outcome == MatchResolved
}

type tiers struct {
	premiums []int64
	entries  map[int64]Entry
}

// Index is the per-category view of a reference table: ascending distinct
// premiums plus the entry of each premium. It is read-only once built and is
// safe for concurrent lookups.
type Index struct {
	byCategory map[Category]*tiers
}

// BuildIndex indexes rows by (category, premium). A pair seen more than once
// becomes ambiguous; its premium stays in the tier list so the ceiling search
// still stops there, but the lookup yields no match. Rows without a category
// are ignored.
func BuildIndex(rows []Row) *Index {
	b := newIndexBuilder()
	for _, row := range rows {
		if row.Category == "" {
			continue
		}
		b.add(row.Category, row.Premium.Cents(), Resolved(row))
	}
	return b.build()
}

// Categories returns the indexed categories in lexical order.
func (ix *Index) Categories() []Category {
	out := make([]Category, 0, len(ix.byCategory))
	for c := range ix.byCategory {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Premiums returns the ascending tier premiums of a category.
func (ix *Index) Premiums(c Category) []money.Amount {
	t, ok := ix.byCategory[c]
	if !ok {
		return nil
	}
	out := make([]money.Amount, len(t.premiums))
	for i, cents := range t.premiums {
		out[i] = money.FromCents(cents)
	}
	return out
}

// Entry returns the entry stored for (category, premium).
func (ix *Index) Entry(c Category, premium money.Amount) (Entry, bool) {
	t, ok := ix.byCategory[c]
	if !ok {
		return Entry{}, false
	}
	e, ok := t.entries[premium.Cents()]
	return e, ok
}

// Match returns the row of the smallest premium greater than or equal to
// credit. Absent categories, credits above the top tier and ambiguous tiers
// all return false.
func (ix *Index) Match(c Category, credit money.Amount) (Row, bool) {
	res := ix.Lookup(c, credit)
	if !res.Resolved() {
		return Row{}, false
	}
	return res.Row, true
}

// Lookup is Match with the reason for a miss.
func (ix *Index) Lookup(c Category, credit money.Amount) MatchResult {
	t, ok := ix.byCategory[c]
	if !ok || len(t.premiums) == 0 {
		return MatchResult{Outcome: MatchNoCategory}
	}

	target := credit.Cents()
	i := sort.Search(len(t.premiums), func(i int) bool {
		return t.premiums[i] >= target
	})
	if i == len(t.premiums) {
		return MatchResult{Outcome: MatchAboveTiers}
	}

	premium := money.FromCents(t.premiums[i])
	row, ok := t.entries[t.premiums[i]].Row()
	if !ok {
		return MatchResult{Outcome: MatchAmbiguous, Premium: premium}
	}
	return MatchResult{Outcome: MatchResolved, Premium: premium, Row: row}
}

type indexBuilder struct {
	byCategory map[Category]*tiers
}

func newIndexBuilder() *indexBuilder {
	return &indexBuilder{byCategory: make(map[Category]*tiers)}
}

func (b *indexBuilder) add(c Category, cents int64, e Entry) {
	t, ok := b.byCategory[c]
	if !ok {
		t = &tiers{entries: make(map[int64]Entry)}
		b.byCategory[c] = t
	}
	if existing, dup := t.entries[cents]; dup {
		t.entries[cents] = merge(existing, e)
		return
	}
	t.entries[cents] = e
	t.premiums = append(t.premiums, cents)
}

func (b *indexBuilder) build() *Index {
	for _, t := range b.byCategory {
		sort.Slice(t.premiums, func(i, j int) bool { return t.premiums[i] < t.premiums[j] })
	}
	return &Index{byCategory: b.byCategory}
}
