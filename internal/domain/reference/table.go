package reference

import (
	"sort"

	"github.com/FACorreiaa/seguro-locacao/pkg/money"
)

// Table is the persisted form of the reference data: one entry per premium,
// keyed by the canonical premium text. Rows of different categories that share
// a premium collide into an ambiguity marker that remembers both categories.
type Table struct {
	entries map[int64]Entry
}

// NewTable returns an empty table.
func NewTable() *Table {
	return &Table{entries: make(map[int64]Entry)}
}

// TableFromRows builds a table from freshly parsed rows. A premium seen twice
// becomes ambiguous.
func TableFromRows(rows []Row) *Table {
	t := NewTable()
	for _, row := range rows {
		if row.Category == "" {
			continue
		}
		t.Add(row.Premium, Resolved(row))
	}
	return t
}

// Add stores e under premium, turning collisions into ambiguity markers.
func (t *Table) Add(premium money.Amount, e Entry) {
	cents := premium.Cents()
	if existing, ok := t.entries[cents]; ok {
		t.entries[cents] = merge(existing, e)
		return
	}
	if row, ok := e.Row(); ok && row.Premium != premium {
		row.Premium = premium
		e = Resolved(row)
	}
	t.entries[cents] = e
}

// Get returns the entry stored under premium.
func (t *Table) Get(premium money.Amount) (Entry, bool) {
	e, ok := t.entries[premium.Cents()]
	return e, ok
}

// Len returns the number of entries, markers included.
func (t *Table) Len() int {
	return len(t.entries)
}

// Premiums returns the stored premiums in ascending order.
func (t *Table) Premiums() []money.Amount {
	cents := make([]int64, 0, len(t.entries))
	for c := range t.entries {
		cents = append(cents, c)
	}
	sort.Slice(cents, func(i, j int) bool { return cents[i] < cents[j] })

	out := make([]money.Amount, len(cents))
	for i, c := range cents {
		out[i] = money.FromCents(c)
	}
	return out
}

// Rows returns the resolved rows ordered by premium.
func (t *Table) Rows() []Row {
	var rows []Row
	for _, p := range t.Premiums() {
		if row, ok := t.entries[p.Cents()].Row(); ok {
			rows = append(rows, row)
		}
	}
	return rows
}

// AmbiguousCount returns the number of ambiguity markers.
func (t *Table) AmbiguousCount() int {
	n := 0
	for _, e := range t.entries {
		if e.IsAmbiguous() {
			n++
		}
	}
	return n
}

// Index builds the per-category index from a snapshot of the table. Markers
// without recorded categories cannot be placed in any tier list and are left
// out.
func (t *Table) Index() *Index {
	b := newIndexBuilder()
	for cents, e := range t.entries {
		for _, c := range e.Categories() {
			if c == "" {
				continue
			}
			b.add(c, cents, e)
		}
	}
	return b.build()
}
