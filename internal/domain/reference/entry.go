package reference

// Entry is either a resolved reference row or an ambiguity marker that
// replaced rows colliding on the same key. An ambiguous entry never yields
// coverage data.
type Entry struct {
	row        Row
	ambiguous  bool
	categories []Category
}

// Resolved wraps a concrete row.
func Resolved(row Row) Entry {
	return Entry{row: row}
}

// Ambiguous builds a marker for the categories whose rows collided. The list
// may be empty for markers loaded from tables that did not record it.
func Ambiguous(categories ...Category) Entry {
	e := Entry{ambiguous: true}
	for _, c := range categories {
		if c == "" || containsCategory(e.categories, c) {
			continue
		}
		e.categories = append(e.categories, c)
	}
	return e
}

// Row returns the resolved row, false for an ambiguous entry.
func (e Entry) Row() (Row, bool) {
	if e.ambiguous {
		return Row{}, false
	}
	return e.row, true
}

// IsAmbiguous reports whether the entry is an ambiguity marker.
func (e Entry) IsAmbiguous() bool {
	return e.ambiguous
}

// Categories returns the categories the entry belongs to.
func (e Entry) Categories() []Category {
	if !e.ambiguous {
		return []Category{e.row.Category}
	}
	out := make([]Category, len(e.categories))
	copy(out, e.categories)
	return out
}

// merge combines two entries stored under the same key. Any collision is
// ambiguous and stays ambiguous.
func merge(existing, incoming Entry) Entry {
	return Ambiguous(append(existing.Categories(), incoming.Categories()...)...)
}

func containsCategory(list []Category, c Category) bool {
	for _, item := range list {
		if item == c {
			return true
		}
	}
	return false
}
