// Package header maps free-form spreadsheet column titles onto canonical
// field keys.
package header

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode"

	"github.com/lithammer/fuzzysearch/fuzzy"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	separatorReplacer = strings.NewReplacer(" ", "_", "-", "_", ".", "_")
	invalidCharsRegex = regexp.MustCompile(`[^a-z0-9_]+`)
	underscoresRegex  = regexp.MustCompile(`_+`)

	// Letters that do not decompose into base letter + combining mark.
	latinFallbacks = strings.NewReplacer(
		"ß", "ss", "æ", "ae", "œ", "oe", "ø", "o", "ð", "d", "þ", "th",
		"ł", "l", "đ", "d", "º", "o", "ª", "a",
	)
)

// Normalize converts a raw header into its key form: lowercase ASCII with
// underscores, e.g. "Crédito s/ Multa" -> "credito_s_multa".
func Normalize(raw string) string {
	value := strings.ToLower(strings.TrimSpace(raw))
	value = Transliterate(value)
	value = separatorReplacer.Replace(value)
	value = invalidCharsRegex.ReplaceAllString(value, "")
	value = underscoresRegex.ReplaceAllString(value, "_")
	return strings.Trim(value, "_")
}

// Transliterate strips diacritics, mapping accented letters to their base
// Latin letter ("ção" -> "cao").
func Transliterate(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return latinFallbacks.Replace(out)
}

// AliasTable maps normalized header spellings to canonical keys.
type AliasTable map[string]string

// Resolver resolves raw headers against an alias table. It holds no mutable
// state and may be shared.
type Resolver struct {
	aliases AliasTable
	known   map[string]bool
}

// NewResolver creates a resolver. A nil table resolves every header to its
// normalized form.
func NewResolver(aliases AliasTable) *Resolver {
	known := make(map[string]bool, len(aliases))
	for _, canonical := range aliases {
		known[canonical] = true
	}
	return &Resolver{aliases: aliases, known: known}
}

// Canonical returns the canonical key of raw, or "" when the header carries
// no usable characters.
func (r *Resolver) Canonical(raw string) string {
	normalized := Normalize(raw)
	if normalized == "" {
		return ""
	}
	if canonical, ok := r.aliases[normalized]; ok {
		return canonical
	}
	return normalized
}

// Map builds the canonical key to column index map of a header row. When
// several columns resolve to the same key the leftmost one wins.
func (r *Resolver) Map(headers []string) HeaderMap {
	m := HeaderMap{
		columns: make(map[string]int, len(headers)),
		headers: append([]string(nil), headers...),
	}
	for i, raw := range headers {
		key := r.Canonical(raw)
		if key == "" {
			continue
		}
		if _, exists := m.columns[key]; exists {
			continue
		}
		m.columns[key] = i
		m.order = append(m.order, key)
	}
	return m
}

// Require returns a MissingRequiredColumnsError when any required key has no
// mapped column.
func (r *Resolver) Require(m HeaderMap, required []string) error {
	missing := m.Missing(required)
	if len(missing) == 0 {
		return nil
	}
	return &MissingRequiredColumnsError{
		Missing:     missing,
		Suggestions: r.Suggest(m, missing),
	}
}

// Suggest proposes, for each missing key, the raw header of an unrecognized
// column that resembles it most.
func (r *Resolver) Suggest(m HeaderMap, missing []string) map[string]string {
	type candidate struct {
		raw        string
		normalized string
	}

	var candidates []candidate
	for _, raw := range m.headers {
		normalized := Normalize(raw)
		if normalized == "" || r.known[r.Canonical(raw)] {
			continue
		}
		candidates = append(candidates, candidate{raw: raw, normalized: normalized})
	}

	suggestions := make(map[string]string)
	for _, key := range missing {
		best, bestDistance := "", -1
		for _, c := range candidates {
			d := similarity(key, c.normalized)
			if d < 0 {
				continue
			}
			if bestDistance < 0 || d < bestDistance {
				best, bestDistance = c.raw, d
			}
		}
		if best != "" {
			suggestions[key] = best
		}
	}
	return suggestions
}

// similarity returns an edit distance between a key and a header, or -1 when
// they are too far apart to be worth suggesting.
func similarity(key, normalized string) int {
	if d := fuzzy.RankMatchNormalizedFold(normalized, key); d >= 0 {
		return d
	}
	if d := fuzzy.RankMatchNormalizedFold(key, normalized); d >= 0 {
		return d
	}
	d := fuzzy.LevenshteinDistance(key, normalized)
	if d*2 > len(key) {
		return -1
	}
	return d
}

// HeaderMap maps canonical keys to 0-based column indexes.
type HeaderMap struct {
	columns map[string]int
	order   []string
	headers []string
}

// Column returns the column index of key.
func (m HeaderMap) Column(key string) (int, bool) {
	col, ok := m.columns[key]
	return col, ok
}

// Has reports whether key has a column.
func (m HeaderMap) Has(key string) bool {
	_, ok := m.columns[key]
	return ok
}

// Keys returns the mapped keys in column order.
func (m HeaderMap) Keys() []string {
	return append([]string(nil), m.order...)
}

// Len returns the number of mapped keys.
func (m HeaderMap) Len() int {
	return len(m.order)
}

// Headers returns the raw header row.
func (m HeaderMap) Headers() []string {
	return append([]string(nil), m.headers...)
}

// Missing returns the required keys without a column, in the given order.
func (m HeaderMap) Missing(required []string) []string {
	var missing []string
	for _, key := range required {
		if _, ok := m.columns[key]; !ok {
			missing = append(missing, key)
		}
	}
	return missing
}

// MissingRequiredColumnsError reports an input whose header row cannot
// satisfy the required schema. It is fatal for the whole batch.
type MissingRequiredColumnsError struct {
	Missing     []string
	Suggestions map[string]string
}

func (e *MissingRequiredColumnsError) Error() string {
	msg := fmt.Sprintf("missing required columns: %s", strings.Join(e.Missing, ", "))
	if len(e.Suggestions) == 0 {
		return msg
	}

	keys := make([]string, 0, len(e.Suggestions))
	for k := range e.Suggestions {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	hints := make([]string, 0, len(keys))
	for _, k := range keys {
		hints = append(hints, fmt.Sprintf("%s <- %q?", k, e.Suggestions[k]))
	}
	return msg + " (" + strings.Join(hints, "; ") + ")"
}
