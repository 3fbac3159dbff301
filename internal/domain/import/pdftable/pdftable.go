// Package pdftable reconstructs premium reference rows from the plain text of
// an insurer's reference-table PDF.
//
// The text carries no layout: a section title such as "RESIDENCIAL - CASA"
// opens a category, column titles are skipped, and every five (or more)
// numbers read in line order form one tier.
package pdftable

import (
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/cloudflare/ahocorasick"

	"github.com/FACorreiaa/seguro-locacao/internal/domain/import/header"
	"github.com/FACorreiaa/seguro-locacao/internal/domain/reference"
	"github.com/FACorreiaa/seguro-locacao/pkg/money"
)

// ErrImageOnlyDocument means no page carried extractable text.
var ErrImageOnlyDocument = errors.New("PDF has no selectable text: the document looks like a scanned image and requires OCR")

// numbersPerRow is the number of values that make up one tier.
const numbersPerRow = 5

// numberRegex matches, in order of preference: 1.234,56 / 1234,56 /
// 1,234.56 / 1234.56 / 1.234 / 1234. The trailing non-digit keeps a shorter
// alternative from splitting a longer number.
var numberRegex = regexp.MustCompile(
	`(\d{1,3}(?:\.\d{3})*,\d{2}|\d+,\d{2}|\d{1,3}(?:,\d{3})+\.\d{2}|\d+\.\d{2}|\d{1,3}(?:\.\d{3})+|\d+)(?:\D|$)`,
)

var lineBreaks = strings.NewReplacer("\r\n", "\n", "\r", "\n")

// RawRow is one tier read from the PDF.
type RawRow struct {
	Category     reference.Category
	Premium      money.Amount
	Fire         money.Amount
	FireContents money.Amount
	Windstorm    money.Amount
	LossOfRent   money.Amount
}

// Row converts the tier to a reference row. Electrical damage and civil
// liability are not printed in the PDF and stay empty.
func (r RawRow) Row() reference.Row {
	cov := reference.Coverage{}.
		With(reference.Fire, r.Fire).
		With(reference.FireContents, r.FireContents).
		With(reference.Windstorm, r.Windstorm).
		With(reference.LossOfRent, r.LossOfRent)
	return reference.Row{Category: r.Category, Premium: r.Premium, Coverage: cov}
}

// Fields returns the tier keyed by the reference table field names.
func (r RawRow) Fields() map[string]string {
	return map[string]string{
		"premio_mensal":     r.Premium.String(),
		"incendio":          r.Fire.String(),
		"incendio_conteudo": r.FireContents.String(),
		"vendaval":          r.Windstorm.String(),
		"perda_aluguel":     r.LossOfRent.String(),
		"tipo":              r.Category.String(),
	}
}

// Rows converts every raw row to a reference row.
func Rows(raw []RawRow) []reference.Row {
	rows := make([]reference.Row, len(raw))
	for i, r := range raw {
		rows[i] = r.Row()
	}
	return rows
}

// Parse reads page texts in order and returns the tiers found.
func Parse(pages []string) ([]RawRow, error) {
	return ParseDebug(pages, nil)
}

// ParseDebug is Parse that also writes every page's raw text to debug,
// preceded by "=== Pagina N ===".
func ParseDebug(pages []string, debug io.Writer) ([]RawRow, error) {
	var (
		s       state
		hasText bool
	)

	for i, text := range pages {
		if strings.TrimSpace(text) != "" {
			hasText = true
		}
		if debug != nil {
			if _, err := fmt.Fprintf(debug, "=== Pagina %d ===\n%s\n\n", i+1, text); err != nil {
				return nil, fmt.Errorf("failed to write debug extract: %w", err)
			}
		}

		for _, line := range strings.Split(lineBreaks.Replace(text), "\n") {
			s.consume(strings.TrimSpace(line))
		}
	}

	if !hasText {
		return nil, ErrImageOnlyDocument
	}
	return s.rows, nil
}

// state is the no-context / in-category machine plus the carry-over buffer.
type state struct {
	category reference.Category
	buffer   []money.Amount
	rows     []RawRow
}

func (s *state) consume(line string) {
	if line == "" {
		return
	}

	hits := tokens.scan(line)
	if c, ok := tokens.context(hits); ok {
		s.category = c
		s.buffer = s.buffer[:0]
		return
	}
	if s.category == "" || tokens.isHeader(hits) {
		return
	}

	numbers := extractNumbers(line)
	if len(numbers) >= numbersPerRow {
		s.emit(numbers)
		s.buffer = s.buffer[:0]
		return
	}

	s.buffer = append(s.buffer, numbers...)
	if len(s.buffer) >= numbersPerRow {
		s.emit(s.buffer)
		s.buffer = s.buffer[:0]
	}
}

func (s *state) emit(numbers []money.Amount) {
	row, ok := mapNumbers(numbers)
	if !ok {
		return
	}
	row.Category = s.category
	s.rows = append(s.rows, row)
}

// mapNumbers assigns values positionally. With six or more, windstorm is
// printed split over two columns and is their sum.
func mapNumbers(n []money.Amount) (RawRow, bool) {
	switch {
	case len(n) >= 6:
		return RawRow{
			Premium:      n[0],
			Fire:         n[1],
			FireContents: n[2],
			Windstorm:    n[3].Add(n[4]),
			LossOfRent:   n[5],
		}, true
	case len(n) == 5:
		return RawRow{
			Premium:      n[0],
			Fire:         n[1],
			FireContents: n[2],
			Windstorm:    n[3],
			LossOfRent:   n[4],
		}, true
	}
	return RawRow{}, false
}

func extractNumbers(line string) []money.Amount {
	matches := numberRegex.FindAllStringSubmatch(line, -1)
	values := make([]money.Amount, 0, len(matches))
	for _, m := range matches {
		if v, err := parseNumber(m[1]); err == nil {
			values = append(values, v)
		}
	}
	return values
}

// parseNumber converts a matched token to an amount, resolving which of '.'
// and ',' is the decimal separator.
func parseNumber(raw string) (money.Amount, error) {
	lastComma := strings.LastIndex(raw, ",")
	lastDot := strings.LastIndex(raw, ".")

	switch {
	case lastComma >= 0 && lastDot > lastComma:
		raw = strings.ReplaceAll(raw, ",", "")
	case lastComma >= 0:
		raw = strings.Replace(strings.ReplaceAll(raw, ".", ""), ",", ".", 1)
	case lastDot >= 0 && strings.Count(raw, ".") == 1 && len(raw)-lastDot == 3:
		// 1234.56
	default:
		raw = strings.ReplaceAll(raw, ".", "")
	}
	return money.Parse(raw)
}

// tokenSet scans a line for every section and column-title token at once.
type tokenSet struct {
	matcher  *ahocorasick.Matcher
	contexts []contextRule
	headers  []int
}

type contextRule struct {
	category reference.Category
	tokens   []int
}

var tokens = newTokenSet(
	[]struct {
		category reference.Category
		words    []string
	}{
		{reference.CommercialTradeAndService, []string{"COMERCIAL", "COMERCIO", "SERVICO"}},
		{reference.CommercialOfficeAndClinic, []string{"COMERCIAL", "ESCRITORIO", "CONSULTORIO"}},
		{reference.ResidentialHouse, []string{"RESIDENCIAL", "CASA"}},
		{reference.ResidentialApartment, []string{"RESIDENCIAL", "APARTAMENTO"}},
	},
	[]string{"PREMIO", "INCENDIO", "VENDA", "ALUGUEL"},
)

func newTokenSet(contexts []struct {
	category reference.Category
	words    []string
}, headers []string) *tokenSet {
	index := make(map[string]int)
	var words []string
	id := func(w string) int {
		if i, ok := index[w]; ok {
			return i
		}
		index[w] = len(words)
		words = append(words, w)
		return index[w]
	}

	ts := &tokenSet{}
	for _, c := range contexts {
		rule := contextRule{category: c.category}
		for _, w := range c.words {
			rule.tokens = append(rule.tokens, id(w))
		}
		ts.contexts = append(ts.contexts, rule)
	}
	for _, w := range headers {
		ts.headers = append(ts.headers, id(w))
	}
	ts.matcher = ahocorasick.NewStringMatcher(words)
	return ts
}

// scan returns the set of token ids found in the upper-cased, diacritic-free
// line.
func (ts *tokenSet) scan(line string) map[int]bool {
	text := header.Transliterate(strings.ToUpper(line))
	hits := make(map[int]bool)
	for _, i := range ts.matcher.MatchThreadSafe([]byte(text)) {
		hits[i] = true
	}
	return hits
}

// context returns the first category whose tokens are all present.
func (ts *tokenSet) context(hits map[int]bool) (reference.Category, bool) {
	for _, rule := range ts.contexts {
		all := true
		for _, t := range rule.tokens {
			if !hits[t] {
				all = false
				break
			}
		}
		if all {
			return rule.category, true
		}
	}
	return "", false
}

func (ts *tokenSet) isHeader(hits map[int]bool) bool {
	for _, t := range ts.headers {
		if hits[t] {
			return true
		}
	}
	return false
}
