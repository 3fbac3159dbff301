package service

import (
	"strings"

	"github.com/FACorreiaa/seguro-locacao/internal/domain/import/header"
	"github.com/FACorreiaa/seguro-locacao/internal/domain/import/parser"
	"github.com/FACorreiaa/seguro-locacao/internal/domain/import/sniffer"
	"github.com/FACorreiaa/seguro-locacao/internal/domain/reference"
	"github.com/FACorreiaa/seguro-locacao/pkg/money"
)

// Outcome is what happened when a row's coverages were looked up.
type Outcome string

// The lookup outcomes of reference.MatchOutcome are reused as is; these are
// the ones decided before a lookup happens.
const (
	OutcomeResolved      Outcome = "resolved"
	OutcomeNoReference   Outcome = "no_reference"
	OutcomeNoCredit      Outcome = "no_credit"
	OutcomeInvalidCredit Outcome = "invalid_credit"
	OutcomeUncategorized Outcome = "uncategorized"
)

func outcomeOf(res reference.MatchResult) Outcome {
	return Outcome(res.Outcome.String())
}

// PolicyRow is one data row keyed by canonical field name.
type PolicyRow struct {
	// Number is the 1-based spreadsheet row (the header is row 1).
	Number  int
	Fields  map[string]string
	Missing []string
	// Filled lists the coverage fields set from the reference table.
	Filled  []string
	Outcome Outcome
}

// Get returns the value of key, "" when absent.
func (r *PolicyRow) Get(key string) string {
	return r.Fields[key]
}

// Pending reports whether required data is missing.
func (r *PolicyRow) Pending() bool {
	return len(r.Missing) > 0
}

// Pipeline turns spreadsheet rows into PolicyRows for one profile and fills
// their empty coverages from a reference index.
type Pipeline struct {
	profile  Profile
	resolver *header.Resolver
	index    *reference.Index
}

// NewPipeline creates a pipeline. A nil index disables filling.
func NewPipeline(profile Profile, index *reference.Index) *Pipeline {
	return &Pipeline{
		profile:  profile,
		resolver: header.NewResolver(profile.Aliases),
		index:    index,
	}
}

// Profile returns the pipeline's profile.
func (p *Pipeline) Profile() Profile {
	return p.profile
}

// MapHeaders resolves the header row and checks the required columns.
func (p *Pipeline) MapHeaders(headers []string) (header.HeaderMap, error) {
	m := p.resolver.Map(headers)
	if err := p.resolver.Require(m, p.profile.RequiredColumns); err != nil {
		return header.HeaderMap{}, err
	}
	return m, nil
}

// ExtractRow reads the mapped cells of one row. It returns false when every
// mapped cell is empty.
func (p *Pipeline) ExtractRow(number int, cells []string, m header.HeaderMap) (*PolicyRow, bool) {
	fields := make(map[string]string, m.Len())
	empty := true
	for _, key := range m.Keys() {
		col, _ := m.Column(key)
		var value string
		if col < len(cells) {
			value = strings.TrimSpace(sniffer.NormalizeText(cells[col]))
		}
		if value != "" {
			empty = false
		}
		fields[key] = value
	}
	if empty {
		return nil, false
	}

	for key, normalize := range p.profile.Normalizers {
		if value, ok := fields[key]; ok && value != "" {
			fields[key] = normalize(value)
		}
	}
	for _, fb := range p.profile.RiskFallbacks {
		if fields[fb.Field] == "" && fields[fb.Fallback] != "" {
			fields[fb.Field] = fields[fb.Fallback]
		}
	}

	return &PolicyRow{Number: number, Fields: fields}, true
}

// Fill sets the row's empty coverage fields from the reference tier matching
// its credit. Fields that already hold a value are never overwritten.
func (p *Pipeline) Fill(row *PolicyRow) Outcome {
	row.Outcome = p.fill(row)
	return row.Outcome
}

func (p *Pipeline) fill(row *PolicyRow) Outcome {
	if p.index == nil || p.profile.CreditField == "" {
		return OutcomeNoReference
	}

	raw := row.Get(p.profile.CreditField)
	if raw == "" {
		return OutcomeNoCredit
	}
	credit, err := money.Parse(raw)
	if err != nil {
		return OutcomeInvalidCredit
	}
	category, ok := reference.DetectCategory(credit)
	if !ok {
		return OutcomeUncategorized
	}

	res := p.index.Lookup(category, credit)
	if !res.Resolved() {
		return outcomeOf(res)
	}

	for _, f := range reference.CoverageFields() {
		key, mapped := p.profile.CoverageFields[f]
		if !mapped {
			continue
		}
		amount, ok := res.Row.Coverage.Get(f)
		if !ok || row.Fields[key] != "" {
			continue
		}
		row.Fields[key] = amount.String()
		row.Filled = append(row.Filled, key)
	}
	return outcomeOf(res)
}

// Validate records the required fields the row lacks. A fallback field is
// missing only when it and its source are both empty.
func (p *Pipeline) Validate(row *PolicyRow) []string {
	var missing []string
	for _, key := range p.profile.RequiredFields {
		if row.Fields[key] == "" {
			missing = append(missing, key)
		}
	}
	for _, fb := range p.profile.RiskFallbacks {
		if row.Fields[fb.Field] == "" && row.Fields[fb.Fallback] == "" {
			missing = append(missing, fb.Field)
		}
	}
	row.Missing = missing
	return missing
}

// Process runs the whole pipeline over a sheet: header mapping, extraction,
// fill and validation. Empty rows are dropped.
func (p *Pipeline) Process(sheet *parser.Sheet) ([]*PolicyRow, header.HeaderMap, error) {
	m, err := p.MapHeaders(sheet.Headers)
	if err != nil {
		return nil, header.HeaderMap{}, err
	}

	rows := make([]*PolicyRow, 0, len(sheet.Rows))
	for i, cells := range sheet.Rows {
		row, ok := p.ExtractRow(sheet.RowNumber(i), cells, m)
		if !ok {
			continue
		}
		p.Fill(row)
		p.Validate(row)
		rows = append(rows, row)
	}
	return rows, m, nil
}
