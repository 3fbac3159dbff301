// Package money provides exact two-decimal monetary amounts stored as integer
// cents. It parses the free-form amounts found in Brazilian insurance
// spreadsheets and PDF tables ("R$ 1.234,56", "1234.56", "1.234.567.89") into
// one canonical representation.
package money

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// BRL is the ISO-4217 code of every amount handled by this package.
const BRL = money.BRL

// maxIntegerDigits keeps the cents value inside int64.
const maxIntegerDigits = 16

// ErrInvalidAmount is returned when a string cannot be normalized into an amount.
var ErrInvalidAmount = errors.New("invalid amount")

var (
	plainNumberRegex = regexp.MustCompile(`^\d+(\.\d+)?$`)

	currencyMarkers = []string{"R$", "$", "€"}
)

// Amount is an exact monetary value with two fractional digits.
// The zero value is 0.00.
type Amount struct {
	cents int64
}

// FromCents creates an Amount from minor units.
func FromCents(cents int64) Amount {
	return Amount{cents: cents}
}

// Parse normalizes a free-form amount string.
//
// Currency markers and all whitespace are removed first. A comma is always the
// decimal separator and every dot is then a thousands separator; without a
// comma, the last of several dots is the decimal separator. A missing fraction
// means ".00" and longer fractions are truncated, never rounded.
func Parse(s string) (Amount, error) {
	normalized, err := normalize(s)
	if err != nil {
		return Amount{}, err
	}

	d, err := decimal.NewFromString(normalized)
	if err != nil {
		return Amount{}, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}

	return Amount{cents: d.Truncate(2).Shift(2).IntPart()}, nil
}

// MustParse is like Parse but panics on invalid input. Intended for fixtures.
func MustParse(s string) Amount {
	a, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return a
}

// Canonical returns the canonical "integer.dd" form of s.
func Canonical(s string) (string, error) {
	a, err := Parse(s)
	if err != nil {
		return "", err
	}
	return a.String(), nil
}

func normalize(raw string) (string, error) {
	value := raw
	for _, marker := range currencyMarkers {
		value = strings.ReplaceAll(value, marker, "")
	}
	value = strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, value)

	if value == "" {
		return "", fmt.Errorf("%w: empty value", ErrInvalidAmount)
	}

	switch {
	case strings.Contains(value, ","):
		value = strings.ReplaceAll(value, ".", "")
		value = strings.ReplaceAll(value, ",", ".")
	case strings.Count(value, ".") > 1:
		last := strings.LastIndex(value, ".")
		value = strings.ReplaceAll(value[:last], ".", "") + value[last:]
	}

	if !plainNumberRegex.MatchString(value) {
		return "", fmt.Errorf("%w: %q", ErrInvalidAmount, raw)
	}

	intPart, _, _ := strings.Cut(value, ".")
	if len(strings.TrimLeft(intPart, "0")) > maxIntegerDigits {
		return "", fmt.Errorf("%w: %q is out of range", ErrInvalidAmount, raw)
	}

	return value, nil
}

// Cents returns the amount in minor units.
func (a Amount) Cents() int64 {
	return a.cents
}

// Fraction returns the two fractional digits as an integer in [0, 99].
func (a Amount) Fraction() int {
	f := a.cents % 100
	if f < 0 {
		f = -f
	}
	return int(f)
}

// IsZero returns true for 0.00.
func (a Amount) IsZero() bool {
	return a.cents == 0
}

// Add returns a + b.
func (a Amount) Add(b Amount) Amount {
	return Amount{cents: a.cents + b.cents}
}

// Compare returns -1, 0 or 1.
func (a Amount) Compare(b Amount) int {
	switch {
	case a.cents < b.cents:
		return -1
	case a.cents > b.cents:
		return 1
	default:
		return 0
	}
}

// String returns the canonical "integer.dd" form, e.g. "1234.56".
func (a Amount) String() string {
	cents := a.cents
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s%d.%02d", sign, cents/100, cents%100)
}

// Decimal converts to decimal.Decimal.
func (a Amount) Decimal() decimal.Decimal {
	return decimal.New(a.cents, -2)
}

// Display returns the Brazilian display form, e.g. "R$1.234,56".
func (a Amount) Display() string {
	return money.New(a.cents, BRL).Display()
}

// MarshalText encodes the canonical form.
func (a Amount) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText accepts anything Parse accepts.
func (a *Amount) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// MarshalCSV implements gocsv.TypeMarshaller.
func (a Amount) MarshalCSV() (string, error) {
	return a.String(), nil
}
