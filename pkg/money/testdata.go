package money

import (
	"strings"

	"github.com/brianvoe/gofakeit/v6"
)

// TestDataGenerator generates realistic amounts using gofakeit.
type TestDataGenerator struct {
	faker *gofakeit.Faker
}

// NewTestDataGenerator creates a new test data generator with a random seed.
func NewTestDataGenerator() *TestDataGenerator {
	return &TestDataGenerator{
		faker: gofakeit.New(0),
	}
}

// NewTestDataGeneratorWithSeed creates a generator with a specific seed for reproducibility.
func NewTestDataGeneratorWithSeed(seed int64) *TestDataGenerator {
	return &TestDataGenerator{
		faker: gofakeit.New(seed),
	}
}

// ============================================================================
// Amount Generation
// ============================================================================

// RandomAmount generates an Amount within a cent range.
func (g *TestDataGenerator) RandomAmount(minCents, maxCents int64) Amount {
	if minCents > maxCents {
		minCents, maxCents = maxCents, minCents
	}
	span := maxCents - minCents + 1
	cents := g.faker.Int64() % span
	if cents < 0 {
		cents = -cents
	}
	return FromCents(minCents + cents)
}

// Premium generates a monthly premium between R$10,00 and R$2.000,00.
func (g *TestDataGenerator) Premium() Amount {
	return g.RandomAmount(1000, 200000)
}

// Coverage generates a coverage amount between R$1.000,00 and R$500.000,00.
func (g *TestDataGenerator) Coverage() Amount {
	return FromCents(int64(g.faker.Number(10, 5000)) * 10000)
}

// CreditWithCode generates a credit whose two fractional digits are code.
func (g *TestDataGenerator) CreditWithCode(code int) Amount {
	whole := int64(g.faker.Number(1, 5000))
	return FromCents(whole*100 + int64(code%100))
}

// ============================================================================
// Formatting
// ============================================================================

// Spellings returns textual spellings of a that must all parse back to a.
func (g *TestDataGenerator) Spellings(a Amount) []string {
	canonical := a.String()
	intPart, frac, _ := strings.Cut(canonical, ".")
	grouped := groupThousands(intPart, ".")

	out := []string{
		canonical,
		intPart + "," + frac,
		grouped + "," + frac,
		"R$ " + grouped + "," + frac,
		"R$\u00a0" + grouped + "," + frac,
		" " + canonical + " ",
	}
	if strings.Contains(grouped, ".") {
		out = append(out, grouped+"."+frac)
	}
	if frac == "00" {
		out = append(out, intPart, grouped+",0")
	}
	return out
}

func groupThousands(digits, sep string) string {
	if len(digits) <= 3 {
		return digits
	}
	var b strings.Builder
	lead := len(digits) % 3
	if lead > 0 {
		b.WriteString(digits[:lead])
	}
	for i := lead; i < len(digits); i += 3 {
		if b.Len() > 0 {
			b.WriteString(sep)
		}
		b.WriteString(digits[i : i+3])
	}
	return b.String()
}
