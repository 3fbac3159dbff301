// Package reference holds the premium reference tables used to auto-fill
// rental insurance coverages: product categories, tiered reference rows, the
// per-category index and its JSON persistence.
package reference

import "github.com/FACorreiaa/seguro-locacao/pkg/money"

// Category is a product category label as printed in the insurer's tables.
type Category string

const (
	CommercialTradeAndService Category = "COMERCIAL: COMÉRCIO E SERVIÇO"
	CommercialOfficeAndClinic Category = "COMERCIAL: ESCRITÓRIO E CONSULTÓRIO"
	ResidentialHouse          Category = "RESIDENCIAL: CASA"
	ResidentialApartment      Category = "RESIDENCIAL: APARTAMENTO"
)

// categoryCodes maps the fractional digits of a credit amount to a category.
// Brokers key the product into the cents of the insured credit (R$ 1.200,97
// is a house); the convention comes from the source spreadsheets and is not a
// currency rule.
var categoryCodes = map[int]Category{
	99: CommercialTradeAndService,
	98: CommercialOfficeAndClinic,
	97: ResidentialHouse,
	96: ResidentialApartment,
}

// KnownCategories returns the four categories in code order (99 down to 96).
func KnownCategories() []Category {
	return []Category{
		CommercialTradeAndService,
		CommercialOfficeAndClinic,
		ResidentialHouse,
		ResidentialApartment,
	}
}

// DetectCategory decodes the category from the fractional digits of credit.
// Any fraction other than 96 to 99 yields no category.
func DetectCategory(credit money.Amount) (Category, bool) {
	c, ok := categoryCodes[credit.Fraction()]
	return c, ok
}

// Code returns the fractional-digit code of a known category.
func (c Category) Code() (int, bool) {
	for code, category := range categoryCodes {
		if category == c {
			return code, true
		}
	}
	return 0, false
}

func (c Category) String() string {
	return string(c)
}
