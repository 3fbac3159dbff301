// Package normalizer cleans the identity documents and dates read from
// policy and tenant spreadsheets.
package normalizer

import "strings"

// DocumentKind tells a CPF (individual) from a CNPJ (company) number.
type DocumentKind string

const (
	DocumentUnknown DocumentKind = ""
	DocumentCPF     DocumentKind = "CPF"
	DocumentCNPJ    DocumentKind = "CNPJ"
)

// Digits keeps only the ASCII digits of s.
func Digits(s string) string {
	return strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, s)
}

// DocumentNumber strips the punctuation of a CPF/CNPJ ("123.456.789-09" ->
// "12345678909"). A value without any digit is returned trimmed but
// otherwise unchanged.
func DocumentNumber(s string) string {
	if digits := Digits(s); digits != "" {
		return digits
	}
	return strings.TrimSpace(s)
}

// ClassifyDocument reports the document kind by digit count.
func ClassifyDocument(number string) DocumentKind {
	switch len(Digits(number)) {
	case 11:
		return DocumentCPF
	case 14:
		return DocumentCNPJ
	}
	return DocumentUnknown
}

// ValidDocument verifies the check digits of a CPF or CNPJ. Sequences of one
// repeated digit are rejected.
func ValidDocument(number string) bool {
	digits := Digits(number)
	if digits == "" || strings.Count(digits, digits[:1]) == len(digits) {
		return false
	}

	switch len(digits) {
	case 11:
		return checkDigit(digits[:9], cpfWeights(10)) == digits[9] &&
			checkDigit(digits[:10], cpfWeights(11)) == digits[10]
	case 14:
		return checkDigit(digits[:12], cnpjWeights[1:]) == digits[12] &&
			checkDigit(digits[:13], cnpjWeights) == digits[13]
	}
	return false
}

var cnpjWeights = []int{6, 5, 4, 3, 2, 9, 8, 7, 6, 5, 4, 3, 2}

func cpfWeights(start int) []int {
	w := make([]int, start-1)
	for i := range w {
		w[i] = start - i
	}
	return w
}

func checkDigit(base string, weights []int) byte {
	sum := 0
	for i, r := range base {
		sum += int(r-'0') * weights[i]
	}
	rest := sum % 11
	if rest < 2 {
		return '0'
	}
	return byte('0' + 11 - rest)
}
