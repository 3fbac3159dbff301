package normalizer

import (
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
)

const (
	// ISODate is the storage layout of policy dates.
	ISODate = "2006-01-02"
	// BRDate is the display layout used on generated documents.
	BRDate = "02/01/2006"
)

// Input layouts accepted for policy dates. Day and month may have one digit.
var dateLayouts = []string{"2/1/2006", ISODate}

// Serial numbers of Excel dates between 1950 and 2100, for cells read without
// a date number format.
const (
	minExcelSerial = 18264
	maxExcelSerial = 73051
)

// ParseDate reads a policy date written as dd/mm/yyyy or yyyy-mm-dd, or an
// Excel serial day number.
func ParseDate(s string) (time.Time, bool) {
	value := strings.TrimSpace(s)
	if value == "" {
		return time.Time{}, false
	}

	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, true
		}
	}

	if serial, err := strconv.ParseFloat(value, 64); err == nil && serial >= minExcelSerial && serial <= maxExcelSerial {
		t, err := excelize.ExcelDateToTime(serial, false)
		if err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), true
		}
	}
	return time.Time{}, false
}

// NormalizeDate returns s as yyyy-mm-dd, or "" when it is not a date.
func NormalizeDate(s string) string {
	t, ok := ParseDate(s)
	if !ok {
		return ""
	}
	return t.Format(ISODate)
}

// FormatDateBR renders a yyyy-mm-dd date as dd/mm/yyyy. Other values are
// returned unchanged.
func FormatDateBR(iso string) string {
	t, err := time.Parse(ISODate, iso)
	if err != nil {
		return iso
	}
	return t.Format(BRDate)
}
