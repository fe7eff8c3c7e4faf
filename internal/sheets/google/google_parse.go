package google

import (
	"fmt"
	"strconv"
	"strings"

	"carnote/internal/core"
)

var (
	expenseHeader = []any{"Date", "Category", "Description", "Amount", "Recurring", "ID"}
	fuelHeader    = []any{"Date", "Mileage", "Liters", "Price/L", "Total", "Station", "Fuel", "Full tank", "L/100", "ID"}
	serviceHeader = []any{"Date", "Service", "Mileage", "Cost", "Location", "Note", "ID"}
)

func expenseRow(e core.Expense) []any {
	return []any{
		e.Date.String(),
		e.Category,
		e.Description,
		e.Amount.Units(),
		e.RecurringID,
		e.ID,
	}
}

func fuelRow(f core.FuelRecord) []any {
	var consumption any = ""
	if f.Consumption != nil {
		consumption = *f.Consumption
	}
	total := f.TotalPrice
	if total.IsZero() {
		total = core.MoneyFromUnits(f.Liters * f.PricePerLiter.Units())
	}
	return []any{
		f.Date.String(),
		f.Mileage,
		f.Liters,
		f.PricePerLiter.Units(),
		total.Units(),
		f.Station,
		string(f.FuelType),
		f.FullTank,
		consumption,
		f.ID,
	}
}

func serviceRow(r core.ServiceRecord, templateTitle string) []any {
	var cost any = ""
	if r.Cost != nil {
		cost = r.Cost.Units()
	}
	if templateTitle == "" {
		templateTitle = r.TemplateID
	}
	return []any{
		r.Date.String(),
		templateTitle,
		r.Mileage,
		cost,
		r.Location,
		r.Note,
		strconv.FormatInt(r.ID, 10),
	}
}

// yearPrefixedName returns "<year> <base>".
func yearPrefixedName(base string, year int) string {
	if year <= 0 {
		return base
	}
	return fmt.Sprintf("%d %s", year, base)
}

// quoteSheet wraps a tab title for A1 notation.
func quoteSheet(title string) string {
	return "'" + strings.ReplaceAll(title, "'", "''") + "'"
}

// columnLetter converts a 1-based column count to its A1 letter(s).
func columnLetter(n int) string {
	if n <= 0 {
		return "A"
	}
	var b []byte
	for n > 0 {
		n--
		b = append([]byte{byte('A' + n%26)}, b...)
		n /= 26
	}
	return string(b)
}

// rowNumber extracts the first row of an A1 range such as "'2024 Fuel'!A5:J5".
// Returns 0 when the range has no row.
func rowNumber(a1 string) int {
	if i := strings.LastIndex(a1, "!"); i >= 0 {
		a1 = a1[i+1:]
	}
	if i := strings.Index(a1, ":"); i >= 0 {
		a1 = a1[:i]
	}
	digits := strings.TrimLeft(a1, "ABCDEFGHIJKLMNOPQRSTUVWXYZ$")
	digits = strings.TrimPrefix(digits, "$")
	n, err := strconv.Atoi(digits)
	if err != nil {
		return 0
	}
	return n
}
