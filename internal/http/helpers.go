package http

import (
	"html/template"
	"strconv"
	"strings"

	"carnote/internal/core"
)

var templateFuncs = template.FuncMap{
	"money":   formatMoney,
	"mileage": formatMileage,
	"deref":   derefInt,
}

// formatMoney formats an amount with grouped thousands, e.g. "12 345.60".
func formatMoney(m core.Money) string {
	cents := m.Cents
	neg := cents < 0
	if neg {
		cents = -cents
	}
	s := groupThousands(cents/100) + "." + twoDigits(cents%100)
	if neg {
		return "-" + s
	}
	return s
}

func formatMileage(v int) string {
	if v < 0 {
		return "-" + groupThousands(int64(-v))
	}
	return groupThousands(int64(v))
}

func groupThousands(n int64) string {
	s := strconv.FormatInt(n, 10)
	if len(s) <= 3 {
		return s
	}
	var b strings.Builder
	lead := len(s) % 3
	if lead > 0 {
		b.WriteString(s[:lead])
	}
	for i := lead; i < len(s); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(s[i : i+3])
	}
	return b.String()
}

func twoDigits(n int64) string {
	if n < 10 {
		return "0" + strconv.FormatInt(n, 10)
	}
	return strconv.FormatInt(n, 10)
}

func derefInt(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}

// sanitizeInput removes control characters except tab, newline and carriage
// return, and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}
