// Package currency holds the static currency table used for display
// formatting. Amounts are never converted between currencies.
package currency

import (
	"math"
	"sort"
	"strconv"
	"strings"
)

const DefaultCode = "USD"

type Position string

const (
	Before Position = "before"
	After  Position = "after"
)

// Descriptor describes how amounts in one currency are displayed.
type Descriptor struct {
	Code     string   `json:"code"`
	Name     string   `json:"name"`
	Symbol   string   `json:"symbol"`
	Position Position `json:"position"`
	Decimals int      `json:"decimals"`
}

var table = map[string]Descriptor{
	"USD": {Code: "USD", Name: "US Dollar", Symbol: "$", Position: Before, Decimals: 2},
	"EUR": {Code: "EUR", Name: "Euro", Symbol: "€", Position: Before, Decimals: 2},
	"GBP": {Code: "GBP", Name: "British Pound", Symbol: "£", Position: Before, Decimals: 2},
	"CAD": {Code: "CAD", Name: "Canadian Dollar", Symbol: "CA$", Position: Before, Decimals: 2},
	"AUD": {Code: "AUD", Name: "Australian Dollar", Symbol: "A$", Position: Before, Decimals: 2},
	"NZD": {Code: "NZD", Name: "New Zealand Dollar", Symbol: "NZ$", Position: Before, Decimals: 2},
	"JPY": {Code: "JPY", Name: "Japanese Yen", Symbol: "¥", Position: Before, Decimals: 0},
	"CNY": {Code: "CNY", Name: "Chinese Yuan", Symbol: "¥", Position: Before, Decimals: 2},
	"INR": {Code: "INR", Name: "Indian Rupee", Symbol: "₹", Position: Before, Decimals: 2},
	"CHF": {Code: "CHF", Name: "Swiss Franc", Symbol: "CHF", Position: Before, Decimals: 2},
	"SEK": {Code: "SEK", Name: "Swedish Krona", Symbol: "kr", Position: After, Decimals: 2},
	"NOK": {Code: "NOK", Name: "Norwegian Krone", Symbol: "kr", Position: After, Decimals: 2},
	"DKK": {Code: "DKK", Name: "Danish Krone", Symbol: "kr", Position: After, Decimals: 2},
	"PLN": {Code: "PLN", Name: "Polish Zloty", Symbol: "zł", Position: After, Decimals: 2},
	"BRL": {Code: "BRL", Name: "Brazilian Real", Symbol: "R$", Position: Before, Decimals: 2},
	"MXN": {Code: "MXN", Name: "Mexican Peso", Symbol: "MX$", Position: Before, Decimals: 2},
	"ZAR": {Code: "ZAR", Name: "South African Rand", Symbol: "R", Position: Before, Decimals: 2},
	"SGD": {Code: "SGD", Name: "Singapore Dollar", Symbol: "S$", Position: Before, Decimals: 2},
	"KRW": {Code: "KRW", Name: "South Korean Won", Symbol: "₩", Position: Before, Decimals: 0},
	"IDR": {Code: "IDR", Name: "Indonesian Rupiah", Symbol: "Rp", Position: Before, Decimals: 0},
	"AED": {Code: "AED", Name: "UAE Dirham", Symbol: "AED", Position: Before, Decimals: 2},
}

// Lookup returns the descriptor for code. Unknown or empty codes resolve to
// the USD entry.
func Lookup(code string) Descriptor {
	if d, ok := table[normalize(code)]; ok {
		return d
	}
	return table[DefaultCode]
}

// Known reports whether code is in the table.
func Known(code string) bool {
	_, ok := table[normalize(code)]
	return ok
}

// Codes lists the supported codes in alphabetical order.
func Codes() []string {
	out := make([]string, 0, len(table))
	for code := range table {
		out = append(out, code)
	}
	sort.Strings(out)
	return out
}

// Format rounds amount to the currency precision and places the symbol.
func Format(amount float64, code string) string {
	d := Lookup(code)
	if math.IsNaN(amount) || math.IsInf(amount, 0) {
		amount = 0
	}
	rounded := round(amount, d.Decimals)
	sign := ""
	switch {
	case rounded == 0:
		// Drops negative zero so a vanished discount prints unsigned.
		rounded = 0
	case rounded < 0:
		sign = "-"
		rounded = -rounded
	}
	value := groupThousands(strconv.FormatFloat(rounded, 'f', d.Decimals, 64))
	if d.Position == After {
		return sign + value + " " + d.Symbol
	}
	return sign + d.Symbol + value
}

func round(amount float64, decimals int) float64 {
	p := math.Pow10(decimals)
	return math.Round(amount*p) / p
}

func groupThousands(value string) string {
	sign := ""
	if strings.HasPrefix(value, "-") {
		sign = "-"
		value = value[1:]
	}
	intPart, frac, hasFrac := strings.Cut(value, ".")
	if len(intPart) > 3 {
		var b strings.Builder
		lead := len(intPart) % 3
		if lead > 0 {
			b.WriteString(intPart[:lead])
		}
		for i := lead; i < len(intPart); i += 3 {
			if b.Len() > 0 {
				b.WriteByte(',')
			}
			b.WriteString(intPart[i : i+3])
		}
		intPart = b.String()
	}
	if hasFrac {
		return sign + intPart + "." + frac
	}
	return sign + intPart
}

func normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
