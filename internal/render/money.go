// Package render derives view models for the cart and checkout screens.
// Nothing here holds state or makes requests.
package render

import (
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

var symbols = map[string]string{
	"CAD": "CA$",
	"USD": "US$",
	"EUR": "€",
	"GBP": "£",
	"NGN": "₦",
	"GHS": "GH₵",
	"KES": "KSh",
	"ZAR": "R",
}

// Formatter renders amounts for one locale and default currency.
type Formatter struct {
	printer  *message.Printer
	currency currency.Unit
	// group and point are the locale's digit grouping and decimal separators
	group string
	point string
}

// NewFormatter falls back to English and CAD for unknown inputs.
func NewFormatter(locale, currencyCode string) *Formatter {
	tag, err := language.Parse(locale)
	if err != nil {
		tag = language.English
	}
	unit, err := currency.ParseISO(currencyCode)
	if err != nil {
		unit = currency.CAD
	}
	f := &Formatter{printer: message.NewPrinter(tag), currency: unit, group: ",", point: "."}
	f.learnSeparators()
	return f
}

// learnSeparators reads the locale's separators off a formatted sample.
func (f *Formatter) learnSeparators() {
	sample := f.printer.Sprint(number.Decimal(1234.5, number.Scale(1)))
	one := strings.Index(sample, "1")
	digits := strings.Index(sample, "234")
	if one < 0 || digits <= one {
		return
	}
	point, ok := strings.CutSuffix(sample[digits+3:], "5")
	if !ok || point == "" {
		return
	}
	f.group = sample[one+1 : digits]
	f.point = point
}

func (f *Formatter) Currency() string {
	return f.currency.String()
}

// Money formats amount in code, or the default currency when code is empty
// or unknown, rounded to the currency's standard minor units.
func (f *Formatter) Money(amount decimal.Decimal, code string) string {
	unit := f.currency
	if code != "" {
		if u, err := currency.ParseISO(code); err == nil {
			unit = u
		}
	}

	scale, _ := currency.Standard.Rounding(unit)
	rounded := amount.Round(int32(scale))

	sign := ""
	if rounded.IsNegative() {
		sign = "-"
		rounded = rounded.Abs()
	}

	symbol, ok := symbols[unit.String()]
	if !ok {
		symbol = unit.String() + " "
	}
	whole, frac, _ := strings.Cut(rounded.StringFixed(int32(scale)), ".")
	out := sign + symbol + groupDigits(whole, f.group)
	if frac != "" {
		out += f.point + frac
	}
	return out
}

func groupDigits(digits, sep string) string {
	if len(digits) <= 3 || sep == "" {
		return digits
	}
	var b strings.Builder
	head := len(digits) % 3
	if head > 0 {
		b.WriteString(digits[:head])
	}
	for i := head; i < len(digits); i += 3 {
		if b.Len() > 0 {
			b.WriteString(sep)
		}
		b.WriteString(digits[i : i+3])
	}
	return b.String()
}
