package compose

import (
	"strings"
	"time"

	"github.com/goodsign/monday"
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// DefaultDateLayout renders dates as "15 de marzo de 2024".
const DefaultDateLayout = "02 de January de 2006"

// DefaultCurrencySymbol prefixes formatted amounts.
const DefaultCurrencySymbol = "$"

// MXN amounts use comma grouping and a period decimal mark.
var defaultNumberLocale = language.AmericanEnglish

type formatter struct {
	printer    *message.Printer
	symbol     string
	dateLayout string
	dateLocale monday.Locale
}

func newFormatter(numberLocale language.Tag, symbol, dateLayout string, dateLocale monday.Locale) formatter {
	return formatter{
		printer:    message.NewPrinter(numberLocale),
		symbol:     symbol,
		dateLayout: dateLayout,
		dateLocale: dateLocale,
	}
}

// Money rounds half away from zero to two places and prefixes the currency symbol.
func (f formatter) Money(v float64) string {
	rounded := decimal.NewFromFloat(v).Round(2)
	sign := ""
	if rounded.IsNegative() {
		sign = "-"
		rounded = rounded.Abs()
	}
	return sign + f.symbol + f.printer.Sprint(number.Decimal(rounded.InexactFloat64(), number.Scale(2)))
}

// Quantity prints the shortest exact decimal form.
func (f formatter) Quantity(v float64) string {
	return decimal.NewFromFloat(v).String()
}

// Rate prints a tax rate as a percentage. Rates above one are taken as already scaled.
func (f formatter) Rate(v float64) string {
	rate := decimal.NewFromFloat(v)
	if rate.LessThanOrEqual(decimal.NewFromInt(1)) {
		rate = rate.Mul(decimal.NewFromInt(100))
	}
	return rate.Round(4).String() + "%"
}

// Date prints a localized long date. The zero time prints as empty.
func (f formatter) Date(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return monday.Format(t, f.dateLayout, f.dateLocale)
}

// DateTime appends the wall clock to Date.
func (f formatter) DateTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return strings.TrimSpace(f.Date(t) + " " + t.Format("15:04:05"))
}
