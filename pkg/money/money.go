package money

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// DefaultCurrency is the Rwandan franc, which is settled in whole units.
const DefaultCurrency = "RWF"

var hundred = decimal.NewFromInt(100)

// Round rounds half away from zero to the given number of decimal places.
func Round(amount decimal.Decimal, places int32) decimal.Decimal {
	return amount.Round(places)
}

// NonNegative clamps negative amounts to zero.
func NonNegative(amount decimal.Decimal) decimal.Decimal {
	if amount.IsNegative() {
		return decimal.Zero
	}
	return amount
}

// Percent applies rate to amount and rounds the result.
func Percent(amount, rate decimal.Decimal, places int32) decimal.Decimal {
	return Round(amount.Mul(rate), places)
}

// MinorUnits converts amount into integer minor units for a currency with the
// given number of decimal places (0 for RWF, 2 for USD).
func MinorUnits(amount decimal.Decimal, places int32) int64 {
	scaled := amount.Shift(places)
	return scaled.Round(0).IntPart()
}

// FromCents is used by integrations that report amounts in hundredths.
func FromCents(cents int64) decimal.Decimal {
	return decimal.NewFromInt(cents).Div(hundred)
}

// Parse reads a user-supplied amount, accepting thousands separators.
func Parse(raw string) (decimal.Decimal, error) {
	cleaned := strings.ReplaceAll(strings.TrimSpace(raw), ",", "")
	if cleaned == "" {
		return decimal.Zero, fmt.Errorf("amount is required")
	}
	value, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q: %w", raw, err)
	}
	return value, nil
}

// Formatter renders amounts for receipts and reports.
type Formatter struct {
	printer  *message.Printer
	currency string
	places   int32
}

// NewFormatter builds a formatter. An empty currency defaults to RWF.
func NewFormatter(currency string, places int32) Formatter {
	if strings.TrimSpace(currency) == "" {
		currency = DefaultCurrency
	}
	return Formatter{
		printer:  message.NewPrinter(language.English),
		currency: strings.ToUpper(currency),
		places:   places,
	}
}

// Amount renders the number with grouping, e.g. 12,345. The whole part goes
// through the printer as an int64 and the fraction is taken from the decimal,
// so no digits pass through a float.
func (f Formatter) Amount(amount decimal.Decimal) string {
	rounded := Round(amount, f.places)
	abs := rounded.Abs()
	out := f.printer.Sprint(number.Decimal(abs.Truncate(0).IntPart()))
	if f.places > 0 {
		fixed := abs.StringFixed(f.places)
		out += fixed[strings.IndexByte(fixed, '.'):]
	}
	if rounded.IsNegative() {
		out = "-" + out
	}
	return out
}

// WithCurrency renders the amount followed by the currency code, e.g. 12,345 RWF.
func (f Formatter) WithCurrency(amount decimal.Decimal) string {
	return f.Amount(amount) + " " + f.currency
}
