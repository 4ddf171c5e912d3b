package money

import (
	"strings"

	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// Symbol returns the locale's narrow symbol for a currency, e.g. "₹" or "$".
// Codes unknown to CLDR fall back to the code itself.
func Symbol(code, locale string) string {
	code = NormaliseCurrency(code)
	unit, err := currency.ParseISO(code)
	if err != nil {
		return code + " "
	}
	return printer(locale).Sprint(currency.NarrowSymbol(unit))
}

// Display renders the amount for humans with the locale's digits, grouping and
// decimal separator, e.g. "₹1,234.50" for en and "₹1,23,456.78" for en-IN.
// Unknown locales fall back to English.
func (m Money) Display(locale string) string {
	p := printer(locale)
	sign := ""
	if m.Amount < 0 {
		sign = "-"
	}
	major := m.Decimal().Abs().InexactFloat64()
	out := p.Sprintf("%v", number.Decimal(major, number.Scale(int(Exponent(m.Currency)))))
	return sign + Symbol(m.Currency, locale) + out
}

func printer(locale string) *message.Printer {
	tag, err := language.Parse(strings.TrimSpace(locale))
	if err != nil {
		tag = language.English
	}
	return message.NewPrinter(tag)
}
