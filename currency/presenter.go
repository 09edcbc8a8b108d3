// Package currency renders base-currency minor units in a display currency.
package currency

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"checkout-service/models"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

const defaultScale = 2

var hundred = decimal.NewFromInt(100)

// Display converts amountMinor (base currency) at rate and formats it with symbol.
// Grouping follows English conventions; use a Presenter for locale-aware output.
func Display(amountMinor int64, code, symbol string, rate float64) string {
	return format(amountMinor, code, symbol, rate, language.English)
}

// Convert returns the target-currency major-unit value rounded to the currency's scale.
func Convert(amountMinor int64, code string, rate float64) decimal.Decimal {
	return decimal.NewFromInt(amountMinor).
		Div(hundred).
		Mul(decimal.NewFromFloat(rate)).
		Round(int32(Scale(code)))
}

// Scale is the number of decimals the currency is displayed with.
func Scale(code string) int {
	u, err := currency.ParseISO(strings.TrimSpace(code))
	if err != nil {
		return defaultScale
	}
	scale, _ := currency.Standard.Rounding(u)
	return scale
}

// ToMajor converts base-currency minor units to major units with no exchange.
func ToMajor(amountMinor int64) float64 {
	return decimal.NewFromInt(amountMinor).Div(hundred).InexactFloat64()
}

// FromMajor is the inverse of ToMajor, rounded half-up to whole minor units.
func FromMajor(amount float64) int64 {
	return decimal.NewFromFloat(amount).Mul(hundred).Round(0).IntPart()
}

func format(amountMinor int64, code, symbol string, rate float64, tag language.Tag) string {
	scale := Scale(code)
	v := Convert(amountMinor, code, rate)

	sign := ""
	if v.IsNegative() {
		sign = "-"
		v = v.Abs()
	}
	if symbol == "" {
		symbol = strings.ToUpper(code) + " "
	}

	// Digits come from the decimal itself; the printer only groups the whole part.
	p := message.NewPrinter(tag)
	whole, frac, _ := strings.Cut(v.StringFixed(int32(scale)), ".")
	digits := whole
	if n, err := strconv.ParseInt(whole, 10, 64); err == nil {
		digits = p.Sprint(number.Decimal(n))
	}
	if frac != "" {
		digits += decimalSeparator(p) + frac
	}
	return fmt.Sprintf("%s%s%s", sign, symbol, digits)
}

func decimalSeparator(p *message.Printer) string {
	sep := strings.TrimFunc(p.Sprint(number.Decimal(1.5, number.Scale(1))), unicode.IsDigit)
	if sep == "" {
		return "."
	}
	return sep
}

// Presenter renders amounts for one region.
type Presenter struct {
	region models.Region
	tag    language.Tag
}

func NewPresenter(region models.Region) Presenter {
	tag := language.English
	if region.Locale != "" {
		if t, err := language.Parse(region.Locale); err == nil {
			tag = t
		}
	}
	return Presenter{region: region, tag: tag}
}

func (p Presenter) Region() models.Region { return p.region }

// Display renders a base-currency minor-unit amount in the region's currency.
func (p Presenter) Display(amountMinor int64) string {
	return format(amountMinor, p.region.CurrencyCode, p.region.Symbol, p.region.ExchangeRate, p.tag)
}

// Catalog selects a presenter per request.
type Catalog struct {
	table      models.RegionTable
	defaultKey string
}

// NewCatalog fails when defaultKey is not in the table.
func NewCatalog(table models.RegionTable, defaultKey string) (*Catalog, error) {
	if _, ok := table.Find(defaultKey); !ok {
		return nil, fmt.Errorf("default region %q not in region table", defaultKey)
	}
	return &Catalog{table: table, defaultKey: defaultKey}, nil
}

// Presenter returns the presenter for key, or the default region when key is unknown.
func (c *Catalog) Presenter(key string) Presenter {
	if r, ok := c.table.Find(key); ok {
		return NewPresenter(r)
	}
	r, _ := c.table.Find(c.defaultKey)
	return NewPresenter(r)
}

func (c *Catalog) Regions() []models.Region {
	return c.table.Regions
}
