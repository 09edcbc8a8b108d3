package currency_test

import (
	"testing"

	"checkout-service/currency"
	"checkout-service/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDisplay_OrderTotalInPounds(t *testing.T) {
	subtotal, fee := int64(15000), int64(500)
	assert.Equal(t, "£155.00", currency.Display(subtotal+fee, "GBP", "£", 1.0))
}

func TestDisplay_Idempotent(t *testing.T) {
	for _, amount := range []int64{0, 1, 99, 15500, 123456789} {
		first := currency.Display(amount, "USD", "$", 1.27)
		second := currency.Display(amount, "USD", "$", 1.27)
		assert.Equal(t, first, second)
	}
}

func TestDisplay_ConvertsAndGroups(t *testing.T) {
	assert.Equal(t, "$1,270.00", currency.Display(100000, "USD", "$", 1.27))
	assert.Equal(t, "$0.01", currency.Display(1, "USD", "$", 1.0))
}

func TestDisplay_LargeAmountsKeepEveryDigit(t *testing.T) {
	// beyond float64 precision once converted to major units
	assert.Equal(t, "£9,007,199,254,740,993.99", currency.Display(900719925474099399, "GBP", "£", 1))

	de := currency.NewPresenter(models.Region{Key: "DE", Country: "Germany", CurrencyCode: "EUR", Symbol: "€", Locale: "de-DE", ExchangeRate: 1})
	assert.Equal(t, "€9.007.199.254.740.993,99", de.Display(900719925474099399))
}

func TestDisplay_ZeroDecimalCurrency(t *testing.T) {
	assert.Equal(t, 0, currency.Scale("JPY"))
	assert.Equal(t, "¥19,150", currency.Display(10000, "JPY", "¥", 191.5))
}

func TestDisplay_UnknownCodeUsesTwoDecimals(t *testing.T) {
	assert.Equal(t, 2, currency.Scale("???"))
	assert.Equal(t, "XX 5.00", currency.Display(500, "xx", "", 1))
}

func TestDisplay_Negative(t *testing.T) {
	assert.Equal(t, "-£2.50", currency.Display(-250, "GBP", "£", 1))
}

func TestConvert_RoundsHalfAwayFromZero(t *testing.T) {
	assert.Equal(t, "0.02", currency.Convert(1, "USD", 1.5).StringFixed(2))
}

func TestToMajor(t *testing.T) {
	assert.Equal(t, 155.0, currency.ToMajor(15500))
	assert.Equal(t, 0.99, currency.ToMajor(99))
	assert.Equal(t, int64(15500), currency.FromMajor(155))
	assert.Equal(t, int64(1999), currency.FromMajor(19.99))
}

func TestPresenter_LocaleGrouping(t *testing.T) {
	p := currency.NewPresenter(models.Region{Key: "DE", Country: "Germany", CurrencyCode: "EUR", Symbol: "€", Locale: "de-DE", ExchangeRate: 1.0})
	assert.Equal(t, "€1.234,50", p.Display(123450))

	vn := currency.NewPresenter(models.Region{Key: "VN", Country: "Vietnam", CurrencyCode: "VND", Symbol: "₫", Locale: "en", ExchangeRate: 30000})
	assert.Equal(t, "₫4,650,000", vn.Display(15500))
}

func TestCatalog_FallsBackToDefault(t *testing.T) {
	table := models.RegionTable{Regions: []models.Region{
		{Key: "GB", Country: "United Kingdom", CurrencyCode: "GBP", Symbol: "£", Locale: "en-GB", ExchangeRate: 1},
		{Key: "US", Country: "United States", CurrencyCode: "USD", Symbol: "$", Locale: "en-US", ExchangeRate: 1.27},
	}}
	c, err := currency.NewCatalog(table, "GB")
	require.NoError(t, err)

	assert.Equal(t, "US", c.Presenter("us").Region().Key)
	assert.Equal(t, "GB", c.Presenter("nowhere").Region().Key)
	assert.Equal(t, "GB", c.Presenter("").Region().Key)

	_, err = currency.NewCatalog(table, "FR")
	assert.Error(t, err)
}
