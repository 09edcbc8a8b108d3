package models

import "strings"

// RegionRule is a per-city shipping rule inside a country rule.
type RegionRule struct {
	City           string   `json:"city" dynamodbav:"city" validate:"required"`
	FlatFee        *int64   `json:"flatFee,omitempty" dynamodbav:"flatFee,omitempty" validate:"omitempty,gte=0"`
	UrbanDistricts []string `json:"urbanDistricts,omitempty" dynamodbav:"urbanDistricts,omitempty"`
	UrbanFee       *int64   `json:"urbanFee,omitempty" dynamodbav:"urbanFee,omitempty" validate:"omitempty,gte=0"`
	SuburbanFee    *int64   `json:"suburbanFee,omitempty" dynamodbav:"suburbanFee,omitempty" validate:"omitempty,gte=0"`
}

// ShippingRule holds the fees for one country. Fees are minor units.
type ShippingRule struct {
	Country    string           `json:"country" dynamodbav:"country" validate:"required"`
	DefaultFee int64            `json:"defaultFee" dynamodbav:"defaultFee" validate:"gte=0"`
	Regions    []RegionRule     `json:"regions,omitempty" dynamodbav:"regions,omitempty" validate:"dive"`
	ZipcodeFee map[string]int64 `json:"zipcodeFee,omitempty" dynamodbav:"zipcodeFee,omitempty"`
}

// RuleTable is the static rule data, one rule per country.
type RuleTable struct {
	Rules []ShippingRule `json:"rules" validate:"dive"`
}

// Region carries display currency metadata for one market.
type Region struct {
	Key          string  `json:"key" validate:"required"`
	Country      string  `json:"country" validate:"required"`
	CurrencyCode string  `json:"currencyCode" validate:"required,len=3"`
	Symbol       string  `json:"symbol" validate:"required"`
	Locale       string  `json:"locale"`
	ExchangeRate float64 `json:"exchangeRate" validate:"gt=0"`
}

// RegionTable lists the supported display regions.
type RegionTable struct {
	Regions []Region `json:"regions" validate:"required,min=1,dive"`
}

// Find returns the region with the given key, ignoring case.
func (t RegionTable) Find(key string) (Region, bool) {
	key = strings.TrimSpace(key)
	for _, r := range t.Regions {
		if strings.EqualFold(r.Key, key) {
			return r, true
		}
	}
	return Region{}, false
}
