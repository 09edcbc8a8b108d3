// Package shipping computes shipping fees from a static rule table.
package shipping

import (
	"strings"

	"checkout-service/models"
)

// FallbackFee applies when no rule exists for the destination country.
const FallbackFee int64 = 500

// ResolveFee maps an address to a fee in minor units. Precedence: city region
// (flat fee, then urban/suburban split), zipcode table, country default.
func ResolveFee(addr models.ShippingAddress, table models.RuleTable) int64 {
	rule, ok := findRule(table, addr.Country)
	if !ok {
		return FallbackFee
	}

	if region, ok := findRegion(rule.Regions, addr.City); ok {
		if region.FlatFee != nil {
			return *region.FlatFee
		}
		if containsFold(region.UrbanDistricts, addr.District) {
			return feeOr(region.UrbanFee, rule.DefaultFee)
		}
		return feeOr(region.SuburbanFee, rule.DefaultFee)
	}

	if zip := strings.TrimSpace(addr.Zipcode); zip != "" {
		if fee, ok := rule.ZipcodeFee[zip]; ok {
			return fee
		}
	}
	return rule.DefaultFee
}

func findRule(table models.RuleTable, country string) (models.ShippingRule, bool) {
	country = normalize(country)
	if country == "" {
		return models.ShippingRule{}, false
	}
	for _, r := range table.Rules {
		if normalize(r.Country) == country {
			return r, true
		}
	}
	return models.ShippingRule{}, false
}

func findRegion(regions []models.RegionRule, city string) (models.RegionRule, bool) {
	city = normalize(city)
	if city == "" {
		return models.RegionRule{}, false
	}
	for _, r := range regions {
		if normalize(r.City) == city {
			return r, true
		}
	}
	return models.RegionRule{}, false
}

func containsFold(list []string, v string) bool {
	v = normalize(v)
	if v == "" {
		return false
	}
	for _, item := range list {
		if normalize(item) == v {
			return true
		}
	}
	return false
}

func feeOr(fee *int64, fallback int64) int64 {
	if fee != nil {
		return *fee
	}
	return fallback
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Resolver binds a loaded rule table.
type Resolver struct {
	table models.RuleTable
}

func NewResolver(table models.RuleTable) *Resolver {
	return &Resolver{table: table}
}

// Fee resolves addr against the bound table. It is evaluated on every call.
func (r *Resolver) Fee(addr models.ShippingAddress) int64 {
	return ResolveFee(addr, r.table)
}
