// Package rates holds the versioned per-stream rate table and the payout fee
// table. Both are immutable once built and are injected where needed.
package rates

import (
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// Other is the fallback key for unknown platforms and countries.
const Other = "other"

const BuiltinVersion = "builtin-2024.1"

type RateTable struct {
	version   string
	platforms map[string]decimal.Decimal
	countries map[string]decimal.Decimal
}

// NewRateTable copies its inputs. Both maps must carry an "other" entry.
func NewRateTable(version string, platforms, countries map[string]decimal.Decimal) (*RateTable, error) {
	if strings.TrimSpace(version) == "" {
		return nil, fmt.Errorf("NewRateTable: version required")
	}

	p, err := normalize(platforms, strings.ToLower)
	if err != nil {
		return nil, fmt.Errorf("NewRateTable: platforms: %w", err)
	}
	c, err := normalize(countries, strings.ToUpper)
	if err != nil {
		return nil, fmt.Errorf("NewRateTable: countries: %w", err)
	}

	if _, ok := p[Other]; !ok {
		return nil, fmt.Errorf("NewRateTable: platforms: missing %q fallback", Other)
	}
	if _, ok := c[Other]; !ok {
		return nil, fmt.Errorf("NewRateTable: countries: missing %q fallback", Other)
	}

	return &RateTable{version: version, platforms: p, countries: c}, nil
}

func (t *RateTable) Version() string { return t.version }

// Rate is basePlatformRate(platform) × countryMultiplier(country).
func (t *RateTable) Rate(platform, country string) decimal.Decimal {
	return t.PlatformRate(platform).Mul(t.CountryMultiplier(country))
}

func (t *RateTable) PlatformRate(platform string) decimal.Decimal {
	if r, ok := t.platforms[strings.ToLower(strings.TrimSpace(platform))]; ok {
		return r
	}
	return t.platforms[Other]
}

func (t *RateTable) CountryMultiplier(country string) decimal.Decimal {
	if m, ok := t.countries[strings.ToUpper(strings.TrimSpace(country))]; ok {
		return m
	}
	return t.countries[Other]
}

func (t *RateTable) Platforms() []string { return keys(t.platforms) }

type FeeTable struct {
	methods map[string]decimal.Decimal
}

func NewFeeTable(methods map[string]decimal.Decimal) (*FeeTable, error) {
	m, err := normalize(methods, strings.ToLower)
	if err != nil {
		return nil, fmt.Errorf("NewFeeTable: %w", err)
	}
	if len(m) == 0 {
		return nil, fmt.Errorf("NewFeeTable: at least one payment method required")
	}
	for k, v := range m {
		if v.GreaterThanOrEqual(decimal.NewFromInt(1)) {
			return nil, fmt.Errorf("NewFeeTable: %s: fee rate must be below 1", k)
		}
	}
	return &FeeTable{methods: m}, nil
}

// Rate returns the fee rate for a method and whether the method is supported.
func (t *FeeTable) Rate(method string) (decimal.Decimal, bool) {
	r, ok := t.methods[strings.ToLower(strings.TrimSpace(method))]
	return r, ok
}

func (t *FeeTable) Methods() []string { return keys(t.methods) }

func normalize(in map[string]decimal.Decimal, fold func(string) string) (map[string]decimal.Decimal, error) {
	out := make(map[string]decimal.Decimal, len(in))
	for k, v := range in {
		key := strings.TrimSpace(k)
		if strings.EqualFold(key, Other) {
			key = Other
		} else {
			key = fold(key)
		}
		if key == "" {
			return nil, fmt.Errorf("empty key")
		}
		if v.IsNegative() {
			return nil, fmt.Errorf("%s: negative value %s", key, v)
		}
		out[key] = v
	}
	return out, nil
}

func keys(m map[string]decimal.Decimal) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
