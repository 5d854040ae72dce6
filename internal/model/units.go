package model

import "github.com/shopspring/decimal"

// Pricing granularity per unit: counter-offers are rounded to the nearest
// multiple of the unit's granularity so suggestions read like real mandi
// quotes (whole rupees per quintal, 5 paise per kg).
var unitGranularity = map[string]decimal.Decimal{
	"quintal": decimal.NewFromInt(1),
	"kg":      decimal.NewFromFloat(0.05),
	"ton":     decimal.NewFromInt(10),
	"bag":     decimal.NewFromInt(1),
}

// DefaultUnit is assumed when an offer or query omits the unit.
const DefaultUnit = "quintal"

// Granularity returns the pricing granularity for a unit, defaulting to
// whole rupees for unknown units.
func Granularity(unit string) decimal.Decimal {
	if g, ok := unitGranularity[unit]; ok {
		return g
	}
	return decimal.NewFromInt(1)
}

// RoundToGranularity rounds a price to the nearest multiple of the unit's
// granularity.
func RoundToGranularity(price decimal.Decimal, unit string) decimal.Decimal {
	g := Granularity(unit)
	return price.Div(g).Round(0).Mul(g)
}

// kilogramsPerUnit converts between the mass units mandi records use.
// Quintal is the canonical pricing unit (100 kg).
var kilogramsPerUnit = map[string]decimal.Decimal{
	"kg":      decimal.NewFromInt(1),
	"quintal": decimal.NewFromInt(100),
	"ton":     decimal.NewFromInt(1000),
	"bag":     decimal.NewFromInt(50),
}

// ConvertPrice converts a per-unit price from one mass unit to another.
// Returns the input unchanged when either unit is unknown.
func ConvertPrice(price decimal.Decimal, fromUnit, toUnit string) decimal.Decimal {
	from, okFrom := kilogramsPerUnit[fromUnit]
	to, okTo := kilogramsPerUnit[toUnit]
	if !okFrom || !okTo || fromUnit == toUnit {
		return price
	}
	// price per fromUnit -> price per kg -> price per toUnit
	return price.Div(from).Mul(to)
}
