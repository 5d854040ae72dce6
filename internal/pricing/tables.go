package pricing

import "github.com/shopspring/decimal"

// Shipped domain tables. Seasonal multipliers follow the Indian mandi
// calendar: grains peak before the rabi harvest, vegetables spike in winter
// and collapse during the monsoon glut.

var defaultSeasonal = map[string][12]float64{
	//        Jan   Feb   Mar   Apr   May   Jun   Jul   Aug   Sep   Oct   Nov   Dec
	"rice":   {1.05, 1.03, 1.00, 0.98, 0.95, 0.93, 0.95, 0.98, 1.02, 1.08, 1.12, 1.10},
	"wheat":  {1.08, 1.10, 1.05, 1.00, 0.95, 0.90, 0.92, 0.95, 1.00, 1.05, 1.08, 1.10},
	"onion":  {1.20, 1.25, 1.15, 1.00, 0.85, 0.80, 0.75, 0.80, 0.90, 1.05, 1.15, 1.18},
	"potato": {1.15, 1.20, 1.10, 1.00, 0.90, 0.85, 0.80, 0.85, 0.95, 1.05, 1.10, 1.12},
	"tomato": {1.30, 1.35, 1.20, 1.00, 0.80, 0.70, 0.65, 0.70, 0.85, 1.10, 1.25, 1.28},
	"cotton": {1.05, 1.03, 1.00, 0.98, 0.95, 0.93, 0.95, 0.98, 1.02, 1.08, 1.10, 1.08},
}

func defaultGradeMultipliers() map[string]decimal.Decimal {
	return map[string]decimal.Decimal{
		"premium":  decimal.NewFromFloat(1.30),
		"good":     decimal.NewFromFloat(1.10),
		"standard": decimal.NewFromInt(1),
		"low":      decimal.NewFromFloat(0.70),
	}
}

// Regional price differentials relative to the national mandi average.
// Metro markets trade at a premium; remote collection points at a discount.
var defaultLocationOffsets = map[string]float64{
	"mumbai":    0.10,
	"delhi":     0.08,
	"bangalore": 0.06,
	"chennai":   0.05,
	"hyderabad": 0.05,
	"pune":      0.04,
	"nashik":    0.00,
	"indore":    -0.02,
	"rural":     -0.08,
	"remote":    -0.12,
}

// Comparable-product substitutions, the last fallback before
// ErrNoComparableData. Keyed and valued by canonical product names.
var defaultSubstitutions = map[string]string{
	"basmati":   "rice",
	"paddy":     "rice",
	"maida":     "wheat",
	"shallot":   "onion",
	"jaggery":   "sugarcane",
	"safflower": "cotton",
}

// ProductInfo describes one catalogue entry served by the products endpoint.
type ProductInfo struct {
	Name     string   `json:"name"`
	Category string   `json:"category"`
	Unit     string   `json:"unit"`
	Grades   []string `json:"grades"`
}

// Catalogue lists the products the engine ships seasonal tables and sample
// data for. Markets can trade other products; those simply price without a
// seasonal factor.
func Catalogue() []ProductInfo {
	grades := []string{"premium", "good", "standard", "low"}
	return []ProductInfo{
		{Name: "rice", Category: "grains", Unit: "quintal", Grades: grades},
		{Name: "wheat", Category: "grains", Unit: "quintal", Grades: grades},
		{Name: "onion", Category: "vegetables", Unit: "quintal", Grades: grades},
		{Name: "potato", Category: "vegetables", Unit: "quintal", Grades: grades},
		{Name: "tomato", Category: "vegetables", Unit: "quintal", Grades: grades},
		{Name: "cotton", Category: "cash_crops", Unit: "quintal", Grades: grades},
		{Name: "sugarcane", Category: "cash_crops", Unit: "quintal", Grades: grades},
		{Name: "turmeric", Category: "spices", Unit: "quintal", Grades: grades},
	}
}
