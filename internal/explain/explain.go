// Package explain renders a price estimate as plain-language statements a
// farmer or trader can act on. Output order is deterministic: strongest
// factor first.
package explain

import (
	"fmt"
	"sort"

	"github.com/openmandi/price-engine/internal/model"
	"github.com/openmandi/price-engine/internal/pricing"
)

// canonicalOrder breaks magnitude ties so identical estimates always
// explain identically.
var canonicalOrder = map[string]int{
	pricing.FactorSeasonal: 0,
	pricing.FactorQuality:  1,
	pricing.FactorQuantity: 2,
	pricing.FactorLocation: 3,
}

var factorPhrases = map[string][2]string{
	pricing.FactorSeasonal: {"seasonal demand raised the price", "seasonal supply lowered the price"},
	pricing.FactorQuality:  {"the quality grade commands a premium", "the quality grade trades at a discount"},
	pricing.FactorQuantity: {"the order size raised the unit price", "the bulk order size earns a volume discount"},
	pricing.FactorLocation: {"prices run higher in this market", "prices run lower in this market"},
}

// Explain converts the estimate into ordered human-readable statements:
// one line per factor (largest impact first), a price-range line, a
// confidence line, and a leading warning when the estimate is degraded.
func Explain(est *model.PriceEstimate) []string {
	factors := make([]model.PriceFactor, len(est.Factors))
	copy(factors, est.Factors)
	sort.SliceStable(factors, func(i, j int) bool {
		mi, mj := abs(factors[i].Magnitude), abs(factors[j].Magnitude)
		if mi != mj {
			return mi > mj
		}
		return canonicalOrder[factors[i].Name] < canonicalOrder[factors[j].Name]
	})

	var out []string
	if est.Degraded {
		out = append(out, fmt.Sprintf(
			"Caution: this estimate is based on limited or stale %s market data; treat it as indicative only.",
			est.Product))
	}

	for _, f := range factors {
		out = append(out, factorStatement(f))
	}

	out = append(out, fmt.Sprintf("The fair price range for %s in %s is %s to %s per %s.",
		est.Product, est.Location, est.LowerBound.StringFixed(2), est.UpperBound.StringFixed(2), est.Unit))
	out = append(out, fmt.Sprintf("Confidence in this estimate is %.0f%% (%s market data).",
		est.Confidence*100, est.DataQuality))

	return out
}

func factorStatement(f model.PriceFactor) string {
	phrases, ok := factorPhrases[f.Name]
	if !ok {
		phrases = [2]string{f.Name + " raised the price", f.Name + " lowered the price"}
	}
	phrase := phrases[0]
	if f.Direction == model.DirectionDown {
		phrase = phrases[1]
	}
	// Factor lines carry the band descriptor only, never a raw percentage.
	return fmt.Sprintf("A %s effect: %s.", magnitudeBand(f.Magnitude), phrase)
}

// magnitudeBand maps an impact fraction to a severity descriptor.
func magnitudeBand(magnitude float64) string {
	m := abs(magnitude)
	switch {
	case m < 0.02:
		return "slight"
	case m < 0.08:
		return "moderate"
	case m < 0.20:
		return "significant"
	default:
		return "substantial"
	}
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}
