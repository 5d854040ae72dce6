// Package confidence turns market-data freshness and price dispersion into
// an estimate band. The point price is computed elsewhere; this package only
// decides how much to trust it and how wide the plausible range is.
package confidence

import (
	"math"
	"time"

	"github.com/shopspring/decimal"

	"github.com/openmandi/price-engine/internal/model"
)

// Params are the estimator tunables. All weights and fractions are plain
// ratios, not percentages.
type Params struct {
	// VolatilityWeight scales the coefficient-of-variation penalty.
	VolatilityWeight float64
	// StalenessWeight scales the data-age penalty.
	StalenessWeight float64
	// StalenessHorizon is the age at which data counts as fully stale.
	StalenessHorizon time.Duration
	// DefaultVolatility stands in when the history is too short to measure.
	DefaultVolatility float64
	// QualityPenalty maps a data-quality tier to a flat confidence deduction.
	QualityPenalty map[model.DataQuality]float64
	// Spread converts lost confidence into band half-width, as a fraction
	// of the point price.
	Spread float64
	// MinHalfWidth is the band half-width floor, as a fraction of the
	// point price.
	MinHalfWidth float64
	// LowThreshold marks estimates as degraded below this confidence.
	LowThreshold float64
}

// DefaultParams returns production defaults.
func DefaultParams() Params {
	return Params{
		VolatilityWeight:  0.60,
		StalenessWeight:   0.40,
		StalenessHorizon:  14 * 24 * time.Hour,
		DefaultVolatility: 0.40,
		QualityPenalty: map[model.DataQuality]float64{
			model.QualityHigh:   0,
			model.QualityMedium: 0.10,
			model.QualityLow:    0.25,
		},
		Spread:       0.50,
		MinHalfWidth: 0.02,
		LowThreshold: 0.30,
	}
}

// Band is a confidence-scored price range around a point estimate.
type Band struct {
	Lower      decimal.Decimal
	Upper      decimal.Decimal
	Confidence float64
	Volatility float64
	// Degraded marks a band whose confidence fell below the low threshold,
	// signalling the estimate should be presented with a warning rather
	// than withheld.
	Degraded bool
}

// Estimator computes confidence bands. Stateless and safe for concurrent use.
type Estimator struct {
	params Params
}

func NewEstimator(params Params) *Estimator {
	return &Estimator{params: params}
}

// Bound scores the point estimate produced from a snapshot of the given
// quality and age, using the trailing price history for dispersion. The
// band always brackets the point and the lower edge stays positive.
func (e *Estimator) Bound(point decimal.Decimal, quality model.DataQuality, recordedAt time.Time, history []model.PricePoint, now time.Time) Band {
	vol := e.volatility(history)
	stale := e.staleness(recordedAt, now)
	penalty := e.params.QualityPenalty[quality]

	conf := 1 - (e.params.VolatilityWeight*vol + e.params.StalenessWeight*stale + penalty)
	conf = clamp(conf, 0.05, 0.99)

	half := e.params.Spread * (1 - conf)
	if half < e.params.MinHalfWidth {
		half = e.params.MinHalfWidth
	}

	// A rising volatility trend skews upside risk: widen only the upper
	// half by the measured increase.
	upperHalf := half * (1 + risingTrend(history))

	pt := point.InexactFloat64()
	lower := decimal.NewFromFloat(pt * (1 - half))
	upper := decimal.NewFromFloat(pt * (1 + upperHalf))
	if !lower.IsPositive() {
		lower = point.Mul(decimal.NewFromFloat(0.01))
	}

	return Band{
		Lower:      lower,
		Upper:      upper,
		Confidence: conf,
		Volatility: vol,
		Degraded:   conf < e.params.LowThreshold,
	}
}

// volatility is the coefficient of variation of the trailing history, or the
// conservative default when fewer than three points exist.
func (e *Estimator) volatility(history []model.PricePoint) float64 {
	if len(history) < 3 {
		return e.params.DefaultVolatility
	}
	return coefficientOfVariation(history)
}

func (e *Estimator) staleness(recordedAt, now time.Time) float64 {
	if e.params.StalenessHorizon <= 0 {
		return 0
	}
	age := now.Sub(recordedAt)
	if age <= 0 {
		return 0
	}
	return clamp(float64(age)/float64(e.params.StalenessHorizon), 0, 1)
}

func coefficientOfVariation(history []model.PricePoint) float64 {
	var sum float64
	for _, p := range history {
		sum += p.Price.InexactFloat64()
	}
	mean := sum / float64(len(history))
	if mean == 0 {
		return 0
	}

	var sq float64
	for _, p := range history {
		diff := p.Price.InexactFloat64() - mean
		sq += diff * diff
	}
	stddev := math.Sqrt(sq / float64(len(history)))
	return stddev / mean
}

// risingTrend compares the coefficient of variation of the recent half of
// the history against the prior half and returns the increase, or zero when
// volatility is flat, falling, or unmeasurable.
func risingTrend(history []model.PricePoint) float64 {
	if len(history) < 6 {
		return 0
	}
	mid := len(history) / 2
	prior := coefficientOfVariation(history[:mid])
	recent := coefficientOfVariation(history[mid:])
	if recent <= prior {
		return 0
	}
	return recent - prior
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
