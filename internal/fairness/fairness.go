// Package fairness scores an offer against a price estimate. The scorer is
// pure: same offer and estimate always produce the same verdict, score, and
// counter-offer (property: no hidden negotiation state).
package fairness

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/openmandi/price-engine/internal/model"
)

var (
	// ErrEstimateMismatch is returned when the offer and estimate describe
	// different goods.
	ErrEstimateMismatch = errors.New("fairness: offer does not match estimate")
	// ErrZeroPoint guards against division by a zero point price.
	ErrZeroPoint = errors.New("fairness: estimate point price must be positive")
)

// Params are the scoring tunables, all expressed as deviation fractions.
type Params struct {
	// FairBand is the absolute deviation within which an offer is fair.
	FairBand float64
	// ModerateBand is the absolute deviation within which a directional
	// verdict (favorable or unfavorable) still applies.
	ModerateBand float64
	// MaxDeviation is the exploitation threshold; it also normalises the
	// score so that score hits zero exactly at the threshold.
	MaxDeviation float64
}

// DefaultParams returns production defaults.
func DefaultParams() Params {
	return Params{
		FairBand:     0.05,
		ModerateBand: 0.15,
		MaxDeviation: 0.35,
	}
}

// Scorer assesses offers. Stateless and safe for concurrent use.
type Scorer struct {
	params Params
}

func NewScorer(params Params) *Scorer {
	return &Scorer{params: params}
}

// Assess scores the offer against the estimate's point price.
//
// DeviationPct is role-signed: positive always means the submitting role is
// ahead at the counterpart's expense, so a buyer's lowball and a seller's
// overask with the same raw deviation get mirrored signs and identical
// scores. An offer beyond MaxDeviation in either direction is exploitative
// and always carries a predatory-pricing flag.
func (s *Scorer) Assess(offer model.Offer, est *model.PriceEstimate) (*model.FairnessAssessment, error) {
	if err := offer.Validate(); err != nil {
		return nil, err
	}
	// Product names compare case-insensitively; the pricing pipeline
	// canonicalises them to lowercase.
	if !strings.EqualFold(offer.Product, est.Product) {
		return nil, fmt.Errorf("%w: offer is for %q, estimate for %q",
			ErrEstimateMismatch, offer.Product, est.Product)
	}
	if !est.PointPrice.IsPositive() {
		return nil, ErrZeroPoint
	}

	// Offers priced in a different unit than the estimate are normalised
	// before comparing.
	offerPrice := model.ConvertPrice(offer.UnitPrice, unitOrDefault(offer.Unit), unitOrDefault(est.Unit))

	raw := offerPrice.Sub(est.PointPrice).
		Div(est.PointPrice).InexactFloat64()
	dev := raw
	if offer.Role == model.RoleBuyer {
		dev = -raw
	}

	absDev := dev
	if absDev < 0 {
		absDev = -absDev
	}
	score := 1 - min(1, absDev/s.params.MaxDeviation)
	verdict := s.verdict(dev, absDev)

	assessment := &model.FairnessAssessment{
		ID:           uuid.New().String(),
		Offer:        offer,
		Score:        score,
		DeviationPct: dev,
		Verdict:      verdict,
		PointPrice:   est.PointPrice,
		AssessedAt:   time.Now().UTC(),
	}

	if verdict == model.VerdictExploitative {
		severity := model.SeverityHigh
		if absDev > 2*s.params.MaxDeviation {
			severity = model.SeverityCritical
		}
		assessment.RiskFlags = append(assessment.RiskFlags, model.EthicsFlag{
			Kind:     model.FlagPredatoryPricing,
			Severity: severity,
			Rationale: fmt.Sprintf("offer deviates %.0f%% from the fair price of %s, beyond the %.0f%% exploitation threshold",
				absDev*100, est.PointPrice.StringFixed(2), s.params.MaxDeviation*100),
		})
	}

	if verdict != model.VerdictFair {
		counter, reason := s.counterOffer(offer, offerPrice, est)
		assessment.CounterOffer = counter
		assessment.CounterReason = reason
	}

	return assessment, nil
}

func (s *Scorer) verdict(dev, absDev float64) model.Verdict {
	switch {
	case absDev <= s.params.FairBand:
		return model.VerdictFair
	case absDev <= s.params.ModerateBand && dev > 0:
		return model.VerdictFavorable
	case absDev <= s.params.MaxDeviation:
		return model.VerdictUnfavorable
	default:
		return model.VerdictExploitative
	}
}

// counterOffer proposes the midpoint between the offer and the fair point,
// clipped into the estimate band and rounded to the unit's pricing
// granularity. Meeting halfway keeps the suggestion credible to both sides
// while pulling the price back toward fair. offerPrice is the offer already
// expressed in the estimate's unit; the counter is converted back to the
// offer's own unit.
func (s *Scorer) counterOffer(offer model.Offer, offerPrice decimal.Decimal, est *model.PriceEstimate) (*model.Offer, string) {
	two := decimal.NewFromInt(2)
	mid := offerPrice.Add(est.PointPrice).Div(two)

	if mid.LessThan(est.LowerBound) {
		mid = est.LowerBound
	}
	if mid.GreaterThan(est.UpperBound) {
		mid = est.UpperBound
	}

	estUnit, offerUnit := unitOrDefault(est.Unit), unitOrDefault(offer.Unit)
	lower := model.ConvertPrice(est.LowerBound, estUnit, offerUnit)
	upper := model.ConvertPrice(est.UpperBound, estUnit, offerUnit)
	mid = model.ConvertPrice(mid, estUnit, offerUnit)

	price := model.RoundToGranularity(mid, offer.Unit)
	// Bounds are usually fractional, so granularity rounding can nudge the
	// price just past one of them; snap back to the nearest in-band step.
	g := model.Granularity(offer.Unit)
	if price.LessThan(lower) {
		price = lower.Div(g).Ceil().Mul(g)
	}
	if price.GreaterThan(upper) {
		price = upper.Div(g).Floor().Mul(g)
	}

	counter := offer
	counter.UnitPrice = price
	reason := fmt.Sprintf("splits the difference between your offer of %s and the fair price of %s, staying inside the market range %s to %s",
		offer.UnitPrice.StringFixed(2), est.PointPrice.StringFixed(2),
		est.LowerBound.StringFixed(2), est.UpperBound.StringFixed(2))
	return &counter, reason
}

func unitOrDefault(unit string) string {
	if unit == "" {
		return model.DefaultUnit
	}
	return unit
}
