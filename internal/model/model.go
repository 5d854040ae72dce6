// Package model defines the core domain types shared across the price engine.
// All monetary values use shopspring/decimal — never float64 for money.
package model

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// DataQuality tags how trustworthy a market snapshot is.
type DataQuality string

const (
	QualityHigh   DataQuality = "high"
	QualityMedium DataQuality = "medium"
	QualityLow    DataQuality = "low"
)

// Degrade returns the next-lower quality tier, flooring at low. Applied once
// per fallback hop during snapshot matching.
func (q DataQuality) Degrade() DataQuality {
	switch q {
	case QualityHigh:
		return QualityMedium
	case QualityMedium:
		return QualityLow
	default:
		return QualityLow
	}
}

// Role identifies which side of a negotiation submitted an offer.
type Role string

const (
	RoleBuyer  Role = "buyer"
	RoleSeller Role = "seller"
)

// Verdict classifies how an offer compares to the fair-price estimate.
type Verdict string

const (
	VerdictFair         Verdict = "fair"
	VerdictFavorable    Verdict = "favorable"
	VerdictUnfavorable  Verdict = "unfavorable"
	VerdictExploitative Verdict = "exploitative"
)

// verdictRank orders verdicts from best (fair) to worst (exploitative).
// The Ethics Guard may only move a verdict toward a higher rank.
var verdictRank = map[Verdict]int{
	VerdictFair:         0,
	VerdictFavorable:    1,
	VerdictUnfavorable:  2,
	VerdictExploitative: 3,
}

// WorseThan reports whether v ranks worse than other.
func (v Verdict) WorseThan(other Verdict) bool {
	return verdictRank[v] > verdictRank[other]
}

// AtLeastUnfavorable reports whether v is unfavorable or exploitative.
func (v Verdict) AtLeastUnfavorable() bool {
	return verdictRank[v] >= verdictRank[VerdictUnfavorable]
}

// MarketSnapshot is an immutable mandi price record for one
// (product, location, date). Sourced from the external repository;
// the engine only ever reads it.
type MarketSnapshot struct {
	Product       string          `json:"product" db:"product"`
	Location      string          `json:"location" db:"location"`
	Unit          string          `json:"unit" db:"unit"`
	QualityGrade  string          `json:"quality_grade" db:"quality_grade"`
	MinPrice      decimal.Decimal `json:"min_price" db:"min_price"`
	MaxPrice      decimal.Decimal `json:"max_price" db:"max_price"`
	ModalPrice    decimal.Decimal `json:"modal_price" db:"modal_price"`
	ArrivalVolume decimal.Decimal `json:"arrival_volume" db:"arrival_volume"`
	RecordedAt    time.Time       `json:"recorded_at" db:"recorded_at"`
	DataQuality   DataQuality     `json:"data_quality" db:"data_quality"`
}

// PricePoint is one observation in a product's trailing price series.
// The Confidence Estimator derives volatility from these.
type PricePoint struct {
	Price      decimal.Decimal `json:"price"`
	RecordedAt time.Time       `json:"recorded_at"`
}

// FactorDirection marks whether an adjustment pushed the price up or down.
type FactorDirection string

const (
	DirectionUp   FactorDirection = "+"
	DirectionDown FactorDirection = "-"
)

// PriceFactor records one multiplicative adjustment applied by the pricing
// model, kept in applied order for the Explanation Generator.
type PriceFactor struct {
	Name      string          `json:"name"`
	Direction FactorDirection `json:"direction"`
	Magnitude float64         `json:"magnitude"` // |multiplier - 1|, as a fraction
}

// PriceEstimate is the engine's fair-price answer for one query.
// Invariant: LowerBound <= PointPrice <= UpperBound.
// It lives only for the duration of a request; callers may cache it.
type PriceEstimate struct {
	Product     string          `json:"product"`
	Location    string          `json:"location"`
	Unit        string          `json:"unit"`
	PointPrice  decimal.Decimal `json:"point_price"`
	LowerBound  decimal.Decimal `json:"lower_bound"`
	UpperBound  decimal.Decimal `json:"upper_bound"`
	Confidence  float64         `json:"confidence"`
	Degraded    bool            `json:"degraded"` // confidence fell below the low-confidence threshold
	DataQuality DataQuality     `json:"data_quality"`
	Factors     []PriceFactor   `json:"factors"`
	SnapshotAt  time.Time       `json:"snapshot_at"`
}

// Offer is an immutable value object submitted to the Fairness Scorer.
type Offer struct {
	Role         Role            `json:"role"`
	Product      string          `json:"product"`
	Location     string          `json:"location"`
	Unit         string          `json:"unit"`
	QualityGrade string          `json:"quality_grade,omitempty"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	Quantity     decimal.Decimal `json:"quantity"`
}

// ErrInvalidOffer is returned for offers that fail structural validation.
var ErrInvalidOffer = errors.New("model: invalid offer")

// Validate checks the offer's structural invariants. Semantic checks
// (known product, known grade) belong to the pricing model.
func (o Offer) Validate() error {
	if o.Role != RoleBuyer && o.Role != RoleSeller {
		return fmt.Errorf("%w: role must be buyer or seller", ErrInvalidOffer)
	}
	if o.Product == "" {
		return fmt.Errorf("%w: product is required", ErrInvalidOffer)
	}
	if !o.UnitPrice.IsPositive() {
		return fmt.Errorf("%w: unit price must be positive", ErrInvalidOffer)
	}
	if !o.Quantity.IsPositive() {
		return fmt.Errorf("%w: quantity must be positive", ErrInvalidOffer)
	}
	return nil
}

// Total returns the offer's full value (unit price x quantity).
func (o Offer) Total() decimal.Decimal {
	return o.UnitPrice.Mul(o.Quantity)
}

// FlagKind enumerates the closed set of ethics risk patterns.
type FlagKind string

const (
	FlagPredatoryPricing            FlagKind = "predatory_pricing"
	FlagVulnerableUserExposure      FlagKind = "vulnerable_user_exposure"
	FlagMarketManipulationSuspected FlagKind = "market_manipulation_suspected"
)

// Severity grades how serious an ethics flag is.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// EthicsFlag is a structured risk signal riding on a successful assessment.
// Only the Ethics Guard creates these; callers never fabricate them.
type EthicsFlag struct {
	Kind      FlagKind `json:"kind"`
	Severity  Severity `json:"severity"`
	Rationale string   `json:"rationale"`
}

// FairnessAssessment is the scorer's answer for one offer.
// Invariant: Verdict == exploitative only when RiskFlags is non-empty.
type FairnessAssessment struct {
	ID            string          `json:"id"`
	Offer         Offer           `json:"offer"`
	Score         float64         `json:"score"`         // 1 = exactly at the fair estimate
	DeviationPct  float64         `json:"deviation_pct"` // role-signed: positive favors the submitting role
	Verdict       Verdict         `json:"verdict"`
	CounterOffer  *Offer          `json:"counter_offer,omitempty"`
	CounterReason string          `json:"counter_reason,omitempty"`
	RiskFlags     []EthicsFlag    `json:"risk_flags"`
	PointPrice    decimal.Decimal `json:"point_price"`
	AssessedAt    time.Time       `json:"assessed_at"`
}

// HasFlag reports whether the assessment carries a flag of the given kind.
func (a *FairnessAssessment) HasFlag(kind FlagKind) bool {
	for _, f := range a.RiskFlags {
		if f.Kind == kind {
			return true
		}
	}
	return false
}

// PriorOffer is one entry of a counterpart's negotiation history, supplied
// by the caller or read back from the offer-history store.
type PriorOffer struct {
	CounterpartID string          `json:"counterpart_id"`
	UnitPrice     decimal.Decimal `json:"unit_price"`
	DeviationPct  float64         `json:"deviation_pct"`
	Verdict       Verdict         `json:"verdict"`
	SubmittedAt   time.Time       `json:"submitted_at"`
}

// InteractionContext carries the structured signals the Ethics Guard needs.
// History is explicit input; there is no hidden session state.
type InteractionContext struct {
	CounterpartID         string       `json:"counterpart_id"`
	CounterpartVulnerable bool         `json:"counterpart_vulnerable"`
	VulnerabilitySignals  []string     `json:"vulnerability_signals,omitempty"`
	PriorOffers           []PriorOffer `json:"prior_offers,omitempty"`
}
