// Package pricing implements the multi-factor fair-price model for
// agricultural commodities. Starting from the modal price of the
// best-matching mandi snapshot, it applies seasonal, quality-grade, bulk
// quantity, and location adjustments in a fixed order, recording each
// applied factor for the explanation generator.
//
// All monetary values use shopspring/decimal — never float64 for money.
// The model is a pure function of its inputs and the snapshot source.
package pricing

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/openmandi/price-engine/internal/model"
)

var (
	// ErrNoComparableData is returned when no snapshot exists for the
	// product and no comparable substitute is configured. Fatal for the
	// request; the engine never retries.
	ErrNoComparableData = errors.New("pricing: no comparable market data")

	// ErrInvalidQuantity is returned for non-positive quantities.
	ErrInvalidQuantity = errors.New("pricing: quantity must be positive")

	// ErrUnknownGrade is returned for quality grades outside the
	// configured set.
	ErrUnknownGrade = errors.New("pricing: unknown quality grade")
)

// Canonical factor names, also the tie-break order used by the explanation
// generator.
const (
	FactorSeasonal = "seasonal"
	FactorQuality  = "quality"
	FactorQuantity = "quantity"
	FactorLocation = "location"
)

// SnapshotSource supplies read-only market snapshots and trailing price
// series. Implemented by the process-wide snapshot cache; the model never
// blocks on I/O itself.
type SnapshotSource interface {
	// Snapshot returns the freshest snapshot for (product, location)
	// recorded on or before date, within the source's match window.
	Snapshot(product, location string, date time.Time) (*model.MarketSnapshot, bool)

	// SnapshotAnyLocation returns the freshest snapshot for the product
	// in any location, within the match window.
	SnapshotAnyLocation(product string, date time.Time) (*model.MarketSnapshot, bool)
}

// BulkStep is one quantity threshold of the stepped bulk discount.
type BulkStep struct {
	MinQuantity decimal.Decimal
	Multiplier  decimal.Decimal
}

// Params holds every tunable of the pricing model. Exposed as configuration
// rather than hardcoded; DefaultParams supplies the shipped tables.
type Params struct {
	// Seasonal maps product -> per-month multipliers (index 0 = January).
	// Missing products get a neutral 1.0 for every month.
	Seasonal map[string][12]float64

	// GradeMultipliers maps quality grade -> price multiplier. Grades
	// outside this map are rejected as invalid input.
	GradeMultipliers map[string]decimal.Decimal

	// BulkSteps are evaluated in order; the last step whose threshold the
	// quantity meets wins. Thresholds are inclusive.
	BulkSteps []BulkStep

	// LocationOffsets maps location -> fractional price differential,
	// applied only when the snapshot came from a different location than
	// the one requested.
	LocationOffsets map[string]float64

	// Substitutions maps a product to its comparable substitute, used as
	// the last fallback before giving up.
	Substitutions map[string]string

	// DefaultGrade is assumed when a query omits the quality grade.
	DefaultGrade string
}

// DefaultParams returns the shipped pricing tables.
func DefaultParams() Params {
	return Params{
		Seasonal:         defaultSeasonal,
		GradeMultipliers: defaultGradeMultipliers(),
		BulkSteps: []BulkStep{
			{MinQuantity: decimal.NewFromInt(500), Multiplier: decimal.NewFromFloat(0.95)},
			{MinQuantity: decimal.NewFromInt(2000), Multiplier: decimal.NewFromFloat(0.90)},
		},
		LocationOffsets: defaultLocationOffsets,
		Substitutions:   defaultSubstitutions,
		DefaultGrade:    "good",
	}
}

// Query is one price-estimate request.
type Query struct {
	Product      string
	Quantity     decimal.Decimal
	Location     string
	QualityGrade string
	Date         time.Time // zero value means "now", resolved by the caller
}

// Result is the pricing model's output: the adjusted point price, the
// snapshot actually used (possibly a fallback), and the applied factors.
// Bounds and confidence are added by the confidence estimator.
type Result struct {
	PointPrice  decimal.Decimal
	Snapshot    *model.MarketSnapshot
	DataQuality model.DataQuality // snapshot quality after fallback degradation
	Factors     []model.PriceFactor
}

// Model derives fair point prices from market snapshots.
// It is stateless and safe for concurrent use.
type Model struct {
	params Params
}

// NewModel creates a pricing model with the given parameters.
func NewModel(params Params) *Model {
	return &Model{params: params}
}

// Estimate computes the adjusted point price for a query.
//
// Snapshot matching falls back in a fixed chain: exact product+location,
// same product in any location, then the comparable-product substitution
// table, degrading data quality one tier per hop. An exhausted chain
// fails with ErrNoComparableData.
func (m *Model) Estimate(src SnapshotSource, q Query) (*Result, error) {
	if !q.Quantity.IsPositive() {
		return nil, ErrInvalidQuantity
	}

	grade := strings.ToLower(q.QualityGrade)
	if grade == "" {
		grade = m.params.DefaultGrade
	}
	gradeMult, ok := m.params.GradeMultipliers[grade]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownGrade, q.QualityGrade)
	}

	product := strings.ToLower(q.Product)
	location := strings.ToLower(q.Location)

	snap, quality, err := m.matchSnapshot(src, product, location, q.Date)
	if err != nil {
		return nil, err
	}

	price := snap.ModalPrice
	var factors []model.PriceFactor

	// Fixed adjustment order: seasonal, quality, quantity, location.
	if mult := m.seasonalMultiplier(product, q.Date); mult != 1.0 {
		price = price.Mul(decimal.NewFromFloat(mult))
		factors = append(factors, factor(FactorSeasonal, mult-1))
	}

	if !gradeMult.Equal(decimal.NewFromInt(1)) {
		price = price.Mul(gradeMult)
		factors = append(factors, factor(FactorQuality, gradeMult.InexactFloat64()-1))
	}

	if bulk := m.bulkMultiplier(q.Quantity); !bulk.Equal(decimal.NewFromInt(1)) {
		price = price.Mul(bulk)
		factors = append(factors, factor(FactorQuantity, bulk.InexactFloat64()-1))
	}

	// The location differential compensates for regional price levels when
	// the snapshot came from somewhere other than the requested market.
	if location != "" && !strings.EqualFold(snap.Location, location) {
		if offset, ok := m.params.LocationOffsets[location]; ok && offset != 0 {
			price = price.Mul(decimal.NewFromFloat(1 + offset))
			factors = append(factors, factor(FactorLocation, offset))
		}
	}

	return &Result{
		PointPrice:  price,
		Snapshot:    snap,
		DataQuality: quality,
		Factors:     factors,
	}, nil
}

// matchSnapshot walks the fallback chain and returns the snapshot plus its
// degraded data quality.
func (m *Model) matchSnapshot(src SnapshotSource, product, location string, date time.Time) (*model.MarketSnapshot, model.DataQuality, error) {
	if snap, ok := src.Snapshot(product, location, date); ok {
		return snap, snap.DataQuality, nil
	}

	if snap, ok := src.SnapshotAnyLocation(product, date); ok {
		return snap, snap.DataQuality.Degrade(), nil
	}

	if sub, ok := m.params.Substitutions[product]; ok {
		if snap, ok := src.Snapshot(sub, location, date); ok {
			return snap, snap.DataQuality.Degrade().Degrade(), nil
		}
		if snap, ok := src.SnapshotAnyLocation(sub, date); ok {
			return snap, snap.DataQuality.Degrade().Degrade(), nil
		}
	}

	return nil, "", fmt.Errorf("%w: product %q", ErrNoComparableData, product)
}

func (m *Model) seasonalMultiplier(product string, date time.Time) float64 {
	months, ok := m.params.Seasonal[product]
	if !ok {
		return 1.0
	}
	return months[int(date.Month())-1]
}

func (m *Model) bulkMultiplier(quantity decimal.Decimal) decimal.Decimal {
	mult := decimal.NewFromInt(1)
	for _, step := range m.params.BulkSteps {
		if quantity.GreaterThanOrEqual(step.MinQuantity) {
			mult = step.Multiplier
		}
	}
	return mult
}

// factor builds a PriceFactor from a signed fractional impact.
func factor(name string, impact float64) model.PriceFactor {
	dir := model.DirectionUp
	if impact < 0 {
		dir = model.DirectionDown
		impact = -impact
	}
	return model.PriceFactor{Name: name, Direction: dir, Magnitude: impact}
}
