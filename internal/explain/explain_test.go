package explain_test

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/openmandi/price-engine/internal/explain"
	"github.com/openmandi/price-engine/internal/model"
	"github.com/openmandi/price-engine/internal/pricing"
)

func d(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

func estimate(factors ...model.PriceFactor) *model.PriceEstimate {
	return &model.PriceEstimate{
		Product:     "rice",
		Location:    "mumbai",
		Unit:        "quintal",
		PointPrice:  d(2750),
		LowerBound:  d(2600),
		UpperBound:  d(2900),
		Confidence:  0.85,
		DataQuality: model.QualityHigh,
		Factors:     factors,
	}
}

func TestExplain_OrdersByMagnitude(t *testing.T) {
	est := estimate(
		model.PriceFactor{Name: pricing.FactorSeasonal, Direction: model.DirectionUp, Magnitude: 0.05},
		model.PriceFactor{Name: pricing.FactorQuality, Direction: model.DirectionUp, Magnitude: 0.30},
		model.PriceFactor{Name: pricing.FactorQuantity, Direction: model.DirectionDown, Magnitude: 0.10},
	)

	lines := explain.Explain(est)
	if len(lines) != 5 {
		t.Fatalf("expected 3 factor lines + range + confidence, got %d: %v", len(lines), lines)
	}
	if !strings.Contains(lines[0], "premium") {
		t.Errorf("strongest factor (quality, 30%%) should come first, got %q", lines[0])
	}
	if !strings.Contains(lines[1], "volume discount") {
		t.Errorf("quantity (10%%) should come second, got %q", lines[1])
	}
	if !strings.Contains(lines[2], "seasonal") {
		t.Errorf("seasonal (5%%) should come last of the factors, got %q", lines[2])
	}
}

func TestExplain_CanonicalTieBreak(t *testing.T) {
	est := estimate(
		model.PriceFactor{Name: pricing.FactorLocation, Direction: model.DirectionUp, Magnitude: 0.10},
		model.PriceFactor{Name: pricing.FactorSeasonal, Direction: model.DirectionUp, Magnitude: 0.10},
	)

	lines := explain.Explain(est)
	if !strings.Contains(lines[0], "seasonal") {
		t.Errorf("on a magnitude tie seasonal should precede location, got %q", lines[0])
	}
}

func TestExplain_MagnitudeBands(t *testing.T) {
	tests := []struct {
		magnitude float64
		want      string
	}{
		{0.01, "slight"},
		{0.05, "moderate"},
		{0.15, "significant"},
		{0.30, "substantial"},
	}
	for _, tt := range tests {
		est := estimate(model.PriceFactor{
			Name: pricing.FactorQuality, Direction: model.DirectionUp, Magnitude: tt.magnitude,
		})
		lines := explain.Explain(est)
		if !strings.Contains(lines[0], tt.want) {
			t.Errorf("magnitude %.2f: expected %q descriptor, got %q", tt.magnitude, tt.want, lines[0])
		}
	}
}

func TestExplain_FactorLinesCarryNoPercentages(t *testing.T) {
	est := estimate(
		model.PriceFactor{Name: pricing.FactorQuality, Direction: model.DirectionUp, Magnitude: 0.30},
		model.PriceFactor{Name: pricing.FactorQuantity, Direction: model.DirectionDown, Magnitude: 0.05},
	)

	lines := explain.Explain(est)
	for _, line := range lines[:2] {
		if strings.Contains(line, "%") {
			t.Errorf("factor lines use band descriptors, not raw percentages: %q", line)
		}
	}
}

func TestExplain_RangeAndConfidenceLines(t *testing.T) {
	lines := explain.Explain(estimate())
	if len(lines) != 2 {
		t.Fatalf("expected range + confidence lines only, got %v", lines)
	}
	if !strings.Contains(lines[0], "2600.00 to 2900.00 per quintal") {
		t.Errorf("range line malformed: %q", lines[0])
	}
	if !strings.Contains(lines[1], "85%") || !strings.Contains(lines[1], "high") {
		t.Errorf("confidence line malformed: %q", lines[1])
	}
}

func TestExplain_DegradedWarningLeads(t *testing.T) {
	est := estimate(model.PriceFactor{
		Name: pricing.FactorQuality, Direction: model.DirectionUp, Magnitude: 0.30,
	})
	est.Degraded = true
	est.Confidence = 0.22
	est.DataQuality = model.QualityLow

	lines := explain.Explain(est)
	if !strings.HasPrefix(lines[0], "Caution:") {
		t.Errorf("degraded estimates must lead with a warning, got %q", lines[0])
	}
}

func TestExplain_Deterministic(t *testing.T) {
	est := estimate(
		model.PriceFactor{Name: pricing.FactorQuantity, Direction: model.DirectionDown, Magnitude: 0.05},
		model.PriceFactor{Name: pricing.FactorSeasonal, Direction: model.DirectionDown, Magnitude: 0.05},
	)
	first := explain.Explain(est)
	second := explain.Explain(est)
	if len(first) != len(second) {
		t.Fatalf("lengths differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Errorf("line %d differs: %q vs %q", i, first[i], second[i])
		}
	}
}
