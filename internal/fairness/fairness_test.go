package fairness_test

import (
	"errors"
	"math"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/openmandi/price-engine/internal/fairness"
	"github.com/openmandi/price-engine/internal/model"
)

func d(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

func riceEstimate() *model.PriceEstimate {
	return &model.PriceEstimate{
		Product:     "rice",
		Location:    "mumbai",
		Unit:        "quintal",
		PointPrice:  d(2500),
		LowerBound:  d(2300),
		UpperBound:  d(2700),
		Confidence:  0.85,
		DataQuality: model.QualityHigh,
	}
}

func offer(role model.Role, price float64) model.Offer {
	return model.Offer{
		Role:      role,
		Product:   "rice",
		Location:  "mumbai",
		Unit:      "quintal",
		UnitPrice: d(price),
		Quantity:  d(100),
	}
}

func TestAssess_FairOffer(t *testing.T) {
	s := fairness.NewScorer(fairness.DefaultParams())

	// 2550 against a 2500 fair price is a 2% deviation.
	a, err := s.Assess(offer(model.RoleSeller, 2550), riceEstimate())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.Verdict != model.VerdictFair {
		t.Errorf("expected fair verdict, got %s (deviation %.4f)", a.Verdict, a.DeviationPct)
	}
	if a.CounterOffer != nil {
		t.Error("fair offers should not receive a counter-offer")
	}
	if len(a.RiskFlags) != 0 {
		t.Errorf("fair offers carry no flags, got %v", a.RiskFlags)
	}
	if a.ID == "" {
		t.Error("assessment must carry an id")
	}
}

func TestAssess_FavorableSellerOffer(t *testing.T) {
	s := fairness.NewScorer(fairness.DefaultParams())

	// Seller asks 2800 against a 2500 fair price: +12%, favorable to the
	// seller but still inside the moderate band.
	a, err := s.Assess(offer(model.RoleSeller, 2800), riceEstimate())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.Verdict != model.VerdictFavorable {
		t.Errorf("expected favorable verdict, got %s", a.Verdict)
	}
	if math.Abs(a.DeviationPct-0.12) > 1e-9 {
		t.Errorf("expected deviation +0.12, got %.4f", a.DeviationPct)
	}
	wantScore := 1 - 0.12/0.35
	if math.Abs(a.Score-wantScore) > 1e-9 {
		t.Errorf("expected score %.4f, got %.4f", wantScore, a.Score)
	}
	if a.CounterOffer == nil {
		t.Fatal("non-fair verdicts should carry a counter-offer")
	}
	// Midpoint of 2800 and 2500 is 2650, inside the band, whole rupees
	// for quintal pricing.
	if !a.CounterOffer.UnitPrice.Equal(d(2650)) {
		t.Errorf("expected counter at 2650, got %s", a.CounterOffer.UnitPrice)
	}
}

func TestAssess_ExploitativeLowball(t *testing.T) {
	s := fairness.NewScorer(fairness.DefaultParams())

	// Buyer bids 1200 against a 2500 fair price: the buyer is 52% ahead.
	a, err := s.Assess(offer(model.RoleBuyer, 1200), riceEstimate())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.Verdict != model.VerdictExploitative {
		t.Errorf("expected exploitative verdict, got %s", a.Verdict)
	}
	if math.Abs(a.DeviationPct-0.52) > 1e-9 {
		t.Errorf("expected role-signed deviation +0.52, got %.4f", a.DeviationPct)
	}
	if a.Score != 0 {
		t.Errorf("deviation beyond the threshold floors the score, got %.4f", a.Score)
	}
	if !a.HasFlag(model.FlagPredatoryPricing) {
		t.Error("exploitative verdicts must carry a predatory-pricing flag")
	}
	if a.RiskFlags[0].Severity != model.SeverityHigh {
		t.Errorf("expected high severity at 52%% deviation, got %s", a.RiskFlags[0].Severity)
	}
}

func TestAssess_CriticalSeverityBeyondDoubleThreshold(t *testing.T) {
	s := fairness.NewScorer(fairness.DefaultParams())

	// Buyer bids 500 against 2500: 80% deviation, beyond 2x the threshold.
	a, err := s.Assess(offer(model.RoleBuyer, 500), riceEstimate())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.RiskFlags[0].Severity != model.SeverityCritical {
		t.Errorf("expected critical severity, got %s", a.RiskFlags[0].Severity)
	}
}

func TestAssess_Antisymmetry(t *testing.T) {
	s := fairness.NewScorer(fairness.DefaultParams())
	est := riceEstimate()

	seller, err := s.Assess(offer(model.RoleSeller, 2800), est)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	buyer, err := s.Assess(offer(model.RoleBuyer, 2800), est)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if math.Abs(seller.DeviationPct+buyer.DeviationPct) > 1e-9 {
		t.Errorf("the same price should mirror deviation across roles: seller %.4f, buyer %.4f",
			seller.DeviationPct, buyer.DeviationPct)
	}
	if seller.Score != buyer.Score {
		t.Errorf("scores must match across roles: seller %.4f, buyer %.4f",
			seller.Score, buyer.Score)
	}
	if seller.Verdict != model.VerdictFavorable || buyer.Verdict != model.VerdictUnfavorable {
		t.Errorf("expected favorable/unfavorable pair, got %s/%s", seller.Verdict, buyer.Verdict)
	}
}

func TestAssess_ProductCaseInsensitive(t *testing.T) {
	s := fairness.NewScorer(fairness.DefaultParams())

	// The pricing pipeline canonicalises products to lowercase; an offer
	// spelled "Rice" still matches a "rice" estimate.
	o := offer(model.RoleSeller, 2800)
	o.Product = "Rice"
	a, err := s.Assess(o, riceEstimate())
	if err != nil {
		t.Fatalf("mixed-case product must not be rejected: %v", err)
	}
	if a.Verdict != model.VerdictFavorable {
		t.Errorf("expected favorable verdict, got %s", a.Verdict)
	}
}

func TestAssess_CounterOfferStaysInsideFractionalBand(t *testing.T) {
	s := fairness.NewScorer(fairness.DefaultParams())

	// A fractional lower bound: plain granularity rounding of the clipped
	// midpoint would land at 2300, just outside the band.
	est := riceEstimate()
	est.LowerBound = d(2300.4)

	a, err := s.Assess(offer(model.RoleBuyer, 1200), est)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.CounterOffer == nil {
		t.Fatal("expected a counter-offer")
	}
	c := a.CounterOffer.UnitPrice
	if c.LessThan(est.LowerBound) || c.GreaterThan(est.UpperBound) {
		t.Errorf("counter %s outside band [%s, %s]", c, est.LowerBound, est.UpperBound)
	}
	if !c.Equal(d(2301)) {
		t.Errorf("expected counter at 2301, the first whole rupee inside the band, got %s", c)
	}
}

func TestAssess_CounterOfferClippedToBand(t *testing.T) {
	s := fairness.NewScorer(fairness.DefaultParams())

	// Midpoint of 3100 and 2500 is 2800, above the 2700 upper bound.
	a, err := s.Assess(offer(model.RoleSeller, 3100), riceEstimate())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.CounterOffer == nil {
		t.Fatal("expected a counter-offer")
	}
	if !a.CounterOffer.UnitPrice.Equal(d(2700)) {
		t.Errorf("counter should clip to the upper bound 2700, got %s", a.CounterOffer.UnitPrice)
	}
	if a.CounterReason == "" {
		t.Error("counter-offers must explain themselves")
	}
}

func TestAssess_CounterOfferGranularity(t *testing.T) {
	s := fairness.NewScorer(fairness.DefaultParams())
	est := &model.PriceEstimate{
		Product:    "tomato",
		Location:   "pune",
		Unit:       "kg",
		PointPrice: d(30.10),
		LowerBound: d(25),
		UpperBound: d(40),
	}
	o := model.Offer{
		Role: model.RoleSeller, Product: "tomato", Location: "pune",
		Unit: "kg", UnitPrice: d(37.03), Quantity: d(200),
	}

	a, err := s.Assess(o, est)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Midpoint 33.565 rounds to the 0.05 kilogram granularity.
	if !a.CounterOffer.UnitPrice.Equal(d(33.55)) {
		t.Errorf("expected counter at 33.55, got %s", a.CounterOffer.UnitPrice)
	}
}

func TestAssess_CrossUnitOffer(t *testing.T) {
	s := fairness.NewScorer(fairness.DefaultParams())

	// Estimate per quintal, offer quoted per kg: 28 rupees per kg is 2800
	// per quintal, a +12% seller deviation.
	o := model.Offer{
		Role: model.RoleSeller, Product: "rice", Location: "mumbai",
		Unit: "kg", UnitPrice: d(28), Quantity: d(100),
	}
	a, err := s.Assess(o, riceEstimate())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if math.Abs(a.DeviationPct-0.12) > 1e-9 {
		t.Errorf("expected deviation +0.12 after unit conversion, got %.4f", a.DeviationPct)
	}
	if a.Verdict != model.VerdictFavorable {
		t.Errorf("expected favorable verdict, got %s", a.Verdict)
	}
	if a.CounterOffer == nil {
		t.Fatal("expected a counter-offer")
	}
	// Midpoint 2650 per quintal converts back to 26.50 per kg.
	if !a.CounterOffer.UnitPrice.Equal(d(26.50)) {
		t.Errorf("expected counter at 26.50 per kg, got %s", a.CounterOffer.UnitPrice)
	}
	if a.CounterOffer.Unit != "kg" {
		t.Errorf("counter must keep the offer's unit, got %q", a.CounterOffer.Unit)
	}
}

func TestAssess_Errors(t *testing.T) {
	s := fairness.NewScorer(fairness.DefaultParams())

	_, err := s.Assess(offer(model.RoleBuyer, 2500), &model.PriceEstimate{
		Product: "wheat", PointPrice: d(2000),
	})
	if !errors.Is(err, fairness.ErrEstimateMismatch) {
		t.Errorf("expected ErrEstimateMismatch, got %v", err)
	}

	bad := offer(model.RoleBuyer, 2500)
	bad.Quantity = decimal.Zero
	_, err = s.Assess(bad, riceEstimate())
	if err == nil {
		t.Error("expected validation error for zero quantity")
	}

	_, err = s.Assess(offer(model.RoleSeller, 2500), &model.PriceEstimate{
		Product: "rice", PointPrice: decimal.Zero,
	})
	if !errors.Is(err, fairness.ErrZeroPoint) {
		t.Errorf("expected ErrZeroPoint, got %v", err)
	}
}
