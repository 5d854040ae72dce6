package ethics_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/openmandi/price-engine/internal/ethics"
	"github.com/openmandi/price-engine/internal/model"
)

func assessment(dev float64, verdict model.Verdict) *model.FairnessAssessment {
	return &model.FairnessAssessment{
		ID:           "test",
		Score:        0.5,
		DeviationPct: dev,
		Verdict:      verdict,
		PointPrice:   decimal.NewFromInt(2500),
		AssessedAt:   time.Now().UTC(),
	}
}

func priorRun(counterpart string, verdicts ...model.Verdict) []model.PriorOffer {
	offers := make([]model.PriorOffer, len(verdicts))
	for i, v := range verdicts {
		offers[i] = model.PriorOffer{
			CounterpartID: counterpart,
			Verdict:       v,
			SubmittedAt:   time.Now().Add(-time.Duration(len(verdicts)-i) * time.Hour),
		}
	}
	return offers
}

func TestApply_CleanAssessmentUntouched(t *testing.T) {
	g := ethics.NewGuard(ethics.DefaultParams())

	a := g.Apply(assessment(0.02, model.VerdictFair), model.InteractionContext{})
	if len(a.RiskFlags) != 0 {
		t.Errorf("clean assessment should stay unflagged, got %v", a.RiskFlags)
	}
	if a.Verdict != model.VerdictFair {
		t.Errorf("verdict changed to %s", a.Verdict)
	}
}

func TestApply_PredatoryRederived(t *testing.T) {
	g := ethics.NewGuard(ethics.DefaultParams())

	// An assessment beyond the threshold that arrived without a flag still
	// leaves the guard flagged and exploitative.
	a := g.Apply(assessment(-0.50, model.VerdictUnfavorable), model.InteractionContext{})
	if !a.HasFlag(model.FlagPredatoryPricing) {
		t.Error("expected predatory-pricing flag")
	}
	if a.Verdict != model.VerdictExploitative {
		t.Errorf("expected exploitative verdict, got %s", a.Verdict)
	}
}

func TestApply_PredatoryNotDuplicated(t *testing.T) {
	g := ethics.NewGuard(ethics.DefaultParams())

	a := assessment(0.50, model.VerdictExploitative)
	a.RiskFlags = []model.EthicsFlag{{
		Kind: model.FlagPredatoryPricing, Severity: model.SeverityHigh,
	}}
	a = g.Apply(a, model.InteractionContext{})

	count := 0
	for _, f := range a.RiskFlags {
		if f.Kind == model.FlagPredatoryPricing {
			count++
		}
	}
	if count != 1 {
		t.Errorf("predatory flag duplicated: %v", a.RiskFlags)
	}
}

func TestApply_ManipulationRun(t *testing.T) {
	g := ethics.NewGuard(ethics.DefaultParams())

	ictx := model.InteractionContext{
		CounterpartID: "farmer-17",
		PriorOffers: priorRun("farmer-17",
			model.VerdictUnfavorable, model.VerdictExploitative),
	}
	// Two unfavorable priors plus this unfavorable offer make a run of 3.
	a := g.Apply(assessment(-0.20, model.VerdictUnfavorable), ictx)
	if !a.HasFlag(model.FlagMarketManipulationSuspected) {
		t.Errorf("expected manipulation flag, got %v", a.RiskFlags)
	}
}

func TestApply_ManipulationRunBrokenByFairOffer(t *testing.T) {
	g := ethics.NewGuard(ethics.DefaultParams())

	ictx := model.InteractionContext{
		CounterpartID: "farmer-17",
		PriorOffers: priorRun("farmer-17",
			model.VerdictUnfavorable, model.VerdictFair, model.VerdictUnfavorable),
	}
	a := g.Apply(assessment(-0.20, model.VerdictUnfavorable), ictx)
	if a.HasFlag(model.FlagMarketManipulationSuspected) {
		t.Error("a fair offer in the run should reset the streak")
	}
}

func TestApply_ManipulationIgnoresOtherCounterparts(t *testing.T) {
	g := ethics.NewGuard(ethics.DefaultParams())

	priors := priorRun("trader-9", model.VerdictUnfavorable, model.VerdictUnfavorable)
	ictx := model.InteractionContext{CounterpartID: "farmer-17", PriorOffers: priors}

	a := g.Apply(assessment(-0.20, model.VerdictUnfavorable), ictx)
	if a.HasFlag(model.FlagMarketManipulationSuspected) {
		t.Error("runs against other counterparts must not count")
	}
}

func TestApply_VulnerableExposure(t *testing.T) {
	g := ethics.NewGuard(ethics.DefaultParams())

	ictx := model.InteractionContext{
		CounterpartVulnerable: true,
		VulnerabilitySignals:  []string{"first_season", "smallholder"},
	}
	// Favorable to the submitter means the vulnerable counterpart loses.
	a := g.Apply(assessment(0.12, model.VerdictFavorable), ictx)
	if !a.HasFlag(model.FlagVulnerableUserExposure) {
		t.Errorf("expected vulnerable-user flag, got %v", a.RiskFlags)
	}
	if a.Verdict != model.VerdictUnfavorable {
		t.Errorf("verdict should be forced to unfavorable, got %s", a.Verdict)
	}
}

func TestApply_VulnerableNotFlaggedWhenCounterpartAhead(t *testing.T) {
	g := ethics.NewGuard(ethics.DefaultParams())

	ictx := model.InteractionContext{CounterpartVulnerable: true}
	// The submitter is behind; the vulnerable counterpart benefits.
	a := g.Apply(assessment(-0.08, model.VerdictUnfavorable), ictx)
	if a.HasFlag(model.FlagVulnerableUserExposure) {
		t.Error("offers that favor the vulnerable counterpart should not flag")
	}
}

func TestApply_VulnerableNeverUpgradesExploitative(t *testing.T) {
	g := ethics.NewGuard(ethics.DefaultParams())

	ictx := model.InteractionContext{CounterpartVulnerable: true}
	a := g.Apply(assessment(0.60, model.VerdictExploitative), ictx)
	if a.Verdict != model.VerdictExploitative {
		t.Errorf("verdict must never improve, got %s", a.Verdict)
	}
	vul := false
	for _, f := range a.RiskFlags {
		if f.Kind == model.FlagVulnerableUserExposure && f.Severity == model.SeverityCritical {
			vul = true
		}
	}
	if !vul {
		t.Errorf("expected critical vulnerable-user flag, got %v", a.RiskFlags)
	}
}
