// Package ethics layers risk checks over a fairness assessment. The guard
// only ever makes a verdict worse and only ever adds flags; it never
// launders an exploitative offer back to fair.
package ethics

import (
	"fmt"

	"github.com/openmandi/price-engine/internal/model"
)

// Params are the guard tunables.
type Params struct {
	// ExploitThreshold is the absolute deviation beyond which an offer is
	// predatory. Kept in sync with the scorer's MaxDeviation.
	ExploitThreshold float64
	// ManipulationRunLength is how many consecutive unfavorable-or-worse
	// offers against the same counterpart trip the manipulation flag.
	ManipulationRunLength int
}

// DefaultParams returns production defaults.
func DefaultParams() Params {
	return Params{
		ExploitThreshold:      0.35,
		ManipulationRunLength: 3,
	}
}

// Guard applies ethics rules. Stateless; the interaction history arrives
// explicitly in the context rather than living in the guard.
type Guard struct {
	params Params
}

func NewGuard(params Params) *Guard {
	return &Guard{params: params}
}

// Apply evaluates every rule against the assessment and returns it with any
// flags attached. Rules are independent, so the result does not depend on
// evaluation order. The verdict only moves toward worse.
func (g *Guard) Apply(a *model.FairnessAssessment, ictx model.InteractionContext) *model.FairnessAssessment {
	g.checkPredatory(a)
	g.checkManipulation(a, ictx)
	g.checkVulnerable(a, ictx)
	return a
}

// checkPredatory flags deviations beyond the exploitation threshold. The
// scorer usually attaches this flag itself; the guard re-derives it so the
// invariant holds even for assessments built elsewhere.
func (g *Guard) checkPredatory(a *model.FairnessAssessment) {
	absDev := a.DeviationPct
	if absDev < 0 {
		absDev = -absDev
	}
	if absDev <= g.params.ExploitThreshold || a.HasFlag(model.FlagPredatoryPricing) {
		return
	}

	severity := model.SeverityHigh
	if absDev > 2*g.params.ExploitThreshold {
		severity = model.SeverityCritical
	}
	a.RiskFlags = append(a.RiskFlags, model.EthicsFlag{
		Kind:     model.FlagPredatoryPricing,
		Severity: severity,
		Rationale: fmt.Sprintf("offer deviates %.0f%% from the fair price, beyond the %.0f%% exploitation threshold",
			absDev*100, g.params.ExploitThreshold*100),
	})
	demote(a, model.VerdictExploitative)
}

// checkManipulation looks for a trailing run of unfavorable-or-worse offers
// pressed against the same counterpart.
func (g *Guard) checkManipulation(a *model.FairnessAssessment, ictx model.InteractionContext) {
	if ictx.CounterpartID == "" || g.params.ManipulationRunLength <= 0 {
		return
	}

	// The current offer is part of the run; a fair one breaks the streak.
	if !a.Verdict.AtLeastUnfavorable() {
		return
	}
	run := 1
	// PriorOffers come oldest first; walk backwards counting the streak.
	for i := len(ictx.PriorOffers) - 1; i >= 0; i-- {
		prior := ictx.PriorOffers[i]
		if prior.CounterpartID != ictx.CounterpartID || !prior.Verdict.AtLeastUnfavorable() {
			break
		}
		run++
	}
	if run < g.params.ManipulationRunLength {
		return
	}

	a.RiskFlags = append(a.RiskFlags, model.EthicsFlag{
		Kind:     model.FlagMarketManipulationSuspected,
		Severity: model.SeverityMedium,
		Rationale: fmt.Sprintf("%d consecutive unfavorable offers pressed against the same counterpart",
			run),
	})
}

// checkVulnerable escalates assessments that disadvantage a counterpart the
// caller identified as vulnerable.
func (g *Guard) checkVulnerable(a *model.FairnessAssessment, ictx model.InteractionContext) {
	if !ictx.CounterpartVulnerable {
		return
	}
	// The counterpart is disadvantaged only when the submitter is ahead
	// by more than the fair band.
	if a.DeviationPct <= 0 || a.Verdict == model.VerdictFair {
		return
	}

	severity := model.SeverityHigh
	if a.Verdict == model.VerdictExploitative {
		severity = model.SeverityCritical
	}
	rationale := "offer disadvantages a counterpart flagged as vulnerable"
	if len(ictx.VulnerabilitySignals) > 0 {
		rationale = fmt.Sprintf("%s (signals: %v)", rationale, ictx.VulnerabilitySignals)
	}
	a.RiskFlags = append(a.RiskFlags, model.EthicsFlag{
		Kind:      model.FlagVulnerableUserExposure,
		Severity:  severity,
		Rationale: rationale,
	})
	demote(a, model.VerdictUnfavorable)
}

// demote moves the verdict to at least the given rank, never upgrading.
func demote(a *model.FairnessAssessment, floor model.Verdict) {
	if floor.WorseThan(a.Verdict) {
		a.Verdict = floor
	}
}
