package agent

import (
	"fmt"
	"math"
)

const (
	regretDecay     = 0.9
	regretThreshold = 0.5
	regretStep      = 0.3
)

// baseWeights is the static per-regime prior table. Validated at
// construction so a malformed table fails before any turn runs.
var baseWeights = map[Regime]WeightVector{
	RegimeTactical:   {ModuleTactical: 1.0, ModulePositional: 0.1, ModuleShaping: 0.1, ModuleDeception: 0.1},
	RegimePositional: {ModulePositional: 0.6, ModuleTactical: 0.2, ModuleShaping: 0.1, ModuleDeception: 0.1},
	RegimeShaping:    {ModuleShaping: 0.5, ModuleTactical: 0.3, ModuleDeception: 0.1, ModulePositional: 0.1},
	RegimeDeception:  {ModuleDeception: 0.6, ModuleShaping: 0.2, ModuleTactical: 0.1, ModulePositional: 0.1},
}

// reflexWeights short-circuit the whole adjustment pipeline under
// immediate tactical danger.
var reflexWeights = WeightVector{
	ModuleTactical:   0.85,
	ModulePositional: 0.05,
	ModuleShaping:    0.05,
	ModuleDeception:  0.05,
}

// Controller blends the module weights for one turn and carries the
// per-module decaying regret memory. One instance per game session.
type Controller struct {
	regret map[ModuleKind]float64
}

// NewController validates the prior table and returns a fresh controller.
func NewController() (*Controller, error) {
	for _, regime := range Regimes {
		prior, ok := baseWeights[regime]
		if !ok {
			return nil, fmt.Errorf("controller: missing weight prior for regime %q", regime)
		}
		for _, mod := range ModuleOrder {
			if w, ok := prior[mod]; !ok || w < 0 {
				return nil, fmt.Errorf("controller: malformed prior for regime %q module %q", regime, mod)
			}
		}
	}
	regret := make(map[ModuleKind]float64, len(ModuleOrder))
	for _, mod := range ModuleOrder {
		regret[mod] = 0
	}
	return &Controller{regret: regret}, nil
}

// Regret returns the current decayed regret for a module.
func (c *Controller) Regret(mod ModuleKind) float64 { return c.regret[mod] }

// Weights computes the normalized blend for the final regime. Regret
// decays exactly once per call, at the start, before it is consulted.
func (c *Controller) Weights(regime Regime, features FeatureVector, opponent OpponentType, diags map[ModuleKind]Diagnostic) (WeightVector, ControllerDiag) {
	for mod := range c.regret {
		c.regret[mod] *= regretDecay
	}

	// Reflex short-circuit skips every adjustment, including regret accrual.
	if regime == RegimeTactical &&
		(features.InCheck || features.DangerChecks >= 2 || features.DangerAttackers >= 3) {
		return cloneWeights(reflexWeights), ControllerDiag{
			Reflex: true,
			Raw:    map[ModuleKind]float64(cloneWeights(reflexWeights)),
		}
	}

	weights := cloneWeights(baseWeights[regime])
	diag := ControllerDiag{}

	if features.InCheck || features.KingExposure >= 3 {
		boost(weights, &diag, ModuleTactical, 0.3, "check_reflex")
	}
	if features.EvalDelta != nil && *features.EvalDelta <= -150 {
		boost(weights, &diag, ModuleTactical, 0.2, "eval_drop")
		diag.CollapsePenalty = true
	}

	for _, mod := range ModuleOrder {
		if d, ok := diags[mod]; ok && d.Suppress {
			boost(weights, &diag, mod, -0.6, string(mod)+"_suppress")
		}
	}

	for _, mod := range ModuleOrder {
		if c.regret[mod] > regretThreshold {
			boost(weights, &diag, mod, -0.3, string(mod)+"_regret")
		}
	}

	if opponent == OpponentPositional && regime == RegimeDeception {
		boost(weights, &diag, ModuleShaping, 0.25, "opp_mismatch")
		diag.MismatchAdjust = true
	} else if opponent == OpponentTactical && regime == RegimePositional {
		boost(weights, &diag, ModuleShaping, 0.2, "opp_mismatch")
		diag.MismatchAdjust = true
	}

	diag.Raw = map[ModuleKind]float64(cloneWeights(weights))
	normalized := softmaxNormalize(weights)
	c.accrueRegret(features, diags)
	return normalized, diag
}

// accrueRegret blames the highest-risk module for a material evaluation
// drop. The per-call decay already happened at the start of Weights.
func (c *Controller) accrueRegret(features FeatureVector, diags map[ModuleKind]Diagnostic) {
	if len(diags) == 0 || features.EvalDelta == nil || *features.EvalDelta >= -50 {
		return
	}
	worst := ModuleOrder[0]
	for _, mod := range ModuleOrder[1:] {
		if diags[mod].Risk > diags[worst].Risk {
			worst = mod
		}
	}
	c.regret[worst] = math.Min(c.regret[worst]+regretStep, 1.0)
}

func boost(w WeightVector, diag *ControllerDiag, mod ModuleKind, delta float64, label string) {
	w[mod] = math.Max(w[mod]+delta, 0)
	if delta > 0 {
		diag.Boost = append(diag.Boost, label)
	} else {
		diag.Suppress = append(diag.Suppress, label)
	}
}

// softmaxNormalize shifts the vector non-negative, exponentiates, and
// normalizes, rounding to 3 decimals.
func softmaxNormalize(w WeightVector) WeightVector {
	minVal := math.Inf(1)
	for _, v := range w {
		if v < minVal {
			minVal = v
		}
	}
	shift := 0.0
	if minVal < 0 {
		shift = -minVal
	}

	exps := make(map[ModuleKind]float64, len(w))
	total := 0.0
	for mod, v := range w {
		e := math.Exp(v + shift)
		exps[mod] = e
		total += e
	}
	if total == 0 {
		total = 1
	}

	out := make(WeightVector, len(w))
	for mod, e := range exps {
		out[mod] = math.Round(e/total*1000) / 1000
	}
	return out
}

func cloneWeights(w WeightVector) WeightVector {
	out := make(WeightVector, len(w))
	for k, v := range w {
		out[k] = v
	}
	return out
}
