package agent

import "strings"

const changerMemoryCap = 8

// overrideRule is one step of the cascade: a predicate over the current
// candidate regime and context, and the regime it forces when it fires.
// Rules are evaluated strictly in order; each firing rule records its tag.
type overrideRule struct {
	tag   string
	apply func(c *RegimeChanger, candidate Regime, ctx overrideContext) (Regime, bool)
}

type overrideContext struct {
	features FeatureVector
	opponent OpponentType
	diags    map[ModuleKind]Diagnostic
}

// RegimeChanger finalizes the raw regime proposal through an ordered
// override cascade, remembering its own last finalized regimes for the
// fatigue rule. One instance per game session.
type RegimeChanger struct {
	memory []Regime
	rules  []overrideRule
}

func NewRegimeChanger() *RegimeChanger {
	c := &RegimeChanger{}
	c.rules = []overrideRule{
		{tag: "collapse_reflex", apply: collapseReflexRule},
		{tag: "fatigue_reset", apply: fatigueRule},
		{tag: "opponent_mismatch", apply: mismatchRule},
		{tag: "module_suppressed", apply: suppressionRule},
	}
	return c
}

// Decide runs the cascade over the raw regime, appends the result to the
// changer's memory, and reports whether any rule fired.
func (c *RegimeChanger) Decide(raw Regime, features FeatureVector, opponent OpponentType, diags map[ModuleKind]Diagnostic) (Regime, bool, string) {
	ctx := overrideContext{features: features, opponent: opponent, diags: diags}

	regime := raw
	var tags []string
	for _, rule := range c.rules {
		next, fired := rule.apply(c, regime, ctx)
		if fired {
			tags = append(tags, ruleTag(rule.tag, regime, ctx))
			regime = next
		}
	}

	c.memory = append(c.memory, regime)
	if len(c.memory) > changerMemoryCap {
		c.memory = c.memory[1:]
	}

	if len(tags) == 0 {
		return regime, false, "accepted"
	}
	return regime, true, strings.Join(tags, ", ")
}

// ruleTag specializes the generic rule name with its context where the
// reason string benefits from it.
func ruleTag(tag string, candidate Regime, ctx overrideContext) string {
	switch tag {
	case "opponent_mismatch":
		return "opponent_mismatch:" + string(ctx.opponent)
	case "module_suppressed":
		return string(candidate) + "_suppressed"
	}
	return tag
}

// collapseReflexRule forces tactical on check, heavy king exposure, or a
// sharp evaluation drop.
func collapseReflexRule(_ *RegimeChanger, _ Regime, ctx overrideContext) (Regime, bool) {
	f := ctx.features
	if f.InCheck || f.KingExposure >= 3 || (f.EvalDelta != nil && *f.EvalDelta <= -150) {
		return RegimeTactical, true
	}
	return "", false
}

// fatigueRule forces tactical when the last four finalized regimes all
// equal the current candidate, even if that candidate is already tactical.
func fatigueRule(c *RegimeChanger, candidate Regime, _ overrideContext) (Regime, bool) {
	if len(c.memory) < 4 {
		return "", false
	}
	for _, r := range c.memory[len(c.memory)-4:] {
		if r != candidate {
			return "", false
		}
	}
	return RegimeTactical, true
}

// mismatchRule redirects regimes that play into the opponent's strength.
func mismatchRule(_ *RegimeChanger, candidate Regime, ctx overrideContext) (Regime, bool) {
	if ctx.opponent == OpponentPositional && candidate == RegimeDeception {
		return RegimeShaping, true
	}
	if ctx.opponent == OpponentTactical && candidate == RegimePositional {
		return RegimeShaping, true
	}
	return "", false
}

// suppressionRule falls back to tactical when the module aligned with the
// candidate regime reports suppress.
func suppressionRule(_ *RegimeChanger, candidate Regime, ctx overrideContext) (Regime, bool) {
	if ctx.diags == nil {
		return "", false
	}
	if diag, ok := ctx.diags[ModuleKind(candidate)]; ok && diag.Suppress {
		return RegimeTactical, true
	}
	return "", false
}
