package agent

import (
	"strings"
	"testing"
)

func benignFeatures() FeatureVector {
	return FeatureVector{Mobility: 20}
}

func TestChanger_AcceptsCleanProposal(t *testing.T) {
	c := NewRegimeChanger()

	regime, overridden, reason := c.Decide(RegimeShaping, benignFeatures(), OpponentUnknown, nil)
	if regime != RegimeShaping || overridden {
		t.Errorf("got %s overridden=%v, want shaping accepted", regime, overridden)
	}
	if reason != "accepted" {
		t.Errorf("reason = %q, want accepted", reason)
	}
}

func TestChanger_CollapseReflexOnCheck(t *testing.T) {
	c := NewRegimeChanger()
	feats := benignFeatures()
	feats.InCheck = true

	for _, raw := range Regimes {
		regime, overridden, reason := c.Decide(raw, feats, OpponentUnknown, nil)
		if regime != RegimeTactical {
			t.Errorf("raw %s: regime = %s, want tactical", raw, regime)
		}
		if !overridden || !strings.Contains(reason, "collapse_reflex") {
			t.Errorf("raw %s: overridden=%v reason=%q", raw, overridden, reason)
		}
	}
}

func TestChanger_CollapseReflexOnEvalDrop(t *testing.T) {
	c := NewRegimeChanger()
	feats := benignFeatures()
	drop := -150
	feats.EvalDelta = &drop

	regime, _, reason := c.Decide(RegimeDeception, feats, OpponentUnknown, nil)
	if regime != RegimeTactical || !strings.Contains(reason, "collapse_reflex") {
		t.Errorf("regime = %s reason = %q", regime, reason)
	}
}

func TestChanger_FatigueForcesTactical(t *testing.T) {
	c := NewRegimeChanger()

	// Four accepted deception turns fill the memory.
	for i := 0; i < 4; i++ {
		if regime, _, _ := c.Decide(RegimeDeception, benignFeatures(), OpponentUnknown, nil); regime != RegimeDeception {
			t.Fatalf("warmup turn %d produced %s", i, regime)
		}
	}

	regime, overridden, reason := c.Decide(RegimeDeception, benignFeatures(), OpponentUnknown, nil)
	if regime != RegimeTactical || !overridden {
		t.Errorf("regime = %s overridden=%v, want tactical override", regime, overridden)
	}
	if !strings.Contains(reason, "fatigue_reset") {
		t.Errorf("reason = %q, want fatigue_reset", reason)
	}
}

func TestChanger_FatigueFiresEvenWhenAlreadyTactical(t *testing.T) {
	c := NewRegimeChanger()
	feats := benignFeatures()
	feats.InCheck = true

	// Four checks in a row finalize tactical four times.
	for i := 0; i < 4; i++ {
		c.Decide(RegimeDeception, feats, OpponentUnknown, nil)
	}

	regime, overridden, reason := c.Decide(RegimeTactical, benignFeatures(), OpponentUnknown, nil)
	if regime != RegimeTactical {
		t.Errorf("regime = %s, want tactical", regime)
	}
	if !overridden || !strings.Contains(reason, "fatigue_reset") {
		t.Errorf("fatigue must fire unconditionally: overridden=%v reason=%q", overridden, reason)
	}
}

func TestChanger_OpponentMismatchTable(t *testing.T) {
	tests := []struct {
		opponent OpponentType
		raw      Regime
		want     Regime
	}{
		{OpponentPositional, RegimeDeception, RegimeShaping},
		{OpponentTactical, RegimePositional, RegimeShaping},
		{OpponentShaping, RegimeDeception, RegimeDeception},
		{OpponentTactical, RegimeDeception, RegimeDeception},
	}
	for _, tt := range tests {
		c := NewRegimeChanger()
		regime, _, _ := c.Decide(tt.raw, benignFeatures(), tt.opponent, nil)
		if regime != tt.want {
			t.Errorf("opponent=%s raw=%s: regime = %s, want %s", tt.opponent, tt.raw, regime, tt.want)
		}
	}
}

func TestChanger_SuppressedModuleFallsBackToTactical(t *testing.T) {
	c := NewRegimeChanger()
	diags := map[ModuleKind]Diagnostic{
		ModuleShaping: {Suppress: true, Reason: "king threatened x3"},
	}

	regime, overridden, reason := c.Decide(RegimeShaping, benignFeatures(), OpponentUnknown, diags)
	if regime != RegimeTactical || !overridden {
		t.Errorf("regime = %s overridden=%v, want tactical override", regime, overridden)
	}
	if !strings.Contains(reason, "shaping_suppressed") {
		t.Errorf("reason = %q, want shaping_suppressed", reason)
	}
}

func TestChanger_MemoryIsBounded(t *testing.T) {
	c := NewRegimeChanger()
	for i := 0; i < 20; i++ {
		feats := benignFeatures()
		if i%2 == 0 {
			feats.InCheck = true
		}
		c.Decide(RegimeDeception, feats, OpponentUnknown, nil)
	}
	if len(c.memory) > changerMemoryCap {
		t.Errorf("memory length = %d, want <= %d", len(c.memory), changerMemoryCap)
	}
}
