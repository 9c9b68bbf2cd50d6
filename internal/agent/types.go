// Package agent implements the per-turn decision pipeline: four heuristic
// strategy modules blended by a regime-driven meta-policy. Each Agent owns
// all of its mutable state (regret memory, fatigue windows, opponent window,
// previous-evaluation memory) and serves exactly one game session.
package agent

import (
	"github.com/notnil/chess"

	"github.com/freeeve/quiet-aggression/internal/board"
)

// Regime is the strategic mode governing the module blend for one turn.
type Regime string

const (
	RegimeTactical   Regime = "tactical"
	RegimePositional Regime = "positional"
	RegimeShaping    Regime = "shaping"
	RegimeDeception  Regime = "deception"
)

// Regimes lists all regimes in module priority order. The same order breaks
// ties in the weighted vote: when two moves carry equal weight, the one
// proposed by the earlier module wins.
var Regimes = []Regime{RegimeTactical, RegimePositional, RegimeShaping, RegimeDeception}

// ModuleKind identifies a strategy module. Kinds mirror regimes one-to-one:
// the module named after the final regime is that turn's primary module.
type ModuleKind string

const (
	ModuleTactical   ModuleKind = "tactical"
	ModulePositional ModuleKind = "positional"
	ModuleShaping    ModuleKind = "shaping"
	ModuleDeception  ModuleKind = "deception"
)

// ModuleOrder is the fixed priority order for iteration and vote tie-breaks.
var ModuleOrder = []ModuleKind{ModuleTactical, ModulePositional, ModuleShaping, ModuleDeception}

// OpponentType labels the opponent's playing style.
type OpponentType string

const (
	OpponentTactical   OpponentType = "tactical"
	OpponentPositional OpponentType = "positional"
	OpponentShaping    OpponentType = "shaping"
	OpponentDeception  OpponentType = "deception"
	OpponentChaotic    OpponentType = "chaotic"
	OpponentUnknown    OpponentType = "unknown"
)

// Diagnostic is a module's per-decision record. Score/Risk/Suppress/Reason
// are common to all modules; the remaining fields are tactical-module
// extras and module-specific metrics.
type Diagnostic struct {
	Score    float64            `json:"score"`
	Risk     float64            `json:"risk"`
	Suppress bool               `json:"suppress"`
	Reason   string             `json:"reason"`
	Metrics  map[string]float64 `json:"metrics,omitempty"`

	// Tactical module only.
	ScoreCP         *int `json:"scoreCp,omitempty"`
	MateIn          *int `json:"mateIn,omitempty"`
	EvalDelta       *int `json:"evalDelta,omitempty"`
	CheckAfter      bool `json:"checkAfter,omitempty"`
	SuggestOverride bool `json:"suggestOverride,omitempty"`
}

// FeatureVector is the symbolic snapshot extracted once per turn.
type FeatureVector struct {
	MaterialDiff    int     `json:"materialDiff"`
	Mobility        int     `json:"mobility"`
	PawnTension     int     `json:"pawnTension"`
	KingExposure    int     `json:"kingExposure"`
	CenterControl   int     `json:"centerControl"`
	Symmetry        float64 `json:"symmetry"`
	EvalScore       *int    `json:"evalScore,omitempty"`
	EvalDelta       *int    `json:"evalDelta,omitempty"`
	InCheck         bool    `json:"inCheck"`
	FatigueRisk     bool    `json:"fatigueRisk"`
	DangerChecks    int     `json:"dangerChecks"`
	DangerAttackers int     `json:"dangerAttackers"`
}

// OpponentProfile is the classifier's output.
type OpponentProfile struct {
	Type       OpponentType             `json:"type"`
	Confidence float64                  `json:"confidence"`
	Scores     map[OpponentType]float64 `json:"scores,omitempty"`
	Reason     string                   `json:"reason"`
	Volatile   bool                     `json:"volatile"`
}

// WeightVector maps each module to its blend weight. Entries are >= 0 and
// sum to 1 within rounding tolerance.
type WeightVector map[ModuleKind]float64

// ControllerDiag explains how the controller arrived at a weight vector.
type ControllerDiag struct {
	Boost           []string                `json:"boost,omitempty"`
	Suppress        []string                `json:"suppress,omitempty"`
	Reflex          bool                    `json:"reflex"`
	CollapsePenalty bool                    `json:"collapsePenalty"`
	MismatchAdjust  bool                    `json:"mismatchAdjust"`
	Raw             map[ModuleKind]float64 `json:"raw,omitempty"`
}

// ModuleResult is one module's proposal for the turn.
type ModuleResult struct {
	Move *chess.Move `json:"-"`
	UCI  string      `json:"move,omitempty"`
	Diag Diagnostic  `json:"diag"`
}

// HistoryEntry records one finalized turn.
type HistoryEntry struct {
	State   *board.State
	Move    *chess.Move
	Mover   chess.Color
	Regime  Regime
	Weights WeightVector
}

// Decision is the full per-turn output bundle: the chosen move plus every
// intermediate diagnostic.
type Decision struct {
	Move           *chess.Move                 `json:"-"`
	UCI            string                      `json:"move,omitempty"`
	Terminal       bool                        `json:"terminal"`
	RawRegime      Regime                      `json:"rawRegime"`
	FinalRegime    Regime                      `json:"finalRegime"`
	Overridden     bool                        `json:"overridden"`
	OverrideReason string                      `json:"overrideReason"`
	Opponent       OpponentProfile             `json:"opponent"`
	Features       FeatureVector               `json:"features"`
	Weights        WeightVector                `json:"weights"`
	WeightDiag     ControllerDiag              `json:"weightDiag"`
	Modules        map[ModuleKind]ModuleResult `json:"modules"`
}
