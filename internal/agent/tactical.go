package agent

import (
	"fmt"
	"strings"

	"github.com/notnil/chess"
	"github.com/rs/zerolog/log"

	"github.com/freeeve/quiet-aggression/internal/board"
	"github.com/freeeve/quiet-aggression/internal/oracle"
)

// TacticalModule adopts the evaluation oracle's principal move. It is the
// designated safety net: its own logic never sets Suppress, and an oracle
// failure degrades to a random legal move instead of propagating.
type TacticalModule struct {
	oracle oracle.Oracle
	prevCP *int // previous centipawn score for delta computation
}

// NewTacticalModule wraps the oracle. The module takes ownership; release
// it via Close.
func NewTacticalModule(o oracle.Oracle) *TacticalModule {
	return &TacticalModule{oracle: o}
}

// Kind returns ModuleTactical.
func (t *TacticalModule) Kind() ModuleKind { return ModuleTactical }

// Close releases the underlying oracle.
func (t *TacticalModule) Close() error { return t.oracle.Close() }

// Evaluate is the light-weight evaluation-only entry point used for
// pre-turn feature extraction. Returns nil on oracle failure.
func (t *TacticalModule) Evaluate(s *board.State) *oracle.Score {
	sc, err := t.oracle.Evaluate(s)
	if err != nil {
		log.Warn().Err(err).Msg("tactical: pre-evaluation failed")
		return nil
	}
	return &sc
}

// Act returns the oracle's best move with tactical diagnostics.
func (t *TacticalModule) Act(s *board.State) (*chess.Move, Diagnostic) {
	if len(s.LegalMoves()) == 0 {
		return nil, Diagnostic{Suppress: true, Reason: "no legal moves"}
	}

	move, score, err := t.oracle.BestMove(s)
	if err != nil {
		log.Warn().Err(err).Msg("tactical: oracle failure, random fallback")
		t.prevCP = nil
		return randomLegal(s), Diagnostic{Risk: 0, Suppress: false, Reason: "engine failure"}
	}

	cp := score.Centipawns()
	var delta *int
	if cp != nil && t.prevCP != nil {
		d := *cp - *t.prevCP
		delta = &d
	}
	t.prevCP = cp

	checkAfter := s.GivesCheck(move)
	suggestOverride := checkAfter ||
		score.Mate != nil ||
		(delta != nil && *delta <= -150)

	// Worse eval or a big drop raises risk; both magnitudes cap at 1.
	risk := 0.0
	if cp != nil && *cp < 0 {
		risk += clamp01(float64(-*cp) / 400)
	}
	if delta != nil && *delta < 0 {
		risk += clamp01(float64(-*delta) / 400)
	}

	diag := Diagnostic{
		Risk:            clamp01(risk),
		Suppress:        false, // tactical module is never suppressed
		Reason:          tacticalReason(cp, score.Mate, checkAfter, delta),
		ScoreCP:         score.CP,
		MateIn:          score.Mate,
		EvalDelta:       delta,
		CheckAfter:      checkAfter,
		SuggestOverride: suggestOverride,
	}
	if cp != nil {
		diag.Score = float64(*cp)
	}
	return move, diag
}

func tacticalReason(cp, mate *int, checkAfter bool, delta *int) string {
	var parts []string
	if checkAfter {
		parts = append(parts, "immediate check")
	}
	if mate != nil {
		sign := "+"
		if *mate < 0 {
			sign = "-"
		}
		parts = append(parts, fmt.Sprintf("mate in %d (%s)", abs(*mate), sign))
	}
	if delta != nil && *delta <= -150 {
		parts = append(parts, "eval collapse")
	}
	if len(parts) == 0 {
		return "normal tactical best-move output"
	}
	return strings.Join(parts, "; ")
}
