package agent

import (
	"fmt"
	"strings"

	"github.com/notnil/chess"

	"github.com/freeeve/quiet-aggression/internal/board"
)

// DeceptionModule generates phantom pressure: bait pieces left apparently
// hanging, attacks into undefended squares, and retreats that disguise
// intent. It refuses to bluff inside a danger zone.
type DeceptionModule struct{}

func NewDeceptionModule() *DeceptionModule { return &DeceptionModule{} }

// Kind returns ModuleDeception.
func (d *DeceptionModule) Kind() ModuleKind { return ModuleDeception }

// Act returns the legal move maximizing the deception heuristic, or a
// random suppressed fallback when the position is too hot to bluff.
func (d *DeceptionModule) Act(s *board.State) (*chess.Move, Diagnostic) {
	legal := s.LegalMoves()
	if len(legal) == 0 {
		return nil, Diagnostic{Suppress: true, Reason: "no legal moves"}
	}

	checks, attackers := dangerZone(s)
	if s.InCheck() || checks >= 2 || attackers >= 3 {
		return randomLegal(s), Diagnostic{Suppress: true, Reason: "danger_zone", Risk: 1.0}
	}

	mover := s.SideToMove()
	var (
		bestMove    *chess.Move
		bestScore   float64
		bestMetrics map[string]float64
		bestAfter   *board.State
	)
	for _, mv := range legal {
		after := s.Apply(mv)
		score, metrics := deceptionScore(after, mv, mover)
		if bestMove == nil || score > bestScore {
			bestMove, bestScore, bestMetrics, bestAfter = mv, score, metrics, after
		}
	}
	if bestMove == nil {
		return nil, Diagnostic{Suppress: true, Reason: "no legal moves"}
	}

	kingThreats := 0
	if ksq := bestAfter.KingSquare(mover); ksq != chess.NoSquare {
		kingThreats = bestAfter.Attackers(ksq, mover.Other())
	}
	suppress := kingThreats >= 2 || bestScore < 0.5
	risk := clamp01((bestMetrics["bait_count"] + float64(kingThreats)) / 6)

	return bestMove, Diagnostic{
		Score:    round2(bestScore),
		Risk:     round2(risk),
		Suppress: suppress,
		Reason:   deceptionReason(bestMetrics, suppress, kingThreats),
		Metrics:  bestMetrics,
	}
}

// deceptionScore rates a post-move position for bluff value from the
// mover's perspective: 0.7 per bait piece, 0.5 per phantom threat, 0.4 for
// a retreat, 0.3 when the kings are far apart, plus a small jitter so
// equally plausible bluffs vary between games.
func deceptionScore(s *board.State, mv *chess.Move, mover chess.Color) (float64, map[string]float64) {
	opp := mover.Other()

	phantom := 0.0
	bait := 0.0
	for sq := chess.A1; sq <= chess.H8; sq++ {
		byMover := s.Attackers(sq, mover) > 0
		byOpp := s.Attackers(sq, opp) > 0
		if byMover && !byOpp {
			phantom++
		}
		if p := s.PieceAt(sq); p != chess.NoPiece && p.Color() == mover && byOpp && !byMover {
			bait++
		}
	}

	retreat := isRetreat(mv, mover)
	kingGap := kingDistance(s)

	score := 0.7*bait + 0.5*phantom + agentFloat64()*0.25
	if retreat {
		score += 0.4
	}
	if kingGap >= 5 {
		score += 0.3
	}

	retreatFlag := 0.0
	if retreat {
		retreatFlag = 1
	}
	return score, map[string]float64{
		"phantom_threats": phantom,
		"bait_count":      bait,
		"retreat_flag":    retreatFlag,
		"king_gap":        float64(kingGap),
	}
}

// isRetreat reports whether the move travels toward the mover's back rank.
func isRetreat(mv *chess.Move, mover chess.Color) bool {
	if mover == chess.White {
		return mv.S1().Rank() > mv.S2().Rank()
	}
	return mv.S1().Rank() < mv.S2().Rank()
}

func deceptionReason(metrics map[string]float64, suppress bool, kingThreats int) string {
	var parts []string
	if suppress {
		parts = append(parts, fmt.Sprintf("king_threats=%d", kingThreats))
	}
	if metrics["bait_count"] > 0 {
		parts = append(parts, fmt.Sprintf("bait=%.0f", metrics["bait_count"]))
	}
	if metrics["phantom_threats"] > 0 {
		parts = append(parts, fmt.Sprintf("phantom=%.0f", metrics["phantom_threats"]))
	}
	if metrics["retreat_flag"] > 0 {
		parts = append(parts, "retreat")
	}
	if len(parts) == 0 {
		return "bluff attempt"
	}
	return strings.Join(parts, "; ")
}
