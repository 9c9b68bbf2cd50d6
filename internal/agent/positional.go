package agent

import (
	"fmt"
	"strings"

	"github.com/notnil/chess"

	"github.com/freeeve/quiet-aggression/internal/board"
)

var (
	centerSquares    = []chess.Square{chess.D4, chess.E4, chess.D5, chess.E5}
	extCenterSquares = []chess.Square{chess.C4, chess.F4, chess.C5, chess.F5}
)

// PositionalModule optimizes structure and space: center pressure, piece
// development, castled king, and pawn-structure health, simulated one ply
// ahead for every legal move.
type PositionalModule struct{}

func NewPositionalModule() *PositionalModule { return &PositionalModule{} }

// Kind returns ModulePositional.
func (p *PositionalModule) Kind() ModuleKind { return ModulePositional }

// Act scores every legal move with the positional heuristic from the
// mover's perspective and returns the maximum.
func (p *PositionalModule) Act(s *board.State) (*chess.Move, Diagnostic) {
	legal := s.LegalMoves()
	if len(legal) == 0 {
		return nil, Diagnostic{Suppress: true, Reason: "no legal moves"}
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
		score, metrics := positionalScore(after, mover)
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
	suppress := kingThreats >= 3
	risk := clamp01(-bestScore / 8)

	return bestMove, Diagnostic{
		Score:    round2(bestScore),
		Risk:     round2(risk),
		Suppress: suppress,
		Reason:   positionalReason(bestMetrics, suppress, kingThreats),
		Metrics:  bestMetrics,
	}
}

// positionalScore evaluates a post-move position for the given mover:
// 1.2 per attacked center square, 0.5 per attacked extended-center square,
// development bonuses, minus pawn-structure penalties.
func positionalScore(s *board.State, mover chess.Color) (float64, map[string]float64) {
	centerPress := 0.0
	for _, sq := range centerSquares {
		if s.Attackers(sq, mover) > 0 {
			centerPress++
		}
	}
	extPress := 0.0
	for _, sq := range extCenterSquares {
		if s.Attackers(sq, mover) > 0 {
			extPress += 0.5
		}
	}

	dev := 0.0
	for sq, p := range s.Position().Board().SquareMap() {
		if p.Color() != mover {
			continue
		}
		rank := advanceRank(sq, mover)
		switch p.Type() {
		case chess.Knight:
			if rank >= 2 {
				dev += 0.4
			}
		case chess.Bishop:
			if rank >= 2 {
				dev += 0.3
			}
		case chess.Rook:
			if sq.File() == chess.FileD || sq.File() == chess.FileE {
				dev += 0.3
			}
		case chess.Queen:
			if rank >= 2 {
				dev += 0.2
			}
		case chess.King:
			switch sq {
			case chess.G1, chess.C1, chess.G8, chess.C8:
				dev += 0.6
			default:
				if r := int(sq.Rank()); r == 3 || r == 4 {
					dev -= 0.8
				}
			}
		}
	}

	pawnPenalty := pawnStructurePenalty(s, mover)
	score := 1.2*centerPress + extPress + dev - pawnPenalty

	return score, map[string]float64{
		"centre_pressure": centerPress + extPress,
		"dev_score":       round2(dev),
		"pawn_penalty":    round2(pawnPenalty),
	}
}

// pawnStructurePenalty charges 0.3 per doubled pawn beyond the first on a
// file and 0.4 per isolated pawn.
func pawnStructurePenalty(s *board.State, color chess.Color) float64 {
	var fileCounts [8]int
	for sq, p := range s.Position().Board().SquareMap() {
		if p.Type() == chess.Pawn && p.Color() == color {
			fileCounts[int(sq.File())]++
		}
	}
	penalty := 0.0
	for f, cnt := range fileCounts {
		if cnt >= 2 {
			penalty += 0.3 * float64(cnt-1)
		}
		neighbors := 0
		if f > 0 {
			neighbors += fileCounts[f-1]
		}
		if f < 7 {
			neighbors += fileCounts[f+1]
		}
		if cnt == 1 && neighbors == 0 {
			penalty += 0.4
		}
	}
	return penalty
}

// advanceRank is the rank index counted from the mover's own back rank.
func advanceRank(sq chess.Square, color chess.Color) int {
	r := int(sq.Rank())
	if color == chess.Black {
		return 7 - r
	}
	return r
}

func positionalReason(metrics map[string]float64, suppress bool, kingThreats int) string {
	var parts []string
	if suppress {
		parts = append(parts, fmt.Sprintf("king_threats=%d", kingThreats))
	}
	parts = append(parts,
		fmt.Sprintf("centre=%.1f", metrics["centre_pressure"]),
		fmt.Sprintf("dev=%.1f", metrics["dev_score"]),
		fmt.Sprintf("pawn_penalty=%.1f", metrics["pawn_penalty"]))
	return strings.Join(parts, "; ")
}

func round2(v float64) float64 {
	if v < 0 {
		return float64(int(v*100-0.5)) / 100
	}
	return float64(int(v*100+0.5)) / 100
}
