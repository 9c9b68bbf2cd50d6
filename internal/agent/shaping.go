package agent

import (
	"fmt"
	"strings"

	"github.com/notnil/chess"

	"github.com/freeeve/quiet-aggression/internal/board"
)

// shapingExposureCutoff suppresses the module once the own king collects
// this many attackers.
const shapingExposureCutoff = 3

// ShapingModule seeks asymmetry: it maximizes an entropy proxy built from
// post-move mobility, king separation, open files, and contested center,
// penalized by mirror-image pawn structure.
type ShapingModule struct{}

func NewShapingModule() *ShapingModule { return &ShapingModule{} }

// Kind returns ModuleShaping.
func (m *ShapingModule) Kind() ModuleKind { return ModuleShaping }

// Act returns the legal move maximizing the entropy heuristic.
func (m *ShapingModule) Act(s *board.State) (*chess.Move, Diagnostic) {
	legal := s.LegalMoves()
	if len(legal) == 0 {
		return nil, Diagnostic{Suppress: true, Reason: "no legal moves"}
	}

	var (
		bestMove    *chess.Move
		bestScore   float64
		bestMetrics map[string]float64
	)
	for _, mv := range legal {
		after := s.Apply(mv)
		score, metrics := entropyScore(after)
		if bestMove == nil || score > bestScore {
			bestMove, bestScore, bestMetrics = mv, score, metrics
		}
	}
	if bestMove == nil {
		return nil, Diagnostic{Suppress: true, Reason: "no legal moves"}
	}

	mover := s.SideToMove()
	kingThreats := 0
	if ksq := s.KingSquare(mover); ksq != chess.NoSquare {
		kingThreats = s.Attackers(ksq, mover.Other())
	}
	suppress := kingThreats >= shapingExposureCutoff

	return bestMove, Diagnostic{
		Score:    round2(bestScore),
		Risk:     shapingRisk(bestMetrics, kingThreats),
		Suppress: suppress,
		Reason:   shapingReason(bestMetrics, suppress, kingThreats),
		Metrics:  bestMetrics,
	}
}

// entropyScore computes the asymmetry proxy for a post-move position:
// 1.3 x mobility + 0.9 x king distance + 0.8 x open files +
// 0.7 x contested center squares - 0.6 x pawn-file symmetry.
func entropyScore(s *board.State) (float64, map[string]float64) {
	mobility := float64(len(s.LegalMoves()))
	kingDist := float64(kingDistance(s))

	squares := s.Position().Board().SquareMap()

	var pawnFiles [8]bool
	flank := 0.0
	for sq, p := range squares {
		if p.Type() == chess.Pawn {
			pawnFiles[int(sq.File())] = true
		}
		switch sq {
		case chess.A1, chess.A8, chess.H1, chess.H8:
			if p.Type() == chess.Rook || p.Type() == chess.Queen {
				flank = 1
			}
		}
	}
	openFiles := 0.0
	for _, occupied := range pawnFiles {
		if !occupied {
			openFiles++
		}
	}

	contested := 0.0
	for _, sq := range centerSquares {
		if s.Attackers(sq, chess.White) > 0 || s.Attackers(sq, chess.Black) > 0 {
			contested++
		}
	}

	// Files holding a pawn on both the second and seventh ranks still look
	// like the starting mirror; each such file reduces entropy.
	symmetry := 0.0
	for f := 0; f < 8; f++ {
		lo, okLo := squares[squareAtFR(f, 1)]
		hi, okHi := squares[squareAtFR(f, 6)]
		if okLo && okHi && lo.Type() == chess.Pawn && hi.Type() == chess.Pawn {
			symmetry++
		}
	}

	score := 1.3*mobility + 0.9*kingDist + 0.8*openFiles + 0.7*contested - 0.6*symmetry

	return score, map[string]float64{
		"mobility":        mobility,
		"king_distance":   kingDist,
		"open_files":      openFiles,
		"centre_pressure": contested,
		"flank_pressure":  flank,
	}
}

func shapingRisk(metrics map[string]float64, kingThreats int) float64 {
	risk := 0.0
	if kingThreats > 0 {
		risk += clamp01(float64(kingThreats) / 4)
	}
	if metrics["open_files"] >= 5 {
		risk += 0.2
	}
	if metrics["flank_pressure"] > 0 {
		risk += 0.1
	}
	return round2(clamp01(risk))
}

func shapingReason(metrics map[string]float64, suppress bool, threats int) string {
	var parts []string
	if suppress {
		parts = append(parts, fmt.Sprintf("king threatened x%d", threats))
	}
	parts = append(parts,
		fmt.Sprintf("mobility=%.0f", metrics["mobility"]),
		fmt.Sprintf("open_files=%.0f", metrics["open_files"]))
	if metrics["flank_pressure"] > 0 {
		parts = append(parts, "flank_pressure")
	}
	return strings.Join(parts, "; ")
}

func squareAtFR(file, rank int) chess.Square {
	return chess.Square(rank*8 + file)
}
