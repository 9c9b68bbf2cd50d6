package agent

import (
	"github.com/notnil/chess"

	"github.com/freeeve/quiet-aggression/internal/board"
	"github.com/freeeve/quiet-aggression/internal/oracle"
)

const detectorMemoryCap = 8

// RegimeDetector extracts the per-turn symbolic feature vector and proposes
// a raw regime. It never overrides its own proposal; that is the
// RegimeChanger's job. One instance per game session.
type RegimeDetector struct {
	prevCP      *int
	prevRegimes []Regime // trailing proposals, feeds the fatigue feature
}

func NewRegimeDetector() *RegimeDetector { return &RegimeDetector{} }

// ExtractFeatures computes the feature vector for the current position.
// eval may be nil when the oracle pre-evaluation failed; EvalDelta is nil
// on the first call with a usable score.
func (d *RegimeDetector) ExtractFeatures(s *board.State, eval *oracle.Score) FeatureVector {
	checks, attackers := dangerZone(s)

	var evalCP *int
	if eval != nil {
		evalCP = eval.Centipawns()
	}
	var evalDelta *int
	if evalCP != nil && d.prevCP != nil {
		delta := *evalCP - *d.prevCP
		evalDelta = &delta
	}
	d.prevCP = evalCP

	fatigue := false
	if len(d.prevRegimes) >= 4 {
		tail := d.prevRegimes[len(d.prevRegimes)-4:]
		fatigue = tail[0] == tail[1] && tail[1] == tail[2] && tail[2] == tail[3]
	}

	return FeatureVector{
		MaterialDiff:    materialDiff(s),
		Mobility:        len(s.LegalMoves()),
		PawnTension:     pawnTension(s),
		KingExposure:    kingExposure(s),
		CenterControl:   centerControl(s),
		Symmetry:        pawnSymmetry(s),
		EvalScore:       evalCP,
		EvalDelta:       evalDelta,
		InCheck:         s.InCheck(),
		FatigueRisk:     fatigue,
		DangerChecks:    checks,
		DangerAttackers: attackers,
	}
}

// Predict proposes a raw regime from the feature vector. The proposal is
// appended to the internal window used by the next call's fatigue feature.
func (d *RegimeDetector) Predict(s *board.State, eval *oracle.Score) (Regime, FeatureVector) {
	feats := d.ExtractFeatures(s, eval)

	var regime Regime
	switch {
	// Immediate tactical danger bypasses the heuristic mapping.
	case feats.DangerChecks >= 2 || feats.DangerAttackers >= 3:
		regime = RegimeTactical
	case feats.InCheck || feats.KingExposure >= 2 ||
		(feats.EvalDelta != nil && *feats.EvalDelta <= -150):
		regime = RegimeTactical
	case feats.PawnTension >= 3 || abs(feats.MaterialDiff) >= 5:
		regime = RegimePositional
	case feats.Mobility >= 30 && feats.PawnTension == 0 && feats.Symmetry < 0.5:
		regime = RegimeShaping
	default:
		regime = RegimeDeception
	}

	d.prevRegimes = append(d.prevRegimes, regime)
	if len(d.prevRegimes) > detectorMemoryCap {
		d.prevRegimes = d.prevRegimes[1:]
	}
	return regime, feats
}

var materialValues = map[chess.PieceType]int{
	chess.Pawn:   1,
	chess.Knight: 3,
	chess.Bishop: 3,
	chess.Rook:   5,
	chess.Queen:  9,
}

// materialDiff is white material minus black material in pawn units.
func materialDiff(s *board.State) int {
	diff := 0
	for _, p := range s.Position().Board().SquareMap() {
		v, ok := materialValues[p.Type()]
		if !ok {
			continue
		}
		if p.Color() == chess.White {
			diff += v
		} else {
			diff -= v
		}
	}
	return diff
}

// pawnTension counts pawns attacked by the opposing color.
func pawnTension(s *board.State) int {
	tension := 0
	for sq, p := range s.Position().Board().SquareMap() {
		if p.Type() == chess.Pawn && s.Attackers(sq, p.Color().Other()) > 0 {
			tension++
		}
	}
	return tension
}

// kingExposure sums the attacker counts on both kings.
func kingExposure(s *board.State) int {
	total := 0
	for _, color := range []chess.Color{chess.White, chess.Black} {
		if ksq := s.KingSquare(color); ksq != chess.NoSquare {
			total += s.Attackers(ksq, color.Other())
		}
	}
	return total
}

// centerControl counts center squares attacked by either side.
func centerControl(s *board.State) int {
	n := 0
	for _, sq := range centerSquares {
		if s.Attackers(sq, chess.White) > 0 || s.Attackers(sq, chess.Black) > 0 {
			n++
		}
	}
	return n
}

// pawnSymmetry compares mirror file pairs (a/h, b/g, c/f, d/e) for pawn
// occupancy agreement: 1 is a perfect mirror, 0 perfect asymmetry.
func pawnSymmetry(s *board.State) float64 {
	var pawnFiles [8]bool
	for sq, p := range s.Position().Board().SquareMap() {
		if p.Type() == chess.Pawn {
			pawnFiles[int(sq.File())] = true
		}
	}
	pairs := 0
	for f := 0; f < 4; f++ {
		if pawnFiles[f] == pawnFiles[7-f] {
			pairs++
		}
	}
	return float64(pairs) / 4
}
