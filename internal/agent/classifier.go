package agent

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/notnil/chess"

	"github.com/freeeve/quiet-aggression/internal/board"
)

const (
	classifierWindow     = 12
	classifierMinSamples = 6
	volatilityThreshold  = 4.0
)

type observedMove struct {
	before *board.State
	move   *chess.Move
}

// OpponentClassifier profiles the opposing side's playing style over a
// bounded sliding window of its moves. One instance per game session.
type OpponentClassifier struct {
	window []observedMove
}

func NewOpponentClassifier() *OpponentClassifier { return &OpponentClassifier{} }

// Update records one opponent move with the position it was played from.
// The caller decides which moves belong to the opponent.
func (c *OpponentClassifier) Update(before *board.State, move *chess.Move) {
	c.window = append(c.window, observedMove{before: before, move: move})
	if len(c.window) > classifierWindow {
		c.window = c.window[1:]
	}
}

// Samples returns the number of recorded opponent moves.
func (c *OpponentClassifier) Samples() int { return len(c.window) }

// Classify computes the opponent profile. With fewer than six samples the
// opponent is unknown with zero confidence.
func (c *OpponentClassifier) Classify() OpponentProfile {
	if len(c.window) < classifierMinSamples {
		return OpponentProfile{Type: OpponentUnknown, Confidence: 0, Reason: "insufficient data"}
	}

	tac := c.tacticalAggression()
	shp := c.entropyInduction()
	pos := c.quietRepositioning()
	dec := c.deceptionSignal()
	volatile := styleDeviation([]float64{tac, pos, shp, dec}) >= volatilityThreshold

	scores := map[OpponentType]float64{
		OpponentTactical:   round2(tac),
		OpponentPositional: round2(pos),
		OpponentShaping:    round2(shp),
		OpponentDeception:  round2(dec),
	}

	topStyle, topVal, nextVal := rankStyles(scores)

	chaotic := (shp >= 4 && tac >= 4) || volatile
	style := topStyle
	if chaotic {
		style = OpponentChaotic
	}

	conf := 0.5
	switch {
	case topVal >= 4 && topVal >= 1.8*nextVal:
		conf = 0.85
	case topVal >= 3:
		conf = 0.7
	case chaotic:
		conf = 0.6
	}

	return OpponentProfile{
		Type:       style,
		Confidence: conf,
		Scores:     scores,
		Reason:     classifierReason(topStyle, topVal, chaotic, volatile),
		Volatile:   volatile,
	}
}

// tacticalAggression rewards captures, checks, and promotions.
func (c *OpponentClassifier) tacticalAggression() float64 {
	score := 0.0
	for _, o := range c.window {
		if o.before.IsCapture(o.move) {
			score += 1.5
		}
		if o.before.GivesCheck(o.move) {
			score += 1.2
		}
		if o.before.IsPromotion(o.move) {
			score += 1.0
		}
	}
	return score
}

// entropyInduction rewards flank-file origins, en passant, and wide
// lateral pawn shifts.
func (c *OpponentClassifier) entropyInduction() float64 {
	score := 0.0
	for _, o := range c.window {
		if f := o.move.S1().File(); f == chess.FileA || f == chess.FileH {
			score += 1.0
		}
		if o.before.IsEnPassant(o.move) {
			score += 1.0
		}
		if p := o.before.PieceAt(o.move.S1()); p != chess.NoPiece && p.Type() == chess.Pawn {
			if abs(int(o.move.S2().File())-int(o.move.S1().File())) >= 2 {
				score += 0.6
			}
		}
	}
	return score
}

// quietRepositioning rewards non-capture non-check minor/rook moves that
// advance toward the opponent's side.
func (c *OpponentClassifier) quietRepositioning() float64 {
	score := 0.0
	for _, o := range c.window {
		p := o.before.PieceAt(o.move.S1())
		if p == chess.NoPiece {
			continue
		}
		switch p.Type() {
		case chess.Knight, chess.Bishop, chess.Rook:
		default:
			continue
		}
		if o.before.IsCapture(o.move) || o.before.GivesCheck(o.move) {
			continue
		}
		from, to := int(o.move.S1().Rank()), int(o.move.S2().Rank())
		if (p.Color() == chess.White && to > from) || (p.Color() == chess.Black && to < from) {
			score += 1.0
		}
	}
	return score
}

// deceptionSignal rewards apparent retreats and pieces left hanging on
// their destination square.
func (c *OpponentClassifier) deceptionSignal() float64 {
	score := 0.0
	for _, o := range c.window {
		p := o.before.PieceAt(o.move.S1())
		if p == chess.NoPiece {
			continue
		}
		if isRetreat(o.move, p.Color()) {
			score += 0.6
		}
		after := o.before.Apply(o.move)
		dst := o.move.S2()
		if after.Attackers(dst, p.Color().Other()) > 0 && after.Attackers(dst, p.Color()) == 0 {
			score += 1.0
		}
	}
	return score
}

// styleDeviation is the population standard deviation of the four style
// scores; high oscillation among them marks a volatile opponent.
func styleDeviation(vals []float64) float64 {
	mean := 0.0
	for _, v := range vals {
		mean += v
	}
	mean /= float64(len(vals))
	variance := 0.0
	for _, v := range vals {
		variance += (v - mean) * (v - mean)
	}
	return math.Sqrt(variance / float64(len(vals)))
}

// rankStyles returns the top style with its score and the runner-up score,
// iterating in a fixed order so ties resolve deterministically.
func rankStyles(scores map[OpponentType]float64) (OpponentType, float64, float64) {
	order := []OpponentType{OpponentTactical, OpponentPositional, OpponentShaping, OpponentDeception}
	top := order[0]
	for _, st := range order[1:] {
		if scores[st] > scores[top] {
			top = st
		}
	}
	vals := make([]float64, 0, len(order))
	for _, st := range order {
		vals = append(vals, scores[st])
	}
	sort.Sort(sort.Reverse(sort.Float64Slice(vals)))
	return top, vals[0], vals[1]
}

func classifierReason(top OpponentType, topVal float64, chaotic, volatile bool) string {
	var parts []string
	if chaotic {
		parts = append(parts, "chaotic mix")
	} else if volatile {
		parts = append(parts, "volatile pattern")
	}
	parts = append(parts, fmt.Sprintf("top=%s(%.1f)", top, topVal))
	return strings.Join(parts, ", ")
}
