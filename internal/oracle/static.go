package oracle

import (
	"fmt"

	"github.com/notnil/chess"

	"github.com/freeeve/quiet-aggression/internal/board"
)

// Static is a dependency-free oracle: material count plus small
// piece-square bonuses. It is the last link in the fallback chain and the
// default oracle in tests. Values are centipawns from white's POV.
type Static struct{}

// NewStatic returns the static evaluator.
func NewStatic() *Static { return &Static{} }

// Name returns the oracle name.
func (*Static) Name() string { return "static" }

// Close is a no-op; the static evaluator holds no resources.
func (*Static) Close() error { return nil }

var pieceValues = map[chess.PieceType]int{
	chess.Pawn:   100,
	chess.Knight: 320,
	chess.Bishop: 330,
	chess.Rook:   500,
	chess.Queen:  900,
}

// pawnTable rewards central advances; indexed from white's POV (rank 1 at
// the bottom), mirrored for black.
var pawnTable = [64]int{
	0, 0, 0, 0, 0, 0, 0, 0,
	5, 10, 10, -20, -20, 10, 10, 5,
	5, -5, -10, 0, 0, -10, -5, 5,
	0, 0, 0, 20, 20, 0, 0, 0,
	5, 5, 10, 25, 25, 10, 5, 5,
	10, 10, 20, 30, 30, 20, 10, 10,
	50, 50, 50, 50, 50, 50, 50, 50,
	0, 0, 0, 0, 0, 0, 0, 0,
}

var knightTable = [64]int{
	-50, -40, -30, -30, -30, -30, -40, -50,
	-40, -20, 0, 5, 5, 0, -20, -40,
	-30, 5, 10, 15, 15, 10, 5, -30,
	-30, 0, 15, 20, 20, 15, 0, -30,
	-30, 5, 15, 20, 20, 15, 5, -30,
	-30, 0, 10, 15, 15, 10, 0, -30,
	-40, -20, 0, 0, 0, 0, -20, -40,
	-50, -40, -30, -30, -30, -30, -40, -50,
}

var bishopTable = [64]int{
	-20, -10, -10, -10, -10, -10, -10, -20,
	-10, 5, 0, 0, 0, 0, 5, -10,
	-10, 10, 10, 10, 10, 10, 10, -10,
	-10, 0, 10, 10, 10, 10, 0, -10,
	-10, 5, 5, 10, 10, 5, 5, -10,
	-10, 0, 5, 10, 10, 5, 0, -10,
	-10, 0, 0, 0, 0, 0, 0, -10,
	-20, -10, -10, -10, -10, -10, -10, -20,
}

// Evaluate returns the material/piece-square score, or a mate score on a
// terminal position.
func (o *Static) Evaluate(s *board.State) (Score, error) {
	if s.Terminal() {
		return terminalScore(s), nil
	}
	cp := 0
	for sq, p := range s.Position().Board().SquareMap() {
		v := pieceValues[p.Type()]
		v += squareBonus(p, sq)
		if p.Color() == chess.White {
			cp += v
		} else {
			cp -= v
		}
	}
	return Score{CP: intPtr(cp)}, nil
}

// BestMove picks the one-ply move with the best resulting evaluation for
// the side to move. Mate in one always wins.
func (o *Static) BestMove(s *board.State) (*chess.Move, Score, error) {
	legal := s.LegalMoves()
	if len(legal) == 0 {
		return nil, terminalScore(s), fmt.Errorf("no legal moves")
	}

	white := s.SideToMove() == chess.White
	var best *chess.Move
	var bestScore Score
	bestCP := 0
	for _, m := range legal {
		child := s.Apply(m)
		sc, err := o.Evaluate(child)
		if err != nil {
			continue
		}
		cp := *sc.Centipawns()
		if best == nil || (white && cp > bestCP) || (!white && cp < bestCP) {
			best = m
			bestScore = sc
			bestCP = cp
		}
	}
	return best, bestScore, nil
}

// terminalScore scores a no-legal-move position: mate against the side to
// move, or 0 for stalemate.
func terminalScore(s *board.State) Score {
	if s.Status() == chess.Checkmate {
		mate := 1
		if s.SideToMove() == chess.White {
			mate = -1
		}
		return Score{Mate: intPtr(mate)}
	}
	return Score{CP: intPtr(0)}
}

// squareBonus returns the piece-square bonus for a piece, mirroring the
// table vertically for black.
func squareBonus(p chess.Piece, sq chess.Square) int {
	idx := int(sq)
	if p.Color() == chess.Black {
		idx = int(squareAtMirror(sq))
	}
	switch p.Type() {
	case chess.Pawn:
		return pawnTable[idx]
	case chess.Knight:
		return knightTable[idx]
	case chess.Bishop:
		return bishopTable[idx]
	default:
		return 0
	}
}

// squareAtMirror flips a square across the horizontal axis.
func squareAtMirror(sq chess.Square) chess.Square {
	file := int(sq.File())
	rank := 7 - int(sq.Rank())
	return chess.Square(rank*8 + file)
}
