package board

import "github.com/notnil/chess"

// Attack queries. notnil/chess exposes legal moves but not raw attack sets,
// so these are computed directly from piece placement. Attacks ignore pins:
// a pinned piece still attacks its target squares.

var knightOffsets = [8][2]int{
	{1, 2}, {2, 1}, {2, -1}, {1, -2},
	{-1, -2}, {-2, -1}, {-2, 1}, {-1, 2},
}

var kingOffsets = [8][2]int{
	{1, 0}, {1, 1}, {0, 1}, {-1, 1},
	{-1, 0}, {-1, -1}, {0, -1}, {1, -1},
}

var bishopDirs = [4][2]int{{1, 1}, {1, -1}, {-1, 1}, {-1, -1}}
var rookDirs = [4][2]int{{1, 0}, {-1, 0}, {0, 1}, {0, -1}}

// Attackers counts the pieces of the given color attacking a square.
func (s *State) Attackers(sq chess.Square, by chess.Color) int {
	count := 0
	for from, p := range s.pos.Board().SquareMap() {
		if p.Color() != by {
			continue
		}
		if s.attacks(from, p, sq) {
			count++
		}
	}
	return count
}

// IsAttacked reports whether any piece of the given color attacks the square.
func (s *State) IsAttacked(sq chess.Square, by chess.Color) bool {
	for from, p := range s.pos.Board().SquareMap() {
		if p.Color() != by {
			continue
		}
		if s.attacks(from, p, sq) {
			return true
		}
	}
	return false
}

// attacks reports whether the piece on from attacks the target square.
func (s *State) attacks(from chess.Square, p chess.Piece, target chess.Square) bool {
	if from == target {
		return false
	}
	df := int(target.File()) - int(from.File())
	dr := int(target.Rank()) - int(from.Rank())

	switch p.Type() {
	case chess.Pawn:
		fwd := 1
		if p.Color() == chess.Black {
			fwd = -1
		}
		return dr == fwd && (df == 1 || df == -1)
	case chess.Knight:
		for _, o := range knightOffsets {
			if df == o[0] && dr == o[1] {
				return true
			}
		}
		return false
	case chess.King:
		for _, o := range kingOffsets {
			if df == o[0] && dr == o[1] {
				return true
			}
		}
		return false
	case chess.Bishop:
		return s.slides(from, target, bishopDirs[:])
	case chess.Rook:
		return s.slides(from, target, rookDirs[:])
	case chess.Queen:
		return s.slides(from, target, bishopDirs[:]) || s.slides(from, target, rookDirs[:])
	}
	return false
}

// slides reports whether target is reachable from from along one of the
// given ray directions with no blocking piece in between.
func (s *State) slides(from, target chess.Square, dirs [][2]int) bool {
	board := s.pos.Board()
	for _, d := range dirs {
		f := int(from.File())
		r := int(from.Rank())
		for {
			f += d[0]
			r += d[1]
			if f < 0 || f > 7 || r < 0 || r > 7 {
				break
			}
			sq := squareAt(f, r)
			if sq == target {
				return true
			}
			if board.Piece(sq) != chess.NoPiece {
				break
			}
		}
	}
	return false
}

// squareAt converts zero-based file and rank indices to a square.
func squareAt(file, rank int) chess.Square {
	return chess.Square(rank*8 + file)
}
