package oracle

import (
	"github.com/notnil/chess"

	"github.com/freeeve/quiet-aggression/internal/board"
)

// Board encoding for the ONNX value network: 13 planes of 8x8 float32,
// row-major [plane][rank][file]. Planes 0-5 are white pawn, knight, bishop,
// rook, queen, king; 6-11 the same for black; plane 12 is all ones when
// white is to move, all zeros otherwise.

const (
	// NumPlanes is the number of feature planes in the encoding.
	NumPlanes = 13
	// PlaneSize is the number of squares per plane.
	PlaneSize = 64
	// EncodedSize is the total flat encoding length.
	EncodedSize = NumPlanes * PlaneSize
)

var planeByType = map[chess.PieceType]int{
	chess.Pawn:   0,
	chess.Knight: 1,
	chess.Bishop: 2,
	chess.Rook:   3,
	chess.Queen:  4,
	chess.King:   5,
}

// EncodeState flattens a position into the model's input layout.
func EncodeState(s *board.State) []float32 {
	data := make([]float32, EncodedSize)

	for sq, p := range s.Position().Board().SquareMap() {
		plane := planeByType[p.Type()]
		if p.Color() == chess.Black {
			plane += 6
		}
		data[plane*PlaneSize+int(sq)] = 1
	}

	if s.SideToMove() == chess.White {
		base := 12 * PlaneSize
		for i := 0; i < PlaneSize; i++ {
			data[base+i] = 1
		}
	}

	return data
}
