// Package board wraps notnil/chess with the position queries the agent
// needs: legal-move enumeration, one-ply simulation, attack counting, and
// move classification. A State is immutable; Apply returns a new State.
package board

import (
	"fmt"

	"github.com/notnil/chess"
)

// State is an immutable snapshot of a chess position.
type State struct {
	pos *chess.Position
}

// NewGame returns the standard starting position.
func NewGame() *State {
	return &State{pos: chess.NewGame().Position()}
}

// FromFEN parses a FEN string into a State.
func FromFEN(fen string) (*State, error) {
	opt, err := chess.FEN(fen)
	if err != nil {
		return nil, fmt.Errorf("parse fen %q: %w", fen, err)
	}
	return &State{pos: chess.NewGame(opt).Position()}, nil
}

// FromPosition wraps an existing position.
func FromPosition(pos *chess.Position) *State {
	return &State{pos: pos}
}

// Position returns the underlying chess position.
func (s *State) Position() *chess.Position { return s.pos }

// FEN returns the position in FEN notation.
func (s *State) FEN() string { return s.pos.String() }

// SideToMove returns the color to move.
func (s *State) SideToMove() chess.Color { return s.pos.Turn() }

// LegalMoves enumerates all legal moves for the side to move.
func (s *State) LegalMoves() []*chess.Move { return s.pos.ValidMoves() }

// Apply plays a move and returns the resulting State. The receiver is
// unchanged.
func (s *State) Apply(m *chess.Move) *State {
	return &State{pos: s.pos.Update(m)}
}

// Terminal reports whether the side to move has no legal moves.
func (s *State) Terminal() bool { return len(s.pos.ValidMoves()) == 0 }

// Status returns the terminal method (checkmate, stalemate, or NoMethod).
func (s *State) Status() chess.Method { return s.pos.Status() }

// PieceAt returns the piece on the given square, or chess.NoPiece.
func (s *State) PieceAt(sq chess.Square) chess.Piece {
	return s.pos.Board().Piece(sq)
}

// KingSquare returns the square of the given color's king, or chess.NoSquare
// if absent (only possible on malformed test positions).
func (s *State) KingSquare(c chess.Color) chess.Square {
	for sq, p := range s.pos.Board().SquareMap() {
		if p.Type() == chess.King && p.Color() == c {
			return sq
		}
	}
	return chess.NoSquare
}

// InCheck reports whether the side to move is in check.
func (s *State) InCheck() bool {
	ksq := s.KingSquare(s.SideToMove())
	if ksq == chess.NoSquare {
		return false
	}
	return s.IsAttacked(ksq, s.SideToMove().Other())
}

// GivesCheck reports whether playing the move leaves the opponent in check.
func (s *State) GivesCheck(m *chess.Move) bool {
	return s.Apply(m).InCheck()
}

// IsCapture reports whether the move captures a piece, including en passant.
func (s *State) IsCapture(m *chess.Move) bool {
	if s.PieceAt(m.S2()) != chess.NoPiece {
		return true
	}
	return s.IsEnPassant(m)
}

// IsEnPassant reports whether the move is an en passant capture.
func (s *State) IsEnPassant(m *chess.Move) bool {
	p := s.PieceAt(m.S1())
	if p.Type() != chess.Pawn {
		return false
	}
	return m.S2() == s.pos.EnPassantSquare() && m.S1().File() != m.S2().File()
}

// IsPromotion reports whether the move promotes a pawn.
func (s *State) IsPromotion(m *chess.Move) bool {
	return m.Promo() != chess.NoPieceType
}

// FindMove matches a UCI move string (e.g. "e2e4", "e7e8q") against the
// legal moves of this position. Returns nil if no legal move matches.
func (s *State) FindMove(uci string) *chess.Move {
	for _, m := range s.pos.ValidMoves() {
		if m.String() == uci {
			return m
		}
	}
	return nil
}
