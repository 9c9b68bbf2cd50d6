package agent

import (
	"errors"
	"fmt"

	"github.com/freeeve/quiet-aggression/internal/board"
	"github.com/freeeve/quiet-aggression/internal/oracle"
)

// ErrGameOver is returned when a move is requested on a terminal position.
var ErrGameOver = errors.New("session: game is over")

// Session couples one Agent to one game lifetime. All pipeline state lives
// inside the agent, so a session must never be shared across games.
type Session struct {
	agent *Agent
	state *board.State
	turns int
}

// NewSession builds an agent around the oracle and starts from the
// standard position.
func NewSession(o oracle.Oracle) (*Session, error) {
	a, err := NewAgent(o)
	if err != nil {
		return nil, err
	}
	return &Session{agent: a, state: board.NewGame()}, nil
}

// State returns the current position.
func (s *Session) State() *board.State { return s.state }

// FEN returns the current position in FEN notation.
func (s *Session) FEN() string { return s.state.FEN() }

// Turns returns the number of half-moves played through this session.
func (s *Session) Turns() int { return s.turns }

// LoadFEN replaces the current position. The agent's windows and memories
// carry over; use a fresh session for an unrelated game.
func (s *Session) LoadFEN(fen string) error {
	st, err := board.FromFEN(fen)
	if err != nil {
		return err
	}
	s.state = st
	return nil
}

// Play runs the decision pipeline on the current position and applies the
// chosen move. Returns ErrGameOver on a terminal position.
func (s *Session) Play() (*Decision, error) {
	decision, err := s.agent.Decide(s.state)
	if err != nil {
		return nil, err
	}
	if decision.Terminal || decision.Move == nil {
		return decision, ErrGameOver
	}
	s.state = s.state.Apply(decision.Move)
	s.turns++
	return decision, nil
}

// ApplyUCI applies an externally supplied move (the opponent's reply) to
// the session position.
func (s *Session) ApplyUCI(uci string) error {
	move := s.state.FindMove(uci)
	if move == nil {
		return fmt.Errorf("session: illegal move %q for position %s", uci, s.state.FEN())
	}
	s.state = s.state.Apply(move)
	s.turns++
	return nil
}

// Close releases the agent's oracle.
func (s *Session) Close() error { return s.agent.Close() }
