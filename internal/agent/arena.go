package agent

import (
	"context"
	"fmt"

	"github.com/notnil/chess"
	"github.com/rs/zerolog/log"

	"github.com/freeeve/quiet-aggression/internal/board"
	"github.com/freeeve/quiet-aggression/internal/oracle"
)

// Arena player kinds.
const (
	PlayerAgent  = "agent"
	PlayerRandom = "random"
)

// ArenaConfig configures a single self-play game.
type ArenaConfig struct {
	White    string        // "agent" (default) or "random"
	Black    string        // "agent" (default) or "random"
	StartFEN string        // "" = standard starting position
	MaxTurns int           // half-move cap for a draw (default 300)
	Seed     int64         // 0 = non-deterministic
	Oracle   oracle.Config // oracle settings shared by both agents
}

// TurnRecord describes one half-move of an arena game.
type TurnRecord struct {
	Turn       int          `json:"turn"`
	Mover      string       `json:"mover"`
	UCI        string       `json:"move"`
	FEN        string       `json:"fen"` // position before the move
	Regime     Regime       `json:"regime,omitempty"`
	Overridden bool         `json:"overridden,omitempty"`
	Weights    WeightVector `json:"weights,omitempty"`
}

// GameRecord is the outcome of a completed arena game.
type GameRecord struct {
	Result   string       `json:"result"` // "white", "black", or "draw"
	Method   string       `json:"method"` // "checkmate", "stalemate", "turn_limit"
	Turns    int          `json:"turns"`
	FinalFEN string       `json:"finalFen"`
	Moves    []TurnRecord `json:"moves"`
}

// arenaPlayer produces one move per call. Agents return their full
// decision; baseline players return nil.
type arenaPlayer interface {
	move(s *board.State) (*chess.Move, *Decision, error)
	close() error
}

type agentPlayer struct{ agent *Agent }

func (p *agentPlayer) move(s *board.State) (*chess.Move, *Decision, error) {
	d, err := p.agent.Decide(s)
	if err != nil {
		return nil, nil, err
	}
	return d.Move, d, nil
}

func (p *agentPlayer) close() error { return p.agent.Close() }

type randomPlayer struct{}

func (randomPlayer) move(s *board.State) (*chess.Move, *Decision, error) {
	return randomLegal(s), nil, nil
}

func (randomPlayer) close() error { return nil }

// RunArena plays one game between the configured players. With a non-zero
// seed and the static oracle the game is reproducible move-for-move.
func RunArena(ctx context.Context, cfg ArenaConfig) (*GameRecord, error) {
	if cfg.MaxTurns == 0 {
		cfg.MaxTurns = 300
	}
	if cfg.Seed != 0 {
		SeedAgentRng(cfg.Seed)
	}

	state := board.NewGame()
	if cfg.StartFEN != "" {
		var err error
		state, err = board.FromFEN(cfg.StartFEN)
		if err != nil {
			return nil, err
		}
	}

	players := map[chess.Color]arenaPlayer{}
	for color, kind := range map[chess.Color]string{chess.White: cfg.White, chess.Black: cfg.Black} {
		p, err := newArenaPlayer(kind, cfg.Oracle)
		if err != nil {
			for _, built := range players {
				built.close()
			}
			return nil, err
		}
		players[color] = p
	}
	defer func() {
		for _, p := range players {
			p.close()
		}
	}()

	rec := &GameRecord{}
	for turn := 0; ; turn++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if state.Terminal() {
			rec.Result, rec.Method = Outcome(state)
			break
		}
		if turn >= cfg.MaxTurns {
			rec.Result, rec.Method = "draw", "turn_limit"
			break
		}

		mover := state.SideToMove()
		move, decision, err := players[mover].move(state)
		if err != nil {
			return nil, fmt.Errorf("arena: turn %d (%s): %w", turn, mover.Name(), err)
		}
		if move == nil {
			rec.Result, rec.Method = Outcome(state)
			break
		}

		tr := TurnRecord{
			Turn:  turn,
			Mover: mover.Name(),
			UCI:   move.String(),
			FEN:   state.FEN(),
		}
		if decision != nil {
			tr.Regime = decision.FinalRegime
			tr.Overridden = decision.Overridden
			tr.Weights = decision.Weights
		}
		rec.Moves = append(rec.Moves, tr)
		rec.Turns++

		state = state.Apply(move)
	}

	rec.FinalFEN = state.FEN()
	log.Info().
		Str("result", rec.Result).
		Str("method", rec.Method).
		Int("turns", rec.Turns).
		Msg("arena game finished")
	return rec, nil
}

func newArenaPlayer(kind string, cfg oracle.Config) (arenaPlayer, error) {
	switch kind {
	case PlayerRandom:
		return randomPlayer{}, nil
	case PlayerAgent, "":
		o := oracle.New(cfg)
		a, err := NewAgent(o)
		if err != nil {
			o.Close()
			return nil, err
		}
		return &agentPlayer{agent: a}, nil
	default:
		return nil, fmt.Errorf("arena: unknown player kind %q", kind)
	}
}

// Outcome maps a terminal position to (result, method). The side to move
// with no legal moves has lost if it stands in check.
func Outcome(s *board.State) (string, string) {
	if s.Status() == chess.Checkmate || s.InCheck() {
		if s.SideToMove() == chess.White {
			return "black", "checkmate"
		}
		return "white", "checkmate"
	}
	return "draw", "stalemate"
}
