// Package oracle provides depth-bounded position evaluation for the agent.
// Three implementations are available: a UCI engine subprocess, an ONNX
// value network, and a static material/piece-square evaluator. The factory
// falls back down that chain so the agent always has a working oracle.
package oracle

import (
	"github.com/notnil/chess"
	"github.com/rs/zerolog/log"

	"github.com/freeeve/quiet-aggression/internal/board"
)

// Score is a white-POV evaluation: positive favors white. Exactly one of
// CP or Mate is set on a successful evaluation.
type Score struct {
	CP   *int // centipawns
	Mate *int // mate in N moves; negative means white gets mated
}

// Centipawns collapses the score to a single centipawn value, mapping mate
// scores to ±10000. Returns nil for an empty score.
func (s Score) Centipawns() *int {
	if s.Mate != nil {
		cp := 10000
		if *s.Mate < 0 {
			cp = -10000
		}
		return &cp
	}
	return s.CP
}

// Oracle evaluates positions and proposes principal moves. Implementations
// may fail per call; callers must treat failures as degraded, never fatal.
type Oracle interface {
	// Evaluate returns the white-POV score of the position.
	Evaluate(s *board.State) (Score, error)
	// BestMove returns the principal move and its score. The move is
	// guaranteed legal for the given position when err is nil.
	BestMove(s *board.State) (*chess.Move, Score, error)
	// Name identifies the implementation for diagnostics.
	Name() string
	// Close releases any external resources (engine process, model).
	Close() error
}

// Config selects and configures an oracle implementation.
type Config struct {
	EnginePath string // UCI engine binary; preferred when set
	ModelPath  string // ONNX value network; used when no engine
	Depth      int    // search depth budget for the UCI engine
}

// New builds an oracle from config, falling back from UCI engine to ONNX
// model to the static evaluator, in the same spirit as the bot strategy
// fallback chain: a missing or broken external dependency degrades the
// oracle, it never prevents play.
func New(cfg Config) Oracle {
	if cfg.EnginePath != "" {
		eng, err := NewUCIEngine(cfg.EnginePath, WithDepth(cfg.Depth))
		if err == nil {
			return eng
		}
		log.Warn().Err(err).Str("path", cfg.EnginePath).Msg("UCI engine unavailable, falling back")
	}
	if cfg.ModelPath != "" {
		o, err := NewONNXOracle(cfg.ModelPath)
		if err == nil {
			return o
		}
		log.Warn().Err(err).Str("path", cfg.ModelPath).Msg("ONNX model unavailable, falling back")
	}
	return NewStatic()
}

func intPtr(v int) *int { return &v }
