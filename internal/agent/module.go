package agent

import (
	"fmt"

	"github.com/notnil/chess"

	"github.com/freeeve/quiet-aggression/internal/board"
	"github.com/freeeve/quiet-aggression/internal/oracle"
)

// Module is the shared strategy-module contract: one candidate move and a
// diagnostic per turn. A nil move means the position has no legal moves (or,
// for the tactical module, a total oracle failure with no legal fallback);
// the orchestrator substitutes and marks such results suppressed.
type Module interface {
	Kind() ModuleKind
	Act(s *board.State) (*chess.Move, Diagnostic)
}

// NewModules builds the four strategy modules around a shared oracle.
// The oracle is owned by the returned tactical module; callers release it
// through Agent.Close. A nil oracle is a configuration error.
func NewModules(o oracle.Oracle) (map[ModuleKind]Module, error) {
	if o == nil {
		return nil, fmt.Errorf("modules: oracle must not be nil")
	}
	modules := map[ModuleKind]Module{
		ModuleTactical:   NewTacticalModule(o),
		ModulePositional: NewPositionalModule(),
		ModuleShaping:    NewShapingModule(),
		ModuleDeception:  NewDeceptionModule(),
	}
	for _, k := range ModuleOrder {
		if modules[k] == nil {
			return nil, fmt.Errorf("modules: missing binding for %q", k)
		}
	}
	return modules, nil
}

// dangerZone returns the immediate tactical danger pair: the number of
// legal checking replies and the number of attackers on the side-to-move's
// king.
func dangerZone(s *board.State) (checks, attackers int) {
	for _, m := range s.LegalMoves() {
		if s.GivesCheck(m) {
			checks++
		}
	}
	ksq := s.KingSquare(s.SideToMove())
	if ksq != chess.NoSquare {
		attackers = s.Attackers(ksq, s.SideToMove().Other())
	}
	return checks, attackers
}

// randomLegal picks a uniformly random legal move, or nil on a terminal
// position.
func randomLegal(s *board.State) *chess.Move {
	legal := s.LegalMoves()
	if len(legal) == 0 {
		return nil
	}
	return legal[agentIntn(len(legal))]
}

// kingDistance is the taxicab distance between the two kings, or 0 if a
// king is missing.
func kingDistance(s *board.State) int {
	wk := s.KingSquare(chess.White)
	bk := s.KingSquare(chess.Black)
	if wk == chess.NoSquare || bk == chess.NoSquare {
		return 0
	}
	df := int(wk.File()) - int(bk.File())
	dr := int(wk.Rank()) - int(bk.Rank())
	return abs(df) + abs(dr)
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
