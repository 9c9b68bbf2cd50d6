package agent

import (
	"fmt"

	"github.com/notnil/chess"
	"github.com/rs/zerolog/log"

	"github.com/freeeve/quiet-aggression/internal/board"
	"github.com/freeeve/quiet-aggression/internal/oracle"
)

// Agent sequences the full decision pipeline once per turn. Every piece of
// mutable state (classifier window, detector memory, changer memory,
// regret) belongs to this instance; one Agent serves exactly one game.
type Agent struct {
	modules    map[ModuleKind]Module
	classifier *OpponentClassifier
	detector   *RegimeDetector
	changer    *RegimeChanger
	controller *Controller
	history    []HistoryEntry
}

// NewAgent wires the pipeline around a shared oracle. Construction fails
// fast on a missing module binding or a malformed weight prior table.
func NewAgent(o oracle.Oracle) (*Agent, error) {
	modules, err := NewModules(o)
	if err != nil {
		return nil, err
	}
	controller, err := NewController()
	if err != nil {
		return nil, err
	}
	return &Agent{
		modules:    modules,
		classifier: NewOpponentClassifier(),
		detector:   NewRegimeDetector(),
		changer:    NewRegimeChanger(),
		controller: controller,
	}, nil
}

// History returns the per-turn record accumulated so far.
func (a *Agent) History() []HistoryEntry { return a.history }

// Close releases the oracle owned by the tactical module.
func (a *Agent) Close() error {
	if t, ok := a.modules[ModuleTactical].(*TacticalModule); ok {
		return t.Close()
	}
	return nil
}

// Decide runs one turn of the pipeline. On a terminal position it returns
// a Decision with a nil move and Terminal set; the host must treat that as
// game end, not retry.
func (a *Agent) Decide(s *board.State) (*Decision, error) {
	// 1-2. Feed the classifier the previous turn's move if the mover
	// changed, then classify.
	if n := len(a.history); n > 0 {
		prev := a.history[n-1]
		if prev.Mover != s.SideToMove() && prev.Move != nil {
			a.classifier.Update(prev.State, prev.Move)
		}
	}
	opponent := a.classifier.Classify()

	// 3. Best-effort pre-evaluation; nil on failure.
	var preEval *oracle.Score
	if t, ok := a.modules[ModuleTactical].(*TacticalModule); ok {
		preEval = t.Evaluate(s)
	}

	// 4. Raw regime and features.
	rawRegime, features := a.detector.Predict(s, preEval)

	// 5. Invoke every module; substitute illegal or nil proposals.
	legal := s.LegalMoves()
	results := make(map[ModuleKind]ModuleResult, len(ModuleOrder))
	diags := make(map[ModuleKind]Diagnostic, len(ModuleOrder))
	for _, kind := range ModuleOrder {
		move, diag := a.modules[kind].Act(s)
		if len(legal) > 0 && (move == nil || !isLegal(move, legal)) {
			move = randomLegal(s)
			diag.Suppress = true
			diag.Reason = appendReason(diag.Reason, "illegal-fallback")
		}
		res := ModuleResult{Move: move, Diag: diag}
		if move != nil {
			res.UCI = move.String()
		}
		results[kind] = res
		diags[kind] = diag
	}

	// 6. Final regime.
	finalRegime, overridden, reason := a.changer.Decide(rawRegime, features, opponent.Type, diags)

	// 7. Blend weights.
	weights, weightDiag := a.controller.Weights(finalRegime, features, opponent.Type, diags)

	// 8. Weighted vote with fixed-priority tie-break.
	chosen := weightedVote(results, weights)

	decision := &Decision{
		Move:           chosen,
		Terminal:       len(legal) == 0,
		RawRegime:      rawRegime,
		FinalRegime:    finalRegime,
		Overridden:     overridden,
		OverrideReason: reason,
		Opponent:       opponent,
		Features:       features,
		Weights:        weights,
		WeightDiag:     weightDiag,
		Modules:        results,
	}
	if chosen != nil {
		decision.UCI = chosen.String()
	}

	// 9. History.
	a.history = append(a.history, HistoryEntry{
		State:   s,
		Move:    chosen,
		Mover:   s.SideToMove(),
		Regime:  finalRegime,
		Weights: weights,
	})

	log.Debug().
		Str("move", decision.UCI).
		Str("rawRegime", string(rawRegime)).
		Str("finalRegime", string(finalRegime)).
		Bool("overridden", overridden).
		Str("opponent", string(opponent.Type)).
		Msg("decision")

	return decision, nil
}

// weightedVote accumulates weight per distinct proposed move and returns
// the max. Modules proposing the same move pool their weights; ties break
// by module priority order.
func weightedVote(results map[ModuleKind]ModuleResult, weights WeightVector) *chess.Move {
	votes := make(map[string]float64)
	firstProposer := make(map[string]int)
	moves := make(map[string]*chess.Move)
	for i, kind := range ModuleOrder {
		res := results[kind]
		if res.Move == nil {
			continue
		}
		uci := res.Move.String()
		votes[uci] += weights[kind]
		moves[uci] = res.Move
		if _, seen := firstProposer[uci]; !seen {
			firstProposer[uci] = i
		}
	}

	var bestUCI string
	bestWeight := -1.0
	bestPriority := len(ModuleOrder)
	for uci, w := range votes {
		p := firstProposer[uci]
		if w > bestWeight || (w == bestWeight && p < bestPriority) {
			bestUCI, bestWeight, bestPriority = uci, w, p
		}
	}
	return moves[bestUCI]
}

func isLegal(move *chess.Move, legal []*chess.Move) bool {
	for _, m := range legal {
		if m.String() == move.String() {
			return true
		}
	}
	return false
}

func appendReason(reason, extra string) string {
	if reason == "" {
		return extra
	}
	return fmt.Sprintf("%s; %s", reason, extra)
}
