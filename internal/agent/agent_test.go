package agent

import (
	"testing"

	"github.com/freeeve/quiet-aggression/internal/board"
	"github.com/freeeve/quiet-aggression/internal/oracle"
)

func newTestAgent(t *testing.T) *Agent {
	t.Helper()
	a, err := NewAgent(oracle.NewStatic())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { a.Close() })
	return a
}

func TestAgent_ChosenMoveIsLegal(t *testing.T) {
	SeedAgentRng(1)
	defer ResetAgentRng()

	a := newTestAgent(t)
	s := board.NewGame()

	// Play a handful of turns for both sides through the same pipeline.
	for turn := 0; turn < 12; turn++ {
		d, err := a.Decide(s)
		if err != nil {
			t.Fatal(err)
		}
		if d.Terminal {
			break
		}
		if s.FindMove(d.UCI) == nil {
			t.Fatalf("turn %d: chosen move %q is not legal in %s", turn, d.UCI, s.FEN())
		}
		checkNormalized(t, d.Weights)
		s = s.Apply(d.Move)
	}
}

func TestAgent_InCheckGoesTactical(t *testing.T) {
	SeedAgentRng(2)
	defer ResetAgentRng()

	a := newTestAgent(t)
	s := mustFEN(t, "rnbqkbnr/ppp1pppp/8/1B1p4/4P3/8/PPPP1PPP/RNBQK1NR b KQkq - 1 2")

	d, err := a.Decide(s)
	if err != nil {
		t.Fatal(err)
	}
	if !d.Features.InCheck {
		t.Fatal("expected in_check feature")
	}
	if d.FinalRegime != RegimeTactical {
		t.Errorf("final regime = %s, want tactical", d.FinalRegime)
	}
	if d.Weights[ModuleTactical] < 0.8 {
		t.Errorf("tactical weight = %v, want >= 0.8", d.Weights[ModuleTactical])
	}
	if s.FindMove(d.UCI) == nil {
		t.Errorf("chosen move %q is not legal", d.UCI)
	}
}

func TestAgent_TerminalPosition(t *testing.T) {
	a := newTestAgent(t)
	s := mustFEN(t, "7k/5Q2/6K1/8/8/8/8/8 b - - 0 1") // stalemate

	d, err := a.Decide(s)
	if err != nil {
		t.Fatal(err)
	}
	if !d.Terminal {
		t.Error("expected terminal decision")
	}
	if d.Move != nil {
		t.Errorf("move = %v, want nil on a terminal position", d.Move)
	}
	for kind, res := range d.Modules {
		if res.Move != nil {
			t.Errorf("%s proposed a move on a terminal position", kind)
		}
		if !res.Diag.Suppress {
			t.Errorf("%s should be suppressed on a terminal position", kind)
		}
	}
}

func TestAgent_StartingPositionRawDeception(t *testing.T) {
	SeedAgentRng(4)
	defer ResetAgentRng()

	a := newTestAgent(t)
	d, err := a.Decide(board.NewGame())
	if err != nil {
		t.Fatal(err)
	}
	if d.RawRegime != RegimeDeception {
		t.Errorf("raw regime = %s, want deception", d.RawRegime)
	}
	if d.Opponent.Type != OpponentUnknown {
		t.Errorf("opponent = %s, want unknown with empty history", d.Opponent.Type)
	}
}

func TestAgent_ClassifierOnlySeesOpponentMoves(t *testing.T) {
	SeedAgentRng(5)
	defer ResetAgentRng()

	a := newTestAgent(t)
	s := board.NewGame()

	// Alternating movers: every previous turn belongs to the opposite
	// side, so each turn past the first feeds the classifier.
	for turn := 0; turn < 7; turn++ {
		d, err := a.Decide(s)
		if err != nil {
			t.Fatal(err)
		}
		if d.Terminal {
			t.Fatalf("unexpected terminal at turn %d", turn)
		}
		s = s.Apply(d.Move)
	}
	if got := a.classifier.Samples(); got != 6 {
		t.Errorf("classifier samples = %d, want 6 after 7 alternating turns", got)
	}

	// Same mover twice in a row contributes nothing.
	b := newTestAgent(t)
	fixed := board.NewGame()
	for turn := 0; turn < 5; turn++ {
		if _, err := b.Decide(fixed); err != nil {
			t.Fatal(err)
		}
	}
	if got := b.classifier.Samples(); got != 0 {
		t.Errorf("classifier samples = %d, want 0 when the mover never changes", got)
	}
}

func TestSession_PlayAndApply(t *testing.T) {
	SeedAgentRng(6)
	defer ResetAgentRng()

	sess, err := NewSession(oracle.NewStatic())
	if err != nil {
		t.Fatal(err)
	}
	defer sess.Close()

	d, err := sess.Play()
	if err != nil {
		t.Fatal(err)
	}
	if d.UCI == "" {
		t.Fatal("expected a move")
	}
	if sess.Turns() != 1 {
		t.Errorf("turns = %d, want 1", sess.Turns())
	}

	if err := sess.ApplyUCI("zzzz"); err == nil {
		t.Error("expected error for a garbage move")
	}
	reply := sess.State().LegalMoves()[0]
	if err := sess.ApplyUCI(reply.String()); err != nil {
		t.Fatal(err)
	}
	if sess.Turns() != 2 {
		t.Errorf("turns = %d, want 2", sess.Turns())
	}
}

func TestSession_GameOver(t *testing.T) {
	sess, err := NewSession(oracle.NewStatic())
	if err != nil {
		t.Fatal(err)
	}
	defer sess.Close()

	if err := sess.LoadFEN("7k/5Q2/6K1/8/8/8/8/8 b - - 0 1"); err != nil {
		t.Fatal(err)
	}
	if _, err := sess.Play(); err != ErrGameOver {
		t.Errorf("err = %v, want ErrGameOver", err)
	}
}
