package agent

import (
	"context"
	"testing"
)

func TestRunArena_AgentVsRandom(t *testing.T) {
	defer ResetAgentRng()

	rec, err := RunArena(context.Background(), ArenaConfig{
		White:    PlayerAgent,
		Black:    PlayerRandom,
		MaxTurns: 40,
		Seed:     42,
	})
	if err != nil {
		t.Fatal(err)
	}
	if rec.Turns == 0 || len(rec.Moves) != rec.Turns {
		t.Fatalf("turns = %d, moves = %d", rec.Turns, len(rec.Moves))
	}
	switch rec.Result {
	case "white", "black", "draw":
	default:
		t.Errorf("result = %q", rec.Result)
	}
	if rec.FinalFEN == "" {
		t.Error("missing final FEN")
	}
	// Agent turns carry their pipeline diagnostics; random turns do not.
	if rec.Moves[0].Regime == "" {
		t.Error("white's first turn should record a regime")
	}
	if len(rec.Moves) > 1 && rec.Moves[1].Regime != "" {
		t.Error("random player turns should not carry a regime")
	}
}

func TestRunArena_SeededGamesAreReproducible(t *testing.T) {
	defer ResetAgentRng()

	run := func() *GameRecord {
		rec, err := RunArena(context.Background(), ArenaConfig{
			White:    PlayerAgent,
			Black:    PlayerAgent,
			MaxTurns: 30,
			Seed:     7,
		})
		if err != nil {
			t.Fatal(err)
		}
		return rec
	}

	first, second := run(), run()
	if first.Turns != second.Turns {
		t.Fatalf("turn counts differ: %d vs %d", first.Turns, second.Turns)
	}
	for i := range first.Moves {
		if first.Moves[i].UCI != second.Moves[i].UCI {
			t.Fatalf("move %d differs: %s vs %s", i, first.Moves[i].UCI, second.Moves[i].UCI)
		}
	}
	if first.FinalFEN != second.FinalFEN {
		t.Error("final positions differ")
	}
}

func TestRunArena_UnknownPlayerKind(t *testing.T) {
	if _, err := RunArena(context.Background(), ArenaConfig{White: "psychic"}); err == nil {
		t.Fatal("expected error for unknown player kind")
	}
}

func TestRunArena_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := RunArena(ctx, ArenaConfig{MaxTurns: 10, Seed: 1}); err == nil {
		t.Fatal("expected context error")
	}
}
