package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/freeeve/quiet-aggression/internal/oracle"
)

const startFEN = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"

// Black to move with no legal moves and no check.
const stalemateFEN = "7k/5Q2/6K1/8/8/8/8/8 b - - 0 1"

func newTestService(t *testing.T) (*AnalysisService, *mockGameRepo, *mockSessionCache, *recordingBroadcaster) {
	t.Helper()
	games := newMockGameRepo()
	cache := newMockSessionCache()
	bc := &recordingBroadcaster{}
	svc := NewAnalysisService(cache, games, oracle.Config{}, bc)
	t.Cleanup(func() { svc.Shutdown(context.Background()) })
	return svc, games, cache, bc
}

func TestCreateSession(t *testing.T) {
	svc, games, cache, _ := newTestService(t)
	ctx := context.Background()

	state, err := svc.CreateSession(ctx, "client-1", "")
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	if state.ID == "" {
		t.Fatal("expected a session ID")
	}
	if state.FEN != startFEN {
		t.Errorf("FEN = %s, want standard start", state.FEN)
	}
	if state.ClientID != "client-1" || state.Turns != 0 {
		t.Errorf("snapshot mismatch: %+v", state)
	}

	game, err := games.FindByID(ctx, state.ID)
	if err != nil || game == nil {
		t.Fatalf("game row missing: %v", err)
	}
	if game.Status != "active" || game.Black != "agent" {
		t.Errorf("game row = %+v", game)
	}

	cached, err := cache.GetSession(ctx, state.ID)
	if err != nil || cached == nil {
		t.Fatalf("cache snapshot missing: %v", err)
	}
}

func TestCreateSessionBadFEN(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	if _, err := svc.CreateSession(context.Background(), "client-1", "not a fen"); err == nil {
		t.Error("expected error for malformed FEN")
	}
}

func TestMoveAgentPlays(t *testing.T) {
	svc, games, cache, bc := newTestService(t)
	ctx := context.Background()

	state, err := svc.CreateSession(ctx, "client-1", "")
	if err != nil {
		t.Fatal(err)
	}

	decision, snap, err := svc.Move(ctx, state.ID, "")
	if err != nil {
		t.Fatalf("move: %v", err)
	}
	if decision.Move == nil || decision.UCI == "" {
		t.Fatal("expected the agent to play a move")
	}
	if snap.Turns != 1 {
		t.Errorf("turns = %d, want 1", snap.Turns)
	}

	log, err := cache.RecentDecisions(ctx, state.ID, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(log) != 1 {
		t.Errorf("decision log has %d entries, want 1", len(log))
	}

	// The game is still live: nothing archived yet.
	rows, _ := games.DecisionsByGame(ctx, state.ID)
	if len(rows) != 0 {
		t.Errorf("decisions archived before finish: %d", len(rows))
	}

	events := bc.eventTypes()
	if len(events) != 1 || events[0] != "decision" {
		t.Errorf("broadcast events = %v", events)
	}
}

func TestMoveWithOpponentReply(t *testing.T) {
	svc, _, cache, _ := newTestService(t)
	ctx := context.Background()

	state, err := svc.CreateSession(ctx, "client-1", "")
	if err != nil {
		t.Fatal(err)
	}
	if _, _, err := svc.Move(ctx, state.ID, ""); err != nil {
		t.Fatalf("first move: %v", err)
	}

	// Black replies, then the agent moves again for White.
	decision, snap, err := svc.Move(ctx, state.ID, firstBlackReply(t, svc, state.ID))
	if err != nil {
		t.Fatalf("second move: %v", err)
	}
	if decision.Move == nil {
		t.Fatal("expected an agent move")
	}
	if snap.Turns != 3 {
		t.Errorf("turns = %d, want 3", snap.Turns)
	}

	log, err := cache.RecentDecisions(ctx, state.ID, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(log) != 3 {
		t.Errorf("decision log has %d entries, want 3", len(log))
	}
}

// firstBlackReply picks a legal reply for the side to move in the live
// session by probing the cached FEN.
func firstBlackReply(t *testing.T, svc *AnalysisService, sessionID string) string {
	t.Helper()
	svc.mu.Lock()
	ls := svc.sessions[sessionID]
	svc.mu.Unlock()
	if ls == nil {
		t.Fatal("live session missing")
	}
	moves := ls.session.State().LegalMoves()
	if len(moves) == 0 {
		t.Fatal("no legal reply available")
	}
	return moves[0].String()
}

func TestMoveIllegalOpponentMove(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()

	state, err := svc.CreateSession(ctx, "client-1", "")
	if err != nil {
		t.Fatal(err)
	}
	if _, _, err := svc.Move(ctx, state.ID, ""); err != nil {
		t.Fatal(err)
	}

	_, _, err = svc.Move(ctx, state.ID, "e2e4")
	if !errors.Is(err, ErrIllegalMove) {
		t.Errorf("err = %v, want ErrIllegalMove", err)
	}

	snap, err := svc.GetSession(ctx, state.ID)
	if err != nil {
		t.Fatal(err)
	}
	if snap.Turns != 1 {
		t.Errorf("illegal move changed the position: turns = %d", snap.Turns)
	}
}

func TestMoveUnknownSession(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	if _, _, err := svc.Move(context.Background(), "nope", ""); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("err = %v, want ErrSessionNotFound", err)
	}
}

func TestMoveGameOver(t *testing.T) {
	svc, games, _, bc := newTestService(t)
	ctx := context.Background()

	state, err := svc.CreateSession(ctx, "client-1", stalemateFEN)
	if err != nil {
		t.Fatal(err)
	}

	decision, _, err := svc.Move(ctx, state.ID, "")
	if !errors.Is(err, ErrSessionOver) {
		t.Fatalf("err = %v, want ErrSessionOver", err)
	}
	if !decision.Terminal || decision.Move != nil {
		t.Errorf("expected a terminal decision, got %+v", decision)
	}

	game, err := games.FindByID(ctx, state.ID)
	if err != nil || game == nil {
		t.Fatal(err)
	}
	if game.Status != "finished" || game.Result != "draw" || game.Method != "stalemate" {
		t.Errorf("archived game = %+v", game)
	}

	if _, _, err := svc.Move(ctx, state.ID, ""); !errors.Is(err, ErrSessionOver) {
		t.Errorf("moves after game over should fail, got %v", err)
	}

	events := bc.eventTypes()
	if len(events) == 0 || events[len(events)-1] != "game_over" {
		t.Errorf("expected a game_over broadcast, got %v", events)
	}
}

func TestCloseSessionArchives(t *testing.T) {
	svc, games, cache, _ := newTestService(t)
	ctx := context.Background()

	state, err := svc.CreateSession(ctx, "client-1", "")
	if err != nil {
		t.Fatal(err)
	}
	if _, _, err := svc.Move(ctx, state.ID, ""); err != nil {
		t.Fatal(err)
	}

	if err := svc.CloseSession(ctx, state.ID); err != nil {
		t.Fatalf("close session: %v", err)
	}

	game, err := games.FindByID(ctx, state.ID)
	if err != nil || game == nil {
		t.Fatal(err)
	}
	if game.Status != "finished" || game.Method != "abandoned" || game.Turns != 1 {
		t.Errorf("archived game = %+v", game)
	}

	rows, _ := games.DecisionsByGame(ctx, state.ID)
	if len(rows) != 1 {
		t.Errorf("archived %d decision rows, want 1", len(rows))
	}
	if rows[0].Move == "" || rows[0].FinalRegime == "" {
		t.Errorf("decision row incomplete: %+v", rows[0])
	}

	if cached, _ := cache.GetSession(ctx, state.ID); cached != nil {
		t.Error("cache entry should be deleted")
	}

	if err := svc.CloseSession(ctx, state.ID); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("second close err = %v, want ErrSessionNotFound", err)
	}
}

func TestGetSessionFallsBackToLive(t *testing.T) {
	svc, _, cache, _ := newTestService(t)
	ctx := context.Background()

	state, err := svc.CreateSession(ctx, "client-1", "")
	if err != nil {
		t.Fatal(err)
	}

	// Simulate a cache eviction; the live copy still answers.
	if err := cache.DeleteSession(ctx, state.ID); err != nil {
		t.Fatal(err)
	}
	snap, err := svc.GetSession(ctx, state.ID)
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if snap.ID != state.ID || snap.FEN != startFEN {
		t.Errorf("live fallback mismatch: %+v", snap)
	}
}

func TestRecentDecisionsUnknownSession(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	if _, err := svc.RecentDecisions(context.Background(), "nope", 10); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("err = %v, want ErrSessionNotFound", err)
	}
}

func TestArchivedGame(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()

	state, err := svc.CreateSession(ctx, "client-1", "")
	if err != nil {
		t.Fatal(err)
	}
	if _, _, err := svc.Move(ctx, state.ID, ""); err != nil {
		t.Fatal(err)
	}
	if err := svc.CloseSession(ctx, state.ID); err != nil {
		t.Fatal(err)
	}

	game, decisions, err := svc.ArchivedGame(ctx, state.ID)
	if err != nil {
		t.Fatalf("archived game: %v", err)
	}
	if game.Status != "finished" {
		t.Errorf("status = %s", game.Status)
	}
	if len(decisions) != 1 {
		t.Errorf("got %d decisions, want 1", len(decisions))
	}

	if _, _, err := svc.ArchivedGame(ctx, "nope"); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("missing game err = %v", err)
	}
}

func TestListGames(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()

	games, err := svc.ListGames(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(games) != 0 {
		t.Fatalf("expected no finished games, got %d", len(games))
	}

	state, err := svc.CreateSession(ctx, "client-1", stalemateFEN)
	if err != nil {
		t.Fatal(err)
	}
	if _, _, err := svc.Move(ctx, state.ID, ""); !errors.Is(err, ErrSessionOver) {
		t.Fatalf("err = %v, want ErrSessionOver", err)
	}

	games, err = svc.ListGames(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(games) != 1 || games[0].ID != state.ID {
		t.Errorf("finished games = %+v", games)
	}
}

func TestReapIdle(t *testing.T) {
	svc, games, _, _ := newTestService(t)
	ctx := context.Background()

	state, err := svc.CreateSession(ctx, "client-1", "")
	if err != nil {
		t.Fatal(err)
	}

	// A negative idle limit puts the cutoff in the future, so every
	// session counts as idle.
	if n := svc.ReapIdle(ctx, -time.Second); n != 1 {
		t.Fatalf("reaped %d sessions, want 1", n)
	}

	if _, _, err := svc.Move(ctx, state.ID, ""); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("reaped session still live: %v", err)
	}
	game, _ := games.FindByID(ctx, state.ID)
	if game == nil || game.Status != "finished" || game.Method != "abandoned" {
		t.Errorf("reaped game = %+v", game)
	}
}
