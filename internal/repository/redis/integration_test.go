//go:build integration

package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/freeeve/quiet-aggression/internal/model"
	"github.com/freeeve/quiet-aggression/internal/testutil"
)

func setupClient(t *testing.T) *Client {
	t.Helper()
	rdb := testutil.SetupRedis(t)
	testutil.CleanupRedis(t, rdb)
	return NewClientFromPool(rdb)
}

func TestSessionRoundTrip(t *testing.T) {
	c := setupClient(t)
	ctx := context.Background()

	state := &model.SessionState{
		ID:        "sess-1",
		ClientID:  "itest",
		FEN:       "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1",
		Turns:     0,
		UpdatedAt: time.Now().UTC().Truncate(time.Second),
	}
	if err := c.SetSession(ctx, state); err != nil {
		t.Fatalf("set session: %v", err)
	}

	got, err := c.GetSession(ctx, "sess-1")
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if got == nil {
		t.Fatal("expected session to exist")
	}
	if got.FEN != state.FEN || got.ClientID != "itest" {
		t.Errorf("round-trip mismatch: %+v", got)
	}
}

func TestSessionMissing(t *testing.T) {
	c := setupClient(t)
	got, err := c.GetSession(context.Background(), "nope")
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if got != nil {
		t.Error("expected nil for missing session")
	}
}

func TestDecisionLogAppendAndRead(t *testing.T) {
	c := setupClient(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		blob, _ := json.Marshal(map[string]any{"turn": i, "move": fmt.Sprintf("m%d", i)})
		if err := c.AppendDecision(ctx, "sess-2", blob); err != nil {
			t.Fatalf("append decision %d: %v", i, err)
		}
	}

	decisions, err := c.RecentDecisions(ctx, "sess-2", 10)
	if err != nil {
		t.Fatalf("recent decisions: %v", err)
	}
	if len(decisions) != 3 {
		t.Fatalf("got %d decisions, want 3", len(decisions))
	}
	var first map[string]any
	if err := json.Unmarshal(decisions[0], &first); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if first["move"] != "m0" {
		t.Errorf("oldest decision first: got %v", first["move"])
	}
}

func TestDecisionLogIsCapped(t *testing.T) {
	c := setupClient(t)
	ctx := context.Background()

	for i := 0; i < decisionLogCap+20; i++ {
		blob, _ := json.Marshal(map[string]int{"turn": i})
		if err := c.AppendDecision(ctx, "sess-3", blob); err != nil {
			t.Fatalf("append decision %d: %v", i, err)
		}
	}

	decisions, err := c.RecentDecisions(ctx, "sess-3", decisionLogCap*2)
	if err != nil {
		t.Fatalf("recent decisions: %v", err)
	}
	if len(decisions) != decisionLogCap {
		t.Errorf("log length = %d, want cap %d", len(decisions), decisionLogCap)
	}
	var oldest map[string]int
	json.Unmarshal(decisions[0], &oldest)
	if oldest["turn"] != 20 {
		t.Errorf("oldest surviving turn = %d, want 20", oldest["turn"])
	}
}

func TestDeleteSession(t *testing.T) {
	c := setupClient(t)
	ctx := context.Background()

	state := &model.SessionState{ID: "sess-4", FEN: "fen"}
	if err := c.SetSession(ctx, state); err != nil {
		t.Fatal(err)
	}
	if err := c.AppendDecision(ctx, "sess-4", json.RawMessage(`{"turn":0}`)); err != nil {
		t.Fatal(err)
	}

	if err := c.DeleteSession(ctx, "sess-4"); err != nil {
		t.Fatalf("delete session: %v", err)
	}
	got, err := c.GetSession(ctx, "sess-4")
	if err != nil {
		t.Fatal(err)
	}
	if got != nil {
		t.Error("session should be gone")
	}
	decisions, err := c.RecentDecisions(ctx, "sess-4", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(decisions) != 0 {
		t.Error("decision log should be gone")
	}
}
