package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/freeeve/quiet-aggression/internal/model"
)

type mockGameRepo struct {
	mu        sync.Mutex
	games     map[string]*model.Game
	decisions map[string][]model.Decision
}

func newMockGameRepo() *mockGameRepo {
	return &mockGameRepo{
		games:     make(map[string]*model.Game),
		decisions: make(map[string][]model.Decision),
	}
}

func (m *mockGameRepo) Create(_ context.Context, game *model.Game) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	game.Status = "active"
	game.CreatedAt = time.Now()
	cp := *game
	m.games[game.ID] = &cp
	return nil
}

func (m *mockGameRepo) FindByID(_ context.Context, id string) (*model.Game, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.games[id]
	if !ok {
		return nil, nil
	}
	cp := *g
	return &cp, nil
}

func (m *mockGameRepo) ListFinished(_ context.Context, limit int) ([]model.Game, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Game
	for _, g := range m.games {
		if g.Status == "finished" {
			out = append(out, *g)
		}
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (m *mockGameRepo) SetFinished(_ context.Context, id, result, method string, turns int, finalFEN string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.games[id]
	if !ok {
		return fmt.Errorf("game %s not found", id)
	}
	now := time.Now()
	g.Status = "finished"
	g.Result = result
	g.Method = method
	g.Turns = turns
	g.FinalFEN = finalFEN
	g.FinishedAt = &now
	return nil
}

func (m *mockGameRepo) SaveDecisions(_ context.Context, decisions []model.Decision) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range decisions {
		m.decisions[d.GameID] = append(m.decisions[d.GameID], d)
	}
	return nil
}

func (m *mockGameRepo) DecisionsByGame(_ context.Context, gameID string) ([]model.Decision, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.Decision(nil), m.decisions[gameID]...), nil
}

type mockSessionCache struct {
	mu       sync.Mutex
	sessions map[string]*model.SessionState
	logs     map[string][]json.RawMessage
}

func newMockSessionCache() *mockSessionCache {
	return &mockSessionCache{
		sessions: make(map[string]*model.SessionState),
		logs:     make(map[string][]json.RawMessage),
	}
}

func (m *mockSessionCache) SetSession(_ context.Context, state *model.SessionState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *state
	m.sessions[state.ID] = &cp
	return nil
}

func (m *mockSessionCache) GetSession(_ context.Context, id string) (*model.SessionState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, nil
	}
	cp := *s
	return &cp, nil
}

func (m *mockSessionCache) AppendDecision(_ context.Context, sessionID string, decision json.RawMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logs[sessionID] = append(m.logs[sessionID], decision)
	return nil
}

func (m *mockSessionCache) RecentDecisions(_ context.Context, sessionID string, n int64) ([]json.RawMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	log := m.logs[sessionID]
	if n > 0 && int64(len(log)) > n {
		log = log[int64(len(log))-n:]
	}
	return append([]json.RawMessage(nil), log...), nil
}

func (m *mockSessionCache) DeleteSession(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	delete(m.logs, id)
	return nil
}

type recordingBroadcaster struct {
	mu     sync.Mutex
	events []string
}

func (r *recordingBroadcaster) BroadcastSessionEvent(sessionID, eventType string, _ any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, eventType)
}

func (r *recordingBroadcaster) eventTypes() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}
