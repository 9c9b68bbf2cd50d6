package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/freeeve/quiet-aggression/internal/agent"
	"github.com/freeeve/quiet-aggression/internal/model"
	"github.com/freeeve/quiet-aggression/internal/oracle"
	"github.com/freeeve/quiet-aggression/internal/repository"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionOver     = errors.New("session game is over")
	ErrIllegalMove     = errors.New("illegal move")
)

// liveSession holds one in-memory agent session plus its pending archive
// rows. All agent state lives inside the session, so each liveSession is
// guarded by its own lock.
type liveSession struct {
	mu       sync.Mutex
	id       string
	clientID string
	session  *agent.Session
	pending  []model.Decision
	lastUsed time.Time
	over     bool
}

// AnalysisService manages live agent sessions keyed by UUID. Live state is
// mirrored to the session cache on every move; finished games are archived
// to the game repository together with their per-turn decision rows.
type AnalysisService struct {
	mu       sync.Mutex
	sessions map[string]*liveSession

	cache       repository.SessionCache
	games       repository.GameRepository
	oracleCfg   oracle.Config
	broadcaster Broadcaster
}

// NewAnalysisService creates an AnalysisService.
func NewAnalysisService(cache repository.SessionCache, games repository.GameRepository, oracleCfg oracle.Config, b Broadcaster) *AnalysisService {
	if b == nil {
		b = NoopBroadcaster{}
	}
	return &AnalysisService{
		sessions:    make(map[string]*liveSession),
		cache:       cache,
		games:       games,
		oracleCfg:   oracleCfg,
		broadcaster: b,
	}
}

// CreateSession starts a new agent session, optionally from a FEN position.
// An active game row is created up front; decisions accumulate against it
// until the session finishes or is closed.
func (s *AnalysisService) CreateSession(ctx context.Context, clientID, fen string) (*model.SessionState, error) {
	sess, err := agent.NewSession(oracle.New(s.oracleCfg))
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	if fen != "" {
		if err := sess.LoadFEN(fen); err != nil {
			sess.Close()
			return nil, fmt.Errorf("create session: %w", err)
		}
	}

	ls := &liveSession{
		id:       uuid.NewString(),
		clientID: clientID,
		session:  sess,
		lastUsed: time.Now(),
	}

	game := &model.Game{
		ID:       ls.id,
		ClientID: clientID,
		White:    "external",
		Black:    "agent",
	}
	if err := s.games.Create(ctx, game); err != nil {
		sess.Close()
		return nil, fmt.Errorf("create session: %w", err)
	}

	s.mu.Lock()
	s.sessions[ls.id] = ls
	s.mu.Unlock()

	state := snapshot(ls)
	if err := s.cache.SetSession(ctx, state); err != nil {
		log.Warn().Err(err).Str("sessionId", ls.id).Msg("session cache write failed")
	}

	log.Info().Str("sessionId", ls.id).Str("clientId", clientID).Msg("session created")
	return state, nil
}

// Move runs one agent turn. If opponentUCI is non-empty it is applied as the
// opponent's reply first; the agent then decides and plays its own move. The
// returned decision carries the move and the full diagnostic trail.
func (s *AnalysisService) Move(ctx context.Context, sessionID, opponentUCI string) (*agent.Decision, *model.SessionState, error) {
	ls, err := s.live(sessionID)
	if err != nil {
		return nil, nil, err
	}

	ls.mu.Lock()
	defer ls.mu.Unlock()
	if ls.over {
		return nil, nil, ErrSessionOver
	}
	ls.lastUsed = time.Now()

	if opponentUCI != "" {
		if err := s.recordExternal(ctx, ls, opponentUCI); err != nil {
			return nil, nil, err
		}
	}

	mover := ls.session.State().SideToMove()
	turn := ls.session.Turns()
	fen := ls.session.FEN()

	decision, playErr := ls.session.Play()
	if playErr != nil && !errors.Is(playErr, agent.ErrGameOver) {
		return nil, nil, playErr
	}

	if decision.Move != nil {
		row := decisionRow(ls.id, turn, mover.Name(), fen, decision)
		ls.pending = append(ls.pending, row)
		s.logDecision(ctx, ls.id, row)
		s.broadcaster.BroadcastSessionEvent(ls.id, EventDecision, decision)
	}

	state := snapshot(ls)
	if err := s.cache.SetSession(ctx, state); err != nil {
		log.Warn().Err(err).Str("sessionId", ls.id).Msg("session cache write failed")
	}

	if errors.Is(playErr, agent.ErrGameOver) || ls.session.State().Terminal() {
		s.finishLocked(ctx, ls)
		if decision.Terminal {
			return decision, state, ErrSessionOver
		}
	}
	return decision, state, nil
}

// GetSession returns the cached snapshot for a session, falling back to the
// live copy when the cache misses.
func (s *AnalysisService) GetSession(ctx context.Context, sessionID string) (*model.SessionState, error) {
	state, err := s.cache.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if state != nil {
		return state, nil
	}
	ls, err := s.live(sessionID)
	if err != nil {
		return nil, err
	}
	ls.mu.Lock()
	defer ls.mu.Unlock()
	return snapshot(ls), nil
}

// RecentDecisions returns the last n decision blobs for a session, oldest
// first.
func (s *AnalysisService) RecentDecisions(ctx context.Context, sessionID string, n int64) ([]json.RawMessage, error) {
	if _, err := s.GetSession(ctx, sessionID); err != nil {
		return nil, err
	}
	return s.cache.RecentDecisions(ctx, sessionID, n)
}

// ArchivedGame returns a finished game with its decision rows.
func (s *AnalysisService) ArchivedGame(ctx context.Context, gameID string) (*model.Game, []model.Decision, error) {
	game, err := s.games.FindByID(ctx, gameID)
	if err != nil {
		return nil, nil, err
	}
	if game == nil {
		return nil, nil, ErrSessionNotFound
	}
	decisions, err := s.games.DecisionsByGame(ctx, gameID)
	if err != nil {
		return nil, nil, err
	}
	return game, decisions, nil
}

// ListGames returns recently finished games, most recent first.
func (s *AnalysisService) ListGames(ctx context.Context, limit int) ([]model.Game, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	return s.games.ListFinished(ctx, limit)
}

// CloseSession archives and tears down a session. Safe to call on a session
// that already finished.
func (s *AnalysisService) CloseSession(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	ls, ok := s.sessions[sessionID]
	delete(s.sessions, sessionID)
	s.mu.Unlock()
	if !ok {
		return ErrSessionNotFound
	}

	ls.mu.Lock()
	defer ls.mu.Unlock()
	if !ls.over {
		s.archiveLocked(ctx, ls, "", "abandoned")
		ls.over = true
	}
	if err := s.cache.DeleteSession(ctx, sessionID); err != nil {
		log.Warn().Err(err).Str("sessionId", sessionID).Msg("session cache delete failed")
	}
	return ls.session.Close()
}

// Shutdown closes every live session, archiving in-flight games.
func (s *AnalysisService) Shutdown(ctx context.Context) {
	s.mu.Lock()
	ids := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	s.mu.Unlock()

	for _, id := range ids {
		if err := s.CloseSession(ctx, id); err != nil && !errors.Is(err, ErrSessionNotFound) {
			log.Error().Err(err).Str("sessionId", id).Msg("session close failed during shutdown")
		}
	}
}

// ReapIdle closes sessions that have been idle longer than maxIdle. Returns
// the number of sessions reaped.
func (s *AnalysisService) ReapIdle(ctx context.Context, maxIdle time.Duration) int {
	cutoff := time.Now().Add(-maxIdle)

	s.mu.Lock()
	var stale []string
	for id, ls := range s.sessions {
		ls.mu.Lock()
		idle := ls.lastUsed.Before(cutoff)
		ls.mu.Unlock()
		if idle {
			stale = append(stale, id)
		}
	}
	s.mu.Unlock()

	for _, id := range stale {
		log.Info().Str("sessionId", id).Msg("reaping idle session")
		if err := s.CloseSession(ctx, id); err != nil && !errors.Is(err, ErrSessionNotFound) {
			log.Error().Err(err).Str("sessionId", id).Msg("idle session close failed")
		}
	}
	return len(stale)
}

func (s *AnalysisService) live(sessionID string) (*liveSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ls, ok := s.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return ls, nil
}

// recordExternal applies the opponent's move and records it as a bare
// decision row so the archive holds both sides of the game.
func (s *AnalysisService) recordExternal(ctx context.Context, ls *liveSession, uci string) error {
	mover := ls.session.State().SideToMove()
	turn := ls.session.Turns()
	fen := ls.session.FEN()
	if err := ls.session.ApplyUCI(uci); err != nil {
		return fmt.Errorf("%w: %s", ErrIllegalMove, uci)
	}
	row := model.Decision{
		GameID: ls.id,
		Turn:   turn,
		Mover:  mover.Name(),
		Move:   uci,
		FEN:    fen,
	}
	ls.pending = append(ls.pending, row)
	s.logDecision(ctx, ls.id, row)
	return nil
}

// finishLocked archives a terminal session. Caller holds ls.mu.
func (s *AnalysisService) finishLocked(ctx context.Context, ls *liveSession) {
	result, method := agent.Outcome(ls.session.State())
	s.archiveLocked(ctx, ls, result, method)
	ls.over = true
	s.broadcaster.BroadcastSessionEvent(ls.id, EventGameOver, map[string]string{
		"result": result,
		"method": method,
	})
	log.Info().Str("sessionId", ls.id).Str("result", result).Str("method", method).Msg("session game finished")
}

// archiveLocked flushes pending decision rows and marks the game finished.
// Caller holds ls.mu.
func (s *AnalysisService) archiveLocked(ctx context.Context, ls *liveSession, result, method string) {
	if err := s.games.SaveDecisions(ctx, ls.pending); err != nil {
		log.Error().Err(err).Str("sessionId", ls.id).Msg("decision archive failed")
	} else {
		ls.pending = nil
	}
	if err := s.games.SetFinished(ctx, ls.id, result, method, ls.session.Turns(), ls.session.FEN()); err != nil {
		log.Error().Err(err).Str("sessionId", ls.id).Msg("game archive failed")
	}
}

// logDecision appends the row to the session's capped Redis decision log.
func (s *AnalysisService) logDecision(ctx context.Context, sessionID string, row model.Decision) {
	blob, err := json.Marshal(row)
	if err != nil {
		log.Error().Err(err).Str("sessionId", sessionID).Msg("decision marshal failed")
		return
	}
	if err := s.cache.AppendDecision(ctx, sessionID, blob); err != nil {
		log.Warn().Err(err).Str("sessionId", sessionID).Msg("decision log append failed")
	}
}

func snapshot(ls *liveSession) *model.SessionState {
	return &model.SessionState{
		ID:        ls.id,
		ClientID:  ls.clientID,
		FEN:       ls.session.FEN(),
		Turns:     ls.session.Turns(),
		UpdatedAt: time.Now().UTC(),
	}
}

func decisionRow(gameID string, turn int, mover, fen string, d *agent.Decision) model.Decision {
	weights, err := json.Marshal(d.Weights)
	if err != nil {
		weights = nil
	}
	return model.Decision{
		GameID:         gameID,
		Turn:           turn,
		Mover:          mover,
		Move:           d.UCI,
		FEN:            fen,
		RawRegime:      string(d.RawRegime),
		FinalRegime:    string(d.FinalRegime),
		Overridden:     d.Overridden,
		OverrideReason: d.OverrideReason,
		OpponentType:   string(d.Opponent.Type),
		Weights:        weights,
	}
}
