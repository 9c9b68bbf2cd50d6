package repository

import (
	"context"
	"encoding/json"

	"github.com/freeeve/quiet-aggression/internal/model"
)

// GameRepository defines archived game and decision data operations.
type GameRepository interface {
	Create(ctx context.Context, game *model.Game) error
	FindByID(ctx context.Context, id string) (*model.Game, error)
	ListFinished(ctx context.Context, limit int) ([]model.Game, error)
	SetFinished(ctx context.Context, id, result, method string, turns int, finalFEN string) error
	SaveDecisions(ctx context.Context, decisions []model.Decision) error
	DecisionsByGame(ctx context.Context, gameID string) ([]model.Decision, error)
}

// SessionCache defines live session state operations (Redis).
type SessionCache interface {
	SetSession(ctx context.Context, state *model.SessionState) error
	GetSession(ctx context.Context, id string) (*model.SessionState, error)
	AppendDecision(ctx context.Context, sessionID string, decision json.RawMessage) error
	RecentDecisions(ctx context.Context, sessionID string, n int64) ([]json.RawMessage, error)
	DeleteSession(ctx context.Context, id string) error
}
