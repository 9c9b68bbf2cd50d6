package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/freeeve/quiet-aggression/internal/model"
)

// GameRepo handles archived game and decision database operations.
type GameRepo struct {
	db *sql.DB
}

// NewGameRepo creates a GameRepo.
func NewGameRepo(db *sql.DB) *GameRepo {
	return &GameRepo{db: db}
}

// Create inserts a new game. The caller supplies the UUID.
func (r *GameRepo) Create(ctx context.Context, game *model.Game) error {
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO games (id, client_id, white, black, seed)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING status, created_at`,
		game.ID, game.ClientID, game.White, game.Black, game.Seed,
	).Scan(&game.Status, &game.CreatedAt)
	if err != nil {
		return fmt.Errorf("create game: %w", err)
	}
	return nil
}

// FindByID returns a game by ID, or nil if it does not exist.
func (r *GameRepo) FindByID(ctx context.Context, id string) (*model.Game, error) {
	var g model.Game
	err := r.db.QueryRowContext(ctx,
		`SELECT id, client_id, white, black, seed, status, result, method, turns, final_fen, created_at, finished_at
		 FROM games WHERE id = $1`, id,
	).Scan(&g.ID, &g.ClientID, &g.White, &g.Black, &g.Seed, &g.Status, &g.Result, &g.Method,
		&g.Turns, &g.FinalFEN, &g.CreatedAt, &g.FinishedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find game: %w", err)
	}
	return &g, nil
}

// ListFinished returns finished games, most recent first.
func (r *GameRepo) ListFinished(ctx context.Context, limit int) ([]model.Game, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, client_id, white, black, seed, status, result, method, turns, final_fen, created_at, finished_at
		 FROM games WHERE status = 'finished'
		 ORDER BY finished_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list finished games: %w", err)
	}
	defer rows.Close()

	var games []model.Game
	for rows.Next() {
		var g model.Game
		if err := rows.Scan(&g.ID, &g.ClientID, &g.White, &g.Black, &g.Seed, &g.Status, &g.Result,
			&g.Method, &g.Turns, &g.FinalFEN, &g.CreatedAt, &g.FinishedAt); err != nil {
			return nil, fmt.Errorf("scan game: %w", err)
		}
		games = append(games, g)
	}
	return games, rows.Err()
}

// SetFinished marks a game as finished with its outcome.
func (r *GameRepo) SetFinished(ctx context.Context, id, result, method string, turns int, finalFEN string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE games SET status = 'finished', result = $2, method = $3, turns = $4, final_fen = $5, finished_at = now()
		 WHERE id = $1`, id, result, method, turns, finalFEN)
	if err != nil {
		return fmt.Errorf("set finished: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("set finished: game %s not found", id)
	}
	return nil
}

// SaveDecisions bulk-inserts decision rows inside one transaction.
func (r *GameRepo) SaveDecisions(ctx context.Context, decisions []model.Decision) error {
	if len(decisions) == 0 {
		return nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save decisions: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO decisions (game_id, turn, mover, move, fen, raw_regime, final_regime, overridden, override_reason, opponent_type, weights)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`)
	if err != nil {
		return fmt.Errorf("prepare insert decision: %w", err)
	}
	defer stmt.Close()

	for _, d := range decisions {
		if _, err := stmt.ExecContext(ctx, d.GameID, d.Turn, d.Mover, d.Move, d.FEN,
			d.RawRegime, d.FinalRegime, d.Overridden, d.OverrideReason, d.OpponentType, d.Weights); err != nil {
			return fmt.Errorf("insert decision turn %d: %w", d.Turn, err)
		}
	}
	return tx.Commit()
}

// DecisionsByGame returns a game's decisions in turn order.
func (r *GameRepo) DecisionsByGame(ctx context.Context, gameID string) ([]model.Decision, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, game_id, turn, mover, move, fen, raw_regime, final_regime, overridden, override_reason, opponent_type, weights, created_at
		 FROM decisions WHERE game_id = $1 ORDER BY turn`, gameID)
	if err != nil {
		return nil, fmt.Errorf("list decisions: %w", err)
	}
	defer rows.Close()

	var decisions []model.Decision
	for rows.Next() {
		var d model.Decision
		if err := rows.Scan(&d.ID, &d.GameID, &d.Turn, &d.Mover, &d.Move, &d.FEN, &d.RawRegime,
			&d.FinalRegime, &d.Overridden, &d.OverrideReason, &d.OpponentType, &d.Weights, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan decision: %w", err)
		}
		decisions = append(decisions, d)
	}
	return decisions, rows.Err()
}
