package postgres

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
)

// Connect opens a connection pool to the PostgreSQL database.
func Connect(databaseURL string) (*sql.DB, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("postgres open: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("postgres ping: %w", err)
	}
	return db, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS games (
	id          UUID PRIMARY KEY,
	client_id   TEXT NOT NULL DEFAULT '',
	white       TEXT NOT NULL,
	black       TEXT NOT NULL,
	seed        BIGINT NOT NULL DEFAULT 0,
	status      TEXT NOT NULL DEFAULT 'active',
	result      TEXT NOT NULL DEFAULT '',
	method      TEXT NOT NULL DEFAULT '',
	turns       INT NOT NULL DEFAULT 0,
	final_fen   TEXT NOT NULL DEFAULT '',
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	finished_at TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS decisions (
	id              BIGSERIAL PRIMARY KEY,
	game_id         UUID NOT NULL REFERENCES games(id) ON DELETE CASCADE,
	turn            INT NOT NULL,
	mover           TEXT NOT NULL,
	move            TEXT NOT NULL,
	fen             TEXT NOT NULL,
	raw_regime      TEXT NOT NULL,
	final_regime    TEXT NOT NULL,
	overridden      BOOLEAN NOT NULL DEFAULT false,
	override_reason TEXT NOT NULL DEFAULT '',
	opponent_type   TEXT NOT NULL DEFAULT '',
	weights         JSONB,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (game_id, turn)
);

CREATE INDEX IF NOT EXISTS idx_decisions_game ON decisions (game_id, turn);
`

// EnsureSchema creates the archive tables if they do not exist.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}
