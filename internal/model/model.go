package model

import (
	"encoding/json"
	"time"
)

// Game represents an archived game played through the analysis service or
// the self-play arena.
type Game struct {
	ID         string     `json:"id"`
	ClientID   string     `json:"client_id"`
	White      string     `json:"white"` // player kind: agent, random, external
	Black      string     `json:"black"`
	Seed       int64      `json:"seed,omitempty"`
	Status     string     `json:"status"` // active, finished
	Result     string     `json:"result,omitempty"`
	Method     string     `json:"method,omitempty"`
	Turns      int        `json:"turns"`
	FinalFEN   string     `json:"final_fen,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// Decision represents one archived turn: the chosen move plus the regime
// and weight trail that produced it.
type Decision struct {
	ID             int64           `json:"id"`
	GameID         string          `json:"game_id"`
	Turn           int             `json:"turn"`
	Mover          string          `json:"mover"`
	Move           string          `json:"move"`
	FEN            string          `json:"fen"` // position the move was chosen from
	RawRegime      string          `json:"raw_regime"`
	FinalRegime    string          `json:"final_regime"`
	Overridden     bool            `json:"overridden"`
	OverrideReason string          `json:"override_reason,omitempty"`
	OpponentType   string          `json:"opponent_type,omitempty"`
	Weights        json.RawMessage `json:"weights,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

// SessionState is the live-session snapshot cached in Redis.
type SessionState struct {
	ID        string    `json:"id"`
	ClientID  string    `json:"client_id"`
	FEN       string    `json:"fen"`
	Turns     int       `json:"turns"`
	UpdatedAt time.Time `json:"updated_at"`
}
