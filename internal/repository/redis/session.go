package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/freeeve/quiet-aggression/internal/model"
)

// Key patterns for live session state.
func sessionKey(id string) string   { return "session:" + id + ":state" }
func decisionsKey(id string) string { return "session:" + id + ":decisions" }

const (
	// sessionTTL reclaims abandoned sessions.
	sessionTTL = 24 * time.Hour
	// decisionLogCap bounds the per-session decision list.
	decisionLogCap = 200
)

// SetSession stores the live session snapshot.
func (c *Client) SetSession(ctx context.Context, state *model.SessionState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	return c.rdb.Set(ctx, sessionKey(state.ID), data, sessionTTL).Err()
}

// GetSession retrieves a live session snapshot, or nil if absent.
func (c *Client) GetSession(ctx context.Context, id string) (*model.SessionState, error) {
	data, err := c.rdb.Get(ctx, sessionKey(id)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	var state model.SessionState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("unmarshal session: %w", err)
	}
	return &state, nil
}

// AppendDecision pushes a decision JSON blob onto the session's decision
// log, trimming the list to its cap.
func (c *Client) AppendDecision(ctx context.Context, sessionID string, decision json.RawMessage) error {
	key := decisionsKey(sessionID)
	pipe := c.rdb.TxPipeline()
	pipe.RPush(ctx, key, []byte(decision))
	pipe.LTrim(ctx, key, -decisionLogCap, -1)
	pipe.Expire(ctx, key, sessionTTL)
	_, err := pipe.Exec(ctx)
	if err != nil {
		return fmt.Errorf("append decision: %w", err)
	}
	return nil
}

// RecentDecisions returns the last n decision blobs, oldest first.
func (c *Client) RecentDecisions(ctx context.Context, sessionID string, n int64) ([]json.RawMessage, error) {
	if n <= 0 {
		n = decisionLogCap
	}
	vals, err := c.rdb.LRange(ctx, decisionsKey(sessionID), -n, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("recent decisions: %w", err)
	}
	out := make([]json.RawMessage, 0, len(vals))
	for _, v := range vals {
		out = append(out, json.RawMessage(v))
	}
	return out, nil
}

// DeleteSession removes all Redis data for a session.
func (c *Client) DeleteSession(ctx context.Context, id string) error {
	return c.rdb.Del(ctx, sessionKey(id), decisionsKey(id)).Err()
}
