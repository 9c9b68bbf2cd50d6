package service

import (
	"context"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// sessionMaxIdle is how long a session may sit unused before the reaper
// archives and closes it.
const sessionMaxIdle = 24 * time.Hour

// SessionReaper listens for Redis keyspace notifications on expired session
// keys and tears down the matching live session. Also runs a polling
// fallback to catch idle sessions if keyspace notifications are unavailable.
type SessionReaper struct {
	rdb *redis.Client
	svc *AnalysisService
}

// NewSessionReaper creates a SessionReaper.
func NewSessionReaper(rdb *redis.Client, svc *AnalysisService) *SessionReaper {
	return &SessionReaper{rdb: rdb, svc: svc}
}

// Start begins listening for expired key events and runs a polling fallback.
func (r *SessionReaper) Start(ctx context.Context) {
	go r.listenKeyspace(ctx)
	r.pollIdleSessions(ctx)
}

// listenKeyspace subscribes to Redis keyspace notifications for expired keys.
func (r *SessionReaper) listenKeyspace(ctx context.Context) {
	pubsub := r.rdb.PSubscribe(ctx, "__keyevent@0__:expired")
	defer pubsub.Close()

	log.Info().Msg("Session reaper started, listening for expired keys")
	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			r.handleExpiry(ctx, msg.Payload)
		}
	}
}

// pollIdleSessions periodically closes sessions past the idle limit.
func (r *SessionReaper) pollIdleSessions(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	log.Info().Msg("Idle session poller started (1m interval)")
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Idle session poller stopped")
			return
		case <-ticker.C:
			if n := r.svc.ReapIdle(ctx, sessionMaxIdle); n > 0 {
				log.Info().Int("count", n).Msg("Poller reaped idle sessions")
			}
		}
	}
}

// handleExpiry processes an expired key. Only acts on session state keys.
func (r *SessionReaper) handleExpiry(ctx context.Context, key string) {
	if !strings.HasPrefix(key, "session:") || !strings.HasSuffix(key, ":state") {
		return
	}

	parts := strings.SplitN(key, ":", 3)
	if len(parts) != 3 {
		return
	}
	sessionID := parts[1]

	log.Info().Str("sessionId", sessionID).Msg("Session key expired, closing live session")
	if err := r.svc.CloseSession(ctx, sessionID); err != nil && err != ErrSessionNotFound {
		log.Error().Err(err).Str("sessionId", sessionID).Msg("Session close failed after key expiry")
	}
}
