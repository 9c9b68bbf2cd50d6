package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/freeeve/quiet-aggression/internal/auth"
	"github.com/freeeve/quiet-aggression/internal/config"
	"github.com/freeeve/quiet-aggression/internal/handler"
	"github.com/freeeve/quiet-aggression/internal/logger"
	"github.com/freeeve/quiet-aggression/internal/middleware"
	"github.com/freeeve/quiet-aggression/internal/oracle"
	"github.com/freeeve/quiet-aggression/internal/repository/postgres"
	redisrepo "github.com/freeeve/quiet-aggression/internal/repository/redis"
	"github.com/freeeve/quiet-aggression/internal/service"
)

func main() {
	logger.Init()
	cfg := config.Load()
	log.Info().Str("databaseURL", cfg.DatabaseURL).Msg("Config loaded")

	// Database
	db, err := postgres.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Database connection failed")
	}
	defer db.Close()
	if err := postgres.EnsureSchema(context.Background(), db); err != nil {
		log.Fatal().Err(err).Msg("Schema setup failed")
	}

	// Redis
	redisClient, err := redisrepo.NewClient(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Redis connection failed")
	}
	defer redisClient.Close()

	// Enable Redis keyspace notifications for session expiry events.
	if err := redisClient.Underlying().ConfigSet(context.Background(), "notify-keyspace-events", "Ex").Err(); err != nil {
		log.Warn().Err(err).Msg("Failed to set Redis keyspace notifications (session expiry reaping may not work)")
	}

	// Repos
	gameRepo := postgres.NewGameRepo(db)

	// Auth
	jwtMgr := auth.NewJWTManager(cfg.JWTSecret)

	// WebSocket hub
	wsHub := handler.NewHub()

	// Analysis service
	oracleCfg := oracle.Config{
		EnginePath: cfg.EnginePath,
		ModelPath:  cfg.ModelPath,
		Depth:      cfg.SearchDepth,
	}
	analysisSvc := service.NewAnalysisService(redisClient, gameRepo, oracleCfg, wsHub)

	// Session reaper (close idle sessions on key expiry)
	reaper := service.NewSessionReaper(redisClient.Underlying(), analysisSvc)

	// Handlers
	authHandler := handler.NewAuthHandler(jwtMgr)
	sessionHandler := handler.NewSessionHandler(analysisSvc)
	wsHandler := handler.NewWSHandler(wsHub, jwtMgr)

	// Router
	mux := http.NewServeMux()
	authMw := auth.Middleware(jwtMgr)

	// Health
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	// Auth (public)
	mux.HandleFunc("POST /auth/token", authHandler.IssueToken)

	// Protected API routes
	api := http.NewServeMux()
	api.HandleFunc("POST /sessions", sessionHandler.CreateSession)
	api.HandleFunc("GET /sessions/{id}", sessionHandler.GetSession)
	api.HandleFunc("POST /sessions/{id}/move", sessionHandler.Move)
	api.HandleFunc("GET /sessions/{id}/decisions", sessionHandler.GetDecisions)
	api.HandleFunc("DELETE /sessions/{id}", sessionHandler.CloseSession)
	api.HandleFunc("GET /games", sessionHandler.ListGames)
	api.HandleFunc("GET /games/{id}", sessionHandler.GetGame)

	mux.Handle("/api/v1/", http.StripPrefix("/api/v1", authMw(api)))

	// WebSocket (auth via query param, not middleware)
	mux.HandleFunc("GET /api/v1/ws", wsHandler.ServeWS)

	// Apply global middleware
	root := middleware.Chain(mux, middleware.Logger, middleware.CORS("*"), middleware.JSON)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      root,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start session reaper
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go reaper.Start(ctx)

	go func() {
		log.Info().Str("port", cfg.Port).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server")

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("Server shutdown error")
	}

	// Archive in-flight sessions before exit.
	analysisSvc.Shutdown(shutdownCtx)
	log.Info().Msg("Server stopped")
}
