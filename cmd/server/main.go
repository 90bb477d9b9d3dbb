package main

import (
	"context"
	"errors"
	"fitcoach/internal/api/handlers"
	"fitcoach/internal/app"
	"fitcoach/internal/config"
	"fitcoach/internal/logger"
	"fitcoach/internal/metrics"
	"fitcoach/internal/repository/db"
	"fitcoach/internal/repository/postgres"
	"fitcoach/internal/repository/redis"
	"fitcoach/internal/service/llm"
	"fitcoach/internal/service/orchestrator"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
)

const shutdownTimeout = 15 * time.Second

func enableCORS(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	}
}

// CORS preflight handler for OPTIONS requests
func corsHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
	w.WriteHeader(http.StatusOK)
}

func main() {
	log := logger.Component("server")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	appConfig, err := config.LoadConfig()
	if err != nil {
		log.WithError(err).Fatal("Failed to load configuration")
	}

	// Initialize database
	database, err := postgres.NewPostgresDB(ctx, appConfig.Database)
	if err != nil {
		log.WithError(err).Fatal("Failed to initialize database")
	}
	defer database.Close()

	checks := map[string]handlers.Pinger{"postgres": database}

	// Context snapshots live in Postgres unless Redis is configured
	var cache db.ContextCacheStore
	if appConfig.Redis.Enabled() {
		redisCache, err := redis.NewContextCache(ctx, appConfig.Redis)
		if err != nil {
			log.WithError(err).Fatal("Failed to connect to Redis")
		}
		defer redisCache.Close()
		cache = redisCache
		checks["redis"] = redisCache
	}

	gateway, err := llm.NewGateway(ctx, &appConfig.LLM)
	if err != nil {
		log.WithError(err).Fatal("Failed to create model gateway")
	}

	cfg := app.NewConfig(database, cache, gateway, appConfig)
	verifier := handlers.NewTokenVerifier(appConfig.Auth.JWTSecret)
	aiHandler := handlers.NewAIHandlers(cfg, orchestrator.NewOrchestrator(cfg))

	mux := http.NewServeMux()

	// Public routes
	mux.HandleFunc("GET /api/health", enableCORS(handlers.HealthHandler(checks)))
	mux.HandleFunc("OPTIONS /api/health", corsHandler)
	mux.Handle("GET /metrics", metrics.Handler())

	// Protected routes
	mux.HandleFunc("POST /api/ai/{type}", enableCORS(verifier.AuthMiddleware(aiHandler.ProcessHandler)))
	mux.HandleFunc("OPTIONS /api/ai/{type}", corsHandler)
	mux.HandleFunc("GET /api/ai/usage", enableCORS(verifier.AuthMiddleware(aiHandler.UsageHandler)))
	mux.HandleFunc("OPTIONS /api/ai/usage", corsHandler)
	mux.HandleFunc("GET /api/ai/conversations", enableCORS(verifier.AuthMiddleware(aiHandler.ConversationsHandler)))
	mux.HandleFunc("OPTIONS /api/ai/conversations", corsHandler)

	server := &http.Server{
		Addr:              ":" + appConfig.Server.Port,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Error("Graceful shutdown failed")
		}
	}()

	log.WithFields(logrus.Fields{
		"port":     appConfig.Server.Port,
		"provider": gateway.Name(),
		"cache":    cacheBackend(appConfig.Redis),
	}).Info("Server starting")

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.WithError(err).Fatal("Server failed to start")
	}
	log.Info("Server stopped")
}

func cacheBackend(cfg config.RedisConfig) string {
	if cfg.Enabled() {
		return "redis"
	}
	return "postgres"
}
