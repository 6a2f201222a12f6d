// Package server assembles the operator HTTP API.
package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/ordokr/LMS-sub004/internal/metrics"
	"github.com/ordokr/LMS-sub004/internal/server/handlers"
	"github.com/ordokr/LMS-sub004/internal/server/middleware"
	"github.com/ordokr/LMS-sub004/internal/storage"
)

// Deps зависимости маршрутизатора
type Deps struct {
	Logger    *slog.Logger
	Metrics   *metrics.Registry
	DB        handlers.Pinger
	Operators handlers.OperatorDirectory
	JWT       handlers.JWTConfig
	States    handlers.StateService
	Content   handlers.ContentService
	Runner    handlers.MutationRunner
	Syncer    handlers.FullSyncer
	Queue     handlers.QueueService
	TxLog     storage.TransactionStorage
	Mappings  storage.MappingStorage
	Version   string
	ReplicaID string
	// LoginRateLimit попыток входа в минуту с одного адреса (0 - без ограничения)
	LoginRateLimit int
}

// NewRouter создает обработчик API. ctx ограничивает время жизни
// фоновых задач маршрутизатора (очистка rate limiter).
func NewRouter(ctx context.Context, d Deps) http.Handler {
	logger := d.Logger

	health := handlers.NewHealthHandler(logger, d.DB, d.Version, d.ReplicaID)
	auth := handlers.NewAuthHandler(logger, d.Operators, d.JWT)
	syncH := handlers.NewSyncHandler(logger, d.Syncer, d.Queue)
	entity := handlers.NewEntityHandler(logger, d.States, d.Content, d.Runner, d.TxLog)
	mapping := handlers.NewMappingHandler(logger, d.Mappings)
	queueH := handlers.NewQueueHandler(logger, d.Queue)

	authed := middleware.AuthMiddleware(logger, d.JWT)
	protect := func(h http.HandlerFunc) http.Handler { return authed(h) }

	var login http.Handler = http.HandlerFunc(auth.Login)
	if d.LoginRateLimit > 0 {
		login = middleware.NewRateLimiter(ctx, d.LoginRateLimit, time.Minute, logger).Middleware(login)
	}

	mux := http.NewServeMux()

	// публичные маршруты
	mux.HandleFunc("GET /api/v1/health", health.Health)
	mux.Handle("POST /api/v1/auth/login", login)
	if d.Metrics != nil {
		mux.Handle("GET /metrics", d.Metrics.Handler())
	}

	// полная синхронизация
	mux.Handle("POST /api/v1/sync", protect(syncH.RunSync))
	mux.Handle("GET /api/v1/sync/status", protect(syncH.Status))

	// сущности
	mux.Handle("GET /api/v1/entities", protect(entity.List))
	mux.Handle("GET /api/v1/entities/{kind}/{id}", protect(entity.Get))
	mux.Handle("POST /api/v1/entities/{kind}/{id}/detect", protect(entity.Detect))
	mux.Handle("POST /api/v1/entities/{kind}/{id}/events", protect(entity.RecordEvent))
	mux.Handle("POST /api/v1/entities/{kind}/{id}/resolve", protect(entity.Resolve))
	mux.Handle("POST /api/v1/entities/{kind}/{id}/transfer", protect(entity.Transfer))
	mux.Handle("GET /api/v1/entities/{kind}/{id}/transactions", protect(entity.Transactions))

	// сопоставления
	mux.Handle("GET /api/v1/mappings/{kind}", protect(mapping.List))
	mux.Handle("GET /api/v1/mappings/{kind}/{id}", protect(mapping.Get))
	mux.Handle("PUT /api/v1/mappings/{kind}/{id}", protect(mapping.Put))

	// очередь повторов
	mux.Handle("POST /api/v1/queue", protect(queueH.Enqueue))
	mux.Handle("GET /api/v1/queue", protect(queueH.List))
	mux.Handle("GET /api/v1/queue/stats", protect(queueH.Stats))
	mux.Handle("POST /api/v1/queue/drain", protect(queueH.Drain))
	mux.Handle("GET /api/v1/queue/{id}", protect(queueH.Get))
	mux.Handle("POST /api/v1/queue/{id}/retry", protect(queueH.Retry))

	var h http.Handler = mux
	h = middleware.LoggingWithSkip(logger, []string{"/api/v1/health", "/metrics"})(h)
	h = middleware.RecoveryMiddleware(logger)(h)
	h = middleware.MetricsMiddleware(d.Metrics)(h)

	return h
}
