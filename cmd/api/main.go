package main

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	server "wb_reviews/internal/adapters/http_server"
	"wb_reviews/internal/adapters/observability"
	redisad "wb_reviews/internal/adapters/redis"
	"wb_reviews/internal/app"
	"wb_reviews/internal/domain"
	"wb_reviews/internal/shared"
	"wb_reviews/internal/storage"
)

func main() {
	cfg := shared.Load()

	// set global logger (console in dev, JSON otherwise)
	log.Logger = observability.NewLogger(cfg.AppEnv, cfg.LogFile)

	ctx := context.Background()
	store, err := storage.Open(ctx, cfg.DB)
	if err != nil {
		log.Fatal().Err(err).Msg("database connection failed")
	}
	defer store.Close()
	if err := store.InitSchema(ctx); err != nil {
		log.Fatal().Err(err).Msg("schema init failed")
	}

	var cache domain.Cache
	if cfg.RedisAddr != "" {
		rc := redisad.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
		defer rc.Close()
		cache = rc
	}
	q := app.NewQueryService(store, cache, cfg.CacheTTL)

	srv := server.New()
	reg := observability.InitRegistry()
	srv.Mount("/metrics", observability.MetricsHandler(reg))
	srv.MountHandlers(&server.Handlers{Q: q})

	log.Info().Str("addr", cfg.HTTPAddr).Msg("API listening")
	httpSrv := &http.Server{Addr: cfg.HTTPAddr, Handler: srv.Mux(), ReadHeaderTimeout: 5 * time.Second}

	if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error().Err(err).Msg("http server failed")
	}
}
