package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/tessera-gg/server/internal/ai"
	"github.com/tessera-gg/server/internal/auth"
	"github.com/tessera-gg/server/internal/cache"
	"github.com/tessera-gg/server/internal/config"
	"github.com/tessera-gg/server/internal/match"
	"github.com/tessera-gg/server/internal/store"
	"github.com/tessera-gg/server/internal/ws"
)

func main() {
	log := logrus.New()

	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("config load failed")
	}
	log.SetLevel(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	regCfg := match.RegistryConfig{
		FallbackTier:   ai.TierMedium,
		GraceWindow:    cfg.GraceWindow,
		AnimationDelay: cfg.AnimationDelay,
		Log:            log,
	}

	var db *store.Store
	if cfg.DatabaseURL != "" {
		db, err = store.Open(ctx, cfg.DatabaseURL, log)
		if err != nil {
			log.WithError(err).Fatal("postgres connect failed")
		}
		defer db.Close()
		if err := db.Migrate(ctx); err != nil {
			log.WithError(err).Fatal("migrate failed")
		}
		regCfg.Store = db
	} else {
		log.Warn("DATABASE_URL not set, matches will not be persisted")
	}

	if cfg.RedisURL != "" {
		audit, err := cache.New(ctx, cfg.RedisURL, log)
		if err != nil {
			log.WithError(err).Fatal("redis connect failed")
		}
		defer audit.Close()
		regCfg.Recorder = audit
	} else {
		log.Warn("REDIS_URL not set, action trail disabled")
	}

	profiles := ai.DefaultProfiles()
	if cfg.DifficultyPath != "" {
		profiles, err = ai.LoadProfiles(cfg.DifficultyPath)
		if err != nil {
			log.WithError(err).Fatal("difficulty profiles load failed")
		}
	}
	regCfg.Mover = ai.NewEngine(ai.EngineSimulator{}, profiles, time.Now().UnixNano(), log)

	registry := match.NewRegistry(regCfg)
	signer := auth.NewSigner(cfg.JWTSecret)

	var loader ws.MatchLoader
	var writer ws.MatchWriter
	if db != nil {
		loader = db
		writer = db
	}
	hub := ws.NewHub(signer, registry, loader, cfg.AllowedOrigins, log)
	api := ws.NewAPI(signer, hub, registry, writer, time.Now().UnixNano(), log)

	mux := http.NewServeMux()
	api.Register(mux)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.WithField("addr", cfg.Addr).Info("server listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.WithError(err).Fatal("server exited")
	}
	log.Info("server stopped")
}
