package main

import (
	"context"
	"errors"
	"ito/internal/config"
	"ito/internal/game"
	"ito/internal/gateway"
	"ito/internal/logger"
	"ito/internal/maintenance"
	"ito/internal/migrations"
	"ito/internal/storage"
	"ito/internal/store"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLog := logger.Setup("info", true)
		bootLog.Fatal().Err(err).Msg("invalid configuration")
	}
	log := logger.Setup(cfg.LogLevel, cfg.LogPretty)
	if !cfg.LogPretty {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Dependencies
	var (
		tree   store.Store
		topics game.TopicSource = game.CuratedTopics
	)
	if cfg.PostgresURL == "" {
		log.Warn().Msg("POSTGRES_URL not set, rooms live in memory only")
		tree = store.NewMemory()
	} else {
		if err := migrations.Migrate(cfg.PostgresURL); err != nil {
			log.Fatal().Err(err).Msg("migrations failed")
		}
		pool, err := storage.Connect(ctx, cfg.PostgresURL)
		if err != nil {
			log.Fatal().Err(err).Msg("postgres unreachable")
		}
		defer pool.Close()

		pgTree := storage.NewPostgresTree(pool, log)
		defer pgTree.Close()
		tree = pgTree

		repo := storage.NewPostgresRepo(pool)
		n, err := repo.CountTopics(ctx)
		if err != nil {
			log.Fatal().Err(err).Msg("topic catalog unreadable")
		}
		if n < cfg.TopicOptions {
			log.Warn().Int("topics", n).Int("per_round", cfg.TopicOptions).Msg("topic catalog smaller than one round of options")
		}
		topics = repo
	}

	g := game.New(game.Options{
		Store:        tree,
		Topics:       topics,
		Logger:       logger.ForComponent(log, "game"),
		TopicOptions: cfg.TopicOptions,
	})

	sweeper := maintenance.NewSweeper(tree, maintenance.DiskAvatars{Dir: cfg.AvatarDir}, maintenance.Options{
		RoomTTL:  cfg.RoomTTL,
		UserTTL:  cfg.UserTTL,
		Interval: cfg.SweepInterval,
		Logger:   log,
	})
	go sweeper.Run(ctx)

	r := gateway.CreateServer(cfg.AllowedOrigins)
	gateway.NewHandler(g, gateway.Options{Logger: log}).Register(r)

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Info().Str("addr", cfg.ListenAddr).Msg("ito server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("couldn't start server")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
}
