package main

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/BenhadineKaoutar/picorpixel/internal/config"
	"github.com/BenhadineKaoutar/picorpixel/internal/game"
	"github.com/BenhadineKaoutar/picorpixel/internal/msgcat"
	"github.com/BenhadineKaoutar/picorpixel/internal/obslog"
	"github.com/BenhadineKaoutar/picorpixel/internal/server"
	"github.com/BenhadineKaoutar/picorpixel/internal/store"
)

func main() {
	_ = godotenv.Load()

	if err := obslog.InitFromEnv(); err != nil {
		panic(err)
	}
	defer obslog.Sync()

	cfg, err := config.Load()
	if err != nil {
		obslog.L().Fatal("config_load_error", zap.Error(err))
	}

	kv, err := store.NewRedis(cfg.RedisURL)
	if err != nil {
		obslog.L().Fatal("redis_connect_error", zap.Error(err))
	}
	defer kv.Close()

	messages, err := msgcat.New(cfg.MessageOverrideDir)
	if err != nil {
		obslog.L().Fatal("message_catalog_error", zap.Error(err))
	}

	pool := game.NewImagePool(kv)
	cache := game.NewChallengeCache(kv, pool, cfg.ChallengeImageCount, time.Duration(cfg.ChallengeTTLHours)*time.Hour)
	sessions := game.NewSessionStore(kv, cache, time.Duration(cfg.SessionTTLHours)*time.Hour)
	stats := game.NewStatsStore(kv)
	leaderboard := game.NewLeaderboardAggregator(kv, stats)
	orchestrator := game.NewOrchestrator(cache, sessions, leaderboard, stats)

	if cfg.DatabaseURL != "" {
		archive, err := game.NewPostgresArchive(cfg.DatabaseURL)
		if err != nil {
			obslog.L().Fatal("archive_connect_error", zap.Error(err))
		}
		orchestrator.AttachArchive(archive)
		obslog.L().Info("result_archive_enabled")
	}

	srv := server.New(cfg, orchestrator, kv, messages)

	go func() {
		obslog.L().Info("server_listening", zap.String("addr", cfg.ListenAddr))
		if err := srv.Listen(cfg.ListenAddr); err != nil {
			obslog.L().Fatal("server_listen_error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	obslog.L().Info("server_shutting_down")
	if err := srv.Shutdown(); err != nil {
		obslog.L().Error("server_shutdown_error", zap.Error(err))
	}
}
