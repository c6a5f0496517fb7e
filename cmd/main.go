package main

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"parley/internal/app/registry"
	"parley/internal/app/relay"
	"parley/internal/app/server"
	"parley/internal/app/server/handlers"
	"parley/internal/app/worker"
	"parley/internal/config"
	"parley/internal/core/services"
	"parley/internal/platform/logger"
	"parley/internal/platform/telemetry"
	"parley/internal/plugins/postgres"
	redisPlugin "parley/internal/plugins/redis"
)

func main() {
	if err := run(); err != nil {
		os.Exit(1)
	}
}

func run() error {
	// Context
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Config
	cfg := config.Load()

	// Logger
	log := logger.NewLogger(*cfg)
	log.Info("starting application")
	if cfg.SecretToken == "" {
		log.Error("JWT_SECRET is required")
		return errMissingSecret
	}

	otelShutdown, err := telemetry.InitTelemetry(ctx, *cfg)
	if err != nil {
		log.Error("failed to initialize telemetry", "err", err)
	}
	defer func() {
		log.Info("flushing telemetry...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(shutdownCtx); err != nil {
			log.Error("telemetry shutdown failed", "err", err)
		}
	}()

	// Infra
	var pdb *sql.DB
	if pdb, err = postgres.New(ctx, *cfg.Postgres); err != nil {
		log.Error("postgres connection failed", "err", err)
		return err
	}
	defer pdb.Close()
	if err = postgres.Migrate(ctx, pdb); err != nil {
		log.Error("postgres migration failed", "err", err)
		return err
	}
	log.Info("postgres connected")
	var rdb *redis.Client
	if rdb, err = redisPlugin.NewRedisClient(ctx, *cfg.Redis, cfg.Service.Name); err != nil {
		log.Error("redis connection failed", "err", err)
		return err
	}
	defer rdb.Close()
	log.Info("redis connected")

	// Adapters
	userRepo := postgres.NewUserRepository(pdb)
	groupRepo := postgres.NewGroupRepo(pdb)
	msgRepo := postgres.NewMessageRepo(pdb)
	callRepo := postgres.NewCallRepo(pdb)
	txManager := postgres.NewTxManager(pdb)
	presStore := redisPlugin.NewRedisPresenceStore(rdb, cfg.Presence.LastSeenTTL)
	queue := redisPlugin.NewRedisMessageQueue(rdb, cfg.Calls.JournalMaxSize, log).
		WithReclaim(cfg.Calls.JournalReclaimIdle, cfg.Calls.JournalReclaimIdle)
	journal := redisPlugin.NewCallJournal(queue, cfg.Calls.JournalStream)

	// Realtime
	rl := relay.NewRelay(log, registry.NewRegistry(log), journal, cfg.Relay.QueueSize)

	// Core Services
	tokenSvc := services.NewTokenService(cfg.SecretToken, cfg.TokenTTL)
	userSvc := services.NewUserService(log, userRepo, cfg.MinPasswordEntropy)
	msgSvc := services.NewMessageService(log, msgRepo, userRepo, rl)
	groupSvc := services.NewGroupService(log, groupRepo, msgRepo, userRepo, rl, txManager)
	sessSvc := services.NewSessionService(log, presStore, rl)
	roomSvc := services.NewRoomService(log, groupRepo, userRepo)
	callSvc, err := services.NewCallService(log, callRepo, cfg.Calls.ICEServers, cfg.Calls.ICEUsername, cfg.Calls.ICECredential)
	if err != nil {
		log.Error("invalid ice server configuration", "err", err)
		return err
	}
	managerSvc := services.NewManagerService(log, rl, roomSvc, sessSvc, cfg.Presence.HeartbeatInterval)

	wrkr := worker.NewCallWorker(log, queue, callRepo, cfg.Calls.JournalStream, cfg.Calls.JournalGroup)

	// Server
	srv := server.NewServer(log, *cfg, tokenSvc, server.Handlers{
		Auth:     handlers.NewAuthHandler(userSvc, tokenSvc, cfg.HTTP.SecureCookies),
		Messages: handlers.NewMessageHandler(msgSvc, userSvc),
		Groups:   handlers.NewGroupHandler(groupSvc),
		Presence: handlers.NewPresenceHandler(rl, sessSvc),
		Calls:    handlers.NewCallHandler(callSvc),
		WS:       handlers.NewWSHandler(log, managerSvc, *cfg.WebSocket, cfg.HTTP.AllowedOrigins),
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return rl.Run(gctx) })
	g.Go(func() error { return wrkr.Run(gctx) })
	g.Go(func() error { return srv.Start(gctx) })
	if err := g.Wait(); err != nil {
		log.Error("application stopped with error", "err", err)
		return err
	}
	log.Info("application stopped")
	return nil
}

var errMissingSecret = errors.New("missing JWT secret")
