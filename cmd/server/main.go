package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"

	"github.com/quizfire/quizfire/internal/config"
	"github.com/quizfire/quizfire/internal/database"
	"github.com/quizfire/quizfire/internal/engine"
	"github.com/quizfire/quizfire/internal/game"
	"github.com/quizfire/quizfire/internal/migrations"
	"github.com/quizfire/quizfire/internal/server"
	"github.com/quizfire/quizfire/internal/snapshot"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, stdout io.Writer) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := slog.New(slog.NewJSONHandler(stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))

	// --- SQLite ---
	db, err := database.Open(ctx, cfg.DBPath)
	if err != nil {
		return fmt.Errorf("connecting to sqlite: %w", err)
	}
	defer db.Close()

	if err := migrations.Run(db); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	logger.Info("connected to sqlite", "path", cfg.DBPath)

	// --- Game engine ---
	store := snapshot.NewStore(db)

	restore, err := store.Load(ctx)
	switch {
	case errors.Is(err, snapshot.ErrNoSnapshot):
		logger.Info("no saved game, starting fresh")
	case err != nil:
		return fmt.Errorf("loading snapshot: %w", err)
	default:
		logger.Info("restoring saved game", "round", restore.CurrentRound, "players", len(restore.Players))
	}

	displays := engine.NewDisplays()
	broker := server.NewBroker()
	displays.Register(broker)

	engCfg := engine.Config{
		Restore:     restore,
		Logger:      logger,
		Clock:       clockwork.NewRealClock(),
		Displays:    displays,
		Sound:       broker,
		Saver:       store,
		BuzzWindow:  cfg.BuzzWindow,
		FinalWindow: cfg.FinalWindow,
	}
	if restore == nil {
		engCfg.Boards, engCfg.Meta = game.SeedDemoBoards()
	}

	eng, err := engine.New(engCfg)
	if err != nil {
		return fmt.Errorf("building engine: %w", err)
	}

	hub := server.NewHub(logger, eng)
	eng.SetBuzzers(hub)

	auth, err := server.NewHostAuth(cfg.HostPasscode)
	if err != nil {
		return fmt.Errorf("hashing host passcode: %w", err)
	}

	// --- HTTP Server ---
	srv := server.New(cfg.HTTPAddr, logger, server.Options{
		Engine:    eng,
		Hub:       hub,
		Broker:    broker,
		Auth:      auth,
		DB:        db,
		PublicURL: cfg.PublicURL,
	})

	// --- Run ---
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("starting http server", "addr", cfg.HTTPAddr)
		return srv.Run(gctx)
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down http server")
		return srv.Shutdown(context.Background())
	})

	return g.Wait()
}
