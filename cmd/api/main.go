package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/punchamoorthee/swapledger/internal/api"
	"github.com/punchamoorthee/swapledger/internal/auth"
	"github.com/punchamoorthee/swapledger/internal/config"
	"github.com/punchamoorthee/swapledger/internal/domain"
	"github.com/punchamoorthee/swapledger/internal/logging"
	"github.com/punchamoorthee/swapledger/internal/service"
	"github.com/punchamoorthee/swapledger/internal/store"
	"github.com/punchamoorthee/swapledger/internal/store/memstore"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", os.Getenv("CONFIG_FILE"), "optional config file (yaml, json or toml)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal(err)
	}

	logger, err := logging.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("server exited", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	var (
		uow    domain.UnitOfWork
		pinger api.Pinger
	)
	if cfg.UseMemoryStore() {
		logger.Warn("using in-memory store, data is lost on exit")
		uow = memstore.New()
	} else {
		if cfg.AutoMigrate {
			if err := store.Migrate(cfg.DBSource, logger); err != nil {
				return err
			}
		}
		db, err := store.NewStore(ctx, cfg.DBSource, store.Options{
			MaxAttempts: cfg.TxMaxAttempts,
			LockTimeout: cfg.LockTimeout,
		}, logger)
		if err != nil {
			return err
		}
		defer db.Close()
		uow, pinger = db, db
	}

	svc := service.New(uow, logger, service.WithStartingPoints(cfg.StartingPoints))
	tokens := auth.NewTokens(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTTTL)
	handler := api.NewHandler(svc, tokens, pinger, logger)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler.Router(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
