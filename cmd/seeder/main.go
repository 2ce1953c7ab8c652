package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/punchamoorthee/swapledger/internal/auth"
	"github.com/punchamoorthee/swapledger/internal/domain"
	"github.com/punchamoorthee/swapledger/internal/logging"
	"github.com/punchamoorthee/swapledger/internal/store"
	"go.uber.org/zap"
)

// seedEmail is the address of the i-th seeded account. cmd/benchmark logs in
// with the same scheme.
func seedEmail(i int) string {
	return fmt.Sprintf("seed-%04d@swapledger.local", i)
}

func main() {
	var (
		total   = flag.Int("accounts", 1000, "number of accounts to seed")
		balance = flag.Int64("balance", 100000, "starting points per account")
	)
	flag.Parse()

	logger, err := logging.New(os.Getenv("ENVIRONMENT"), os.Getenv("LOG_LEVEL"))
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = logger.Sync() }()

	dbURL := os.Getenv("DB_SOURCE")
	if dbURL == "" {
		logger.Fatal("DB_SOURCE environment variable is required")
	}
	password := os.Getenv("SEED_PASSWORD")
	if password == "" {
		logger.Fatal("SEED_PASSWORD environment variable is required")
	}

	if err := store.Migrate(dbURL, logger); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

	ctx := context.Background()
	conn, err := pgx.Connect(ctx, dbURL)
	if err != nil {
		logger.Fatal("unable to connect to database", zap.Error(err))
	}
	defer conn.Close(ctx)

	var count int
	if err := conn.QueryRow(ctx, "SELECT count(*) FROM accounts WHERE email LIKE 'seed-%'").Scan(&count); err != nil {
		logger.Fatal("count seeded accounts", zap.Error(err))
	}
	if count >= *total {
		logger.Info("already seeded, skipping", zap.Int("accounts", count))
		return
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		logger.Fatal("hash seed password", zap.Error(err))
	}

	logger.Info("generating accounts", zap.Int("accounts", *total), zap.Int64("balance", *balance))
	now := time.Now().UTC()
	accounts := make([][]any, 0, *total)
	grants := make([][]any, 0, *total)
	for i := count; i < *total; i++ {
		id := uuid.New()
		accounts = append(accounts, []any{id, seedEmail(i), "Seed", fmt.Sprintf("%04d", i), hash, *balance, true, now})
		grants = append(grants, []any{uuid.New(), id, *balance, string(domain.EntrySignupGrant), now})
	}

	tx, err := conn.Begin(ctx)
	if err != nil {
		logger.Fatal("begin", zap.Error(err))
	}
	defer func() { _ = tx.Rollback(ctx) }()

	copied, err := tx.CopyFrom(ctx,
		pgx.Identifier{"accounts"},
		[]string{"id", "email", "first_name", "last_name", "password_hash", "points_balance", "is_active", "created_at"},
		pgx.CopyFromRows(accounts),
	)
	if err != nil {
		logger.Fatal("bulk insert accounts", zap.Error(err))
	}

	if _, err := tx.CopyFrom(ctx,
		pgx.Identifier{"ledger_entries"},
		[]string{"id", "account_id", "delta", "kind", "created_at"},
		pgx.CopyFromRows(grants),
	); err != nil {
		logger.Fatal("bulk insert signup grants", zap.Error(err))
	}

	if err := tx.Commit(ctx); err != nil {
		logger.Fatal("commit", zap.Error(err))
	}
	logger.Info("seeded accounts", zap.Int64("accounts", copied))
}
