package store

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/punchamoorthee/swapledger/internal/domain"
	"go.uber.org/zap"
)

// SQLSTATE codes inspected by the store.
const (
	codeUniqueViolation      = "23505"
	codeCheckViolation       = "23514"
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
	codeLockNotAvailable     = "55P03"
)

var txRetriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "swapledger_store_tx_retries_total",
	Help: "Unit-of-work retries, labeled by the SQLSTATE that caused them",
}, []string{"code"})

// Options tune the unit-of-work retry loop.
type Options struct {
	MaxAttempts int
	LockTimeout time.Duration
	RetryBase   time.Duration
}

func (o Options) withDefaults() Options {
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 3
	}
	if o.LockTimeout <= 0 {
		o.LockTimeout = 2 * time.Second
	}
	if o.RetryBase <= 0 {
		o.RetryBase = 10 * time.Millisecond
	}
	return o
}

// Store is the PostgreSQL implementation of domain.UnitOfWork. Its embedded
// Queries run against the pool for plain reads.
type Store struct {
	*Queries
	Db   *pgxpool.Pool
	opts Options
	log  *zap.Logger
}

var _ domain.UnitOfWork = (*Store)(nil)

func NewStore(ctx context.Context, connString string, opts Options, log *zap.Logger) (*Store, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("unable to parse database config: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	return &Store{
		Queries: &Queries{db: pool},
		Db:      pool,
		opts:    opts.withDefaults(),
		log:     log,
	}, nil
}

func (s *Store) Close() {
	s.Db.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.Db.Ping(ctx)
}

// InTx runs fn inside a serializable transaction. Serialization failures,
// deadlocks and lock timeouts are retried with jittered exponential backoff;
// when attempts run out the caller gets domain.ErrConflict.
func (s *Store) InTx(ctx context.Context, fn func(domain.Repository) error) error {
	var lastErr error
	for attempt := 0; attempt < s.opts.MaxAttempts; attempt++ {
		if attempt > 0 {
			if err := sleepWithContext(ctx, jitter(s.opts.RetryBase, attempt)); err != nil {
				return err
			}
		}

		err := s.runTx(ctx, fn)
		code, retry := retryable(err)
		if !retry {
			return err
		}

		lastErr = err
		txRetriesTotal.WithLabelValues(code).Inc()
		s.log.Warn("unit of work conflict, retrying",
			zap.Int("attempt", attempt+1),
			zap.String("sqlstate", code),
			zap.Error(err))
	}
	s.log.Warn("unit of work gave up",
		zap.Int("attempts", s.opts.MaxAttempts),
		zap.Error(lastErr))
	return fmt.Errorf("%w: too many concurrent updates, retry the request", domain.ErrConflict)
}

func (s *Store) runTx(ctx context.Context, fn func(domain.Repository) error) error {
	tx, err := s.Db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return fmt.Errorf("tx begin failed: %w", err)
	}
	defer tx.Rollback(ctx)

	// Lock waits surface as 55P03 instead of hanging the request.
	timeout := strconv.FormatInt(s.opts.LockTimeout.Milliseconds(), 10) + "ms"
	if _, err := tx.Exec(ctx, "SELECT set_config('lock_timeout', $1, true)", timeout); err != nil {
		return fmt.Errorf("set lock timeout: %w", err)
	}

	if err := fn(&Queries{db: tx}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("tx commit failed: %w", err)
	}
	return nil
}

func retryable(err error) (string, bool) {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return "", false
	}
	switch pgErr.Code {
	case codeSerializationFailure, codeDeadlockDetected, codeLockNotAvailable:
		return pgErr.Code, true
	}
	return pgErr.Code, false
}

func isCode(err error, code string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == code
}

func constraintName(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.ConstraintName
	}
	return ""
}

// jitter returns a random duration in [0, base*2^attempt).
func jitter(base time.Duration, attempt int) time.Duration {
	if attempt > 16 {
		attempt = 16
	}
	ceiling := int64(base) << attempt
	if ceiling <= 0 {
		return 0
	}
	return time.Duration(rand.Int64N(ceiling))
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("context done: %w", ctx.Err())
	}
}

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// Queries implements domain.Repository over either the pool or an open
// transaction.
type Queries struct {
	db querier
}

var _ domain.Repository = (*Queries)(nil)

func notFound(err error, what string, id any) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s %v: %w", what, id, domain.ErrNotFound)
	}
	return fmt.Errorf("load %s %v: %w", what, id, err)
}
