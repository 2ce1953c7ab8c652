// Package service holds the marketplace's transactional core. Every operation
// that touches more than one row runs inside a single domain.UnitOfWork, so
// items, transactions and balances commit together or not at all.
package service

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/punchamoorthee/swapledger/internal/domain"
	"go.uber.org/zap"
)

var (
	itemTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "swapledger_item_transitions_total",
		Help: "Committed item status changes, labeled by target status",
	}, []string{"status"})

	txTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "swapledger_transaction_transitions_total",
		Help: "Committed transaction status changes, labeled by method and target status",
	}, []string{"method", "status"})

	pointsMovedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "swapledger_points_transferred_total",
		Help: "Points moved between accounts by committed transfers",
	})
)

type Marketplace struct {
	uow            domain.UnitOfWork
	log            *zap.Logger
	startingPoints int64
	now            func() time.Time
}

type Option func(*Marketplace)

// WithStartingPoints overrides the balance granted at registration.
func WithStartingPoints(points int64) Option {
	return func(m *Marketplace) {
		if points >= 0 {
			m.startingPoints = points
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(m *Marketplace) { m.now = now }
}

func New(uow domain.UnitOfWork, log *zap.Logger, opts ...Option) *Marketplace {
	if log == nil {
		log = zap.NewNop()
	}
	m := &Marketplace{
		uow:            uow,
		log:            log,
		startingPoints: domain.DefaultStartingPoints,
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Marketplace) clock() time.Time {
	return m.now().UTC().Truncate(time.Microsecond)
}

// commitLog collects the transitions made by a unit of work. It is reset on
// each attempt and published only after the unit commits.
type commitLog struct {
	items  []domain.ItemStatus
	txs    []domain.Transaction
	points int64
}

func (c *commitLog) item(s domain.ItemStatus) { c.items = append(c.items, s) }

func (c *commitLog) tx(t domain.Transaction) { c.txs = append(c.txs, t) }

func (m *Marketplace) inTx(ctx context.Context, fn func(repo domain.Repository, log *commitLog) error) error {
	var cl commitLog
	err := m.uow.InTx(ctx, func(repo domain.Repository) error {
		cl = commitLog{}
		return fn(repo, &cl)
	})
	if err != nil {
		return err
	}
	for _, s := range cl.items {
		itemTransitionsTotal.WithLabelValues(string(s)).Inc()
	}
	for _, t := range cl.txs {
		txTransitionsTotal.WithLabelValues(string(t.Method), string(t.Status)).Inc()
	}
	if cl.points > 0 {
		pointsMovedTotal.Add(float64(cl.points))
	}
	return nil
}
