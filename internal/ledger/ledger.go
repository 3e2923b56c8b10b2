// Package ledger computes client balances from the append-only khata.
// Nothing here mutates entries: bills add to what a client owes,
// payments, credits and (positive) adjustments take away, and the
// balance is always a fold over the full history.
package ledger

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/rjniknt7-dev/dairy-manager-sub001/internal/cache"
	"github.com/rjniknt7-dev/dairy-manager-sub001/internal/domain"
	"github.com/rjniknt7-dev/dairy-manager-sub001/internal/store"
)

const defaultCacheTTL = 10 * time.Minute

type Calculator struct {
	repo     store.Repository
	balances cache.BalanceCache
	logg     *logrus.Logger
	cacheTTL time.Duration
}

func New(repo store.Repository, balances cache.BalanceCache, logg *logrus.Logger) *Calculator {
	if balances == nil {
		balances = cache.NoopBalanceCache{}
	}
	return &Calculator{
		repo:     repo,
		balances: balances,
		logg:     logg,
		cacheTTL: defaultCacheTTL,
	}
}

// Amount sign per entry type: bills increase the balance owed,
// everything else reduces it. Adjustments carry their own sign, so a
// negative adjustment (a bill total that grew) increases the balance.
func delta(entry domain.LedgerEntry) int64 {
	if entry.Type == domain.LedgerBill {
		return entry.AmountPaise
	}
	return -entry.AmountPaise
}

// Statement returns the client's entries in date order, each with the
// running balance after it.
func (c *Calculator) Statement(ctx context.Context, clientID string) ([]domain.RunningBalance, error) {
	if clientID == "" {
		return nil, store.ErrInvalidInput
	}
	entries, err := c.repo.ListLedgerByClient(ctx, clientID)
	if err != nil {
		return nil, err
	}

	statement := make([]domain.RunningBalance, 0, len(entries))
	balance := int64(0)
	for _, entry := range entries {
		balance += delta(entry)
		statement = append(statement, domain.RunningBalance{Entry: entry, BalancePaise: balance})
	}
	return statement, nil
}

// CurrentBalance returns the amount the client owes right now. Reads go
// through the cache; a miss recomputes from the full ledger.
func (c *Calculator) CurrentBalance(ctx context.Context, clientID string) (int64, error) {
	if clientID == "" {
		return 0, store.ErrInvalidInput
	}

	if balance, ok, err := c.balances.Get(ctx, clientID); err == nil && ok {
		return balance, nil
	} else if err != nil {
		c.logg.WithFields(logrus.Fields{"client": clientID, "err": err}).
			Warn("balance cache read failed, recomputing")
	}

	entries, err := c.repo.ListLedgerByClient(ctx, clientID)
	if err != nil {
		return 0, err
	}
	balance := int64(0)
	for _, entry := range entries {
		balance += delta(entry)
	}

	if err := c.balances.Set(ctx, clientID, balance, c.cacheTTL); err != nil {
		c.logg.WithFields(logrus.Fields{"client": clientID, "err": err}).
			Warn("balance cache write failed")
	}
	return balance, nil
}

// Invalidate drops the cached balance after any write that touches the
// client's ledger. The next read recomputes.
func (c *Calculator) Invalidate(ctx context.Context, clientID string) {
	if clientID == "" {
		return
	}
	if err := c.balances.Invalidate(ctx, clientID); err != nil {
		c.logg.WithFields(logrus.Fields{"client": clientID, "err": err}).
			Warn("balance cache invalidation failed")
	}
}
