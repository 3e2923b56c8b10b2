package cache

import (
	"context"
	"time"
)

// BalanceCache holds computed client balances in paise. The ledger
// recomputes a balance from scratch on every miss, so eviction is
// always safe.
type BalanceCache interface {
	Get(ctx context.Context, clientID string) (int64, bool, error)
	Set(ctx context.Context, clientID string, balancePaise int64, ttl time.Duration) error
	Invalidate(ctx context.Context, clientID string) error
}

type NoopBalanceCache struct{}

func (NoopBalanceCache) Get(_ context.Context, _ string) (int64, bool, error) {
	return 0, false, nil
}

func (NoopBalanceCache) Set(_ context.Context, _ string, _ int64, _ time.Duration) error {
	return nil
}

func (NoopBalanceCache) Invalidate(_ context.Context, _ string) error {
	return nil
}
