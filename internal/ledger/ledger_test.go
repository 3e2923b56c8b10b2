package ledger

import (
	"context"
	"errors"
	"testing"

	"github.com/rjniknt7-dev/dairy-manager-sub001/internal/cache"
	"github.com/rjniknt7-dev/dairy-manager-sub001/internal/domain"
	"github.com/rjniknt7-dev/dairy-manager-sub001/internal/logger"
	"github.com/rjniknt7-dev/dairy-manager-sub001/internal/store"
	"github.com/rjniknt7-dev/dairy-manager-sub001/internal/store/memory"
)

func newTestCalculator(t *testing.T) (*Calculator, *memory.Store, string) {
	t.Helper()
	repo := memory.New()
	client, err := repo.SaveClient(context.Background(), domain.Client{Name: "Hotel Annapurna"})
	if err != nil {
		t.Fatalf("save client: %v", err)
	}
	return New(repo, cache.NewMemoryBalanceCache(), logger.Discard()), repo, client.RemoteID
}

func addEntry(t *testing.T, repo *memory.Store, clientID string, typ domain.LedgerType, amount int64) {
	t.Helper()
	_, err := repo.AppendLedgerEntry(context.Background(), domain.LedgerEntry{
		ClientID: clientID, Type: typ, AmountPaise: amount,
	})
	if err != nil {
		t.Fatalf("append %s %d: %v", typ, amount, err)
	}
}

func TestStatementRunningBalance(t *testing.T) {
	calc, repo, clientID := newTestCalculator(t)
	ctx := context.Background()

	addEntry(t, repo, clientID, domain.LedgerBill, 100)
	addEntry(t, repo, clientID, domain.LedgerPayment, 40)
	addEntry(t, repo, clientID, domain.LedgerCredit, 10)
	addEntry(t, repo, clientID, domain.LedgerAdjustment, -25)

	statement, err := calc.Statement(ctx, clientID)
	if err != nil {
		t.Fatalf("statement: %v", err)
	}
	if len(statement) != 4 {
		t.Fatalf("expected 4 rows, got %d", len(statement))
	}
	wants := []int64{100, 60, 50, 75}
	for i, want := range wants {
		if statement[i].BalancePaise != want {
			t.Fatalf("row %d: expected running balance %d, got %d", i, want, statement[i].BalancePaise)
		}
	}
}

func TestCurrentBalanceCachesAndInvalidates(t *testing.T) {
	repo := memory.New()
	client, err := repo.SaveClient(context.Background(), domain.Client{Name: "Canteen"})
	if err != nil {
		t.Fatalf("save client: %v", err)
	}
	clientID := client.RemoteID

	balances := cache.NewMemoryBalanceCache()
	calc := New(repo, balances, logger.Discard())
	ctx := context.Background()

	addEntry(t, repo, clientID, domain.LedgerBill, 100)

	got, err := calc.CurrentBalance(ctx, clientID)
	if err != nil || got != 100 {
		t.Fatalf("expected 100, got %d err %v", got, err)
	}
	if cached, ok, _ := balances.Get(ctx, clientID); !ok || cached != 100 {
		t.Fatalf("expected balance cached as 100, got %d ok=%v", cached, ok)
	}

	// Without invalidation the stale cached value is served.
	addEntry(t, repo, clientID, domain.LedgerPayment, 30)
	got, _ = calc.CurrentBalance(ctx, clientID)
	if got != 100 {
		t.Fatalf("expected stale cached 100, got %d", got)
	}

	calc.Invalidate(ctx, clientID)
	got, _ = calc.CurrentBalance(ctx, clientID)
	if got != 70 {
		t.Fatalf("expected recomputed 70 after invalidation, got %d", got)
	}
}

func TestCurrentBalanceEmptyLedger(t *testing.T) {
	calc, _, clientID := newTestCalculator(t)

	got, err := calc.CurrentBalance(context.Background(), clientID)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if got != 0 {
		t.Fatalf("expected 0 for empty ledger, got %d", got)
	}
}

func TestOverpaymentGoesNegative(t *testing.T) {
	calc, repo, clientID := newTestCalculator(t)

	addEntry(t, repo, clientID, domain.LedgerBill, 40)
	addEntry(t, repo, clientID, domain.LedgerPayment, 60)

	got, err := calc.CurrentBalance(context.Background(), clientID)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if got != -20 {
		t.Fatalf("expected -20 when the shop owes the client, got %d", got)
	}
}

func TestEmptyClientIDRejected(t *testing.T) {
	calc, _, _ := newTestCalculator(t)

	if _, err := calc.CurrentBalance(context.Background(), ""); !errors.Is(err, store.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if _, err := calc.Statement(context.Background(), ""); !errors.Is(err, store.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}
