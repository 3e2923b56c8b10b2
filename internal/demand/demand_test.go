package demand

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rjniknt7-dev/dairy-manager-sub001/internal/domain"
	"github.com/rjniknt7-dev/dairy-manager-sub001/internal/logger"
	"github.com/rjniknt7-dev/dairy-manager-sub001/internal/store"
	"github.com/rjniknt7-dev/dairy-manager-sub001/internal/store/memory"
)

func newTestService(t *testing.T) (*Service, *memory.Store, domain.Client, domain.Product) {
	t.Helper()
	repo := memory.New()
	ctx := context.Background()

	client, err := repo.SaveClient(ctx, domain.Client{Name: "Sharma General Store"})
	if err != nil {
		t.Fatalf("save client: %v", err)
	}
	product, err := repo.SaveProduct(ctx, domain.Product{Name: "Curd 400g", PricePaise: 10, Stock: 6})
	if err != nil {
		t.Fatalf("save product: %v", err)
	}
	return New(repo, logger.Discard()), repo, *client, *product
}

func stock(t *testing.T, repo *memory.Store, productID string) int {
	t.Helper()
	p, err := repo.GetProductByRemoteID(context.Background(), productID)
	if err != nil {
		t.Fatalf("get product: %v", err)
	}
	return p.Stock
}

func TestCloseWithDeductStockReplenishes(t *testing.T) {
	svc, repo, client, product := newTestService(t)
	ctx := context.Background()

	batch, err := svc.BatchForDate(ctx, time.Now())
	if err != nil {
		t.Fatalf("batch for date: %v", err)
	}
	if _, err := svc.AddEntry(ctx, domain.DemandEntry{
		BatchID: batch.RemoteID, ClientID: client.RemoteID, ProductID: product.RemoteID, Quantity: 20,
	}); err != nil {
		t.Fatalf("add entry: %v", err)
	}

	closed, err := svc.Close(ctx, batch.RemoteID, domain.CloseBatchOptions{DeductStock: true})
	if err != nil {
		t.Fatalf("close: %v", err)
	}
	if !closed.Closed {
		t.Fatalf("expected closed batch")
	}
	if got := stock(t, repo, product.RemoteID); got != 26 {
		t.Fatalf("expected stock 26 after 20 incoming on 6, got %d", got)
	}

	// Closing again must be a no-op.
	if _, err := svc.Close(ctx, batch.RemoteID, domain.CloseBatchOptions{DeductStock: true}); err != nil {
		t.Fatalf("second close: %v", err)
	}
	if got := stock(t, repo, product.RemoteID); got != 26 {
		t.Fatalf("second close must not move stock, got %d", got)
	}
}

func TestTotalsSkipDeletedEntries(t *testing.T) {
	svc, _, client, product := newTestService(t)
	ctx := context.Background()

	batch, _ := svc.BatchForDate(ctx, time.Now())
	withFirst, err := svc.AddEntry(ctx, domain.DemandEntry{
		BatchID: batch.RemoteID, ClientID: client.RemoteID, ProductID: product.RemoteID, Quantity: 5,
	})
	if err != nil {
		t.Fatalf("add entry: %v", err)
	}
	if _, err := svc.AddEntry(ctx, domain.DemandEntry{
		BatchID: batch.RemoteID, ClientID: client.RemoteID, ProductID: product.RemoteID, Quantity: 3,
	}); err != nil {
		t.Fatalf("add entry: %v", err)
	}
	if _, err := svc.RemoveEntry(ctx, withFirst.Entries[0].RemoteID); err != nil {
		t.Fatalf("remove entry: %v", err)
	}

	totals, err := svc.Totals(ctx, batch.RemoteID)
	if err != nil {
		t.Fatalf("totals: %v", err)
	}
	if totals[product.RemoteID] != 3 {
		t.Fatalf("expected total 3 after removing the 5, got %d", totals[product.RemoteID])
	}
}

func TestClientTotalsGroupsPerClient(t *testing.T) {
	svc, repo, client, product := newTestService(t)
	ctx := context.Background()

	other, err := repo.SaveClient(ctx, domain.Client{Name: "Gupta Dairy Corner"})
	if err != nil {
		t.Fatalf("save client: %v", err)
	}

	batch, _ := svc.BatchForDate(ctx, time.Now())
	for _, e := range []domain.DemandEntry{
		{BatchID: batch.RemoteID, ClientID: client.RemoteID, ProductID: product.RemoteID, Quantity: 4},
		{BatchID: batch.RemoteID, ClientID: client.RemoteID, ProductID: product.RemoteID, Quantity: 2},
		{BatchID: batch.RemoteID, ClientID: other.RemoteID, ProductID: product.RemoteID, Quantity: 7},
	} {
		if _, err := svc.AddEntry(ctx, e); err != nil {
			t.Fatalf("add entry: %v", err)
		}
	}

	sheet, err := svc.ClientTotals(ctx, batch.RemoteID)
	if err != nil {
		t.Fatalf("client totals: %v", err)
	}
	if len(sheet) != 2 {
		t.Fatalf("expected 2 clients on the sheet, got %d", len(sheet))
	}
	if got := sheet[client.RemoteID][product.RemoteID]; got != 6 {
		t.Fatalf("expected 6 for first client, got %d", got)
	}
	if got := sheet[other.RemoteID][product.RemoteID]; got != 7 {
		t.Fatalf("expected 7 for second client, got %d", got)
	}
}

func TestClosedBatchRejectsNormalEdits(t *testing.T) {
	svc, _, client, product := newTestService(t)
	ctx := context.Background()

	batch, _ := svc.BatchForDate(ctx, time.Now())
	withEntry, err := svc.AddEntry(ctx, domain.DemandEntry{
		BatchID: batch.RemoteID, ClientID: client.RemoteID, ProductID: product.RemoteID, Quantity: 4,
	})
	if err != nil {
		t.Fatalf("add entry: %v", err)
	}
	if _, err := svc.Close(ctx, batch.RemoteID, domain.CloseBatchOptions{}); err != nil {
		t.Fatalf("close: %v", err)
	}

	if _, err := svc.UpdateEntry(ctx, withEntry.Entries[0].RemoteID, 9); !errors.Is(err, store.ErrBatchClosed) {
		t.Fatalf("expected ErrBatchClosed, got %v", err)
	}
}

func TestAmendClosedEntryCompensatesStock(t *testing.T) {
	svc, repo, client, product := newTestService(t)
	ctx := context.Background()

	batch, _ := svc.BatchForDate(ctx, time.Now())
	withEntry, err := svc.AddEntry(ctx, domain.DemandEntry{
		BatchID: batch.RemoteID, ClientID: client.RemoteID, ProductID: product.RemoteID, Quantity: 10,
	})
	if err != nil {
		t.Fatalf("add entry: %v", err)
	}
	entryID := withEntry.Entries[0].RemoteID

	if _, err := svc.Close(ctx, batch.RemoteID, domain.CloseBatchOptions{DeductStock: true}); err != nil {
		t.Fatalf("close: %v", err)
	}
	if got := stock(t, repo, product.RemoteID); got != 16 {
		t.Fatalf("expected stock 16 after close, got %d", got)
	}

	// Only 7 actually arrived; amend and take the extra 3 back out.
	if _, err := svc.AmendClosedEntry(ctx, batch.RemoteID, entryID, 7, true); err != nil {
		t.Fatalf("amend: %v", err)
	}
	if got := stock(t, repo, product.RemoteID); got != 13 {
		t.Fatalf("expected stock 13 after amending 10 to 7, got %d", got)
	}
}

func TestAddAndRemoveOnClosedBatch(t *testing.T) {
	svc, repo, client, product := newTestService(t)
	ctx := context.Background()

	batch, _ := svc.BatchForDate(ctx, time.Now())
	if _, err := svc.Close(ctx, batch.RemoteID, domain.CloseBatchOptions{}); err != nil {
		t.Fatalf("close: %v", err)
	}

	withLate, err := svc.AddEntryToClosed(ctx, domain.DemandEntry{
		BatchID: batch.RemoteID, ClientID: client.RemoteID, ProductID: product.RemoteID, Quantity: 5,
	}, true)
	if err != nil {
		t.Fatalf("late add: %v", err)
	}
	if got := stock(t, repo, product.RemoteID); got != 11 {
		t.Fatalf("expected stock 11 after late entry of 5, got %d", got)
	}

	entryID := withLate.Entries[len(withLate.Entries)-1].RemoteID
	if _, err := svc.RemoveClosedEntry(ctx, batch.RemoteID, entryID, true); err != nil {
		t.Fatalf("late remove: %v", err)
	}
	if got := stock(t, repo, product.RemoteID); got != 6 {
		t.Fatalf("expected stock back to 6, got %d", got)
	}
}

func TestRemoveClosedEntryRollsBackWhenStockShort(t *testing.T) {
	svc, repo, client, product := newTestService(t)
	ctx := context.Background()

	batch, _ := svc.BatchForDate(ctx, time.Now())
	withEntry, err := svc.AddEntry(ctx, domain.DemandEntry{
		BatchID: batch.RemoteID, ClientID: client.RemoteID, ProductID: product.RemoteID, Quantity: 10,
	})
	if err != nil {
		t.Fatalf("add entry: %v", err)
	}
	entryID := withEntry.Entries[0].RemoteID

	if _, err := svc.Close(ctx, batch.RemoteID, domain.CloseBatchOptions{DeductStock: true}); err != nil {
		t.Fatalf("close: %v", err)
	}
	// Most of the delivery has been sold on; only 6 units remain.
	if _, err := repo.AdjustStock(ctx, product.RemoteID, -10); err != nil {
		t.Fatalf("adjust stock: %v", err)
	}

	if _, err := svc.RemoveClosedEntry(ctx, batch.RemoteID, entryID, true); !errors.Is(err, store.ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}

	// The refused compensation must leave the entry and the shelf alone.
	totals, err := svc.Totals(ctx, batch.RemoteID)
	if err != nil {
		t.Fatalf("totals: %v", err)
	}
	if totals[product.RemoteID] != 10 {
		t.Fatalf("entry must survive a failed removal, got total %d", totals[product.RemoteID])
	}
	if got := stock(t, repo, product.RemoteID); got != 6 {
		t.Fatalf("stock must be untouched after a failed removal, got %d", got)
	}
}

func TestCloseRollsOverNextDay(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()

	day := time.Date(2026, 8, 29, 7, 0, 0, 0, time.UTC)
	batch, _ := svc.BatchForDate(ctx, day)
	if _, err := svc.Close(ctx, batch.RemoteID, domain.CloseBatchOptions{CreateNextDay: true}); err != nil {
		t.Fatalf("close: %v", err)
	}

	batches, err := svc.RecentBatches(ctx, 10)
	if err != nil {
		t.Fatalf("recent batches: %v", err)
	}
	if len(batches) != 2 {
		t.Fatalf("expected rollover to create a second batch, got %d", len(batches))
	}
}
